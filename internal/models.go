package internal

import "time"

// Competition statuses.
const (
	StatusAwaiting = "awaiting"
	StatusStarted  = "started"
)

// Measurement types.
const (
	MeasureWeight = "weight"
	MeasureLength = "length"
)

// MinMembers is the quorum required to start a competition and to keep
// a started one alive.
const MinMembers = 3

type User struct {
	ID              int    `json:"id"`
	Nickname        string `json:"nickname"`
	Email           string `json:"email,omitempty"`
	Country         string `json:"country"`
	Description     string `json:"description"`
	FavMethod       string `json:"fav_method"`
	AvatarURL       string `json:"avatar_url"`
	Role            string `json:"role"` // user|moderator|admin
	FishAmount      int    `json:"fish_amount"`
	CompetitionID   *int   `json:"competition_id,omitempty"`
	CompetitionWins int    `json:"competition_wins"`
}

type Competition struct {
	ID              int        `json:"id"`
	Name            string     `json:"name"`
	CreatorID       int        `json:"creator_id"`
	Status          string     `json:"status"` // awaiting|started
	MeasurementType string     `json:"measurement_type"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         time.Time  `json:"end_date"`
	Users           []int      `json:"users"`   // join order, creator first
	Invites         []int      `json:"invites"` // disjoint from Users
}

// Expired reports whether the competition window is over. Past end date the
// membership may no longer be mutated; the result must be settled instead.
func (c *Competition) Expired(now time.Time) bool {
	return !now.Before(c.EndDate)
}

func (c *Competition) HasUser(uid int) bool {
	for _, id := range c.Users {
		if id == uid {
			return true
		}
	}
	return false
}

func (c *Competition) HasInvite(uid int) bool {
	for _, id := range c.Invites {
		if id == uid {
			return true
		}
	}
	return false
}

type Catch struct {
	ID               int       `json:"id"`
	UserID           int       `json:"user_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	MeasurementType  string    `json:"measurement_type"` // weight|length
	MeasurementUnit  string    `json:"measurement_unit"` // kg|cm|lb|inch
	MeasurementValue float64   `json:"measurement_value"`
	WhenCaught       time.Time `json:"when_caught"`
	Address          string    `json:"address,omitempty"`
}

type Report struct {
	ID             int            `json:"id"`
	ReportedUserID int            `json:"reported_user_id"`
	Reasons        []ReportReason `json:"reasons"`
}

type ReportReason struct {
	ReporterID  int       `json:"reporter_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
