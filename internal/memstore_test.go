package internal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory UnitOfWork used as a store double in tests.
// Begin serializes units of work with a mutex and keeps a deep copy of the
// data for rollback, which mirrors the all-or-nothing contract of the real
// store closely enough for lifecycle tests.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users   map[int]*User
	hashes  map[string]string
	comps   map[int]*Competition
	catches map[int]*Catch
	reports map[int]*Report
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[int]*User{},
		hashes:  map[string]string{},
		comps:   map[int]*Competition{},
		catches: map[int]*Catch{},
		reports: map[int]*Report{},
		nextID:  1,
	}
}

func (s *memStore) id() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) snapshot() *memStore {
	c := newMemStore()
	c.nextID = s.nextID
	for id, u := range s.users {
		cp := *u
		if u.CompetitionID != nil {
			v := *u.CompetitionID
			cp.CompetitionID = &v
		}
		c.users[id] = &cp
	}
	for n, h := range s.hashes {
		c.hashes[n] = h
	}
	for id, comp := range s.comps {
		c.comps[id] = copyComp(comp)
	}
	for id, f := range s.catches {
		cp := *f
		c.catches[id] = &cp
	}
	for id, r := range s.reports {
		cp := *r
		cp.Reasons = append([]ReportReason(nil), r.Reasons...)
		c.reports[id] = &cp
	}
	return c
}

func (s *memStore) restore(from *memStore) {
	s.users = from.users
	s.hashes = from.hashes
	s.comps = from.comps
	s.catches = from.catches
	s.reports = from.reports
	s.nextID = from.nextID
}

func copyComp(c *Competition) *Competition {
	cp := *c
	if c.StartDate != nil {
		v := *c.StartDate
		cp.StartDate = &v
	}
	cp.Users = append([]int(nil), c.Users...)
	cp.Invites = append([]int(nil), c.Invites...)
	return &cp
}

func (s *memStore) Users() UserStore               { return &memUsers{s} }
func (s *memStore) Competitions() CompetitionStore { return &memComps{s} }
func (s *memStore) Catches() CatchStore            { return &memCatches{s} }
func (s *memStore) Reports() ReportStore           { return &memReports{s} }

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	backup := s.snapshot()
	s.mu.Unlock()
	return &memTx{store: s, backup: backup}, nil
}

type memTx struct {
	store  *memStore
	backup *memStore
	done   bool
}

func (t *memTx) Users() UserStore               { return t.store.Users() }
func (t *memTx) Competitions() CompetitionStore { return t.store.Competitions() }
func (t *memTx) Catches() CatchStore            { return t.store.Catches() }
func (t *memTx) Reports() ReportStore           { return t.store.Reports() }

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.restore(t.backup)
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

/* ----- users ----- */

type memUsers struct{ s *memStore }

func (m *memUsers) Get(ctx context.Context, id int) (*User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, NotFound("user not found")
	}
	cp := *u
	if u.CompetitionID != nil {
		v := *u.CompetitionID
		cp.CompetitionID = &v
	}
	return &cp, nil
}

func (m *memUsers) GetByNickname(ctx context.Context, nickname string) (*User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Nickname == nickname {
			cp := *u
			return &cp, nil
		}
	}
	return nil, NotFound("user not found")
}

func (m *memUsers) Insert(ctx context.Context, u *User, passHash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.users {
		if existing.Nickname == u.Nickname || existing.Email == u.Email {
			return Conflict("nickname or email is already in use")
		}
	}
	u.ID = m.s.id()
	if u.Role == "" {
		u.Role = "user"
	}
	cp := *u
	m.s.users[u.ID] = &cp
	m.s.hashes[u.Nickname] = passHash
	return nil
}

func (m *memUsers) Update(ctx context.Context, u *User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.users[u.ID]
	if !ok {
		return NotFound("user not found")
	}
	stored.Description = u.Description
	stored.FavMethod = u.FavMethod
	stored.AvatarURL = u.AvatarURL
	return nil
}

func (m *memUsers) Search(ctx context.Context, nickname string, limit int) ([]User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []User
	for _, u := range m.s.users {
		if strings.Contains(strings.ToLower(u.Nickname), strings.ToLower(nickname)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) SetCompetition(ctx context.Context, userID int, competitionID *int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return NotFound("user not found")
	}
	if competitionID == nil {
		u.CompetitionID = nil
		return nil
	}
	v := *competitionID
	u.CompetitionID = &v
	return nil
}

func (m *memUsers) IncrementWins(ctx context.Context, userID int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return NotFound("user not found")
	}
	u.CompetitionWins++
	return nil
}

func (m *memUsers) AddFishAmount(ctx context.Context, userID, delta int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return NotFound("user not found")
	}
	u.FishAmount += delta
	return nil
}

func (m *memUsers) PassHash(ctx context.Context, nickname string) (int, string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Nickname == nickname {
			return u.ID, m.s.hashes[nickname], nil
		}
	}
	return 0, "", NotFound("user not found")
}

/* ----- competitions ----- */

type memComps struct{ s *memStore }

func (m *memComps) Get(ctx context.Context, id int) (*Competition, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.comps[id]
	if !ok {
		return nil, NotFound("competition not found")
	}
	return copyComp(c), nil
}

func (m *memComps) Insert(ctx context.Context, c *Competition) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c.ID = m.s.id()
	stored := copyComp(c)
	stored.Users = nil
	stored.Invites = nil
	m.s.comps[c.ID] = stored
	return nil
}

func (m *memComps) ListInviting(ctx context.Context, userID int) ([]Competition, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []Competition
	for _, c := range m.s.comps {
		if c.HasInvite(userID) {
			out = append(out, *copyComp(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memComps) AddInvite(ctx context.Context, competitionID, userID int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.comps[competitionID]
	if !ok {
		return NotFound("competition not found")
	}
	if c.HasInvite(userID) {
		return Conflict("user is already invited to this competition")
	}
	c.Invites = append(c.Invites, userID)
	return nil
}

func (m *memComps) RemoveInvitesFor(ctx context.Context, userID int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.comps {
		for i, id := range c.Invites {
			if id == userID {
				c.Invites = append(c.Invites[:i], c.Invites[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (m *memComps) AddMember(ctx context.Context, competitionID, userID int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.comps[competitionID]
	if !ok {
		return NotFound("competition not found")
	}
	if c.HasUser(userID) {
		return Conflict("user is already a member of this competition")
	}
	c.Users = append(c.Users, userID)
	return nil
}

func (m *memComps) RemoveMember(ctx context.Context, competitionID, userID int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.comps[competitionID]
	if !ok {
		return NotFound("competition not found")
	}
	for i, id := range c.Users {
		if id == userID {
			c.Users = append(c.Users[:i], c.Users[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memComps) Start(ctx context.Context, competitionID int, startDate time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.comps[competitionID]
	if !ok {
		return NotFound("competition not found")
	}
	c.Status = StatusStarted
	c.StartDate = &startDate
	c.Invites = nil
	return nil
}

func (m *memComps) Delete(ctx context.Context, competitionID int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.comps, competitionID)
	return nil
}

/* ----- catches ----- */

type memCatches struct{ s *memStore }

func (m *memCatches) Get(ctx context.Context, id int) (*Catch, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	f, ok := m.s.catches[id]
	if !ok {
		return nil, NotFound("catch not found")
	}
	cp := *f
	return &cp, nil
}

func (m *memCatches) Insert(ctx context.Context, c *Catch) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c.ID = m.s.id()
	cp := *c
	m.s.catches[c.ID] = &cp
	return nil
}

func (m *memCatches) Delete(ctx context.Context, id int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.catches[id]; !ok {
		return NotFound("catch not found")
	}
	delete(m.s.catches, id)
	return nil
}

func (m *memCatches) ListWindow(ctx context.Context, userIDs []int, from, to time.Time, measurementType string) ([]Catch, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	members := map[int]bool{}
	for _, id := range userIDs {
		members[id] = true
	}
	var out []Catch
	for _, f := range m.s.catches {
		if !members[f.UserID] || f.MeasurementType != measurementType {
			continue
		}
		if f.WhenCaught.Before(from) || f.WhenCaught.After(to) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WhenCaught.Equal(out[j].WhenCaught) {
			return out[i].WhenCaught.Before(out[j].WhenCaught)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

/* ----- reports ----- */

type memReports struct{ s *memStore }

func (m *memReports) Get(ctx context.Context, id int) (*Report, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reports[id]
	if !ok {
		return nil, NotFound("report not found")
	}
	cp := *r
	cp.Reasons = append([]ReportReason(nil), r.Reasons...)
	return &cp, nil
}

func (m *memReports) AddReason(ctx context.Context, reportedUserID, reporterID int, description string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var report *Report
	for _, r := range m.s.reports {
		if r.ReportedUserID == reportedUserID {
			report = r
			break
		}
	}
	if report == nil {
		report = &Report{ID: m.s.id(), ReportedUserID: reportedUserID}
		m.s.reports[report.ID] = report
	}
	for _, reason := range report.Reasons {
		if reason.ReporterID == reporterID {
			return Conflict("you have already reported this user")
		}
	}
	report.Reasons = append(report.Reasons, ReportReason{
		ReporterID:  reporterID,
		Description: description,
		CreatedAt:   time.Now(),
	})
	return nil
}
