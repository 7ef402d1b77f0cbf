package internal

import (
	"sort"
	"time"
)

// ParticipantScore is one member's aggregate over a competition window.
type ParticipantScore struct {
	UserID     int      `json:"user_id"`
	CatchCount int      `json:"catch_count"`
	Total      float64  `json:"total"`
	CatchNames []string `json:"catch_names"`

	firstCatch time.Time
}

// Rank aggregates catch records into per-member scores for the window
// [from, to] and the given measurement type, ordered best first. Members
// with no qualifying catches are kept with zero values so nobody drops out
// of the report. Ties on total go to the earlier first catch, then the
// lower user id.
func Rank(members []int, records []Catch, from, to time.Time, measurementType string) []ParticipantScore {
	byUser := make(map[int]*ParticipantScore, len(members))
	scores := make([]ParticipantScore, 0, len(members))
	for _, id := range members {
		scores = append(scores, ParticipantScore{UserID: id, CatchNames: []string{}})
	}
	for i := range scores {
		byUser[scores[i].UserID] = &scores[i]
	}

	for _, rec := range records {
		if rec.MeasurementType != measurementType {
			continue
		}
		if rec.WhenCaught.Before(from) || rec.WhenCaught.After(to) {
			continue
		}
		s, ok := byUser[rec.UserID]
		if !ok {
			continue // not a member, e.g. removed before settlement
		}
		if s.CatchCount == 0 || rec.WhenCaught.Before(s.firstCatch) {
			s.firstCatch = rec.WhenCaught
		}
		s.CatchCount++
		s.Total += rec.MeasurementValue
		s.CatchNames = append(s.CatchNames, rec.Name)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.CatchCount > 0 && b.CatchCount > 0 && !a.firstCatch.Equal(b.firstCatch) {
			return a.firstCatch.Before(b.firstCatch)
		}
		if (a.CatchCount > 0) != (b.CatchCount > 0) {
			return a.CatchCount > 0
		}
		return a.UserID < b.UserID
	})
	return scores
}

// normalizeDay truncates a moment to midnight UTC, so scoring windows
// always open on a whole-day boundary.
func normalizeDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
