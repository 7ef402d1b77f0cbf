package internal

import (
	"context"
	"strings"
	"time"
)

// CompetitionService orchestrates the competition lifecycle:
// awaiting -> started -> settled/deleted. Every operation that touches a
// competition together with user records runs in one unit of work, so the
// bidirectional membership link (user.competition_id <-> members table) is
// never observable half-updated.
//
// Lock order inside a transaction is competition row first, then user rows,
// so operations on the same competition serialize instead of deadlocking.
type CompetitionService struct {
	store UnitOfWork
	now   func() time.Time
}

func NewCompetitionService(store UnitOfWork) *CompetitionService {
	return &CompetitionService{store: store, now: time.Now}
}

type CreateCompetitionInput struct {
	Name            string    `json:"name"`
	EndDate         time.Time `json:"end_date"`
	MeasurementType string    `json:"measurement_type"`
}

func (s *CompetitionService) Create(ctx context.Context, creatorID int, in CreateCompetitionInput) (*Competition, error) {
	in.Name = strings.TrimSpace(in.Name)
	if len(in.Name) < 3 || len(in.Name) > 50 {
		return nil, Invalid("competition name must be between 3 and 50 characters")
	}
	if in.MeasurementType != MeasureWeight && in.MeasurementType != MeasureLength {
		return nil, Invalid("measurement type must be weight or length")
	}
	if !in.EndDate.After(s.now()) {
		return nil, Invalid("end date must be in the future")
	}

	comp := &Competition{
		Name:            in.Name,
		CreatorID:       creatorID,
		Status:          StatusAwaiting,
		MeasurementType: in.MeasurementType,
		EndDate:         in.EndDate,
		Users:           []int{creatorID},
		Invites:         []int{},
	}
	err := runInTx(ctx, s.store, func(tx Tx) error {
		creator, err := tx.Users().Get(ctx, creatorID)
		if err != nil {
			return err
		}
		if creator.CompetitionID != nil {
			return Conflict("you can't create a new competition because you've already joined one")
		}
		if err := tx.Competitions().Insert(ctx, comp); err != nil {
			return err
		}
		if err := tx.Competitions().AddMember(ctx, comp.ID, creatorID); err != nil {
			return err
		}
		return tx.Users().SetCompetition(ctx, creatorID, &comp.ID)
	})
	if err != nil {
		return nil, err
	}
	return comp, nil
}

// Invite adds target to the invite set of the requester's competition.
// Only the creator may invite, only while awaiting, and only users who are
// not linked to any competition and not already invited.
func (s *CompetitionService) Invite(ctx context.Context, requesterID, targetID int) error {
	compID, err := s.linkedCompetition(ctx, requesterID)
	if err != nil {
		return err
	}
	return runInTx(ctx, s.store, func(tx Tx) error {
		comp, err := tx.Competitions().Get(ctx, compID)
		if err != nil {
			return err
		}
		if comp.CreatorID != requesterID {
			return Forbidden("only the creator can invite users")
		}
		if targetID == requesterID {
			return Forbidden("you cannot invite yourself")
		}
		if comp.Status != StatusAwaiting {
			return StateErr("competition has already started")
		}
		if comp.HasInvite(targetID) {
			return Conflict("user is already invited to this competition")
		}
		target, err := tx.Users().Get(ctx, targetID)
		if err != nil {
			return err
		}
		if target.CompetitionID != nil {
			return Conflict("user has already joined a competition")
		}
		return tx.Competitions().AddInvite(ctx, comp.ID, targetID)
	})
}

// Accept turns an invite into membership. Because a user commits to one
// competition only, every other competition's invite for them is cleaned up
// in the same transaction.
func (s *CompetitionService) Accept(ctx context.Context, userID, competitionID int) error {
	return runInTx(ctx, s.store, func(tx Tx) error {
		comp, err := tx.Competitions().Get(ctx, competitionID)
		if err != nil {
			return err
		}
		if comp.Status != StatusAwaiting {
			return StateErr("competition has already started")
		}
		user, err := tx.Users().Get(ctx, userID)
		if err != nil {
			return err
		}
		if user.CompetitionID != nil {
			return Conflict("you have already joined a competition")
		}
		if !comp.HasInvite(userID) {
			return Forbidden("you are not invited to this competition")
		}
		if err := tx.Competitions().AddMember(ctx, comp.ID, userID); err != nil {
			return err
		}
		if err := tx.Users().SetCompetition(ctx, userID, &comp.ID); err != nil {
			return err
		}
		return tx.Competitions().RemoveInvitesFor(ctx, userID)
	})
}

// Remove kicks a member out of the creator's competition. A started
// competition may not drop below the quorum this way; the creator has to
// delete it instead.
func (s *CompetitionService) Remove(ctx context.Context, requesterID, targetID int) error {
	compID, err := s.linkedCompetition(ctx, requesterID)
	if err != nil {
		return err
	}
	return runInTx(ctx, s.store, func(tx Tx) error {
		comp, err := tx.Competitions().Get(ctx, compID)
		if err != nil {
			return err
		}
		if comp.CreatorID != requesterID {
			return Forbidden("only the creator can remove users")
		}
		if targetID == requesterID {
			return Forbidden("you cannot remove yourself; quit or delete the competition")
		}
		if comp.Expired(s.now()) {
			return StateErr("competition has ended; the result must be settled")
		}
		if !comp.HasUser(targetID) {
			return NotFound("user is not a member of this competition")
		}
		if comp.Status == StatusStarted && len(comp.Users)-1 < MinMembers {
			return StateErr("removing this user would drop the competition below the minimum of 3 members; delete it instead")
		}
		if _, err := tx.Users().Get(ctx, targetID); err != nil {
			return err
		}
		if err := tx.Competitions().RemoveMember(ctx, comp.ID, targetID); err != nil {
			return err
		}
		return tx.Users().SetCompetition(ctx, targetID, nil)
	})
}

// Quit removes the caller from their competition. When a started
// competition sits at the minimum quorum, one member leaving dissolves it:
// every remaining member is unlinked and the competition is deleted. The
// returned flag reports that cascade.
func (s *CompetitionService) Quit(ctx context.Context, userID int) (dissolved bool, err error) {
	caller, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if caller.CompetitionID == nil {
		return false, StateErr("you are not in a competition")
	}
	compID := *caller.CompetitionID
	err = runInTx(ctx, s.store, func(tx Tx) error {
		comp, err := tx.Competitions().Get(ctx, compID)
		if err != nil {
			return err
		}
		user, err := tx.Users().Get(ctx, userID)
		if err != nil {
			return err
		}
		if user.CompetitionID == nil || *user.CompetitionID != comp.ID {
			return StateErr("you are not in a competition")
		}
		if comp.CreatorID == userID {
			return Forbidden("the creator cannot quit; delete the competition instead")
		}
		if comp.Expired(s.now()) {
			return StateErr("competition has ended; the result must be settled")
		}

		if comp.Status == StatusStarted && len(comp.Users) == MinMembers {
			dissolved = true
			return s.dissolve(ctx, tx, comp)
		}

		if err := tx.Competitions().RemoveMember(ctx, comp.ID, userID); err != nil {
			return err
		}
		return tx.Users().SetCompetition(ctx, userID, nil)
	})
	return dissolved, err
}

// Start transitions the creator's competition from awaiting to started.
// The start date is normalized to midnight UTC so the scoring window opens
// on a whole-day boundary, and the invite set is discarded.
func (s *CompetitionService) Start(ctx context.Context, creatorID int) (*Competition, error) {
	compID, err := s.linkedCompetition(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	var comp *Competition
	err = runInTx(ctx, s.store, func(tx Tx) error {
		c, err := tx.Competitions().Get(ctx, compID)
		if err != nil {
			return err
		}
		if c.CreatorID != creatorID {
			return Forbidden("only the creator can start the competition")
		}
		if c.Status != StatusAwaiting {
			return StateErr("competition has already started")
		}
		if len(c.Users) < MinMembers {
			return StateErr("at least 3 members are required to start")
		}
		start := normalizeDay(s.now())
		if err := tx.Competitions().Start(ctx, c.ID, start); err != nil {
			return err
		}
		c.Status = StatusStarted
		c.StartDate = &start
		c.Invites = []int{}
		comp = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comp, nil
}

// Delete discards the creator's competition before the end date. Past the
// end date the result must be settled instead of thrown away.
func (s *CompetitionService) Delete(ctx context.Context, creatorID int) error {
	compID, err := s.linkedCompetition(ctx, creatorID)
	if err != nil {
		return err
	}
	return runInTx(ctx, s.store, func(tx Tx) error {
		comp, err := tx.Competitions().Get(ctx, compID)
		if err != nil {
			return err
		}
		if comp.CreatorID != creatorID {
			return Forbidden("only the creator can delete the competition")
		}
		if comp.Expired(s.now()) {
			return StateErr("competition has ended; the result must be settled")
		}
		return s.dissolve(ctx, tx, comp)
	})
}

type MemberStanding struct {
	User  User             `json:"user"`
	Score ParticipantScore `json:"score"`
}

type CompetitionView struct {
	Competition *Competition     `json:"competition"`
	Standings   []MemberStanding `json:"standings,omitempty"`
}

// Get returns the caller's competition. For a started competition each
// member is joined with live scoring stats. The stats are a best-effort
// snapshot for display; nothing is persisted and only settlement fixes a
// winner.
func (s *CompetitionService) Get(ctx context.Context, userID int) (*CompetitionView, error) {
	compID, err := s.linkedCompetition(ctx, userID)
	if err != nil {
		return nil, err
	}
	comp, err := s.store.Competitions().Get(ctx, compID)
	if err != nil {
		return nil, err
	}
	view := &CompetitionView{Competition: comp}
	if comp.Status != StatusStarted {
		return view, nil
	}

	records, err := s.store.Catches().ListWindow(ctx, comp.Users, *comp.StartDate, comp.EndDate, comp.MeasurementType)
	if err != nil {
		return nil, err
	}
	scores := Rank(comp.Users, records, *comp.StartDate, comp.EndDate, comp.MeasurementType)
	for _, score := range scores {
		member, err := s.store.Users().Get(ctx, score.UserID)
		if err != nil {
			return nil, err
		}
		member.Email = ""
		view.Standings = append(view.Standings, MemberStanding{User: *member, Score: score})
	}
	return view, nil
}

// ListInvites lists competitions currently inviting the caller.
func (s *CompetitionService) ListInvites(ctx context.Context, userID int) ([]Competition, error) {
	return s.store.Competitions().ListInviting(ctx, userID)
}

type SettlementResult struct {
	WinnerID  int                `json:"winner_id"`
	Standings []ParticipantScore `json:"standings"`
}

// SaveResult settles an expired started competition: ranks all members over
// [start date, end date], increments the winner's win counter, unlinks
// every member and deletes the competition, all in one transaction.
func (s *CompetitionService) SaveResult(ctx context.Context, userID int) (*SettlementResult, error) {
	compID, err := s.linkedCompetition(ctx, userID)
	if err != nil {
		return nil, err
	}
	var result *SettlementResult
	err = runInTx(ctx, s.store, func(tx Tx) error {
		comp, err := tx.Competitions().Get(ctx, compID)
		if err != nil {
			return err
		}
		if !comp.HasUser(userID) {
			return Forbidden("you are not a member of this competition")
		}
		if comp.Status != StatusStarted {
			return StateErr("competition has not been started")
		}
		if !comp.Expired(s.now()) {
			return StateErr("competition is still running")
		}

		records, err := tx.Catches().ListWindow(ctx, comp.Users, *comp.StartDate, comp.EndDate, comp.MeasurementType)
		if err != nil {
			return err
		}
		scores := Rank(comp.Users, records, *comp.StartDate, comp.EndDate, comp.MeasurementType)
		winner := scores[0].UserID

		if err := tx.Users().IncrementWins(ctx, winner); err != nil {
			return err
		}
		if err := s.dissolve(ctx, tx, comp); err != nil {
			return err
		}
		result = &SettlementResult{WinnerID: winner, Standings: scores}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// dissolve unlinks every member and deletes the competition. No user may
// ever reference a competition that no longer exists, so this runs inside
// the caller's transaction.
func (s *CompetitionService) dissolve(ctx context.Context, tx Tx, comp *Competition) error {
	for _, memberID := range comp.Users {
		if err := tx.Users().SetCompetition(ctx, memberID, nil); err != nil {
			return err
		}
	}
	return tx.Competitions().Delete(ctx, comp.ID)
}

// linkedCompetition resolves the competition the user is currently in.
// The snapshot read is re-validated under row locks once the transaction
// is open.
func (s *CompetitionService) linkedCompetition(ctx context.Context, userID int) (int, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.CompetitionID == nil {
		return 0, NotFound("you are not in a competition")
	}
	return *user.CompetitionID, nil
}
