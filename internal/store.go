package internal

import (
	"context"
	"time"
)

// UserStore is the persistence surface for user records the lifecycle
// engine touches. Linking and unlinking a user's competition reference is
// always paired with the matching membership write on CompetitionStore,
// inside one transaction.
type UserStore interface {
	Get(ctx context.Context, id int) (*User, error)
	GetByNickname(ctx context.Context, nickname string) (*User, error)
	Insert(ctx context.Context, u *User, passHash string) error
	Update(ctx context.Context, u *User) error
	Search(ctx context.Context, nickname string, limit int) ([]User, error)
	SetCompetition(ctx context.Context, userID int, competitionID *int) error
	IncrementWins(ctx context.Context, userID int) error
	AddFishAmount(ctx context.Context, userID, delta int) error
	PassHash(ctx context.Context, nickname string) (int, string, error)
}

type CompetitionStore interface {
	Get(ctx context.Context, id int) (*Competition, error)
	Insert(ctx context.Context, c *Competition) error
	ListInviting(ctx context.Context, userID int) ([]Competition, error)
	AddInvite(ctx context.Context, competitionID, userID int) error
	RemoveInvitesFor(ctx context.Context, userID int) error
	AddMember(ctx context.Context, competitionID, userID int) error
	RemoveMember(ctx context.Context, competitionID, userID int) error
	Start(ctx context.Context, competitionID int, startDate time.Time) error
	Delete(ctx context.Context, competitionID int) error
}

// CatchStore persists catch records and serves the read-only aggregation
// the scoring engine runs on.
type CatchStore interface {
	Get(ctx context.Context, id int) (*Catch, error)
	Insert(ctx context.Context, c *Catch) error
	Delete(ctx context.Context, id int) error
	ListWindow(ctx context.Context, userIDs []int, from, to time.Time, measurementType string) ([]Catch, error)
}

type ReportStore interface {
	Get(ctx context.Context, id int) (*Report, error)
	AddReason(ctx context.Context, reportedUserID, reporterID int, description string) error
}

// Stores groups the per-entity stores reachable from one access point,
// either a plain pool or a running transaction.
type Stores interface {
	Users() UserStore
	Competitions() CompetitionStore
	Catches() CatchStore
	Reports() ReportStore
}

// Tx is one unit of work: every store write made through it commits
// together or not at all. Reads of competition and user rows through a Tx
// take row locks, so racing operations on the same competition serialize.
type Tx interface {
	Stores
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWork hands out transactions and doubles as non-transactional store
// access for single reads and best-effort snapshots.
type UnitOfWork interface {
	Stores
	Begin(ctx context.Context) (Tx, error)
}

// runInTx wraps fn in begin/commit with rollback on every other exit path.
func runInTx(ctx context.Context, uow UnitOfWork, fn func(tx Tx) error) error {
	tx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
