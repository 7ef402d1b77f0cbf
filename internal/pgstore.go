package internal

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PGStore implements UnitOfWork on a pgx pool. Store handles obtained from
// a transaction read the acted-on rows with FOR UPDATE, so two lifecycle
// operations hitting the same competition or user serialize at the rows
// instead of corrupting each other.
type PGStore struct {
	db   dbtx
	lock bool
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool, pool: pool}
}

func (s *PGStore) Users() UserStore               { return &pgUsers{s.db, s.lock} }
func (s *PGStore) Competitions() CompetitionStore { return &pgCompetitions{s.db, s.lock} }
func (s *PGStore) Catches() CatchStore            { return &pgCatches{s.db} }
func (s *PGStore) Reports() ReportStore           { return &pgReports{s.db} }

func (s *PGStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{PGStore: PGStore{db: tx, lock: true}, tx: tx}, nil
}

type pgTx struct {
	PGStore
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

/* ===================== USERS ===================== */

type pgUsers struct {
	db   dbtx
	lock bool
}

const userCols = "id, nickname, email, country, description, fav_method, avatar_url, role, fish_amount, competition_id, competition_wins"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Nickname, &u.Email, &u.Country, &u.Description,
		&u.FavMethod, &u.AvatarURL, &u.Role, &u.FishAmount, &u.CompetitionID, &u.CompetitionWins)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *pgUsers) Get(ctx context.Context, id int) (*User, error) {
	sql := "SELECT " + userCols + " FROM users WHERE id=$1"
	if s.lock {
		sql += " FOR UPDATE"
	}
	return scanUser(s.db.QueryRow(ctx, sql, id))
}

func (s *pgUsers) GetByNickname(ctx context.Context, nickname string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx,
		"SELECT "+userCols+" FROM users WHERE nickname=$1", nickname))
}

func (s *pgUsers) Insert(ctx context.Context, u *User, passHash string) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users(nickname, email, pass_hash, country)
		 VALUES ($1,$2,$3,$4)
		 RETURNING id, description, fav_method, avatar_url, role`,
		u.Nickname, u.Email, passHash, u.Country,
	).Scan(&u.ID, &u.Description, &u.FavMethod, &u.AvatarURL, &u.Role)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Conflict("nickname or email is already in use")
	}
	return err
}

func (s *pgUsers) Update(ctx context.Context, u *User) error {
	_, err := s.db.Exec(ctx,
		"UPDATE users SET description=$1, fav_method=$2, avatar_url=$3 WHERE id=$4",
		u.Description, u.FavMethod, u.AvatarURL, u.ID)
	return err
}

func (s *pgUsers) Search(ctx context.Context, nickname string, limit int) ([]User, error) {
	rows, err := qQuery(ctx, s.db, psql.
		Select(userCols).
		From("users").
		Where(sq.ILike{"nickname": "%" + nickname + "%"}).
		OrderBy("nickname ASC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Nickname, &u.Email, &u.Country, &u.Description,
			&u.FavMethod, &u.AvatarURL, &u.Role, &u.FishAmount, &u.CompetitionID, &u.CompetitionWins); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *pgUsers) SetCompetition(ctx context.Context, userID int, competitionID *int) error {
	_, err := s.db.Exec(ctx,
		"UPDATE users SET competition_id=$1 WHERE id=$2", competitionID, userID)
	return err
}

func (s *pgUsers) IncrementWins(ctx context.Context, userID int) error {
	_, err := s.db.Exec(ctx,
		"UPDATE users SET competition_wins = competition_wins + 1 WHERE id=$1", userID)
	return err
}

func (s *pgUsers) AddFishAmount(ctx context.Context, userID, delta int) error {
	_, err := s.db.Exec(ctx,
		"UPDATE users SET fish_amount = fish_amount + $1 WHERE id=$2", delta, userID)
	return err
}

func (s *pgUsers) PassHash(ctx context.Context, nickname string) (int, string, error) {
	var id int
	var hash string
	err := s.db.QueryRow(ctx,
		"SELECT id, pass_hash FROM users WHERE nickname=$1", nickname,
	).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", NotFound("user not found")
	}
	return id, hash, err
}

/* ===================== COMPETITIONS ===================== */

type pgCompetitions struct {
	db   dbtx
	lock bool
}

func (s *pgCompetitions) Get(ctx context.Context, id int) (*Competition, error) {
	sql := `SELECT id, name, creator_id, status, measurement_type, start_date, end_date
	        FROM competitions WHERE id=$1`
	if s.lock {
		sql += " FOR UPDATE"
	}
	var c Competition
	err := s.db.QueryRow(ctx, sql, id).Scan(&c.ID, &c.Name, &c.CreatorID,
		&c.Status, &c.MeasurementType, &c.StartDate, &c.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("competition not found")
	}
	if err != nil {
		return nil, err
	}

	if c.Users, err = s.idList(ctx,
		"SELECT user_id FROM competition_members WHERE competition_id=$1 ORDER BY joined_at, user_id", id); err != nil {
		return nil, err
	}
	if c.Invites, err = s.idList(ctx,
		"SELECT user_id FROM competition_invites WHERE competition_id=$1 ORDER BY created_at, user_id", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *pgCompetitions) idList(ctx context.Context, sql string, id int) ([]int, error) {
	rows, err := s.db.Query(ctx, sql, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var uid int
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

func (s *pgCompetitions) Insert(ctx context.Context, c *Competition) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO competitions(name, creator_id, status, measurement_type, end_date)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		c.Name, c.CreatorID, c.Status, c.MeasurementType, c.EndDate,
	).Scan(&c.ID)
}

func (s *pgCompetitions) ListInviting(ctx context.Context, userID int) ([]Competition, error) {
	rows, err := qQuery(ctx, s.db, psql.
		Select("c.id", "c.name", "c.creator_id", "c.status", "c.measurement_type", "c.start_date", "c.end_date").
		From("competition_invites i").
		Join("competitions c ON c.id = i.competition_id").
		Where(sq.Eq{"i.user_id": userID}).
		OrderBy("i.created_at DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Competition
	for rows.Next() {
		var c Competition
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatorID, &c.Status,
			&c.MeasurementType, &c.StartDate, &c.EndDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgCompetitions) AddInvite(ctx context.Context, competitionID, userID int) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO competition_invites(competition_id, user_id) VALUES ($1,$2)",
		competitionID, userID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Conflict("user is already invited to this competition")
	}
	return err
}

func (s *pgCompetitions) RemoveInvitesFor(ctx context.Context, userID int) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM competition_invites WHERE user_id=$1", userID)
	return err
}

func (s *pgCompetitions) AddMember(ctx context.Context, competitionID, userID int) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO competition_members(competition_id, user_id) VALUES ($1,$2)",
		competitionID, userID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Conflict("user is already a member of this competition")
	}
	return err
}

func (s *pgCompetitions) RemoveMember(ctx context.Context, competitionID, userID int) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM competition_members WHERE competition_id=$1 AND user_id=$2",
		competitionID, userID)
	return err
}

func (s *pgCompetitions) Start(ctx context.Context, competitionID int, startDate time.Time) error {
	if _, err := s.db.Exec(ctx,
		"UPDATE competitions SET status=$1, start_date=$2 WHERE id=$3",
		StatusStarted, startDate, competitionID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		"DELETE FROM competition_invites WHERE competition_id=$1", competitionID)
	return err
}

func (s *pgCompetitions) Delete(ctx context.Context, competitionID int) error {
	for _, sql := range []string{
		"DELETE FROM competition_invites WHERE competition_id=$1",
		"DELETE FROM competition_members WHERE competition_id=$1",
		"DELETE FROM competitions WHERE id=$1",
	} {
		if _, err := s.db.Exec(ctx, sql, competitionID); err != nil {
			return err
		}
	}
	return nil
}

/* ===================== CATCHES ===================== */

type pgCatches struct {
	db dbtx
}

func (s *pgCatches) Get(ctx context.Context, id int) (*Catch, error) {
	var f Catch
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, name, description, measurement_type, measurement_unit,
		        measurement_value, when_caught, address
		 FROM catches WHERE id=$1`, id,
	).Scan(&f.ID, &f.UserID, &f.Name, &f.Description, &f.MeasurementType,
		&f.MeasurementUnit, &f.MeasurementValue, &f.WhenCaught, &f.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("catch not found")
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *pgCatches) Insert(ctx context.Context, c *Catch) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO catches(user_id, name, description, measurement_type,
		                     measurement_unit, measurement_value, when_caught, address)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		c.UserID, c.Name, c.Description, c.MeasurementType,
		c.MeasurementUnit, c.MeasurementValue, c.WhenCaught, c.Address,
	).Scan(&c.ID)
}

func (s *pgCatches) Delete(ctx context.Context, id int) error {
	tag, err := qExec(ctx, s.db, psql.Delete("catches").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFound("catch not found")
	}
	return nil
}

func (s *pgCatches) ListWindow(ctx context.Context, userIDs []int, from, to time.Time, measurementType string) ([]Catch, error) {
	rows, err := qQuery(ctx, s.db, psql.
		Select("id", "user_id", "name", "description", "measurement_type",
			"measurement_unit", "measurement_value", "when_caught", "address").
		From("catches").
		Where(sq.Eq{"user_id": userIDs, "measurement_type": measurementType}).
		Where(sq.GtOrEq{"when_caught": from}).
		Where(sq.LtOrEq{"when_caught": to}).
		OrderBy("when_caught ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Catch
	for rows.Next() {
		var f Catch
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.Description, &f.MeasurementType,
			&f.MeasurementUnit, &f.MeasurementValue, &f.WhenCaught, &f.Address); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

/* ===================== REPORTS ===================== */

type pgReports struct {
	db dbtx
}

func (s *pgReports) Get(ctx context.Context, id int) (*Report, error) {
	var r Report
	err := qRow(ctx, s.db, psql.
		Select("id", "reported_user_id").
		From("reports").
		Where(sq.Eq{"id": id})).Scan(&r.ID, &r.ReportedUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("report not found")
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT reporter_id, description, created_at
		 FROM report_reasons WHERE report_id=$1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var reason ReportReason
		if err := rows.Scan(&reason.ReporterID, &reason.Description, &reason.CreatedAt); err != nil {
			return nil, err
		}
		r.Reasons = append(r.Reasons, reason)
	}
	return &r, rows.Err()
}

func (s *pgReports) AddReason(ctx context.Context, reportedUserID, reporterID int, description string) error {
	var reportID int
	if err := s.db.QueryRow(ctx,
		`INSERT INTO reports(reported_user_id) VALUES ($1)
		 ON CONFLICT (reported_user_id) DO UPDATE SET reported_user_id = EXCLUDED.reported_user_id
		 RETURNING id`, reportedUserID,
	).Scan(&reportID); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx,
		"INSERT INTO report_reasons(report_id, reporter_id, description) VALUES ($1,$2,$3)",
		reportID, reporterID, description)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Conflict("you have already reported this user")
	}
	return err
}
