package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"kauntabook.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context context.Context) UserStore       { return &pgUsers{db: s.db} }
func (s *PGStore) Sessions(context context.Context) SessionStore { return &pgSessions{db: s.db} }
func (s *PGStore) Activity(context context.Context) ActivityStore {
	return &pgActivity{db: s.db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// User store ---------------------------------------------------------------
type pgUsers struct{ db *sql.DB }

const userColumns = `id, email, password_hash, first_name, last_name, role, status, created_by, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.Status, &u.CreatedBy, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, first_name, last_name, role, status, created_by, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Status,
		u.CreatedBy, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *pgUsers) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email)
	return scanUser(row)
}

func (s *pgUsers) List(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	where := []string{}
	args := []any{}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(email ilike $%d or first_name ilike $%d or last_name ilike $%d)", n, n, n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users`+clause+
			fmt.Sprintf(` order by created_at desc limit $%d offset $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (s *pgUsers) Update(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`update users set email=$2, first_name=$3, last_name=$4, role=$5, status=$6, updated_at=$7 where id=$1`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Role, u.Status, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgUsers) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgUsers) RecordLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login_at=$2, updated_at=$2 where id=$1`, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgUsers) Stats(ctx context.Context) (UserStats, error) {
	row := s.db.QueryRowContext(ctx,
		`select count(*),
		        count(*) filter (where status='ACTIVE'),
		        count(*) filter (where status='INACTIVE'),
		        count(*) filter (where role='SUPER_ADMIN'),
		        count(*) filter (where role='ADMIN')
		 from users`)
	var stats UserStats
	if err := row.Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.InactiveUsers,
		&stats.SuperAdmins, &stats.Admins); err != nil {
		return UserStats{}, err
	}
	return stats, nil
}

// Session store ------------------------------------------------------------
type pgSessions struct{ db *sql.DB }

func (s *pgSessions) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, token, user_id, expires_at, created_at) values($1,$2,$3,$4,$5)`,
		sess.ID, sess.Token, sess.UserID, sess.ExpiresAt, sess.CreatedAt,
	)
	return err
}

func (s *pgSessions) FindByToken(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, token, user_id, expires_at, created_at from sessions where token=$1`, token)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *pgSessions) DeleteByToken(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where token=$1`, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *pgSessions) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where user_id=$1`, userID)
	return err
}

func (s *pgSessions) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Activity store -----------------------------------------------------------
type pgActivity struct{ db *sql.DB }

func (s *pgActivity) Append(ctx context.Context, entry *ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	details, _ := json.Marshal(entry.Details)
	_, err := s.db.ExecContext(ctx,
		`insert into activity_log(id, user_id, action, target_type, target_id, details, ip_address, user_agent, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.UserID, entry.Action, entry.TargetType, entry.TargetID,
		details, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	return err
}

// ListRecent joins users so dashboard rows show who acted even though the
// log stores only the id.
func (s *pgActivity) ListRecent(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`select a.id, a.user_id, a.action, a.target_type, a.target_id, a.details,
		        a.ip_address, a.user_agent, a.created_at,
		        coalesce(u.email, ''), coalesce(trim(u.first_name || ' ' || u.last_name), '')
		 from activity_log a
		 left join users u on u.id = a.user_id
		 order by a.created_at desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ActivityEntry
	for rows.Next() {
		var (
			entry   ActivityEntry
			details []byte
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.TargetType,
			&entry.TargetID, &details, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt,
			&entry.ActorEmail, &entry.ActorName); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &entry.Details)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
