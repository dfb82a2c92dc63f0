package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGUsersFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "email", "password_hash", "first_name", "last_name", "role", "status", "created_by", "last_login_at", "created_at", "updated_at"}
	mock.ExpectQuery("select .* from users where id=").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("user-1", "admin@example.com", "hash", "Super", "Admin", "SUPER_ADMIN", "ACTIVE", nil, nil, now, now))

	store := NewPGStore(db)
	ctx := context.Background()
	u, err := store.Users(ctx).Find(ctx, "user-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.Email != "admin@example.com" || u.Role != RoleSuperAdmin {
		t.Fatalf("unexpected user: %+v", u)
	}

	mock.ExpectQuery("select .* from users where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))
	if _, err := store.Users(ctx).Find(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUsersCreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"})

	store := NewPGStore(db)
	ctx := context.Background()
	err = store.Users(ctx).Create(ctx, &User{
		ID: "user-1", Email: "dup@example.com", PasswordHash: "hash",
		Role: RoleAdmin, Status: StatusActive,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUsersListBuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "email", "password_hash", "first_name", "last_name", "role", "status", "created_by", "last_login_at", "created_at", "updated_at"}

	mock.ExpectQuery(`select count\(\*\) from users where role=\$1 and \(email ilike \$2`).
		WithArgs("ADMIN", "%smith%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`select .* from users where role=\$1 and \(email ilike \$2.*limit \$3 offset \$4`).
		WithArgs("ADMIN", "%smith%", 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("user-2", "smith@example.com", "hash", "Jane", "Smith", "ADMIN", "ACTIVE", nil, nil, now, now))

	store := NewPGStore(db)
	ctx := context.Background()
	users, total, err := store.Users(ctx).List(ctx, UserFilter{Role: RoleAdmin, Search: "smith", Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(users) != 1 || users[0].Email != "smith@example.com" {
		t.Fatalf("unexpected result: total=%d users=%+v", total, users)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUsersStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select count\(\*\),`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "inactive", "super", "admin"}).
			AddRow(5, 3, 2, 1, 4))

	store := NewPGStore(db)
	stats, err := store.Users(context.Background()).Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := UserStats{TotalUsers: 5, ActiveUsers: 3, InactiveUsers: 2, SuperAdmins: 1, Admins: 4}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGSessionsDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from sessions where token=").
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from sessions where token=").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	ctx := context.Background()
	if err := store.Sessions(ctx).DeleteByToken(ctx, "tok-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Sessions(ctx).DeleteByToken(ctx, "gone"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGSessionsDeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from sessions where expires_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := NewPGStore(db)
	removed, err := store.Sessions(context.Background()).DeleteExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGActivityListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "user_id", "action", "target_type", "target_id", "details", "ip_address", "user_agent", "created_at", "email", "name"}
	mock.ExpectQuery("select a.id, a.user_id, a.action").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("act-1", "user-1", "LOGIN", "USER", "user-1", []byte(`{"note":"x"}`), "10.0.0.1", "curl", now, "admin@example.com", "Super Admin"))

	store := NewPGStore(db)
	entries, err := store.Activity(context.Background()).ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != ActionLogin || e.ActorEmail != "admin@example.com" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Details["note"] != "x" {
		t.Fatalf("details not decoded: %+v", e.Details)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
