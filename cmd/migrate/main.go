package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kauntabook.org/internal/auth"
	"kauntabook.org/internal/ids"
	"kauntabook.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("KAUNTABOOK_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "ops/migrations/sql", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "ops/migrations/seeds", "Path to SQL seeds")
		adminEmail     = flag.String("email", "superadmin@kauntabook.com", "Email for seed-admin")
		adminPassword  = flag.String("password", "", "Password for seed-admin")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or KAUNTABOOK_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status|seed-admin]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	case "seed-admin":
		err = seedAdmin(ctx, db, *adminEmail, *adminPassword)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// seedAdmin inserts the bootstrap super admin if no account holds the email
// yet. Idempotent so it is safe to run on every deploy.
func seedAdmin(ctx context.Context, db *sql.DB, email, password string) error {
	if password == "" {
		return fmt.Errorf("seed-admin requires -password")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`insert into users(id, email, password_hash, first_name, last_name, role, status, created_at, updated_at)
		 values($1, lower($2), $3, 'Super', 'Admin', $4, $5, $6, $6)
		 on conflict do nothing`,
		ids.New(), email, hash, auth.RoleSuperAdmin, auth.StatusActive, now,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("seed-admin: account %s already exists, nothing to do", email)
	} else {
		log.Printf("seed-admin: created %s", email)
	}
	return nil
}
