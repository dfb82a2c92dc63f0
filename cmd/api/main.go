package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kauntabook.org/internal/auth"
	"kauntabook.org/internal/httpapi"
	"kauntabook.org/internal/obs"
	"kauntabook.org/internal/stream"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("KAUNTABOOK_COMMIT"))

	secret := os.Getenv("KAUNTABOOK_AUTH_SECRET")
	if secret == "" {
		log.Fatal("KAUNTABOOK_AUTH_SECRET is required")
	}
	codec, err := auth.NewTokenCodec(secret)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// Postgres when a DSN is set, otherwise an in-memory store for local runs.
	var (
		db    *sql.DB
		store auth.Store
	)
	if dsn := os.Getenv("KAUNTABOOK_PG_DSN"); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Println("KAUNTABOOK_PG_DSN not set, using in-memory store (data is not persisted)")
		store = auth.NewMemoryStore()
	}

	sessions, err := auth.NewService(store, codec)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}
	users, err := auth.NewUserService(store)
	if err != nil {
		log.Fatalf("user service: %v", err)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.RunSessionSweeper(sweepCtx, time.Hour)

	api := httpapi.New(httpapi.Config{
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
		Sessions:   sessions,
		Users:      users,
		Stream:     stream.New(),
		RateBurst:  envInt("KAUNTABOOK_RATE_BURST", 50),
		RatePerSec: envInt("KAUNTABOOK_RATE_PER_SEC", 25),
	})

	addr := os.Getenv("KAUNTABOOK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting kauntabook-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}
