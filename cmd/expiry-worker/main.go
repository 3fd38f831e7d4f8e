package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jbxxnn/usebinda/internal/booking"
	"github.com/jbxxnn/usebinda/internal/config"
	"github.com/jbxxnn/usebinda/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("expiry-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running expiry worker in env=%s interval=%s pending_ttl=%s", cfg.Env, cfg.WorkerInterval, cfg.PendingTTL)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	repo := booking.NewPgRepository(pgPool)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	// Abandoned checkouts leave pending bookings behind; cancelling them
	// after the TTL returns the held slots to the pool.
	expire := func() {
		ctx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
		defer cancel()

		svc := booking.NewService(repo, nil, nil, 0)
		if err := svc.ExpireStalePending(ctx, cfg.PendingTTL); err != nil {
			log.Printf("expire stale pending: %v", err)
		}
	}

	expire()
	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutting down expiry-worker")
			return
		case <-ticker.C:
			expire()
		}
	}
}
