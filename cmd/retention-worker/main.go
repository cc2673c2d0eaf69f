package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/caresched/hospital-scheduling/internal/availability"
	"github.com/caresched/hospital-scheduling/internal/config"
	"github.com/caresched/hospital-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("retention-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running retention worker in env=%s interval=%s", cfg.Env, cfg.WorkerInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	store := availability.NewPgStore(pgPool)

	// Run once at startup
	runOnce(rootCtx, store)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping retention worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, store)
		}
	}
}

// runOnce deletes availability slots dated before today that were never
// booked. Booked slots stay for appointment history.
func runOnce(ctx context.Context, store availability.Store) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	pruned, err := store.PruneExpired(runCtx, time.Now())
	if err != nil {
		log.Printf("retention run error: %v", err)
		return
	}
	log.Printf("retention run complete: pruned=%d in %s", pruned, time.Since(start))
}
