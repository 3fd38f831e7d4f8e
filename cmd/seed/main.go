package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jbxxnn/usebinda/internal/availability"
	"github.com/jbxxnn/usebinda/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	providerIDs, err := seedProviders(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedServices(context.Background(), pool, providerIDs); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedBlockedPeriods(context.Background(), pool, providerIDs); err != nil {
		log.Fatalf("seed blocked periods: %v", err)
	}

	log.Println("seed complete")
}

var timezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	repo := availability.NewPgRepository(pool)
	ids := make([]uuid.UUID, 0, count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, email, username, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.Name(), gofakeit.Email(), gofakeit.Username())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Profiles go through the repository so working hours and breaks get
	// the same JSON encoding the API produces.
	for _, id := range ids {
		profile := availability.DefaultProfile(id)
		profile.Timezone = timezones[gofakeit.Number(0, len(timezones)-1)]
		profile.Breaks = []availability.BreakWindow{
			{Start: "12:00", End: "13:00", Days: weekdaysOnly()},
		}
		if _, err := repo.UpsertProfile(ctx, profile); err != nil {
			return nil, err
		}
	}

	log.Println("providers seeded")
	return ids, nil
}

func weekdaysOnly() [7]bool {
	var days [7]bool
	for d := time.Monday; d <= time.Friday; d++ {
		days[d] = true
	}
	return days
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, providerIDs []uuid.UUID) error {
	log.Printf("seeding services for %d providers", len(providerIDs))

	durations := []int{30, 45, 60, 90, 120}
	buffers := []int{0, 0, 15, 30}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, providerID := range providerIDs {
		for i := 0; i < gofakeit.Number(1, 4); i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO services (id, provider_id, title, price_cents, duration_minutes, buffer_minutes, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			`, uuid.New(), providerID,
				gofakeit.JobTitle(),
				gofakeit.Number(20, 300)*100,
				durations[gofakeit.Number(0, len(durations)-1)],
				buffers[gofakeit.Number(0, len(buffers)-1)],
				gofakeit.Number(0, 9) > 0)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("services seeded")
	return nil
}

func seedBlockedPeriods(ctx context.Context, pool *pgxpool.Pool, providerIDs []uuid.UUID) error {
	log.Printf("seeding blocked periods for %d providers", len(providerIDs))

	types := []string{"manual", "holiday", "vacation", "maintenance"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, providerID := range providerIDs {
		for i := 0; i < gofakeit.Number(0, 3); i++ {
			start := time.Now().UTC().AddDate(0, 0, gofakeit.Number(1, 45)).Truncate(time.Hour)
			end := start.Add(time.Duration(gofakeit.Number(2, 72)) * time.Hour)

			_, err := tx.Exec(ctx, `
				INSERT INTO blocked_periods (id, provider_id, start_time, end_time, title, block_type, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, uuid.New(), providerID, start, end,
				gofakeit.Sentence(3),
				types[gofakeit.Number(0, len(types)-1)])
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("blocked periods seeded")
	return nil
}
