// simulate hammers the slots and booking endpoints with concurrent
// customers to exercise the read-then-write race: many workers fetch the
// same day's availability and race to book the same open slots. At the end
// it checks the database for capacity violations.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jbxxnn/usebinda/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	DaysAhead   int
	PostgresDSN string
}

type Target struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	idx := func(pct int) time.Duration {
		i := len(latencies) * pct / 100
		if i >= len(latencies) {
			i = len(latencies) - 1
		}
		return latencies[i]
	}
	return avg, idx(50), idx(95)
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:    getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:     getIntEnv("SIM_WORKERS", 20),
		DaysAhead:   getIntEnv("SIM_DAYS_AHEAD", 7),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulate starting")

	cfg := loadConfig()
	gofakeit.Seed(time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	targets, err := loadTargets(ctx, pool, 10)
	if err != nil {
		log.Fatalf("load targets: %v", err)
	}
	if len(targets) == 0 {
		log.Fatal("no active provider/service pairs found, run cmd/seed first")
	}
	log.Printf("simulating against %d provider/service pairs", len(targets))

	slotMetrics := &OperationMetrics{}
	bookMetrics := &OperationMetrics{}

	deadline := time.Now().Add(cfg.Duration)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			client := &http.Client{Timeout: 10 * time.Second}
			for time.Now().Before(deadline) {
				target := targets[rng.Intn(len(targets))]
				runCustomer(cfg, client, rng, target, slotMetrics, bookMetrics)
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	report("slots", slotMetrics)
	report("bookings", bookMetrics)

	violations, err := capacityViolations(ctx, pool)
	if err != nil {
		log.Fatalf("check capacity violations: %v", err)
	}
	if violations > 0 {
		log.Fatalf("FAIL: %d slot(s) exceed max_bookings_per_slot", violations)
	}
	log.Println("OK: no capacity violations")
}

func loadTargets(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Target, error) {
	rows, err := pool.Query(ctx, `
		SELECT provider_id, id
		FROM services
		WHERE active
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.ProviderID, &t.ServiceID); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

type slotPayload struct {
	Start     time.Time `json:"start"`
	Available bool      `json:"available"`
}

// runCustomer mimics one customer: fetch a day's slots, pick an open one,
// try to book it. Many workers doing this against a small target set makes
// write-time conflicts frequent, which is the point.
func runCustomer(cfg SimConfig, client *http.Client, rng *rand.Rand, target Target, slotMetrics, bookMetrics *OperationMetrics) {
	date := time.Now().AddDate(0, 0, 1+rng.Intn(cfg.DaysAhead)).Format("2006-01-02")
	url := fmt.Sprintf("%s/providers/%s/services/%s/slots?date=%s",
		cfg.APIBaseURL, target.ProviderID, target.ServiceID, date)

	start := time.Now()
	resp, err := client.Get(url)
	if err != nil {
		slotMetrics.Record(time.Since(start), false, false)
		return
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	slotMetrics.Record(time.Since(start), resp.StatusCode == http.StatusOK, false)
	if resp.StatusCode != http.StatusOK {
		return
	}

	var slots []slotPayload
	if err := json.Unmarshal(body, &slots); err != nil {
		return
	}

	open := slots[:0]
	for _, s := range slots {
		if s.Available {
			open = append(open, s)
		}
	}
	if len(open) == 0 {
		return
	}

	// Bias toward the first few open slots so workers collide.
	pick := open[rng.Intn(min(3, len(open)))]

	reqBody, _ := json.Marshal(map[string]any{
		"service_id":     target.ServiceID.String(),
		"provider_id":    target.ProviderID.String(),
		"customer_name":  gofakeit.Name(),
		"customer_email": gofakeit.Email(),
		"customer_phone": gofakeit.Phone(),
		"start_time":     pick.Start.Format(time.RFC3339),
	})

	start = time.Now()
	resp, err = client.Post(cfg.APIBaseURL+"/bookings", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		bookMetrics.Record(time.Since(start), false, false)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		bookMetrics.Record(time.Since(start), true, false)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		bookMetrics.Record(time.Since(start), false, true)
	default:
		bookMetrics.Record(time.Since(start), false, false)
	}
}

func capacityViolations(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var violations int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM (
			SELECT b.provider_id, b.start_time
			FROM bookings b
			JOIN availability_profiles p ON p.provider_id = b.provider_id
			WHERE b.status IN ('pending', 'confirmed')
			GROUP BY b.provider_id, b.start_time, p.max_bookings_per_slot
			HAVING count(*) > p.max_bookings_per_slot
		) overbooked
	`).Scan(&violations)
	return violations, err
}

func report(name string, m *OperationMetrics) {
	avg, p50, p95 := m.Stats()
	log.Printf("%s: total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s",
		name,
		atomic.LoadInt64(&m.Total),
		atomic.LoadInt64(&m.Success),
		atomic.LoadInt64(&m.Conflict),
		atomic.LoadInt64(&m.Error),
		avg, p50, p95)
}
