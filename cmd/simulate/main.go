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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caresched/hospital-scheduling/internal/db"
)

// The simulator hammers a small set of hot slots with concurrent
// bookings and then audits the database: every slot must end with at
// most one active appointment, and is_booked must agree with the ledger.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	CancelRatio  float64
	PatientLimit int
	SlotLimit    int
	PostgresDSN  string
}

type slotTarget struct {
	DoctorID uuid.UUID
	Date     string
	Time     string
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []slotTarget

	mu           sync.RWMutex
	appointments []booked
}

type booked struct {
	ID        uuid.UUID
	PatientID uuid.UUID
}

func (dp *DataPool) AddAppointment(id, patientID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, booked{ID: id, PatientID: patientID})
}

func (dp *DataPool) TakeRandomAppointment() (booked, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	idx := rand.Intn(len(dp.appointments))
	b := dp.appointments[idx]
	dp.appointments = append(dp.appointments[:idx], dp.appointments[idx+1:]...)
	return b, true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	booking OperationMetrics
	cancels OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(context.Background(), pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("data pool: %d patients, %d hot slots", len(pool.Patients), len(pool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	sim.run()

	sim.report()

	if err := audit(context.Background(), pgPool); err != nil {
		log.Fatalf("AUDIT FAILED: %v", err)
	}
	log.Println("audit passed: no slot holds more than one active appointment and is_booked agrees with the ledger")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:     getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:      getIntEnv("SIM_WORKERS", 16),
		CancelRatio:  getFloatEnv("SIM_CANCEL_RATIO", 0.2),
		PatientLimit: getIntEnv("SIM_PATIENTS", 200),
		SlotLimit:    getIntEnv("SIM_SLOTS", 50),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

func loadDataPool(ctx context.Context, pgPool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pgPool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A deliberately small slot set so workers collide on the same keys.
	slotRows, err := pgPool.Query(ctx, `
		SELECT doctor_id, to_char(date, 'YYYY-MM-DD'), time
		FROM availability_slots
		WHERE NOT is_booked AND date > now()::date
		ORDER BY date, time
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, err
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var t slotTarget
		if err := slotRows.Scan(&t.DoctorID, &t.Date, &t.Time); err != nil {
			return nil, err
		}
		dp.Slots = append(dp.Slots, t)
	}
	if err := slotRows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Patients) == 0 || len(dp.Slots) == 0 {
		return nil, fmt.Errorf("need seeded patients and free future slots, run cmd/seed first")
	}

	return dp, nil
}

func (s *Simulator) run() {
	log.Printf("running %d workers for %s", s.config.Workers, s.config.Duration)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if rand.Float64() < s.config.CancelRatio {
					s.cancelOne(ctx)
				} else {
					s.bookOne(ctx)
				}
			}
		}()
	}
	wg.Wait()
}

func (s *Simulator) bookOne(ctx context.Context) {
	patientID := s.pool.Patients[rand.Intn(len(s.pool.Patients))]
	target := s.pool.Slots[rand.Intn(len(s.pool.Slots))]

	body, _ := json.Marshal(map[string]string{
		"doctor_id": target.DoctorID.String(),
		"date":      target.Date,
		"time":      target.Time,
	})

	start := time.Now()
	status, resp := s.post(ctx, "/appointments", patientID, body)
	latency := time.Since(start)

	switch status {
	case http.StatusCreated:
		var out struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(resp, &out); err == nil {
			s.pool.AddAppointment(out.ID, patientID)
		}
		s.booking.Record(latency, true, false)
	case http.StatusConflict:
		s.booking.Record(latency, false, true)
	default:
		s.booking.Record(latency, false, false)
	}
}

func (s *Simulator) cancelOne(ctx context.Context) {
	appt, ok := s.pool.TakeRandomAppointment()
	if !ok {
		return
	}

	start := time.Now()
	status, _ := s.post(ctx, "/appointments/"+appt.ID.String()+"/cancel", appt.PatientID, nil)
	latency := time.Since(start)

	switch status {
	case http.StatusOK:
		s.cancels.Record(latency, true, false)
	case http.StatusConflict:
		s.cancels.Record(latency, false, true)
	default:
		s.cancels.Record(latency, false, false)
	}
}

func (s *Simulator) post(ctx context.Context, path string, patientID uuid.UUID, body []byte) (int, []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Role", "patient")
	req.Header.Set("X-User-ID", patientID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func (s *Simulator) report() {
	bAvg, bP50, bP95 := s.booking.Stats()
	log.Printf("bookings: total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s",
		s.booking.Total, s.booking.Success, s.booking.Conflict, s.booking.Error, bAvg, bP50, bP95)

	cAvg, cP50, cP95 := s.cancels.Stats()
	log.Printf("cancels:  total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s",
		s.cancels.Total, s.cancels.Success, s.cancels.Conflict, s.cancels.Error, cAvg, cP50, cP95)
}

// audit verifies the two core invariants straight against the tables.
func audit(ctx context.Context, pool *pgxpool.Pool) error {
	var dupes int64
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT doctor_id, date, time
			FROM appointments
			WHERE status IN ('Booked', 'Completed')
			GROUP BY doctor_id, date, time
			HAVING count(*) > 1
		) d
	`).Scan(&dupes)
	if err != nil {
		return err
	}
	if dupes > 0 {
		return fmt.Errorf("%d slot keys hold more than one active appointment", dupes)
	}

	var mismatches int64
	err = pool.QueryRow(ctx, `
		SELECT count(*)
		FROM availability_slots s
		WHERE s.is_booked <> EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.doctor_id = s.doctor_id
			  AND a.date = s.date
			  AND a.time = s.time
			  AND a.status IN ('Booked', 'Completed')
		)
	`).Scan(&mismatches)
	if err != nil {
		return err
	}
	if mismatches > 0 {
		return fmt.Errorf("%d slots disagree with the appointment ledger", mismatches)
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
