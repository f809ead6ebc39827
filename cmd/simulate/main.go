package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/config"
	"github.com/hackgods/vet-appointment-scheduling/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	FixturePath  string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	CancelRatio  float64
	ReadRatio    float64
	DaysAhead    int
}

// Fixture mirrors the file written by cmd/seed.
type Fixture struct {
	Veterinarians []SeededUser `json:"veterinarians"`
	Owners        []SeededUser `json:"owners"`
}

type SeededUser struct {
	ID     uuid.UUID   `json:"id"`
	Token  string      `json:"token"`
	PetIDs []uuid.UUID `json:"petIds,omitempty"`
}

type booked struct {
	ID       uuid.UUID
	OwnerIdx int
	VetIdx   int
}

type DataPool struct {
	Fixture
	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
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

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]

	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Booking      OperationMetrics
	Availability OperationMetrics
	Confirm      OperationMetrics
	Cancel       OperationMetrics
	ReadByID     OperationMetrics
	ListByOwner  OperationMetrics
	ListByVet    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

var appointmentTypes = []string{"checkup", "vaccination", "consultation", "dental", "follow_up", "grooming"}

func main() {
	log := logger.New(config.LoadLogging(), "simulate")
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("confirm", cfg.ConfirmRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	dataPool, err := loadDataPool(cfg.FixturePath)
	if err != nil {
		log.Fatal("load fixture", zap.Error(err))
	}

	log.Info("fixture loaded",
		zap.Int("veterinarians", len(dataPool.Veterinarians)),
		zap.Int("owners", len(dataPool.Owners)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	fixture := flag.String("fixture", getEnv("SIM_FIXTURE", "seed.json"), "fixture written by cmd/seed")
	flag.Parse()

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		FixturePath:  *fixture,
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.2),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.35),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 7),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func loadDataPool(path string) (*DataPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	dataPool := &DataPool{}
	if err := json.Unmarshal(data, &dataPool.Fixture); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if len(dataPool.Owners) == 0 {
		return nil, fmt.Errorf("no owners in fixture")
	}
	if len(dataPool.Veterinarians) == 0 {
		return nil, fmt.Errorf("no approved veterinarians in fixture")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByOwner(ctx, rng)
				case 2:
					s.doListByVet(ctx, rng)
				}
			}
		}
	}
}

// doBooking asks for a vet's free slots and books one of them. Many workers target the
// same few days, so 409s from losing races are expected.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	ownerIdx := rng.Intn(len(s.pool.Owners))
	vetIdx := rng.Intn(len(s.pool.Veterinarians))
	owner := s.pool.Owners[ownerIdx]
	vet := s.pool.Veterinarians[vetIdx]
	if len(owner.PetIDs) == 0 {
		return
	}

	date := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format(time.DateOnly)

	var avail struct {
		AvailableSlots []time.Time `json:"availableSlots"`
	}
	start := time.Now()
	status, err := s.call(ctx, owner.Token, http.MethodGet,
		fmt.Sprintf("/appointments/availability/%s?date=%s", vet.ID, date), nil, &avail)
	s.metrics.Availability.Record(time.Since(start), err == nil && status == http.StatusOK, false)
	if err != nil || len(avail.AvailableSlots) == 0 {
		return
	}

	slot := avail.AvailableSlots[rng.Intn(len(avail.AvailableSlots))]
	reqBody := map[string]any{
		"petId":          owner.PetIDs[rng.Intn(len(owner.PetIDs))].String(),
		"veterinarianId": vet.ID.String(),
		"dateTime":       slot.Format(time.RFC3339),
		"type":           appointmentTypes[rng.Intn(len(appointmentTypes))],
		"reason":         "routine visit",
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	start = time.Now()
	status, err = s.call(ctx, owner.Token, http.MethodPost, "/appointments", reqBody, &created)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && created.ID != uuid.Nil {
		s.pool.AddAppointment(booked{ID: created.ID, OwnerIdx: ownerIdx, VetIdx: vetIdx})
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	vet := s.pool.Veterinarians[b.VetIdx]

	start := time.Now()
	status, err := s.call(ctx, vet.Token, http.MethodPatch,
		fmt.Sprintf("/appointments/%s/status", b.ID), map[string]string{"status": "confirmed"}, nil)

	// already confirmed or cancelled shows up as 400 and counts as a conflict here
	s.metrics.Confirm.Record(time.Since(start), err == nil && status == http.StatusOK,
		status == http.StatusConflict || status == http.StatusBadRequest)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	owner := s.pool.Owners[b.OwnerIdx]

	start := time.Now()
	status, err := s.call(ctx, owner.Token, http.MethodPatch,
		fmt.Sprintf("/appointments/%s/status", b.ID),
		map[string]string{"status": "cancelled", "reason": "plans changed"}, nil)

	s.metrics.Cancel.Record(time.Since(start), err == nil && status == http.StatusOK,
		status == http.StatusConflict || status == http.StatusBadRequest)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	owner := s.pool.Owners[b.OwnerIdx]

	start := time.Now()
	status, err := s.call(ctx, owner.Token, http.MethodGet, fmt.Sprintf("/appointments/%s", b.ID), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByOwner(ctx context.Context, rng *rand.Rand) {
	owner := s.pool.Owners[rng.Intn(len(s.pool.Owners))]

	start := time.Now()
	status, err := s.call(ctx, owner.Token, http.MethodGet, "/appointments?limit=20&offset=0", nil, nil)
	s.metrics.ListByOwner.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByVet(ctx context.Context, rng *rand.Rand) {
	vet := s.pool.Veterinarians[rng.Intn(len(s.pool.Veterinarians))]

	start := time.Now()
	status, err := s.call(ctx, vet.Token, http.MethodGet, "/appointments?upcoming=true&status=pending", nil, nil)
	s.metrics.ListByVet.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// call sends an authenticated request and decodes a 2xx body into out when out is non-nil.
func (s *Simulator) call(ctx context.Context, token, method, path string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rdr)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode/100 == 2 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Owner", &s.metrics.ListByOwner)
	printOperationReport("List by Veterinarian", &s.metrics.ListByVet)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
