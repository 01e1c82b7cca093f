package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/internal/seed"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	Patients     int
	Days         int
	SlotLimit    int
}

type caller struct {
	Name  string
	Phone string
}

type booking struct {
	ShortID string
	Phone   string
	Slot    slot
}

type slot struct {
	Doctor string
	Date   string
	Time   string
}

// DataPool holds the callers and slots workers race over, and the bookings
// the server has confirmed.
type DataPool struct {
	Callers []caller
	Slots   []slot

	mu       sync.Mutex
	bookings []booking
	holders  map[slot]string
	doubles  int64
}

// Booked records a confirmed booking and counts it as a double booking when
// the slot is already held by another live booking.
func (dp *DataPool) Booked(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if _, held := dp.holders[b.Slot]; held {
		dp.doubles++
	}
	dp.holders[b.Slot] = b.ShortID
	dp.bookings = append(dp.bookings, b)
}

// TakeBooking removes and returns a random confirmed booking.
func (dp *DataPool) TakeBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	idx := rng.Intn(len(dp.bookings))
	b := dp.bookings[idx]
	dp.bookings[idx] = dp.bookings[len(dp.bookings)-1]
	dp.bookings = dp.bookings[:len(dp.bookings)-1]
	return b, true
}

func (dp *DataPool) Cancelled(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.holders[b.Slot] == b.ShortID {
		delete(dp.holders, b.Slot)
	}
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Cancel       OperationMetrics
	Availability OperationMetrics
	ListByPhone  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *logging.Logger
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL")).With("service", "simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("simulator starting",
		"duration", cfg.Duration, "workers", cfg.Workers,
		"booking", cfg.BookingRatio, "cancel", cfg.CancelRatio, "read", cfg.ReadRatio)

	dataPool := buildDataPool(cfg, gofakeit.New(0), time.Now())
	logger.Info("data pool ready", "callers", len(dataPool.Callers), "slots", len(dataPool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()

	if dataPool.doubles > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Patients:     getInt("SIM_PATIENTS", 500),
		Days:         getInt("SIM_DAYS", 5),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 200),
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
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
	if cfg.Patients <= 0 || cfg.Days <= 0 || cfg.SlotLimit <= 0 {
		return fmt.Errorf("SIM_PATIENTS, SIM_DAYS and SIM_SLOT_LIMIT must be > 0")
	}
	return nil
}

// buildDataPool generates callers and enumerates the seeded doctors' working
// slots over the next cfg.Days days, capped at cfg.SlotLimit so workers
// collide on the same slots.
func buildDataPool(cfg SimConfig, faker *gofakeit.Faker, now time.Time) *DataPool {
	dp := &DataPool{holders: make(map[slot]string)}

	for i := 0; i < cfg.Patients; i++ {
		dp.Callers = append(dp.Callers, caller{Name: faker.Name(), Phone: "+1" + faker.Phone()})
	}

	doctors := seed.Doctors()
	for day := 1; day <= cfg.Days && len(dp.Slots) < cfg.SlotLimit; day++ {
		date := scheduling.DateOf(now.AddDate(0, 0, day))
		for _, d := range doctors {
			hours, ok := d.HoursOn(date.Weekday())
			if !ok {
				continue
			}
			step := scheduling.TimeOfDay(d.ConsultationMinutes)
			if step <= 0 {
				step = 30
			}
			for t := hours.Start; t < hours.End && len(dp.Slots) < cfg.SlotLimit; t += step {
				dp.Slots = append(dp.Slots, slot{Doctor: d.Name, Date: date.String(), Time: t.String()})
			}
		}
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
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
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			case rng.Intn(2) == 0:
				s.doAvailability(ctx, rng)
			default:
				s.doListByPhone(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	c := s.pool.Callers[rng.Intn(len(s.pool.Callers))]

	body, _ := json.Marshal(scheduling.BookRequest{
		PatientName:  c.Name,
		PatientPhone: c.Phone,
		DoctorName:   sl.Doctor,
		Date:         sl.Date,
		Time:         sl.Time,
		Reason:       "simulation",
	})

	start := time.Now()
	status, respBody, err := s.do(ctx, http.MethodPost, "/appointments", body)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	conflict := err == nil && status == http.StatusConflict
	if success {
		var appt struct {
			ShortID string `json:"short_id"`
		}
		if json.Unmarshal(respBody, &appt) == nil && appt.ShortID != "" {
			s.pool.Booked(booking{ShortID: appt.ShortID, Phone: c.Phone, Slot: sl})
		}
	}
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeBooking(rng)
	if !ok {
		return
	}

	body, _ := json.Marshal(map[string]string{"patient_phone": b.Phone})

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodPost, "/appointments/"+b.ShortID+"/cancel", body)
	latency := time.Since(start)

	success := err == nil && status == http.StatusOK
	if success {
		s.pool.Cancelled(b)
	}
	s.metrics.Cancel.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	q := url.Values{"doctor": {sl.Doctor}, "date": {sl.Date}, "time": {sl.Time}}

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodGet, "/availability?"+q.Encode(), nil)
	s.metrics.Availability.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByPhone(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Callers[rng.Intn(len(s.pool.Callers))]
	q := url.Values{"phone": {c.Phone}}

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodGet, "/appointments?"+q.Encode(), nil)
	s.metrics.ListByPhone.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes(), err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots contended: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("List by Phone", &s.metrics.ListByPhone)

	if s.pool.doubles > 0 {
		fmt.Printf("DOUBLE BOOKINGS DETECTED: %d\n", s.pool.doubles)
	} else {
		fmt.Println("No double bookings observed.")
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

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
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
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
