package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"smartsensors/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	addr        = flag.String("addr", ":8000", "Listen address")
	failRate    = flag.Float64("fail-rate", 0.0, "Probability of answering /data with HTTP 500 (0.0-1.0)")
	spikeRate   = flag.Float64("spike-rate", 0.05, "Probability of an out-of-range reading (0.0-1.0)")
	delay       = flag.Duration("delay", 0, "Artificial latency added to every /data response")
	historySize = flag.Int("history", 50, "Number of history records kept per category")
	ipAddress   = flag.String("ip", "192.168.4.2", "Reported device IP address")
	networkMode = flag.String("mode", "AP", "Reported device network mode")
)

// MockDataGenerator produces readings and keeps a newest-first history per category
type MockDataGenerator struct {
	mu        sync.Mutex
	spikeRate float64
	capacity  int
	history   map[models.Category][]map[string]any
	logger    *zap.Logger
}

// NewMockDataGenerator creates a new generator
func NewMockDataGenerator(spikeRate float64, capacity int, logger *zap.Logger) *MockDataGenerator {
	return &MockDataGenerator{
		spikeRate: spikeRate,
		capacity:  capacity,
		history:   make(map[models.Category][]map[string]any),
		logger:    logger,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// around returns base with +-spread uniform noise
func around(base, spread float64) float64 {
	return base + (rand.Float64()*2-1)*spread
}

// GenerateReadings generates one realistic reading per category
func (m *MockDataGenerator) GenerateReadings() map[models.Category]map[string]any {
	spike := rand.Float64() < m.spikeRate

	pm25 := around(18, 6)
	if spike {
		pm25 = 80 + rand.Float64()*120
	}

	tvocPPB := around(150, 60)
	lel := around(3, 2)
	so2 := around(0.2, 0.15)
	if spike && rand.Float64() < 0.5 {
		tvocPPB = 700 + rand.Float64()*300
		lel = 15 + rand.Float64()*15
	}

	return map[models.Category]map[string]any{
		models.AirQuality: {
			"pm1":         round(pm25*0.7, 1),
			"pm25":        round(pm25, 1),
			"pm10":        round(pm25*1.6, 1),
			"co2":         round(around(520, 60), 0),
			"voc":         round(math.Abs(around(1, 1)), 0),
			"ch2o":        round(math.Abs(around(0.03, 0.02)), 3),
			"co":          round(math.Abs(around(0.5, 0.4)), 1),
			"o3":          round(math.Abs(around(0.02, 0.01)), 3),
			"no2":         round(math.Abs(around(0.04, 0.02)), 3),
			"temperature": round(around(24, 3), 1),
			"humidity":    round(around(40, 8), 1),
		},
		models.MR007: {
			"voltage":           round(0.4+math.Abs(lel)*0.05, 3),
			"rawValue":          round(math.Abs(lel)*120, 0),
			"lel_concentration": round(math.Abs(lel), 2),
		},
		models.ME4SO2: {
			"voltage":           round(0.3+math.Abs(so2)*0.2, 3),
			"rawValue":          round(math.Abs(so2)*800, 0),
			"current_ua":        round(math.Abs(so2)*0.6, 3),
			"so2_concentration": round(math.Abs(so2), 3),
		},
		models.ZE40: {
			"tvoc_ppb":          round(math.Abs(tvocPPB), 0),
			"tvoc_ppm":          round(math.Abs(tvocPPB)/1000, 3),
			"dac_voltage":       round(0.4+math.Abs(tvocPPB)/1000, 3),
			"dac_ppm":           round(math.Abs(tvocPPB)/1000, 3),
			"uart_data_valid":   rand.Float64() > 0.02,
			"analog_data_valid": rand.Float64() > 0.02,
		},
	}
}

// Snapshot generates a reading, archives it and returns the full /data document
func (m *MockDataGenerator) Snapshot(now time.Time) map[string]any {
	readings := m.GenerateReadings()

	m.mu.Lock()
	defer m.mu.Unlock()

	stamp := now.Format("2006-01-02 15:04:05")
	clock := now.Format("15:04:05")

	history := make(map[string]any, len(models.HistoryCategories))
	for _, category := range models.HistoryCategories {
		record := map[string]any{
			"timestamp":         stamp,
			"time_with_seconds": clock,
		}
		if category == models.DeviceInfoHistory {
			record["ip_address"] = *ipAddress
			record["network_mode"] = *networkMode
		}
		for k, v := range readings[category] {
			record[k] = v
		}

		records := append([]map[string]any{record}, m.history[category]...)
		if len(records) > m.capacity {
			records = records[:m.capacity]
		}
		m.history[category] = records

		items := make([]any, len(records))
		for i, r := range records {
			items[i] = r
		}
		history[string(category)] = items
	}

	doc := map[string]any{
		"ip_address":   *ipAddress,
		"network_mode": *networkMode,
		"timestamp":    stamp,
		"history":      history,
	}
	for category, reading := range readings {
		doc[string(category)] = reading
	}
	return doc
}

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	gen := NewMockDataGenerator(*spikeRate, *historySize, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/data", func(w http.ResponseWriter, req *http.Request) {
		if *delay > 0 {
			time.Sleep(*delay)
		}
		if rand.Float64() < *failRate {
			logger.Warn("Simulating backend failure")
			http.Error(w, "simulated failure", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(gen.Snapshot(time.Now())); err != nil {
			logger.Error("Failed to encode payload", zap.Error(err))
		}
	})

	r.Post("/api/log/frontend", func(w http.ResponseWriter, req *http.Request) {
		var payload models.EscalationPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		logger.Info("Frontend log received",
			zap.String("level", string(payload.Level)),
			zap.String("component", payload.Component),
			zap.String("message", payload.Message),
			zap.String("url", payload.URL),
			zap.Bool("has_stack", payload.ErrorStack != nil))
		w.WriteHeader(http.StatusCreated)
	})

	server := &http.Server{
		Addr:    *addr,
		Handler: r,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping mock server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info("Mock sensor server started",
		zap.String("addr", *addr),
		zap.Float64("fail_rate", *failRate),
		zap.Float64("spike_rate", *spikeRate),
		zap.Int("history", *historySize))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Mock server failed", zap.Error(err))
	}
}
