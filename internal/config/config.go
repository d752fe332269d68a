package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the market simulator.
type Config struct {
	Port     int
	LogLevel string

	// Simulation.
	Traders         int
	InitialPrice    float64
	InitialCash     float64
	InitialHoldings int64
	HumanTrader     bool
	TimeScale       float64
	Duration        time.Duration // simulated; 0 runs until stopped
	Seed            uint64
	DecisionWorkers int
	OrderTTL        time.Duration // simulated; 0 disables expiry
	TickInterval    time.Duration // wall clock between ticks

	// Ensemble.
	Replicas int
	Workers  int

	// Sinks. Empty disables.
	LogDir      string
	SQLitePath  string
	SummaryPath string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	traders, err := getInt("TRADERS", 12)
	if err != nil {
		return nil, fmt.Errorf("invalid TRADERS: %w", err)
	}
	if traders < 0 {
		return nil, fmt.Errorf("invalid TRADERS: %d, must not be negative", traders)
	}

	initialPrice, err := getFloat("INITIAL_PRICE", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_PRICE: %w", err)
	}
	if initialPrice <= 0 {
		return nil, fmt.Errorf("invalid INITIAL_PRICE: %v, must be positive", initialPrice)
	}

	initialCash, err := getFloat("INITIAL_CASH", 10000)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %w", err)
	}
	if initialCash < 0 {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %v, must not be negative", initialCash)
	}

	initialHoldings, err := getInt("INITIAL_HOLDINGS", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_HOLDINGS: %w", err)
	}
	if initialHoldings < 0 {
		return nil, fmt.Errorf("invalid INITIAL_HOLDINGS: %d, must not be negative", initialHoldings)
	}

	humanTrader, err := getBool("HUMAN_TRADER", true)
	if err != nil {
		return nil, fmt.Errorf("invalid HUMAN_TRADER: %w", err)
	}

	timeScale, err := getFloat("TIME_SCALE", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_SCALE: %w", err)
	}
	if timeScale <= 0 {
		return nil, fmt.Errorf("invalid TIME_SCALE: %v, must be positive", timeScale)
	}

	duration, err := getDuration("DURATION", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid DURATION: %w", err)
	}
	if duration < 0 {
		return nil, fmt.Errorf("invalid DURATION: %v, must not be negative", duration)
	}

	seed, err := getUint("SEED", 42)
	if err != nil {
		return nil, fmt.Errorf("invalid SEED: %w", err)
	}

	decisionWorkers, err := getInt("DECISION_WORKERS", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, fmt.Errorf("invalid DECISION_WORKERS: %w", err)
	}
	if decisionWorkers < 1 {
		return nil, fmt.Errorf("invalid DECISION_WORKERS: %d, must be at least 1", decisionWorkers)
	}

	orderTTL, err := getDuration("ORDER_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid ORDER_TTL: %w", err)
	}
	if orderTTL < 0 {
		return nil, fmt.Errorf("invalid ORDER_TTL: %v, must not be negative", orderTTL)
	}

	tickInterval, err := getDuration("TICK_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	if tickInterval <= 0 {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %v, must be positive", tickInterval)
	}

	replicas, err := getInt("REPLICAS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid REPLICAS: %w", err)
	}
	if replicas < 1 {
		return nil, fmt.Errorf("invalid REPLICAS: %d, must be at least 1", replicas)
	}

	workers, err := getInt("WORKERS", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKERS: %w", err)
	}
	if workers < 1 {
		return nil, fmt.Errorf("invalid WORKERS: %d, must be at least 1", workers)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		Traders:         traders,
		InitialPrice:    initialPrice,
		InitialCash:     initialCash,
		InitialHoldings: int64(initialHoldings),
		HumanTrader:     humanTrader,
		TimeScale:       timeScale,
		Duration:        duration,
		Seed:            seed,
		DecisionWorkers: decisionWorkers,
		OrderTTL:        orderTTL,
		TickInterval:    tickInterval,
		Replicas:        replicas,
		Workers:         workers,
		LogDir:          getStr("LOG_DIR", ""),
		SQLitePath:      getStr("SQLITE_PATH", ""),
		SummaryPath:     getStr("SUMMARY_PATH", ""),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getUint(key string, defaultVal uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
