package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	EventsNone  = "none"
	EventsNATS  = "nats"
	EventsKafka = "kafka"
)

// Config is the process configuration. Values come from the environment, optionally layered
// on top of a YAML file named by CONFIG_FILE whose keys are the lower-cased variable names.
type Config struct {
	HTTPAddr        string
	StoreBackend    string
	// SeedUsers are registered in the memory store at startup.
	SeedUsers       []string
	DB              DatabaseConfig
	RunMigrations   bool
	StoreTimeout    time.Duration
	SweepInterval   time.Duration
	SweepBatch      int
	ShowWinner      bool
	CORSOrigins     []string
	Redis           RedisConfig
	RateLimit       int
	RateWindow      time.Duration
	SweeperLeaseTTL time.Duration
	Events          EventsConfig
	LogLevel        string
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type EventsConfig struct {
	Backend           string
	NATSURL           string
	NATSStream        string
	NATSSubjectPrefix string
	KafkaBrokers      []string
	KafkaTopic        string
}

// Load reads .env (if present), the optional CONFIG_FILE and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	l := &loader{file: map[string]string{}}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &l.file); err != nil {
			return nil, fmt.Errorf("config: failed to parse config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:     l.str("HTTP_ADDR", ":9000"),
		StoreBackend: strings.ToLower(l.str("STORE_BACKEND", StorePostgres)),
		SeedUsers:    l.list("SEED_USERS", ""),
		DB: DatabaseConfig{
			Host:     l.str("DB_HOST", "localhost"),
			Port:     l.int("DB_PORT", 5432),
			User:     l.str("DB_USER", "postgres"),
			Password: l.str("DB_PASSWORD", "postgres"),
			Database: l.str("DB_NAME", "auctions"),
			SSLMode:  l.str("DB_SSLMODE", "disable"),
			MaxConns: l.int("DB_MAX_CONNS", 10),
		},
		RunMigrations:   l.bool("RUN_MIGRATIONS", true),
		StoreTimeout:    l.duration("STORE_TIMEOUT", 5*time.Second),
		SweepInterval:   l.duration("SWEEP_INTERVAL", 30*time.Second),
		SweepBatch:      l.int("SWEEP_BATCH", 100),
		ShowWinner:      l.bool("SHOW_WINNER", true),
		CORSOrigins:     l.list("CORS_ORIGINS", "http://localhost:5173"),
		RateLimit:       l.int("RATE_LIMIT", 100),
		RateWindow:      l.duration("RATE_WINDOW", 15*time.Minute),
		SweeperLeaseTTL: l.duration("SWEEPER_LEASE_TTL", 45*time.Second),
		Redis: RedisConfig{
			Addr:     l.str("REDIS_ADDR", ""),
			Password: l.str("REDIS_PASSWORD", ""),
			DB:       l.int("REDIS_DB", 0),
		},
		Events: EventsConfig{
			Backend:           strings.ToLower(l.str("EVENTS_BACKEND", EventsNone)),
			NATSURL:           l.str("NATS_URL", "nats://127.0.0.1:4222"),
			NATSStream:        l.str("NATS_STREAM", "AUCTION_EVENTS"),
			NATSSubjectPrefix: l.str("NATS_SUBJECT_PREFIX", "auction.events"),
			KafkaBrokers:      l.list("KAFKA_BROKERS", "localhost:9092"),
			KafkaTopic:        l.str("KAFKA_TOPIC", "auction-events"),
		},
		LogLevel: l.str("LOG_LEVEL", "info"),
	}
	if l.err != nil {
		return nil, l.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("config: STORE_BACKEND must be %q or %q, got %q", StorePostgres, StoreMemory, c.StoreBackend)
	}
	switch c.Events.Backend {
	case EventsNone, EventsNATS, EventsKafka:
	default:
		return fmt.Errorf("config: EVENTS_BACKEND must be one of none, nats, kafka, got %q", c.Events.Backend)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("config: STORE_TIMEOUT must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: SWEEP_INTERVAL must be positive")
	}
	if c.SweepBatch <= 0 {
		return fmt.Errorf("config: SWEEP_BATCH must be positive")
	}
	return nil
}

// loader resolves a key from the environment first, then the config file. The first parse
// error is kept and reported by Load.
type loader struct {
	file map[string]string
	err  error
}

func (l *loader) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	v, ok := l.file[strings.ToLower(key)]
	return v, ok && v != ""
}

func (l *loader) str(key, fallback string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return fallback
}

func (l *loader) int(key string, fallback int) int {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(key, v, err)
		return fallback
	}
	return n
}

func (l *loader) bool(key string, fallback bool) bool {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(key, v, err)
		return fallback
	}
	return b
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(key, v, err)
		return fallback
	}
	return d
}

func (l *loader) list(key, fallback string) []string {
	raw := l.str(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *loader) fail(key, value string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("config: invalid value %q for %s: %w", value, key, err)
	}
}
