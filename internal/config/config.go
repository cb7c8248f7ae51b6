// Package config assembles the runtime configuration from the environment.
// A Config is built once at startup and handed to the constructors that need
// it; nothing reads the environment after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSetSpecs are the arXiv top-level sets harvested when the caller
// does not override the topic list.
var DefaultSetSpecs = []string{"physics", "math", "cs", "q-bio", "q-fin", "stat", "eess", "econ"}

// DefaultBackfillStart approximates the earliest date the arXiv OAI
// interface has coverage for.
const DefaultBackfillStart = "2007-01-01"

// Config is the explicit, non-global settings value for a harvester run.
type Config struct {
	// Endpoint is the OAI-PMH base URL.
	Endpoint string

	// PostgreSQL connection and target relation.
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Schema   string
	Table    string

	// RateLimitDelay is the minimum spacing between requests and doubles as
	// the inter-topic and inter-date pacing wait.
	RateLimitDelay time.Duration
	// MaxRetries is the attempt bound per physical request.
	MaxRetries int
	// RetryAfter is the wait between retry attempts.
	RetryAfter time.Duration
	// BatchSize is the page cap the endpoint publishes; used for progress
	// accounting.
	BatchSize int
	// MaxPages bounds the resumption loop.
	MaxPages int

	// ChunkSize is the number of backfill dates per progress chunk.
	ChunkSize int
	// ChunkPause is the extra wait inserted between backfill chunks, on top
	// of the per-date pacing.
	ChunkPause time.Duration
	// BackfillStart is the default lower bound for gap detection.
	BackfillStart time.Time
}

// Load reads .env when present (existing environment wins) and resolves
// every setting with its default. When docker secret files are configured
// and readable, database credentials come from them and the host switches to
// the in-network alias.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Endpoint: getenv("OAI_ENDPOINT", "http://export.arxiv.org/oai2"),

		Host:     getenv("POSTGRES_HOST", "localhost"),
		Database: os.Getenv("POSTGRES_DB"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Schema:   getenv("POSTGRES_SCHEMA", "arxiv"),
		Table:    getenv("POSTGRES_TABLE", "metadata"),
	}

	var err error
	if cfg.Port, err = getint("POSTGRES_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.RateLimitDelay, err = getseconds("ARXIV_RATE_LIMIT_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getint("ARXIV_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RetryAfter, err = getseconds("ARXIV_RETRY_AFTER", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getint("ARXIV_BATCH_SIZE", 2000); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = getint("OAI_MAX_PAGES", 1024); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getint("BACKFILL_CHUNK_SIZE", 7); err != nil {
		return nil, err
	}
	if cfg.ChunkPause, err = getseconds("BACKFILL_CHUNK_PAUSE", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.BackfillStart, err = getdate("BACKFILL_START_DATE", DefaultBackfillStart); err != nil {
		return nil, err
	}

	loadDockerSecrets(cfg)
	return cfg, nil
}

// loadDockerSecrets swaps in credentials mounted as docker secrets, the
// deployment shape the container runs in.
func loadDockerSecrets(cfg *Config) {
	userFile := os.Getenv("DOCKER_POSTGRES_USER_FILE")
	passFile := os.Getenv("DOCKER_POSTGRES_PASSWORD_FILE")
	if userFile == "" || passFile == "" {
		return
	}
	user, uerr := os.ReadFile(userFile)
	pass, perr := os.ReadFile(passFile)
	if uerr != nil || perr != nil {
		return
	}
	cfg.User = strings.TrimSpace(string(user))
	cfg.Password = strings.TrimSpace(string(pass))
	if host := os.Getenv("DOCKER_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
}

// DSN renders the keyword/value connection string pgx consumes.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		c.Host, c.Port, c.Database, c.User, c.Password)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// getseconds reads a knob expressed as a plain integer number of seconds.
func getseconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}

func getdate(key, def string) (time.Time, error) {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: %s: %w", key, err)
	}
	return t, nil
}
