// Package config loads process configuration from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // zero: builds may run as long as they need
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// PathsConfig locates sources, indexes and the model checkpoint
type PathsConfig struct {
	DocumentsDir   string `yaml:"documents_dir"`
	ExperimentsDir string `yaml:"experiments_dir"`
	CheckpointDir  string `yaml:"checkpoint_dir"`
	IndexName      string `yaml:"index_name"`
}

// ColBERTConfig configures the sidecar engine
type ColBERTConfig struct {
	URL       string        `yaml:"url"`
	DocMaxLen int           `yaml:"doc_maxlen"`
	NBits     int           `yaml:"nbits"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BleveConfig configures the in-process engine
type BleveConfig struct {
	BatchSize int    `yaml:"batch_size"`
	Analyzer  string `yaml:"analyzer"`
}

// EngineConfig selects the retrieval engine
type EngineConfig struct {
	Backend string        `yaml:"backend"` // bleve | colbert
	ColBERT ColBERTConfig `yaml:"colbert"`
	Bleve   BleveConfig   `yaml:"bleve"`
}

// BuildConfig controls accelerator contention
type BuildConfig struct {
	LockPolicy string        `yaml:"lock_policy"` // block | fail
	LockWait   time.Duration `yaml:"lock_wait"`
}

// SearchConfig bounds queries
type SearchConfig struct {
	DefaultK  int `yaml:"default_k"`
	MaxK      int `yaml:"max_k"`
	CacheSize int `yaml:"cache_size"` // negative disables the cache
}

// LockConfig selects the cross-process accelerator lock
type LockConfig struct {
	Backend   string        `yaml:"backend"` // none | redis | postgres | file
	RedisURL  string        `yaml:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
	Dir       string        `yaml:"dir"`
}

// StoreConfig selects where collection records live
type StoreConfig struct {
	Backend     string `yaml:"backend"` // memory | postgres
	DatabaseURL string `yaml:"database_url"`
	Migrate     bool   `yaml:"migrate"`
}

// AuthConfig enables bearer tokens on the lifecycle endpoints when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// LogConfig configures slog
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Config is the root configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Paths  PathsConfig  `yaml:"paths"`
	Engine EngineConfig `yaml:"engine"`
	Build  BuildConfig  `yaml:"build"`
	Search SearchConfig `yaml:"search"`
	Lock   LockConfig   `yaml:"lock"`
	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8893,
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Paths: PathsConfig{
			DocumentsDir:   "/app/data",
			ExperimentsDir: "/app/experiments",
			CheckpointDir:  "/app/checkpoint",
			IndexName:      "index",
		},
		Engine: EngineConfig{
			Backend: "bleve",
			ColBERT: ColBERTConfig{
				URL:       "http://localhost:8894",
				DocMaxLen: 300,
				NBits:     2,
				Timeout:   6 * time.Hour,
			},
			Bleve: BleveConfig{BatchSize: 1000, Analyzer: "standard"},
		},
		Build:  BuildConfig{LockPolicy: "block", LockWait: 10 * time.Minute},
		Search: SearchConfig{DefaultK: 10, MaxK: 100, CacheSize: 10000},
		Lock: LockConfig{
			Backend:   "none",
			KeyPrefix: "retriever:lock:",
			TTL:       2 * time.Minute,
			Dir:       "/app/experiments",
		},
		Store: StoreConfig{Backend: "memory", Migrate: true},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env, then CONFIG_FILE if set, then environment overrides, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays YAML onto cfg; keys missing from the file keep their current value
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	c.Paths.DocumentsDir = getEnv("DOCUMENTS_DIR", c.Paths.DocumentsDir)
	c.Paths.ExperimentsDir = getEnv("EXPERIMENTS_DIR", c.Paths.ExperimentsDir)
	c.Paths.CheckpointDir = getEnv("CHECKPOINT_DIR", c.Paths.CheckpointDir)
	c.Paths.IndexName = getEnv("INDEX_NAME", c.Paths.IndexName)

	c.Engine.Backend = getEnv("ENGINE_BACKEND", c.Engine.Backend)
	c.Engine.ColBERT.URL = getEnv("COLBERT_URL", c.Engine.ColBERT.URL)
	c.Engine.ColBERT.DocMaxLen = getEnvInt("COLBERT_DOC_MAXLEN", c.Engine.ColBERT.DocMaxLen)
	c.Engine.ColBERT.NBits = getEnvInt("COLBERT_NBITS", c.Engine.ColBERT.NBits)

	c.Build.LockPolicy = getEnv("BUILD_LOCK_POLICY", c.Build.LockPolicy)
	c.Build.LockWait = getEnvDuration("BUILD_LOCK_WAIT", c.Build.LockWait)

	c.Search.DefaultK = getEnvInt("SEARCH_DEFAULT_K", c.Search.DefaultK)
	c.Search.MaxK = getEnvInt("SEARCH_MAX_K", c.Search.MaxK)
	c.Search.CacheSize = getEnvInt("SEARCH_CACHE_SIZE", c.Search.CacheSize)

	c.Lock.Backend = getEnv("LOCK_BACKEND", c.Lock.Backend)
	c.Lock.RedisURL = getEnv("REDIS_URL", c.Lock.RedisURL)
	c.Lock.TTL = getEnvDuration("LOCK_TTL", c.Lock.TTL)
	c.Lock.Dir = getEnv("LOCK_DIR", c.Lock.Dir)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.DatabaseURL = getEnv("DATABASE_URL", c.Store.DatabaseURL)
	c.Store.Migrate = getEnvBool("DATABASE_MIGRATE", c.Store.Migrate)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate rejects settings the process cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Paths.DocumentsDir == "" || c.Paths.ExperimentsDir == "" {
		errs = append(errs, errors.New("paths.documents_dir and paths.experiments_dir are required"))
	}

	switch c.Engine.Backend {
	case "bleve":
	case "colbert":
		if c.Engine.ColBERT.URL == "" {
			errs = append(errs, errors.New("engine.colbert.url is required for the colbert backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown engine.backend %q", c.Engine.Backend))
	}

	switch c.Build.LockPolicy {
	case "block", "fail":
	default:
		errs = append(errs, fmt.Errorf("unknown build.lock_policy %q", c.Build.LockPolicy))
	}

	if c.Search.MaxK <= 0 {
		errs = append(errs, errors.New("search.max_k must be positive"))
	}
	if c.Search.DefaultK <= 0 || c.Search.DefaultK > c.Search.MaxK {
		errs = append(errs, fmt.Errorf("search.default_k %d must be in 1..%d", c.Search.DefaultK, c.Search.MaxK))
	}

	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	switch c.Lock.Backend {
	case "none":
	case "redis":
		if c.Lock.RedisURL == "" {
			errs = append(errs, errors.New("lock.redis_url is required for the redis lock"))
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres lock"))
		}
	case "file":
		if c.Lock.Dir == "" {
			errs = append(errs, errors.New("lock.dir is required for the file lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock.backend %q", c.Lock.Backend))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// AuthEnabled reports whether the lifecycle endpoints require a token
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
