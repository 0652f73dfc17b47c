package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	envPrefix      = "SQLQUORUM_"
	defaultEnvFile = ".env"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Describe      DescribeConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Generator     GeneratorConfig
	Refiner       RefinerConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
	// EnvFile is loaded by the binaries before the environment is read.
	EnvFile string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig describes how target databases are located and pooled.
// DSNTemplate is only used by the pgx driver; "{db}" is replaced by the db id.
type DatabaseConfig struct {
	Driver          string
	DataDir         string
	DSNTemplate     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	SchemaCacheTTL  time.Duration
}

type DescribeConfig struct {
	// Source is one of dir, s3 or none.
	Source      string
	Dir         string
	PreferExact bool
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type AIConfig struct {
	BaseURL              string
	APIKey               string
	Model                string
	SelectorTemperature  float64
	GeneratorTemperature float64
	Timeout              time.Duration
	MaxAttempts          int
	RetryBackoff         time.Duration
	// MaxTokens bounds each completion; zero leaves it to the provider.
	MaxTokens int
	// JSONMode sends response_format json_object with structured requests.
	JSONMode bool
}

type GeneratorConfig struct {
	Candidates  int
	MaxSteps    int
	Concurrency int
}

type RefinerConfig struct {
	RowLimit    int
	CompareRows int
	ExecTimeout time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

// LoadFromEnvFile merges the env file named by SQLQUORUM_ENV_FILE (default
// .env) into the process environment and then loads the config. Variables
// already set win over the file; a missing file is ignored.
func LoadFromEnvFile(serviceName string) (Config, error) {
	path := defaultEnvFile
	if raw, ok := os.LookupEnv(envPrefix + "ENV_FILE"); ok && strings.TrimSpace(raw) != "" {
		path = strings.TrimSpace(raw)
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %q: %w", path, err)
	}
	return LoadFromEnv(serviceName)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup(envPrefix + "PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid %sPROFILE: %q", envPrefix, profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	l := loader{lookup: lookup}
	l.str("SERVICE_NAME", &cfg.Service.Name)
	l.str("ENV_FILE", &cfg.Service.EnvFile)

	l.str("HTTP_ADDR", &cfg.HTTP.Address)
	l.duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	l.duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	l.duration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout)

	l.str("DB_DRIVER", &cfg.Database.Driver)
	l.str("DB_DATA_DIR", &cfg.Database.DataDir)
	l.str("DB_DSN_TEMPLATE", &cfg.Database.DSNTemplate)
	l.integer("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	l.integer("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	l.duration("DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
	l.duration("DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
	l.duration("SCHEMA_CACHE_TTL", &cfg.Database.SchemaCacheTTL)

	l.str("DESCRIBE_SOURCE", &cfg.Describe.Source)
	l.str("DESCRIBE_DIR", &cfg.Describe.Dir)
	l.boolean("DESCRIBE_PREFER_EXACT", &cfg.Describe.PreferExact)

	l.str("OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint)
	l.str("OBJECTSTORE_REGION", &cfg.ObjectStore.Region)
	l.str("OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket)
	l.str("OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
	l.str("OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
	l.boolean("OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL)
	l.str("OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix)

	l.str("AI_BASE_URL", &cfg.AI.BaseURL)
	l.str("AI_API_KEY", &cfg.AI.APIKey)
	l.str("AI_MODEL", &cfg.AI.Model)
	l.float("AI_SELECTOR_TEMPERATURE", &cfg.AI.SelectorTemperature)
	l.float("AI_GENERATOR_TEMPERATURE", &cfg.AI.GeneratorTemperature)
	l.duration("AI_TIMEOUT", &cfg.AI.Timeout)
	l.integer("AI_MAX_ATTEMPTS", &cfg.AI.MaxAttempts)
	l.duration("AI_RETRY_BACKOFF", &cfg.AI.RetryBackoff)
	l.integer("AI_MAX_TOKENS", &cfg.AI.MaxTokens)
	l.boolean("AI_JSON_MODE", &cfg.AI.JSONMode)

	l.integer("GENERATOR_CANDIDATES", &cfg.Generator.Candidates)
	l.integer("GENERATOR_MAX_STEPS", &cfg.Generator.MaxSteps)
	l.integer("GENERATOR_CONCURRENCY", &cfg.Generator.Concurrency)

	l.integer("REFINER_ROW_LIMIT", &cfg.Refiner.RowLimit)
	l.integer("REFINER_COMPARE_ROWS", &cfg.Refiner.CompareRows)
	l.duration("REFINER_EXEC_TIMEOUT", &cfg.Refiner.ExecTimeout)

	l.boolean("LOG_JSON", &cfg.Observability.LogJSON)
	l.logLevel("LOG_LEVEL", &cfg.Observability.LogLevel)

	if l.err != nil {
		return Config{}, l.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.Database.Driver {
	case "sqlite3", "duckdb":
		if c.Database.DataDir == "" {
			return fmt.Errorf("database data dir is required for driver %q", c.Database.Driver)
		}
	case "pgx":
		if !strings.Contains(c.Database.DSNTemplate, "{db}") {
			return fmt.Errorf("database dsn template must contain {db} for driver pgx")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Describe.Source {
	case "dir", "none":
	case "s3":
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("object store bucket is required for describe source s3")
		}
	default:
		return fmt.Errorf("unsupported describe source %q", c.Describe.Source)
	}
	if c.AI.MaxAttempts < 1 {
		return fmt.Errorf("ai max attempts must be >= 1")
	}
	if c.AI.MaxTokens < 0 {
		return fmt.Errorf("ai max tokens must be >= 0")
	}
	if c.Generator.Candidates < 1 || c.Generator.MaxSteps < 1 {
		return fmt.Errorf("generator candidates and max steps must be >= 1")
	}
	if c.Refiner.RowLimit < 1 || c.Refiner.CompareRows < 1 {
		return fmt.Errorf("refiner row limit and compare rows must be >= 1")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlquorum-api", EnvFile: defaultEnvFile},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DataDir:         "data",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Describe: DescribeConfig{
			Source: "dir",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "sqlquorum",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
		},
		AI: AIConfig{
			BaseURL:              "https://api.openai.com",
			Model:                "gpt-4o",
			SelectorTemperature:  0,
			GeneratorTemperature: 0.6,
			Timeout:              60 * time.Second,
			MaxAttempts:          3,
			RetryBackoff:         time.Second,
		},
		Generator: GeneratorConfig{
			Candidates:  3,
			MaxSteps:    10,
			Concurrency: 3,
		},
		Refiner: RefinerConfig{
			RowLimit:    50,
			CompareRows: 3,
			ExecTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.AI.RetryBackoff = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
		cfg.Database.SchemaCacheTTL = 10 * time.Minute
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

// loader applies prefixed environment overrides and keeps the first error.
type loader struct {
	lookup LookupFunc
	err    error
}

func (l *loader) raw(key string) (string, string, bool) {
	if l.err != nil {
		return "", "", false
	}
	name := envPrefix + key
	value, ok := l.lookup(name)
	return name, strings.TrimSpace(value), ok
}

func (l *loader) str(key string, dst *string) {
	if _, value, ok := l.raw(key); ok {
		*dst = value
	}
}

func (l *loader) duration(key string, dst *time.Duration) {
	name, value, ok := l.raw(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		l.err = fmt.Errorf("invalid %s: %w", name, err)
		return
	}
	*dst = parsed
}

func (l *loader) boolean(key string, dst *bool) {
	name, value, ok := l.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		l.err = fmt.Errorf("invalid %s: %w", name, err)
		return
	}
	*dst = parsed
}

func (l *loader) integer(key string, dst *int) {
	name, value, ok := l.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		l.err = fmt.Errorf("invalid %s: %w", name, err)
		return
	}
	*dst = parsed
}

func (l *loader) float(key string, dst *float64) {
	name, value, ok := l.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		l.err = fmt.Errorf("invalid %s: %w", name, err)
		return
	}
	*dst = parsed
}

func (l *loader) logLevel(key string, dst *slog.Level) {
	name, value, ok := l.raw(key)
	if !ok {
		return
	}
	switch strings.ToLower(value) {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		l.err = fmt.Errorf("invalid %s: %q", name, value)
	}
}
