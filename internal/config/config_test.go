package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("sqlquorum-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Database.DataDir != "data" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
	if cfg.Database.SchemaCacheTTL != 0 {
		t.Fatalf("SchemaCacheTTL = %s, want disabled", cfg.Database.SchemaCacheTTL)
	}
	if cfg.AI.SelectorTemperature != 0 || cfg.AI.GeneratorTemperature != 0.6 {
		t.Fatalf("AI temperatures = %v/%v", cfg.AI.SelectorTemperature, cfg.AI.GeneratorTemperature)
	}
	if cfg.AI.MaxAttempts != 3 || cfg.AI.RetryBackoff != time.Second {
		t.Fatalf("AI retry = %d/%s", cfg.AI.MaxAttempts, cfg.AI.RetryBackoff)
	}
	if cfg.Generator.Candidates != 3 || cfg.Generator.MaxSteps != 10 {
		t.Fatalf("Generator = %+v", cfg.Generator)
	}
	if cfg.Refiner.RowLimit != 50 || cfg.Refiner.CompareRows != 3 {
		t.Fatalf("Refiner = %+v", cfg.Refiner)
	}
	if cfg.Describe.Source != "dir" || cfg.Describe.PreferExact {
		t.Fatalf("Describe = %+v", cfg.Describe)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("sqlquorum-api", mapLookup(map[string]string{"SQLQUORUM_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.Database.SchemaCacheTTL != 10*time.Minute {
		t.Fatalf("SchemaCacheTTL = %s", cfg.Database.SchemaCacheTTL)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLQUORUM_PROFILE":                  "test",
		"SQLQUORUM_SERVICE_NAME":             "sqlquorum-custom",
		"SQLQUORUM_HTTP_ADDR":                ":9999",
		"SQLQUORUM_HTTP_READ_TIMEOUT":        "2s",
		"SQLQUORUM_LOG_LEVEL":                "error",
		"SQLQUORUM_DB_DRIVER":                "pgx",
		"SQLQUORUM_DB_DSN_TEMPLATE":          "postgres://localhost/{db}",
		"SQLQUORUM_DB_MAX_OPEN_CONNS":        "9",
		"SQLQUORUM_SCHEMA_CACHE_TTL":         "90s",
		"SQLQUORUM_DESCRIBE_SOURCE":          "s3",
		"SQLQUORUM_DESCRIBE_PREFER_EXACT":    "true",
		"SQLQUORUM_OBJECTSTORE_BUCKET":       "descriptions",
		"SQLQUORUM_OBJECTSTORE_PREFIX":       "bird",
		"SQLQUORUM_AI_BASE_URL":              "https://api.example.com",
		"SQLQUORUM_AI_API_KEY":               "secret-key",
		"SQLQUORUM_AI_MODEL":                 "gpt-test",
		"SQLQUORUM_AI_GENERATOR_TEMPERATURE": "0.9",
		"SQLQUORUM_AI_MAX_ATTEMPTS":          "5",
		"SQLQUORUM_AI_RETRY_BACKOFF":         "250ms",
		"SQLQUORUM_AI_MAX_TOKENS":            "800",
		"SQLQUORUM_AI_JSON_MODE":             "true",
		"SQLQUORUM_GENERATOR_CANDIDATES":     "5",
		"SQLQUORUM_GENERATOR_MAX_STEPS":      "4",
		"SQLQUORUM_REFINER_ROW_LIMIT":        "20",
		"SQLQUORUM_REFINER_EXEC_TIMEOUT":     "3s",
	})
	cfg, err := Load("sqlquorum-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "sqlquorum-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.Driver != "pgx" || cfg.Database.DSNTemplate != "postgres://localhost/{db}" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
	if cfg.Database.MaxOpenConns != 9 || cfg.Database.SchemaCacheTTL != 90*time.Second {
		t.Fatalf("Database pool = %+v", cfg.Database)
	}
	if cfg.Describe.Source != "s3" || !cfg.Describe.PreferExact {
		t.Fatalf("Describe = %+v", cfg.Describe)
	}
	if cfg.ObjectStore.Bucket != "descriptions" || cfg.ObjectStore.Prefix != "bird" {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.AI.BaseURL != "https://api.example.com" || cfg.AI.APIKey != "secret-key" || cfg.AI.Model != "gpt-test" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.GeneratorTemperature != 0.9 || cfg.AI.MaxAttempts != 5 || cfg.AI.RetryBackoff != 250*time.Millisecond {
		t.Fatalf("AI tuning = %+v", cfg.AI)
	}
	if cfg.AI.MaxTokens != 800 || !cfg.AI.JSONMode {
		t.Fatalf("AI request options = %+v", cfg.AI)
	}
	if cfg.Generator.Candidates != 5 || cfg.Generator.MaxSteps != 4 {
		t.Fatalf("Generator = %+v", cfg.Generator)
	}
	if cfg.Refiner.RowLimit != 20 || cfg.Refiner.ExecTimeout != 3*time.Second {
		t.Fatalf("Refiner = %+v", cfg.Refiner)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLQUORUM_PROFILE": "oops"},
		{"SQLQUORUM_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLQUORUM_DB_MAX_OPEN_CONNS": "oops"},
		{"SQLQUORUM_DB_DRIVER": "oracle"},
		{"SQLQUORUM_DB_DRIVER": "pgx"},
		{"SQLQUORUM_DB_DATA_DIR": ""},
		{"SQLQUORUM_DESCRIBE_SOURCE": "ftp"},
		{"SQLQUORUM_DESCRIBE_SOURCE": "s3", "SQLQUORUM_OBJECTSTORE_BUCKET": ""},
		{"SQLQUORUM_AI_GENERATOR_TEMPERATURE": "bad"},
		{"SQLQUORUM_AI_MAX_ATTEMPTS": "0"},
		{"SQLQUORUM_AI_MAX_TOKENS": "-1"},
		{"SQLQUORUM_GENERATOR_CANDIDATES": "0"},
		{"SQLQUORUM_REFINER_COMPARE_ROWS": "0"},
		{"SQLQUORUM_LOG_JSON": "not-bool"},
		{"SQLQUORUM_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("sqlquorum-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadFromEnvFileMergesFileWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "SQLQUORUM_AI_MODEL=gpt-from-file\nSQLQUORUM_GENERATOR_CANDIDATES=7\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("SQLQUORUM_ENV_FILE", path)
	t.Setenv("SQLQUORUM_GENERATOR_CANDIDATES", "4")
	t.Cleanup(func() { _ = os.Unsetenv("SQLQUORUM_AI_MODEL") })

	cfg, err := LoadFromEnvFile("sqlquorum-api")
	if err != nil {
		t.Fatalf("LoadFromEnvFile() error = %v", err)
	}
	if cfg.AI.Model != "gpt-from-file" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.Generator.Candidates != 4 {
		t.Fatalf("Generator.Candidates = %d, want environment value", cfg.Generator.Candidates)
	}
}

func TestLoadFromEnvFileIgnoresMissingFile(t *testing.T) {
	t.Setenv("SQLQUORUM_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	if _, err := LoadFromEnvFile("sqlquorum-api"); err != nil {
		t.Fatalf("LoadFromEnvFile() error = %v", err)
	}
}
