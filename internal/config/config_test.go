package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage:    StorageConfig{DataDir: "./store"},
		Ledger:     LedgerConfig{Backend: "file"},
		Gateway:    GatewayConfig{APIKey: "key", Timeout: 30 * time.Second, Retries: 2},
		Classifier: ClassifierConfig{Mode: "model"},
		Context:    ContextConfig{MaxHistory: 20},
		Lock:       LockConfig{Backend: "local", TTL: 30 * time.Second},
		Redis:      RedisConfig{Host: "localhost", Port: 6379},
		Jobs:       JobsConfig{Workers: 2, Buffer: 100, MaxRetries: 3},
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "./store" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Gateway.APIKey != "test-key" {
		t.Errorf("api key = %q", cfg.Gateway.APIKey)
	}
	if cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("timeout = %s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.Retries != 2 || cfg.Context.MaxHistory != 20 || cfg.Jobs.MaxRetries != 3 {
		t.Errorf("unexpected numeric defaults: %+v %+v %+v", cfg.Gateway, cfg.Context, cfg.Jobs)
	}
	if cfg.Classifier.Mode != "model" || cfg.Lock.Backend != "local" || cfg.Ledger.Backend != "file" {
		t.Errorf("unexpected mode defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile_DotenvAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "GOOGLE_API_KEY=from-file\nSERVER_PORT=9090\nCLASSIFIER_MODE=keyword\nCONTEXT_MAX_DOCUMENTS=5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("GATEWAY_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Gateway.APIKey != "from-file" {
		t.Errorf("api key = %q, want from-file", cfg.Gateway.APIKey)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Classifier.Mode != "keyword" {
		t.Errorf("mode = %q", cfg.Classifier.Mode)
	}
	if cfg.Context.MaxDocuments != 5 {
		t.Errorf("max documents = %d", cfg.Context.MaxDocuments)
	}
	if cfg.Gateway.Timeout != 5*time.Second {
		t.Errorf("timeout = %s", cfg.Gateway.Timeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadFile_IgnoresUnrelatedEnv(t *testing.T) {
	t.Setenv("GATEWAY", "x")
	t.Setenv("SERVER", "1")
	t.Setenv("SERVER_PORT_EXTRA", "oops")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("timeout = %s, want default 30s", cfg.Gateway.Timeout)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SERVER_PORT":               "server.port",
		"GOOGLE_GENAI_USE_VERTEXAI": "google.genai.use.vertexai",
		"GATEWAY":                   "",
		"PATH":                      "",
		"SERVER_PORT_EXTRA":         "",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadFile_BadDuration(t *testing.T) {
	t.Setenv("LOCK_TTL", "soon")

	_, err := LoadFile(filepath.Join(t.TempDir(), "none"))
	if err == nil || !strings.Contains(err.Error(), "lock.ttl") {
		t.Fatalf("expected lock.ttl parse error, got %v", err)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"api key", func(c *Config) { c.Gateway.APIKey = "" }, "GOOGLE_API_KEY"},
		{"vertex without key", func(c *Config) { c.Gateway.APIKey = ""; c.Gateway.UseVertex = true }, ""},
		{"bigquery project", func(c *Config) { c.Ledger.Backend = "bigquery" }, "BIGQUERY_PROJECT"},
		{"ledger backend", func(c *Config) { c.Ledger.Backend = "postgres" }, "LEDGER_BACKEND"},
		{"classifier", func(c *Config) { c.Classifier.Mode = "magic" }, "CLASSIFIER_MODE"},
		{"lock backend", func(c *Config) { c.Lock.Backend = "etcd" }, "LOCK_BACKEND"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "SERVER_PORT"},
		{"history", func(c *Config) { c.Context.MaxHistory = 0 }, "CONTEXT_MAX_HISTORY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %s error, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.APIKey = ""
	cfg.Jobs.Workers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "GOOGLE_API_KEY") || !strings.Contains(err.Error(), "JOBS_WORKERS") {
		t.Errorf("expected both problems, got: %v", err)
	}
}
