// Package config loads process configuration from an optional .env file
// and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Ledger     LedgerConfig
	Gateway    GatewayConfig
	Classifier ClassifierConfig
	Context    ContextConfig
	Lock       LockConfig
	Redis      RedisConfig
	Jobs       JobsConfig
	Backup     BackupConfig
	CORS       CORSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig locates the per-user directories.
type StorageConfig struct {
	DataDir string
}

type LedgerConfig struct {
	Backend         string // "file" or "bigquery"
	BigQueryProject string
	BigQueryDataset string
	BigQueryTable   string
}

type GatewayConfig struct {
	APIKey     string
	UseVertex  bool
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
	Retries    int
}

type ClassifierConfig struct {
	Mode string // "model" or "keyword"
}

type ContextConfig struct {
	MaxHistory   int
	MaxDocuments int
}

type LockConfig struct {
	Backend string // "local" or "redis"
	TTL     time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JobsConfig struct {
	Workers    int
	Buffer     int
	MaxRetries int
}

type BackupConfig struct {
	Bucket string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (if present) and then the environment, which wins.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Missing .env is fine.
	_ = k.Load(file.Provider(path), dotenv.ParserEnv("", ".", envKey))

	err := k.Load(env.Provider("", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Storage: StorageConfig{
			DataDir: k.String("data.dir"),
		},
		Ledger: LedgerConfig{
			Backend:         strings.ToLower(k.String("ledger.backend")),
			BigQueryProject: k.String("bigquery.project"),
			BigQueryDataset: k.String("bigquery.dataset"),
			BigQueryTable:   k.String("bigquery.table"),
		},
		Gateway: GatewayConfig{
			APIKey:     k.String("google.api.key"),
			UseVertex:  k.Bool("google.genai.use.vertexai"),
			EmbedModel: k.String("gemini.embed.model"),
			ChatModel:  k.String("gemini.chat.model"),
			Retries:    k.Int("gateway.retries"),
		},
		Classifier: ClassifierConfig{
			Mode: strings.ToLower(k.String("classifier.mode")),
		},
		Context: ContextConfig{
			MaxHistory:   k.Int("context.max.history"),
			MaxDocuments: k.Int("context.max.documents"),
		},
		Lock: LockConfig{
			Backend: strings.ToLower(k.String("lock.backend")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Jobs: JobsConfig{
			Workers:    k.Int("jobs.workers"),
			Buffer:     k.Int("jobs.buffer"),
			MaxRetries: k.Int("jobs.max.retries"),
		},
		Backup: BackupConfig{
			Bucket: k.String("backup.bucket"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./store"
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = "file"
	}
	if cfg.Ledger.BigQueryDataset == "" {
		cfg.Ledger.BigQueryDataset = "finance_assistant"
	}
	if cfg.Ledger.BigQueryTable == "" {
		cfg.Ledger.BigQueryTable = "transactions"
	}
	if cfg.Gateway.EmbedModel == "" {
		cfg.Gateway.EmbedModel = "text-embedding-004"
	}
	if cfg.Gateway.ChatModel == "" {
		cfg.Gateway.ChatModel = "gemini-2.5-flash"
	}
	if !k.Exists("gateway.retries") {
		cfg.Gateway.Retries = 2
	}
	if cfg.Classifier.Mode == "" {
		cfg.Classifier.Mode = "model"
	}
	if !k.Exists("context.max.history") {
		cfg.Context.MaxHistory = 20
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "local"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 2
	}
	if cfg.Jobs.Buffer == 0 {
		cfg.Jobs.Buffer = 100
	}
	if !k.Exists("jobs.max.retries") {
		cfg.Jobs.MaxRetries = 3
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	var err error
	if cfg.Gateway.Timeout, err = duration(k, "gateway.timeout", "30s"); err != nil {
		return nil, err
	}
	if cfg.Lock.TTL, err = duration(k, "lock.ttl", "30s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps SERVER_PORT to server.port.
// knownKeys are the settings read from .env and the environment. Other
// variables are dropped; a bare SERVER or GATEWAY would otherwise clash
// with server.port or gateway.timeout.
var knownKeys = map[string]bool{
	"server.host":               true,
	"server.port":               true,
	"data.dir":                  true,
	"ledger.backend":            true,
	"bigquery.project":          true,
	"bigquery.dataset":          true,
	"bigquery.table":            true,
	"google.api.key":            true,
	"google.genai.use.vertexai": true,
	"gemini.embed.model":        true,
	"gemini.chat.model":         true,
	"gateway.timeout":           true,
	"gateway.retries":           true,
	"classifier.mode":           true,
	"context.max.history":       true,
	"context.max.documents":     true,
	"lock.backend":              true,
	"lock.ttl":                  true,
	"redis.host":                true,
	"redis.port":                true,
	"redis.password":            true,
	"redis.db":                  true,
	"jobs.workers":              true,
	"jobs.buffer":               true,
	"jobs.max.retries":          true,
	"backup.bucket":             true,
	"cors.allowed.origins":      true,
	"log.level":                 true,
	"log.format":                true,
}

// envKey maps SERVER_PORT to server.port, and anything unknown to "",
// which the env provider skips.
func envKey(s string) string {
	key := strings.ToLower(strings.ReplaceAll(s, "_", "."))
	if !knownKeys[key] {
		return ""
	}
	return key
}

func duration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
