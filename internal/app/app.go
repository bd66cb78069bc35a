// Package app wires configuration into a running assistant: storage
// backends, gateways, locks and the background job queue.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/backup"
	"github.com/dvloznov/finance-assistant/internal/classifier"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/gateway"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/prompt"
	"github.com/dvloznov/finance-assistant/internal/userlock"
	"github.com/dvloznov/finance-assistant/internal/vectorindex"
)

const (
	// gatewayBackoff is the base delay between gateway retries.
	gatewayBackoff = 500 * time.Millisecond
	// jobPollInterval is how often WaitForJobs checks the job store.
	jobPollInterval = 50 * time.Millisecond
)

// App holds every long-lived component of the process.
type App struct {
	Service  *assistant.Service
	Ledger   ledger.Log
	Index    *vectorindex.Manager
	Locker   userlock.Locker
	JobStore *inmemory.Store
	Queue    *inmemory.Queue
	// Backup is nil unless BACKUP_BUCKET is set.
	Backup *backup.Manager

	log          zerolog.Logger
	closers      []func() error
	gatewayCalls time.Duration
}

// Build constructs the App described by cfg. Close must be called to
// release clients.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Locker, err = a.buildLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.Ledger, err = a.buildLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gemini, err := gateway.NewGemini(ctx, gateway.GeminiConfig{
		APIKey:     cfg.Gateway.APIKey,
		UseVertex:  cfg.Gateway.UseVertex,
		EmbedModel: cfg.Gateway.EmbedModel,
		ChatModel:  cfg.Gateway.ChatModel,
		Timeout:    cfg.Gateway.Timeout,
	}, log)
	if err != nil {
		return nil, err
	}
	policy := gateway.RetryPolicy{Retries: cfg.Gateway.Retries, Backoff: gatewayBackoff}
	a.gatewayCalls = policy.MaxDuration(cfg.Gateway.Timeout)
	embedder := gateway.WithEmbedRetry(gemini, policy, log)
	generator := gateway.WithGenerateRetry(gemini, policy, log)

	a.Index = vectorindex.NewManager(cfg.Storage.DataDir, embedder, a.Locker, log,
		vectorindex.WithModel(cfg.Gateway.EmbedModel))

	var cls classifier.Classifier = classifier.KeywordClassifier{}
	if cfg.Classifier.Mode == "model" {
		cls = classifier.NewModelClassifier(generator, classifier.KeywordClassifier{}, log)
	}

	a.JobStore = inmemory.NewStore()
	a.Queue = inmemory.NewQueue(inmemory.Config{
		BufferSize: cfg.Jobs.Buffer,
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
	}, a.JobStore, log)

	a.Service = assistant.New(assistant.Deps{
		Ledger:     a.Ledger,
		Index:      a.Index,
		Classifier: cls,
		Generator:  generator,
		Assembler:  prompt.NewAssembler(cfg.Context.MaxHistory, cfg.Context.MaxDocuments),
		Publisher:  a.Queue,
	}, log)

	if cfg.Backup.Bucket != "" {
		if a.Backup, err = a.buildBackup(ctx, cfg); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("ledger", cfg.Ledger.Backend).
		Str("lock", cfg.Lock.Backend).
		Str("classifier", cfg.Classifier.Mode).
		Str("data_dir", cfg.Storage.DataDir).
		Bool("backup", a.Backup != nil).
		Msg("Assistant initialized")
	return a, nil
}

func (a *App) buildLocker(ctx context.Context, cfg *config.Config) (userlock.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return userlock.NewLocal(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return userlock.NewRedis(client, cfg.Lock.TTL, a.log), nil
}

func (a *App) buildLedger(ctx context.Context, cfg *config.Config) (ledger.Log, error) {
	if cfg.Ledger.Backend != "bigquery" {
		return ledger.NewFileLog(cfg.Storage.DataDir, a.log), nil
	}

	client, err := bigquery.NewClient(ctx, cfg.Ledger.BigQueryProject)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	l := ledger.NewBigQueryLogWithClient(client, cfg.Ledger.BigQueryProject, cfg.Ledger.BigQueryDataset, cfg.Ledger.BigQueryTable)
	if err := l.EnsureTable(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (a *App) buildBackup(ctx context.Context, cfg *config.Config) (*backup.Manager, error) {
	bucket, prefix, err := backup.ParseLocation(cfg.Backup.Bucket)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return backup.NewManager(cfg.Storage.DataDir, prefix, backup.NewGCSStore(client, bucket), a.Locker, a.log), nil
}

// QueryTimeout bounds how long answering one question can take: a
// classification call and a generation call, each with its retries.
func (a *App) QueryTimeout() time.Duration {
	return 2 * a.gatewayCalls
}

// StartWorkers starts the background re-index workers.
func (a *App) StartWorkers(ctx context.Context) error {
	return a.Queue.Start(ctx, assistant.NewReindexHandler(a.Index, a.Ledger, a.log))
}

// WaitForJobs polls the job store until every job in ids has completed or
// failed, and returns their last known state. When ctx ends first the
// unfinished jobs are returned as they were, together with ctx's error.
func (a *App) WaitForJobs(ctx context.Context, ids ...string) ([]*jobs.IndexJob, error) {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		out := make([]*jobs.IndexJob, 0, len(ids))
		done := true
		for _, id := range ids {
			job, err := a.JobStore.GetJob(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, job)
			done = done && job.Status.Done()
		}
		if done {
			return out, nil
		}

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops the job queue and releases every client.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop job queue: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
