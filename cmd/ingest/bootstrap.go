package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/bryanwahyu/automaton-ingest/internal/application"
	appai "github.com/bryanwahyu/automaton-ingest/internal/application/ai"
	"github.com/bryanwahyu/automaton-ingest/internal/application/analysis"
	"github.com/bryanwahyu/automaton-ingest/internal/application/ingest"
	"github.com/bryanwahyu/automaton-ingest/internal/application/pipeline"
	"github.com/bryanwahyu/automaton-ingest/internal/application/replication"
	"github.com/bryanwahyu/automaton-ingest/internal/config"
	domai "github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
	"github.com/bryanwahyu/automaton-ingest/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-ingest/internal/infra/analytics"
	mysqlp "github.com/bryanwahyu/automaton-ingest/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/automaton-ingest/internal/infra/db/postgres"
	sqlitep "github.com/bryanwahyu/automaton-ingest/internal/infra/db/sqlite"
	dockerrunner "github.com/bryanwahyu/automaton-ingest/internal/infra/executor/docker"
	"github.com/bryanwahyu/automaton-ingest/internal/infra/queue"
	minioStore "github.com/bryanwahyu/automaton-ingest/internal/infra/storage"
	"github.com/bryanwahyu/automaton-ingest/internal/middleware"
)

// app holds the loaded config and every handle opened by a command, so they
// can be closed in reverse order on exit.
type app struct {
	configPath *string

	cfg      *config.Config
	logger   *slog.Logger
	closers  []func() error
	checkers map[string]middleware.HealthChecker
}

func (a *app) load() error {
	cfg, err := config.Load(resolveConfigPath(*a.configPath))
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	a.cfg = cfg
	a.logger = config.SetupLogger(cfg)
	a.checkers = map[string]middleware.HealthChecker{}
	return nil
}

func (a *app) track(closer func() error) {
	a.closers = append(a.closers, closer)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) retryPolicy() application.RetryPolicy {
	return application.RetryPolicy{
		Attempts: a.cfg.Pipeline.UploadAttempts,
		Backoff:  a.cfg.Pipeline.UploadBackoff,
	}
}

// openRepo connects the item store for the configured driver.
func (a *app) openRepo(ctx context.Context) (items.Repository, error) {
	cfg := a.cfg
	var (
		db   *sql.DB
		err  error
		repo items.Repository
	)

	switch cfg.Database.Driver {
	case "mysql":
		if db, err = mysqlp.Connect(ctx, cfg.MySQLDSN()); err != nil {
			return nil, fmt.Errorf("mysql connect error: %w", err)
		}
		if cfg.Database.Migrate {
			if err := mysqlp.Migrate(cfg.MySQLDSN()); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("mysql migrate: %w", err)
			}
		}
		repo = mysqlp.NewItemRepository(db)
	case "sqlite":
		// schema sqlite selalu dibuat saat Open
		if db, err = sqlitep.Open(ctx, cfg.Database.Path); err != nil {
			return nil, fmt.Errorf("sqlite open error: %w", err)
		}
		repo = sqlitep.NewItemRepository(db)
	default:
		if db, err = pgp.Connect(ctx, cfg.PostgresDSN()); err != nil {
			return nil, fmt.Errorf("postgres connect error: %w", err)
		}
		if cfg.Database.Migrate {
			if err := pgp.Migrate(cfg.PostgresDSN()); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		repo = pgp.NewItemRepository(db)
	}

	a.track(db.Close)
	a.checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	return repo, nil
}

func (a *app) openStore(ctx context.Context) (*minioStore.Store, error) {
	m := a.cfg.Minio
	store, err := minioStore.New(ctx, m.Endpoint, m.Region, m.AccessKey, m.SecretKey, m.UseSSL, m.RawBucket, m.ProcessedBucket)
	if err != nil {
		return nil, fmt.Errorf("minio init error: %w", err)
	}
	a.checkers["minio"] = middleware.CheckFunc(store.Ping)
	return store, nil
}

func (a *app) openQueue(ctx context.Context) (*queue.RedisQueue, error) {
	r := a.cfg.Redis
	client, err := queue.Connect(ctx, r.Addr, r.Password, r.DB)
	if err != nil {
		return nil, fmt.Errorf("redis connect error: %w", err)
	}
	a.track(client.Close)
	q := queue.NewRedisQueue(client, r.QueueKey)
	a.checkers["redis"] = middleware.CheckFunc(q.Ping)
	return q, nil
}

func (a *app) openSink(ctx context.Context) (*analytics.Sink, error) {
	c := a.cfg.ClickHouse
	sink, err := analytics.Open(ctx, analytics.Options{
		Addr:     c.Addr,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		Table:    c.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect error: %w", err)
	}
	a.track(sink.Close)
	a.checkers["clickhouse"] = middleware.CheckFunc(sink.Ping)
	return sink, nil
}

func (a *app) openAI() *openai.Client {
	o := a.cfg.OpenAI
	return openai.NewClient(o.APIKey, o.BaseURL, o.TranscriptionModel, o.ChatModel)
}

// newProducer wires the ingest service used by both upload and serve.
func (a *app) newProducer(ctx context.Context) (*ingest.Service, error) {
	repo, err := a.openRepo(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	q, err := a.openQueue(ctx)
	if err != nil {
		return nil, err
	}
	return &ingest.Service{
		Repo:      repo,
		Blobs:     store,
		Queue:     q,
		Clock:     application.SystemClock{},
		Retry:     a.retryPolicy(),
		RawBucket: a.cfg.Minio.RawBucket,
		Logger:    a.logger.With("component", "producer"),
	}, nil
}

func (a *app) newWorker(ctx context.Context) (*pipeline.Service, error) {
	cfg := a.cfg
	repo, err := a.openRepo(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	q, err := a.openQueue(ctx)
	if err != nil {
		return nil, err
	}

	svc := &pipeline.Service{
		Repo:            repo,
		Blobs:           store,
		Queue:           q,
		Transformer:     pipeline.Passthrough{},
		Retry:           a.retryPolicy(),
		RawBucket:       cfg.Minio.RawBucket,
		ProcessedBucket: cfg.Minio.ProcessedBucket,
		AnalyzeArtifact: cfg.Pipeline.Analyze.Artifact,
		PollInterval:    cfg.Pipeline.PollInterval,
		ErrorPause:      cfg.Pipeline.ErrorPause,
		Logger:          a.logger.With("component", "worker"),
	}

	if cfg.Pipeline.Transform == "separate" {
		sep := cfg.Pipeline.Separator
		svc.Transformer = dockerrunner.NewSeparator(sep.Binary, sep.Image, sep.Stems)
	}

	var client *openai.Client
	if cfg.Pipeline.Analyze.Enabled {
		client = a.openAI()
		svc.Transcriber = client
	}

	if cfg.Pipeline.Derive.Enabled {
		var classifier domai.Classifier
		if cfg.Pipeline.Derive.Classifier == "openai" {
			if client == nil {
				client = a.openAI()
			}
			classifier = appai.NewService(client, analysis.KeywordClassifier{}, a.logger.With("component", "classifier"))
		}
		svc.Deriver = analysis.NewDeriver(cfg.Pipeline.Derive.SummarySentences, classifier)
	}

	return svc, nil
}

func (a *app) newReplicator(ctx context.Context) (*replication.Service, error) {
	cfg := a.cfg
	repo, err := a.openRepo(ctx)
	if err != nil {
		return nil, err
	}
	sink, err := a.openSink(ctx)
	if err != nil {
		return nil, err
	}
	return &replication.Service{
		Source:    repo,
		Sink:      sink,
		Clock:     application.SystemClock{},
		Window:    cfg.Sync.Window,
		BatchSize: cfg.Sync.BatchSize,
		Interval:  cfg.Sync.Interval,
		Logger:    a.logger.With("component", "replicator"),
	}, nil
}
