// Package app constructs and runs the ingestion engine: database, cache,
// chunk store, repositories, upload service, and the cleanup scheduler.
// Every dependency is built here and passed down explicitly; nothing in
// the engine reaches for ambient global state.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/clipvault/clipvault/internal/assembler"
	"github.com/clipvault/clipvault/internal/cache"
	"github.com/clipvault/clipvault/internal/chunkstore"
	"github.com/clipvault/clipvault/internal/cleanup"
	"github.com/clipvault/clipvault/internal/config"
	"github.com/clipvault/clipvault/internal/logging"
	"github.com/clipvault/clipvault/internal/repositories/repomanager"
	"github.com/clipvault/clipvault/internal/services"
)

type App struct {
	cfg    *config.Config
	logger logging.Logger

	db    *sql.DB
	redis *redis.Client

	Uploads   *services.UploadService
	scheduler *cleanup.Scheduler
}

// NewApp wires the engine together and runs migrations. The returned App
// owns the database and cache connections; Close releases them.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout)

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := newChunkStore(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var rdb *redis.Client
	var sessionCache cache.SessionCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		sessionCache = cache.NewRedisCache(rdb, cfg.CacheTTL, logger)
	}

	engine := assembler.New(store, cfg.StorageBasePath, logger)

	uploads := services.NewUploadService(db, repos, store, sessionCache, engine, logger)
	uploads.ExpireAfter = cfg.SessionExpireAfter

	scheduler := cleanup.NewScheduler(db, repos, store, sessionCache, cfg.StorageBasePath, logger)
	scheduler.Interval = cfg.CleanupInterval

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		redis:     rdb,
		Uploads:   uploads,
		scheduler: scheduler,
	}, nil
}

func newChunkStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (chunkstore.Store, error) {
	switch cfg.ChunkBackend {
	case config.BackendS3:
		return chunkstore.NewS3Store(ctx, chunkstore.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		}, logger)
	case config.BackendLocal, "":
		return chunkstore.NewLocalStore(cfg.StorageBasePath, logger), nil
	default:
		return nil, fmt.Errorf("unknown chunk backend %q", cfg.ChunkBackend)
	}
}

// Run starts the cleanup scheduler and blocks until a termination signal
// or context cancellation.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.initSignalHandler(cancel)

	a.logger.Info(ctx, "engine started",
		"storage", a.cfg.StorageBasePath, "chunk_backend", a.cfg.ChunkBackend,
		"cache_enabled", a.redis != nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()
	wg.Wait()
}

func (a *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error(context.Background(), "redis close error", "error", err)
		}
	}
	return a.db.Close()
}
