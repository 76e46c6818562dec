package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chepyr/quicktask/internal/auth"
	"github.com/chepyr/quicktask/internal/cache"
	"github.com/chepyr/quicktask/internal/config"
	"github.com/chepyr/quicktask/internal/db"
	"github.com/chepyr/quicktask/internal/handlers"
	"github.com/chepyr/quicktask/internal/tasks"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const dashboardCachePrefix = "quicktask:"

type store struct {
	tasks db.TaskRepositoryInterface
	users db.UserRepositoryInterface
	close func(ctx context.Context) error
}

// openStore connects to the configured backend and brings its schema up to
// date.
func openStore(ctx context.Context, cfg config.StoreConfig) (*store, error) {
	switch cfg.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		dsn := cfg.Postgres.DSN()
		if cfg.Driver == config.DriverSQLite {
			dsn = "file:" + cfg.SQLitePath + "?_busy_timeout=5000"
		}
		dbConn, err := db.Connect(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
		}
		if err := db.Migrate(ctx, dbConn, cfg.Driver); err != nil {
			dbConn.Close()
			return nil, err
		}
		return &store{
			tasks: db.NewTaskRepository(dbConn),
			users: db.NewUserRepository(dbConn),
			close: func(context.Context) error { return dbConn.Close() },
		}, nil

	case config.DriverMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &store{
			tasks: db.NewMongoTaskRepository(database),
			users: db.NewMongoUserRepository(database),
			close: client.Disconnect,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

type app struct {
	router  http.Handler
	handler *handlers.Handler
	store   *store
	cache   *cache.Cache
	logger  *slog.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	opts := []tasks.Option{tasks.WithLogger(logger)}
	var dashCache *cache.Cache
	if cfg.Cache.RedisAddr != "" {
		dashCache, err = cache.Connect(ctx, cfg.Cache.RedisAddr, dashboardCachePrefix, cfg.Cache.TTL)
		if err != nil {
			_ = st.close(ctx)
			return nil, err
		}
		opts = append(opts, tasks.WithCache(dashCache))
		logger.Info("dashboard cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	h := &handlers.Handler{
		Tasks:          tasks.NewService(st.tasks, opts...),
		UserRepo:       st.users,
		Tokens:         auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL),
		Passwords:      auth.NewPasswordHasher(),
		RateLimiter:    handlers.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateLimitWindow),
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	return &app{
		router:  h.NewRouter(),
		handler: h,
		store:   st,
		cache:   dashCache,
		logger:  logger,
	}, nil
}

// Close releases the rate limiter, the store and the cache, in that order.
func (a *app) Close(ctx context.Context) error {
	a.handler.RateLimiter.Close()
	var firstErr error
	if err := a.store.close(ctx); err != nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close cache: %w", err)
		}
	}
	return firstErr
}
