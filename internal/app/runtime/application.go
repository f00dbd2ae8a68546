// Package runtime wires configuration, storage, the broker and the domain
// services into a runnable process for each deployment role: the API server,
// the task worker, and the beat scheduler.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/sudoku-arena/arena-api/internal/app"
	"github.com/sudoku-arena/arena-api/internal/app/cache"
	"github.com/sudoku-arena/arena-api/internal/app/httpapi"
	"github.com/sudoku-arena/arena-api/internal/app/metrics"
	"github.com/sudoku-arena/arena-api/internal/app/queue"
	"github.com/sudoku-arena/arena-api/internal/app/scheduler"
	authsvc "github.com/sudoku-arena/arena-api/internal/app/services/auth"
	"github.com/sudoku-arena/arena-api/internal/app/services/detection"
	"github.com/sudoku-arena/arena-api/internal/app/services/health"
	"github.com/sudoku-arena/arena-api/internal/app/storage/postgres"
	"github.com/sudoku-arena/arena-api/internal/app/worker"
	"github.com/sudoku-arena/arena-api/internal/config"
	"github.com/sudoku-arena/arena-api/internal/middleware"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Role selects which process this runtime hosts.
type Role string

const (
	RoleServer Role = "server"
	RoleWorker Role = "worker"
	RoleBeat   Role = "beat"
)

// Endpoints that bypass JWT authentication entirely.
var publicPaths = []string{
	"/healthz",
	"/metrics",
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/logout",
	"/api/auth/google",
	"/api/auth/token/refresh",
	"/api/auth/token/verify",
}

// Prefixes where anonymous access is allowed but a presented token must be
// valid.
var optionalAuthPrefixes = []string{
	"/api/sudokus",
	"/ws/",
}

// Application is one configured process. Use New to build it and Run to block
// until shutdown.
type Application struct {
	cfg  *config.Config
	log  *logger.Logger
	role Role

	app        *app.Application
	db         *sqlx.DB
	redis      *redis.Client
	httpServer *http.Server
	rlStop     chan struct{}
}

// New loads configuration and wires the dependencies for the given role.
func New(role Role) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Logging)

	db, err := openDatabase(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := postgres.New(db)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	broker := queue.NewRedisBroker(client, log)

	tokens, err := authsvc.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	var google *authsvc.GoogleVerifier
	if cfg.GoogleEnabled() {
		google, err = authsvc.NewGoogleVerifier(cfg.Google.ClientID, cfg.Google.Secret, cfg.Google.RedirectURL, log)
		if err != nil {
			return nil, fmt.Errorf("google verifier: %w", err)
		}
	}

	application, err := app.New(app.Options{
		Stores:    app.Stores{Users: store, Sudokus: store, Games: store, Stats: store},
		Broker:    broker,
		Publisher: broker,
		Cache:     cache.NewRedis(client),
		Tokens:    tokens,
		Google:    google,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}
	application.Health.Register("database", health.PingFunc(db.PingContext))

	rt := &Application{
		cfg:   cfg,
		log:   log.WithField("role", string(role)),
		role:  role,
		app:   application,
		db:    db,
		redis: client,
	}

	switch role {
	case RoleServer:
		if cfg.Superuser.Email != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := application.Users.EnsureSuperuser(ctx, cfg.Superuser.Email, cfg.Superuser.Password); err != nil {
				log.WithError(err).Warn("superuser seeding failed")
			}
			cancel()
		}
		rt.rlStop = make(chan struct{})
		rt.httpServer = &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      buildHTTPHandler(cfg, application, tokens, log, rt.rlStop),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	case RoleWorker:
		var recognizer detection.Recognizer
		if cfg.Recognizer.URL != "" {
			httpClient := &http.Client{Timeout: cfg.Recognizer.Timeout}
			recognizer, err = detection.NewHTTPRecognizer(httpClient, cfg.Recognizer.URL, cfg.Recognizer.APIKey, log)
			if err != nil {
				return nil, fmt.Errorf("recognizer: %w", err)
			}
		} else {
			log.Warn("RECOGNIZER_URL not set; detection tasks will fail")
		}
		runner := worker.NewRunner(broker, application.Sudokus, application.Stats, recognizer, log)
		runner.Configure(cfg.Worker.DequeueTimeout, cfg.Worker.SolveTimeout, cfg.Worker.CleanupRetention)
		if err := application.Attach(runner); err != nil {
			return nil, fmt.Errorf("attach worker: %w", err)
		}
	case RoleBeat:
		if err := application.Attach(scheduler.New(broker, scheduler.DefaultEntries(), log)); err != nil {
			return nil, fmt.Errorf("attach scheduler: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	return rt, nil
}

// buildHTTPHandler assembles the middleware chain in request order:
// CORS, request ID, metrics, rate limiting, authentication, then the routes.
func buildHTTPHandler(cfg *config.Config, application *app.Application, tokens *authsvc.TokenManager, log *logger.Logger, rlStop <-chan struct{}) http.Handler {
	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, log)
	if rlStop != nil {
		limiter.StartCleanup(time.Minute, rlStop)
	}
	authMW := middleware.NewAuthMiddleware(tokens, log, publicPaths, optionalAuthPrefixes)
	cors := middleware.NewCORSMiddleware(cfg.CORS.Origins)
	requestID := middleware.NewRequestIDMiddleware(log)

	var h http.Handler = httpapi.NewHandler(application)
	h = authMW.Handler(h)
	h = limiter.Handler(h)
	h = metrics.InstrumentHandler(h)
	h = requestID.Handler(h)
	return cors.Handler(h)
}

// Run starts the services for this role and blocks until the context is
// cancelled or a fatal error occurs.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	if a.httpServer != nil {
		go func() {
			a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	} else {
		a.log.Info("process started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and all services, then closes the database
// and Redis connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.rlStop != nil {
		close(a.rlStop)
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("http server shutdown")
		}
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("service shutdown")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("closing database")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("closing redis")
		}
	}
	return nil
}

// openDatabase dials Postgres with a bounded retry so the server can start
// while the database container is still coming up. It fails hard once the
// attempts are exhausted.
func openDatabase(cfg config.DatabaseConfig, log *logger.Logger) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		db, err := sqlx.Connect("postgres", cfg.DSN())
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			return db, nil
		}
		lastErr = err
		log.Warnf("database not ready (attempt %d/%d): %v", attempt, cfg.ConnectAttempts, err)
		if attempt < cfg.ConnectAttempts {
			time.Sleep(cfg.ConnectBackoff)
		}
	}
	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", cfg.ConnectAttempts, lastErr)
}
