package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/cache"
	"github.com/sudoku-arena/arena-api/internal/app/queue"
	authsvc "github.com/sudoku-arena/arena-api/internal/app/services/auth"
	"github.com/sudoku-arena/arena-api/internal/app/services/games"
	"github.com/sudoku-arena/arena-api/internal/app/services/health"
	statssvc "github.com/sudoku-arena/arena-api/internal/app/services/stats"
	"github.com/sudoku-arena/arena-api/internal/app/services/sudokus"
	userssvc "github.com/sudoku-arena/arena-api/internal/app/services/users"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/internal/app/storage/memory"
	"github.com/sudoku-arena/arena-api/internal/app/system"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users   storage.UserStore
	Sudokus storage.SudokuStore
	Games   storage.GameStore
	Stats   storage.StatsStore
}

// Options carries the external dependencies the application is wired with.
// Nil fields fall back to in-process implementations so tests and local
// development work without Postgres or Redis.
type Options struct {
	Stores    Stores
	Broker    queue.Broker
	Publisher queue.Publisher
	Cache     cache.Cache
	Tokens    *authsvc.TokenManager
	Google    *authsvc.GoogleVerifier
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Auth    *authsvc.Service
	Users   *userssvc.Service
	Games   *games.Service
	Sudokus *sudokus.Service
	Stats   *statssvc.Service
	Health  *health.Service

	Broker    queue.Broker
	Publisher queue.Publisher
}

// New builds a fully initialised application with the provided dependencies.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	stores := opts.Stores
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Sudokus == nil {
		stores.Sudokus = mem
	}
	if stores.Games == nil {
		stores.Games = mem
	}
	if stores.Stats == nil {
		stores.Stats = mem
	}

	broker := opts.Broker
	publisher := opts.Publisher
	if broker == nil {
		broker = queue.NewMemoryBroker()
		log.Warn("no broker configured; using the in-memory queue")
	}
	if publisher == nil {
		if p, ok := broker.(queue.Publisher); ok {
			publisher = p
		} else {
			publisher = queue.NewMemoryBroker()
			log.Warn("no publisher configured; using the in-memory pub/sub")
		}
	}

	c := opts.Cache
	if c == nil {
		c = cache.NewMemory()
	}

	tokens := opts.Tokens
	if tokens == nil {
		return nil, fmt.Errorf("token manager is required")
	}

	manager := system.NewManager()

	authService := authsvc.New(stores.Users, tokens, c, log)
	if opts.Google != nil {
		authService.WithGoogle(opts.Google)
	} else {
		log.Warn("Google OAuth not configured; /api/auth/google disabled")
	}
	usersService := userssvc.New(stores.Users, log)
	statsService := statssvc.New(stores.Stats, stores.Games, c, log)
	gamesService := games.New(stores.Games, statsService, log)
	sudokusService := sudokus.New(stores.Sudokus, broker, publisher, log)
	healthService := health.New(2*time.Second, log)
	healthService.Register("broker", health.PingFunc(broker.Ping))

	for _, name := range []string{"auth", "users", "games", "sudokus", "stats"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Auth:      authService,
		Users:     usersService,
		Games:     gamesService,
		Sudokus:   sudokusService,
		Stats:     statsService,
		Health:    healthService,
		Broker:    broker,
		Publisher: publisher,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
