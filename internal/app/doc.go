// Package app composes the SudokuArena services into a running application.
//
// It is a composition layer, not a business logic layer: services live under
// internal/app/services/, storage behind the interfaces in
// internal/app/storage/, and HTTP handling in internal/app/httpapi/.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Accounts and profiles
//	│   ├── sudoku/         # Puzzles, solutions, solver statuses
//	│   ├── game/           # Game history records and scoring
//	│   └── stats/          # Aggregated player statistics
//	├── storage/            # Store interfaces, memory and Postgres backends
//	├── services/           # Business logic (auth, sudokus, games, stats, ...)
//	├── queue/              # Task broker and status pub/sub (memory, Redis)
//	├── cache/              # Key/value cache (memory, Redis)
//	├── worker/             # Background task runner
//	├── scheduler/          # Cron-driven task enqueuing
//	├── httpapi/            # REST handlers and the WebSocket status stream
//	├── metrics/            # Prometheus collectors
//	└── system/             # Lifecycle management
//
// Every external dependency in Options may be nil; the application then falls
// back to its in-process implementation so tests and local development work
// without Postgres or Redis. The only hard requirement is the token manager.
package app
