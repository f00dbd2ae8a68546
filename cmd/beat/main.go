// Package main runs the SudokuArena beat process, which enqueues the
// periodic cleanup and stats refresh tasks on a cron schedule.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sudoku-arena/arena-api/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.New(runtime.RoleBeat)
	if err != nil {
		log.Fatalf("beat init: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("beat: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
