// Package main runs the SudokuArena background task worker.
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

	app, err := runtime.New(runtime.RoleWorker)
	if err != nil {
		log.Fatalf("worker init: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("worker: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
