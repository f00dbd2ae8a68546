// Package main runs the SudokuArena HTTP API server.
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

	app, err := runtime.New(runtime.RoleServer)
	if err != nil {
		log.Fatalf("server init: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
