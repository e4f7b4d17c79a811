package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sensorlog/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		log.Printf("Server stopped with error: %v", err)
		application.Close()
		os.Exit(1)
	}
}
