package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"stakepoll/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ledger store + use cases + HTTP routes).
// 3) Serve until SIGINT/SIGTERM, then drain.
func main() {
	log.Println("stakepoll api starting")
	app, err := bootstrap.BuildAPI()
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("stakepoll api stopped with error: %v", err)
	}
}
