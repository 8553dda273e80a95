package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sidelinehq/sideline/internal/app"
	"github.com/sidelinehq/sideline/internal/platform/config"
	"github.com/sidelinehq/sideline/internal/platform/otel"
)

func main() {
	log.SetPrefix("[SIDELINE] ")

	var cfg app.Config
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "sideline-backend")
	if err != nil {
		log.Printf("otel setup: %v", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("otel shutdown: %v", err)
			}
		}()
	}

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
