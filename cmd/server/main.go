package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gkactivo/relaychat/internal/config"
	"github.com/gkactivo/relaychat/internal/server"
)

func main() {
	cfg := config.LoadServerConfig()

	app := server.NewApp(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server shutdown: %v", err)
	}
}
