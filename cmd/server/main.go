package main

import (
	"context"
	"log"
	"os"

	"github.com/clipvault/clipvault/internal/app"
	"github.com/clipvault/clipvault/internal/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	a.Run(ctx)
}
