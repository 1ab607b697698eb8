package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/pollwatch/internal/bot"
	"github.com/dmitrijs2005/pollwatch/internal/bot/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := bot.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
