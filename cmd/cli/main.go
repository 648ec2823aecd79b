package main

import (
	"context"
	"log"
	"os"
	"slices"

	"github.com/dmitrijs2005/visionlock/internal/client/cli"
	"github.com/dmitrijs2005/visionlock/internal/flagx"
	"github.com/dmitrijs2005/visionlock/internal/server/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// config flags were consumed by LoadConfig; the rest is the command
	args := flagx.StripArgs(os.Args[1:], slices.Concat(config.FlagNames, flagx.ConfigFlags))
	os.Exit(app.Run(ctx, args))

}
