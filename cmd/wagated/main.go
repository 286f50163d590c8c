package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/herosoft/wagate/internal/config"
	"github.com/herosoft/wagate/internal/daemon"
)

func main() {
	configFlag := flag.String("config", "wagate.toml", "path to the TOML config file")
	storageFlag := flag.String("storage", "", "storage root (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *storageFlag != "" {
		cfg.StorageDir = *storageFlag
	}

	app := fx.New(
		daemon.Module(cfg),
	)

	app.Run()
}
