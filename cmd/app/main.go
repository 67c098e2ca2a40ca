package main

import (
	"context"
	"flag"
	"log"
	"os"

	"ForexDash/internal/di"
	"ForexDash/pkg/config"
	"ForexDash/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	importTo := flag.String("import", "", "copy CSV datasets into parquet or clickhouse, then exit")
	timeframes := flag.String("timeframes", "1m,5m,15m,1hr", "timeframes to import")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *importTo != "" {
		runImport(cfg, *importTo, util.SplitList(*timeframes))
		return
	}

	log.Printf("env=%s upstream=%s mode=%s symbols=%v",
		cfg.Environment, cfg.Upstream.BaseURL, cfg.Upstream.Mode, cfg.Window.Symbols)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func runImport(cfg *config.Config, target string, timeframes []string) {
	im, cleanup, err := di.InitializeImporter(cfg, target)
	if err != nil {
		log.Fatalf("importer: %v", err)
	}
	defer cleanup()

	n, err := im.Import(context.Background(), cfg.Window.Symbols, timeframes)
	if err != nil {
		log.Printf("import failed after %d ticks: %v", n, err)
		cleanup()
		os.Exit(1)
	}
	log.Printf("imported %d ticks into %s", n, target)
}
