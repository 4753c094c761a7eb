package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"EconCast/internal/di"
	"EconCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config; BACKEND, KAFKA_*, CLICKHOUSE_HOST, REDIS_ADDR and INDICATORS env vars override it")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

func run(path string) error {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	log.Printf("econcast env=%s backend=%s port=%d indicators=%s",
		cfg.Environment, cfg.Backend.Type, cfg.Server.Port, strings.Join(cfg.Ingest.Indicators, ","))
	return app.Run()
}
