package main

import (
	"log"
	"os"

	"github.com/seantiz/chatbridge/internal/api"
	"github.com/seantiz/chatbridge/internal/bridge"
	"github.com/seantiz/chatbridge/internal/config"
	"github.com/seantiz/chatbridge/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("chatbridge: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"start_timeout", cfg.Timeouts.Start.String(),
		"idle_timeout", cfg.Timeouts.Idle.String(),
		"completion_timeout", cfg.Timeouts.Completion.String(),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	eng := bridge.NewEngine(cfg.Timeouts, bridge.RecencyMatcher{}, db, logger)

	srv := api.NewServer(cfg.ListenAddr, db, eng, cfg.DefaultModel, cfg.PollWait, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
