// The mcp-server binary serves the analysis tools over stdio for MCP
// clients. All logging goes to stderr; stdout carries the protocol.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/engine"
	"github.com/autorca/autorca-core/internal/mcp"
	"github.com/autorca/autorca-core/internal/summary"
	"github.com/autorca/autorca-core/internal/utils"
)

var version = "dev"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.JSON)

	eng, err := engine.New(cfg.Analysis, logger)
	if err != nil {
		logger.Error("invalid analysis configuration", slog.Any("error", err))
		os.Exit(1)
	}

	summarizer, err := summary.New(cfg.Summary, logger)
	if err != nil {
		logger.Error("failed to build summarizer", slog.Any("error", err))
		os.Exit(1)
	}

	server := mcp.NewServer(eng.WithoutMetrics(), summarizer, version, logger)
	logger.Info("mcp server listening on stdio")
	if err := server.Serve(); err != nil {
		logger.Error("mcp server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
