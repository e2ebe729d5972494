package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/claude/motionscore/internal/classify"
	"github.com/claude/motionscore/internal/config"
	"github.com/claude/motionscore/internal/mcp"
	"github.com/claude/motionscore/internal/session"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (optional; defaults apply)")
	flag.Parse()

	// Stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	factory := session.NewFactory(cfg.Analysis, classify.HeuristicLegs{}, classify.HeuristicArms{}, log)
	srv := mcp.New(factory, Version, log)

	log.Info("motionscore MCP server starting", "version", Version, "transport", "stdio")
	if err := mcpserver.ServeStdio(srv); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
