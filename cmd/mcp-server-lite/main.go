// Package main provides the lightweight entry point for the PharmaGuard MCP Server.
// This version requires no external databases: explanations are cached in
// memory and clinician feedback is stored in SQLite.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pharmaguard-mcp-server/internal/config"
	"github.com/pharmaguard-mcp-server/internal/logging"
	"github.com/pharmaguard-mcp-server/internal/mcp"
	"github.com/pharmaguard-mcp-server/internal/setup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}

	cfg := config.LoadLiteConfig()

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(os.Stdout, cfg.DataDir)
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	// stdout carries the stdio transport, so logs go to stderr.
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.WithField("transport", cfg.Transport).Info("Starting PharmaGuard MCP Server (Lite)")

	server, err := mcp.NewLiteServer(cfg, mcp.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("PharmaGuard MCP Server (Lite) stopped")
}
