package main

import (
	"context"
	"log/slog"

	"github.com/dusk-indust/upg/internal/config"
	"github.com/dusk-indust/upg/internal/mcptools"
)

// runServe exposes the propagation graph tools over MCP, on stdio unless
// addr is set.
func runServe(ctx context.Context, cfg *config.ProjectConfig, log *slog.Logger, addr string) error {
	opts, err := driverOptions(cfg, log)
	if err != nil {
		return err
	}
	svc := mcptools.NewUPGService(openStore(cfg), opts)
	defer svc.Close()

	server := mcptools.NewUPGMCPServer(svc)
	if addr != "" {
		log.Info("mcp.listen", "addr", addr)
		return mcptools.RunMCPServer(ctx, server, addr)
	}
	return mcptools.RunMCPServerStdio(ctx, server)
}
