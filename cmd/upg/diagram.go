package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dusk-indust/upg/internal/config"
	"github.com/dusk-indust/upg/internal/export"
	"github.com/dusk-indust/upg/internal/store"
)

func runDiagram(ctx context.Context, cfg *config.ProjectConfig, log *slog.Logger, dir string, stdout io.Writer) error {
	p, err := analyze(ctx, cfg, log, dir, sinkNone, stdout)
	if err != nil {
		return err
	}
	defer p.Close()

	mermaid, err := export.GenerateMermaid(ctx, p.store)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(stdout, mermaid)
	return err
}

func runExport(ctx context.Context, cfg *config.ProjectConfig, log *slog.Logger, dir string, stdout io.Writer) error {
	p, err := analyze(ctx, cfg, log, dir, sinkNone, stdout)
	if err != nil {
		return err
	}
	defer p.Close()

	data, err := export.ExportGraph(ctx, p.store, p.res.Unit.Name, store.DefaultDepth)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	_, err = stdout.Write(append(out, '\n'))
	return err
}
