package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/bitforge/internal/compiler"
	"github.com/vk/bitforge/internal/ctxlog"
	"github.com/vk/bitforge/internal/stream"
)

// Run executes the main application logic: load the configuration
// document, compile it into a bitstream, and write every requested
// output artifact.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	doc, err := a.loader.Load(ctx, a.config.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded into unified model.", "blocks", len(doc.Children))

	strategy, err := compiler.ParseStrategy(a.config.Strategy)
	if err != nil {
		return err
	}
	mask, err := parseMask(a.config.Mask)
	if err != nil {
		return err
	}

	res, err := compiler.Run(ctx, doc, compiler.Options{
		Strategy:   strategy,
		Iterations: a.config.Iterations,
		Restarts:   a.config.Restarts,
		Seed:       a.config.Seed,
		Timeout:    a.config.Timeout,
		Mask:       mask,
	})
	if err != nil {
		return err
	}
	for _, line := range res.Summary {
		a.logger.Info("Placed.", "node", line)
	}

	if err := a.writeOutputs(res); err != nil {
		return err
	}
	return a.compare(res)
}

func (a *App) writeOutputs(res *compiler.Result) error {
	if a.config.OutPath == "" {
		for _, line := range res.Bitstream.Lines() {
			fmt.Fprintln(a.outW, line)
		}
	} else {
		data := strings.Join(res.Bitstream.Lines(), "\n") + "\n"
		if err := os.WriteFile(a.config.OutPath, []byte(data), 0o644); err != nil {
			return fmt.Errorf("failed to write bitstream: %w", err)
		}
		a.logger.Info("Bitstream written.", "path", a.config.OutPath, "lines", len(res.Bitstream.Lines()))
	}

	if a.config.RenderPath != "" {
		var b strings.Builder
		if err := stream.Render(&b, res.Entries); err != nil {
			return err
		}
		if err := os.WriteFile(a.config.RenderPath, []byte(b.String()), 0o644); err != nil {
			return fmt.Errorf("failed to write rendered stream: %w", err)
		}
		a.logger.Info("Rendered stream written.", "path", a.config.RenderPath)
	}

	if a.config.DumpPath != "" {
		var b strings.Builder
		for _, m := range res.Catalog.Modules() {
			if _, err := m.Dump(&b); err != nil {
				return err
			}
		}
		if err := os.WriteFile(a.config.DumpPath, []byte(b.String()), 0o644); err != nil {
			return fmt.Errorf("failed to write field dump: %w", err)
		}
		a.logger.Info("Field dump written.", "path", a.config.DumpPath)
	}
	return nil
}

// compare diffs the generated stream against a reference file. A
// mismatch is an error so scripted regression runs fail loudly.
func (a *App) compare(res *compiler.Result) error {
	if a.config.ComparePath == "" {
		return nil
	}
	f, err := os.Open(a.config.ComparePath)
	if err != nil {
		return fmt.Errorf("failed to open reference stream: %w", err)
	}
	defer f.Close()

	ref, err := stream.ReadReference(f)
	if err != nil {
		return err
	}
	diff := res.Bitstream.Compare(ref)
	if !diff.Match {
		return fmt.Errorf("reference comparison failed: %s", diff)
	}
	a.logger.Info("Reference comparison passed.", "bits", diff.GeneratedLen)
	return nil
}
