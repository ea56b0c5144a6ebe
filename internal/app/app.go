package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/bitforge/internal/compiler"
	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/stream"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader document.Loader
}

// NewApp is the constructor for the main application. It returns a
// fully initialized App instance with its own isolated logger. Log
// records go to errW so the bitstream printed to outW stays a clean
// 0/1 stream when no output file is given.
func NewApp(outW, errW io.Writer, cfg *Config, loader document.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	logger.Debug("Logger configured successfully.")
	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		loader: loader,
	}
}

// Logger returns the application's logger. This is primarily for
// testing.
func (a *App) Logger() *slog.Logger { return a.logger }

// parseMask converts the mask flag into the enable mask, LSB first. An
// empty flag selects the default mask: emitted region groups on,
// reserved bits clear.
func parseMask(s string) ([stream.MaskWidth]bool, error) {
	if s == "" {
		return compiler.DefaultMask(), nil
	}
	var m [stream.MaskWidth]bool
	if len(s) != stream.MaskWidth {
		return m, fmt.Errorf("enable mask must be %d bits, got %d", stream.MaskWidth, len(s))
	}
	for i, c := range s {
		switch c {
		case '1':
			m[i] = true
		case '0':
		default:
			return m, fmt.Errorf("enable mask contains %q, expected 0/1", c)
		}
	}
	return m, nil
}
