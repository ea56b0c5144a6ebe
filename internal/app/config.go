package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to
// run.
type Config struct {
	ConfigPath string // hcl file or directory

	OutPath     string // raw bitstream lines
	RenderPath  string // grouped human-readable stream
	DumpPath    string // per-field encoding dump
	ComparePath string // reference stream to diff against

	Strategy   string // alloc, exact, or anneal
	Iterations int
	Restarts   int
	Seed       int64
	Timeout    time.Duration
	Mask       string // enable mask bits, LSB first

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
