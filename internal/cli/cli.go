package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/bitforge/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating if the program should exit cleanly,
// or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("bitforge", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
bitforge - a bitstream compiler for the spatial dataflow fabric.

Usage:
  bitforge [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the configuration file or directory.")
	cFlag := flagSet.String("c", "", "Path to the configuration file or directory (shorthand).")
	outFlag := flagSet.String("out", "", "Write the raw bitstream lines to this file instead of stdout.")
	renderFlag := flagSet.String("render", "", "Write the grouped human-readable stream to this file.")
	dumpFlag := flagSet.String("dump", "", "Write the per-field encoding dump to this file.")
	compareFlag := flagSet.String("compare", "", "Diff the generated stream against this reference file.")
	strategyFlag := flagSet.String("strategy", "exact", "Placement strategy. Options: 'alloc', 'exact', or 'anneal'.")
	iterationsFlag := flagSet.Int("iterations", 0, "Annealing proposal budget per restart. 0 uses the default.")
	restartsFlag := flagSet.Int("restarts", 0, "Annealing restarts. 0 uses the default.")
	seedFlag := flagSet.Int64("seed", 1, "Annealing RNG seed.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Exact search wall-clock budget. 0 is unlimited.")
	maskFlag := flagSet.String("mask", "", "Enable mask as 8 bits, LSB first. Empty uses the default 11100000.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Config path determined.", "path", path)

	if path == "" {
		slog.Debug("No config path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	strategy := strings.ToLower(*strategyFlag)
	switch strategy {
	case "alloc", "exact", "anneal":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid strategy: must be 'alloc', 'exact', or 'anneal'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPath:  path,
		OutPath:     *outFlag,
		RenderPath:  *renderFlag,
		DumpPath:    *dumpFlag,
		ComparePath: *compareFlag,
		Strategy:    strategy,
		Iterations:  *iterationsFlag,
		Restarts:    *restartsFlag,
		Seed:        *seedFlag,
		Timeout:     *timeoutFlag,
		Mask:        *maskFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
