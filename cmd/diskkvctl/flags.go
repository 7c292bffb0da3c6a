package main

import (
	flag "github.com/spf13/pflag"
)

// parsedFlags holds the global flags recognized before a subcommand (or
// before dropping into the REPL if none is given).
type parsedFlags struct {
	configPath string
	overrides  CLIOverrides
}

// parseFlags parses diskkvctl's global flags, returning the remaining
// positional arguments (a subcommand and its own arguments, if any).
func parseFlags(args []string) (parsedFlags, []string, error) {
	fs := flag.NewFlagSet("diskkvctl", flag.ContinueOnError)
	fs.SetOutput(discardWriter{})

	config := fs.StringP("config", "c", "", "path to an explicit JSONC config file")
	dir := fs.StringP("dir", "d", "", "cache root directory")
	flushDelay := fs.Int("flush-delay-ms", 0, "flush coalescing window in milliseconds")
	singleFile := fs.Bool("single-file", false, "inline values in the catalog instead of sidecar files")
	multiFile := fs.Bool("multi-file", false, "externalize values to sidecar files")

	if err := fs.Parse(args); err != nil {
		return parsedFlags{}, nil, err
	}

	overrides := CLIOverrides{}

	if fs.Changed("dir") {
		overrides.Dir = *dir
		overrides.HasDir = true
	}

	if fs.Changed("flush-delay-ms") {
		overrides.FlushDelayMS = *flushDelay
		overrides.HasFlushMS = true
	}

	if fs.Changed("single-file") {
		overrides.SingleFile = *singleFile
		overrides.HasSingle = true
	}

	if fs.Changed("multi-file") {
		overrides.SingleFile = !*multiFile
		overrides.HasSingle = true
	}

	return parsedFlags{configPath: *config, overrides: overrides}, fs.Args(), nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
