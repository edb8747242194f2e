package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	// Commands
	SQL    *bool   // print step SQL and the chained query, do not run
	Watch  *bool   // rerun when files in the input folder change
	Serve  *string // HTTP listen address
	Verify *bool   // cross-check step SQL in SQLite :memory:

	// Options
	Config   *string
	Input    *string
	Output   *string
	XLSX     *bool
	Compress *bool

	// Logging
	LogJSON  *bool
	LogLevel *string

	// Info
	Version      *bool
	Help         *bool
	CreateConfig *bool
}

// ParseFlags parses command-line flags
func ParseFlags() *Flags {
	f := &Flags{}

	f.SQL = flag.Bool("sql", false, "Print SQL of every step and the chained query")
	f.Watch = flag.Bool("watch", false, "Rerun the pipeline when input files change")
	f.Serve = flag.String("serve", "", "Start the HTTP API on the given address (e.g. :8080)")
	f.Verify = flag.Bool("verify", false, "Verify step SQL against the step results")

	f.Config = flag.String("config", "stepflow.yaml", "Configuration file path")
	f.Input = flag.String("input", "", "Input folder override")
	f.Output = flag.String("output", "", "Output folder override")
	f.XLSX = flag.Bool("xlsx", false, "Also write all step outputs to one workbook")
	f.Compress = flag.Bool("compress", false, "Compress step CSV files with zstd")

	f.LogJSON = flag.Bool("log-json", false, "Write JSON logs instead of console output")
	f.LogLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	f.Version = flag.Bool("version", false, "Show version information")
	f.Help = flag.Bool("help", false, "Show help message")
	f.CreateConfig = flag.Bool("create-config", false, "Create sample configuration file")

	flag.Parse()
	return f
}
