package main

import "fmt"

const version = "0.3.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("stepflow version %s\n", version)
	fmt.Println("Step pipeline over CSV/XLSX tables with SQL rendering")
}

// PrintHelp prints help information
func PrintHelp() {
	fmt.Println("stepflow - step-by-step table pipeline")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  stepflow [options]")
	fmt.Println()

	fmt.Println("COMMANDS:")
	fmt.Println("    (default)                  Load inputs, run all steps once, write step_outputs")
	fmt.Println("    --sql                      Print SQL of every step and the chained WITH query")
	fmt.Println("    --watch                    Rerun when files in the input folder change")
	fmt.Println("    --serve <addr>             Start the HTTP API (tables, steps, run, sql, metrics)")
	fmt.Println("    --create-config            Create sample stepflow.yaml")
	fmt.Println()

	fmt.Println("OPTIONS:")
	fmt.Println("    --config <file>            Configuration file (default: stepflow.yaml)")
	fmt.Println("    --input <folder>           Override input.folder")
	fmt.Println("    --output <folder>          Override output.folder")
	fmt.Println("    --xlsx                     Also write steps.xlsx with one sheet per step")
	fmt.Println("    --compress                 Write step_N_*.csv.zst")
	fmt.Println("    --verify                   Cross-check step SQL in SQLite :memory:")
	fmt.Println("    --log-json                 JSON logs")
	fmt.Println("    --log-level <level>        debug, info, warn, error (default: info)")
	fmt.Println()

	fmt.Println("SCHEDULING:")
	fmt.Println("  Set 'schedule' in the config (cron expression or @every 10m) to run")
	fmt.Println("  the pipeline periodically until interrupted.")
	fmt.Println()

	fmt.Println("EXAMPLES:")
	fmt.Println("  stepflow --create-config")
	fmt.Println("  stepflow --config stepflow.yaml --xlsx")
	fmt.Println("  stepflow --sql")
	fmt.Println("  stepflow --serve :8080")
}
