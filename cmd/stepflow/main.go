// stepflow runs a step pipeline over CSV/XLSX tables and database sources.
//
// Usage:
//
//	stepflow [--config stepflow.yaml] [--sql | --watch | --serve :8080]
//
// Every step output is written to <output>/step_outputs/step_N_<kind>.csv.
// Exit code is 1 on configuration errors only; failed steps are reported
// and the pass continues.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-stepflow/cmd/stepflow/commands"
	"github.com/ruslano69/tdtp-stepflow/pkg/config"
)

func main() {
	flags := ParseFlags()

	if *flags.Version {
		PrintVersion()
		return
	}
	if *flags.Help {
		PrintHelp()
		return
	}

	setupLogging(*flags.LogJSON, *flags.LogLevel)

	if *flags.CreateConfig {
		if err := config.WriteSample(*flags.Config); err != nil {
			fatal("Failed to create config: %v", err)
		}
		fmt.Printf("✓ Created sample config: %s\n", *flags.Config)
		fmt.Printf("Edit input.folder and steps, then run:\n  stepflow --config %s\n", *flags.Config)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *flags.Serve != "" {
		if err := serve(ctx, *flags.Serve, flags); err != nil {
			log.Error().Err(err).Msg("server error")
		}
		return
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fatal("%v", err)
	}

	if *flags.SQL {
		if err := commands.PrintSQL(os.Stdout, cfg); err != nil {
			fatal("%v", err)
		}
		return
	}

	switch {
	case *flags.Watch:
		if err := watch(ctx, cfg); err != nil {
			log.Error().Err(err).Msg("watch stopped")
		}
	case cfg.Schedule != "":
		schedule(ctx, cfg)
	default:
		runOnce(ctx, cfg)
	}
}

// loadConfig reads the config file, applies flag overrides and validates the result.
func loadConfig(flags *Flags) (*config.Config, error) {
	cfg, err := config.Load(*flags.Config)
	if err != nil {
		return nil, err
	}
	if *flags.Input != "" {
		cfg.Input.Folder = *flags.Input
	}
	if *flags.Output != "" {
		cfg.Output.Folder = *flags.Output
	}
	if *flags.XLSX {
		cfg.Output.XLSX = true
	}
	if *flags.Compress {
		cfg.Output.Compress = true
	}
	if *flags.Verify {
		cfg.Verify.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

// runOnce runs one pass and prints its summary. Configuration errors
// exit with code 1; other run failures are logged.
func runOnce(ctx context.Context, cfg *config.Config) {
	res, err := commands.RunPipeline(ctx, cfg, log.Logger)
	if config.IsConfigError(err) {
		fatal("%v", err)
	}
	if err != nil {
		log.Error().Err(err).Str("pipeline", cfg.Name).Msg("pipeline run failed")
	}
	if res != nil {
		commands.PrintSummary(os.Stdout, res)
	}
}

// schedule runs the pipeline on the configured cron schedule until ctx is done.
func schedule(ctx context.Context, cfg *config.Config) {
	c := cron.New()
	_, err := c.AddFunc(cfg.Schedule, func() {
		log.Info().Str("pipeline", cfg.Name).Msg("scheduled run")
		runOnce(ctx, cfg)
	})
	if err != nil {
		// validated by config.Validate
		fatal("Invalid schedule %q: %v", cfg.Schedule, err)
	}
	c.Start()
	log.Info().Str("schedule", cfg.Schedule).Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

func setupLogging(jsonOutput bool, level string) {
	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
