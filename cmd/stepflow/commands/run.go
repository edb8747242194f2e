package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-stepflow/pkg/config"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/export"
	"github.com/ruslano69/tdtp-stepflow/pkg/ingest"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/resultlog"
	"github.com/ruslano69/tdtp-stepflow/pkg/retry"
	"github.com/ruslano69/tdtp-stepflow/pkg/workspace"
)

// Result holds everything one pipeline pass produced
type Result struct {
	Report     *pipeline.RunReport
	Files      []string
	LoadErrors []*ingest.LoadError
	Verify     *workspace.VerifyReport
}

// LoadTables loads the input folder and every database source into one store.
// A file or source that fails to load is reported in the returned errors and skipped.
func LoadTables(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*table.Store, []*ingest.LoadError, error) {
	store := table.NewStore()
	loader := ingest.NewLoader(cfg.LoaderOptions()).WithLogger(logger)
	var loadErrs []*ingest.LoadError

	retryer, err := newRetryer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Input.Folder != "" {
		res, err := loader.LoadFolder(ctx, cfg.Input.Folder, cfg.Input.Extensions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load input folder: %w", err)
		}
		for _, t := range res.Tables {
			store.Put(t)
		}
		loadErrs = append(loadErrs, res.Errors...)
	}

	for _, src := range cfg.Sources {
		var t *table.Table
		err := retryer.Do(ctx, func(ctx context.Context) error {
			var err error
			t, err = loader.LoadDatabase(ctx, src)
			return err
		})
		if err != nil {
			var le *ingest.LoadError
			if !errors.As(err, &le) {
				le = &ingest.LoadError{File: src.Name, Err: err}
			}
			logger.Warn().Err(le.Err).Str("source", src.Name).Msg("source skipped")
			loadErrs = append(loadErrs, le)
			continue
		}
		store.Put(t)
	}
	return store, loadErrs, nil
}

// RunPipeline loads the inputs, runs the steps once and writes the outputs.
//
// Step failures do not make RunPipeline fail: they are part of the report.
// The returned error is set only when the pass could not be carried out.
// An output folder that cannot be created is a *config.ConfigError and
// nothing is run.
func RunPipeline(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Result, error) {
	if _, err := export.EnsureDir(cfg.Output.Folder); err != nil {
		return nil, &config.ConfigError{Field: "output.folder", Err: err}
	}

	store, loadErrs, err := LoadTables(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store.Len() == 0 {
		logger.Warn().Msg("no input tables loaded")
	}

	p, err := cfg.Definition().Build(pipeline.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	// the store keeps the pre-run state for verification
	report, runErr := p.Run(ctx, store.Snapshot())
	result := &Result{Report: report, LoadErrors: loadErrs}

	files, err := writeOutputs(cfg, report, logger)
	result.Files = files
	if err != nil {
		logger.Error().Err(err).Msg("export failed")
	}

	if cfg.Verify.Enabled && runErr == nil {
		vr, err := verify(ctx, store, report, logger)
		if err != nil {
			logger.Error().Err(err).Msg("verification failed")
		}
		result.Verify = vr
	}

	if cfg.ResultLog.Enabled() {
		publish(ctx, cfg, report, runErr, logger)
	}

	logger.Info().
		Str("run", report.ID.String()).
		Int("steps", len(report.Steps)).
		Int("failed", report.Failed()).
		Int("files", len(result.Files)).
		Dur("duration", report.Duration).
		Msg("pipeline finished")
	return result, runErr
}

// publish sends the run result to Redis. Failures are logged only.
func publish(ctx context.Context, cfg *config.Config, report *pipeline.RunReport, runErr error, logger zerolog.Logger) {
	retryer, err := newRetryer(cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("retry disabled")
	}
	publisher := resultlog.NewRedisPublisher(cfg.ResultLog)
	defer publisher.Close()

	err = retryer.Do(ctx, func(ctx context.Context) error {
		return publisher.Publish(ctx, cfg.Name, report, runErr)
	})
	if err != nil {
		logger.Warn().Err(err).Str("address", cfg.ResultLog.Address).Msg("failed to publish run result")
	}
}

// newRetryer builds the retryer for sources and publishing from the retry section.
func newRetryer(cfg *config.Config, logger zerolog.Logger) (*retry.Retryer, error) {
	rc := cfg.Retry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying")
	}
	return retry.NewRetryer(rc)
}

func writeOutputs(cfg *config.Config, report *pipeline.RunReport, logger zerolog.Logger) ([]string, error) {
	exporter, err := export.NewExporter(export.Options{
		Folder:   cfg.Output.Folder,
		Compress: cfg.Output.Compress,
		Level:    cfg.Output.Level,
	})
	if err != nil {
		return nil, err
	}
	defer exporter.Close()
	exporter.WithLogger(logger)

	files, errs := exporter.WriteReport(report)
	for _, err := range errs {
		logger.Error().Err(err).Msg("failed to write step output")
	}

	if cfg.Output.XLSX {
		path, err := exporter.WriteWorkbook(report)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	if cfg.Output.Manifest {
		path, err := exporter.WriteManifest(report)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func verify(ctx context.Context, store *table.Store, report *pipeline.RunReport, logger zerolog.Logger) (*workspace.VerifyReport, error) {
	ws, err := workspace.New(ctx)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	vr, err := ws.WithLogger(logger).Verify(ctx, store, report)
	if vr != nil {
		logger.Info().
			Int("match", vr.Count(workspace.StatusMatch)).
			Int("diverged", vr.Count(workspace.StatusDiverged)).
			Int("skipped", vr.Count(workspace.StatusSkipped)).
			Int("error", vr.Count(workspace.StatusError)).
			Msg("SQL verification")
	}
	return vr, err
}

// PrintSQL writes the SQL of every step and the chained query
func PrintSQL(w io.Writer, cfg *config.Config) error {
	p, err := cfg.Definition().Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	if w == nil {
		w = os.Stdout
	}
	for i, stmt := range p.SQL() {
		fmt.Fprintf(w, "-- %s (%s)\n%s\n\n", pipeline.StepName(i+1), p.Entries()[i].Step.Kind().Title(), stmt)
	}
	if chained := p.ChainSQL(); chained != "" {
		fmt.Fprintf(w, "-- chained\n%s\n", chained)
	}
	return nil
}

// PrintSummary writes a short human readable summary of a pass
func PrintSummary(w io.Writer, res *Result) {
	if w == nil {
		w = os.Stdout
	}
	for _, le := range res.LoadErrors {
		fmt.Fprintf(w, "⚠ %v\n", le)
	}
	for _, s := range res.Report.Steps {
		if s.Err != nil {
			fmt.Fprintf(w, "✗ %s %-28s %v\n", s.Name, s.Kind.Title(), s.Err)
			continue
		}
		fmt.Fprintf(w, "✓ %s %-28s %d row(s)\n", s.Name, s.Kind.Title(), s.Rows)
		for _, note := range s.Notes {
			fmt.Fprintf(w, "    note: %s\n", note)
		}
	}
	if res.Verify != nil {
		for _, c := range res.Verify.Divergences() {
			fmt.Fprintf(w, "≠ step_%d SQL %s: %s\n", c.Step, c.Status, c.Reason)
		}
	}
	fmt.Fprintf(w, "%d file(s) written\n", len(res.Files))
}
