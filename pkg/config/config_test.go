package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-stepflow/pkg/ingest"
	"github.com/ruslano69/tdtp-stepflow/pkg/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stepflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "Valid minimal config",
			yaml: `
input:
  folder: ./data
steps:
  - kind: sort
    fields:
      table: orders
`,
		},
		{
			name: "Valid full config",
			yaml: `
name: orders
input:
  folder: ./data
  delimiter: ";"
  encoding: windows-1251
sources:
  - name: customers
    type: postgres
    dsn: postgres://localhost/shop
    query: SELECT * FROM customers
output:
  folder: ./out
  compress: true
result_log:
  type: redis
  address: 127.0.0.1:6379
  name: ORDERS_V1
schedule: "@every 10m"
`,
		},
		{
			name:    "No input",
			yaml:    "name: x\n",
			wantErr: true,
			errMsg:  "input.folder or at least one source",
		},
		{
			name:    "Bad delimiter",
			yaml:    "input: {folder: d, delimiter: ';;'}\n",
			wantErr: true,
			errMsg:  "single character",
		},
		{
			name:    "Bad encoding",
			yaml:    "input: {folder: d, encoding: latin-9}\n",
			wantErr: true,
			errMsg:  "unsupported encoding",
		},
		{
			name:    "Unsupported source",
			yaml:    "sources: [{name: s, type: oracle, dsn: x, query: q}]\n",
			wantErr: true,
			errMsg:  "unsupported type 'oracle'",
		},
		{
			name:    "Source without query",
			yaml:    "sources: [{name: s, type: sqlite, dsn: x}]\n",
			wantErr: true,
			errMsg:  "query is required",
		},
		{
			name:    "Source with write query",
			yaml:    "sources: [{name: s, type: sqlite, dsn: x, query: 'DELETE FROM t'}]\n",
			wantErr: true,
			errMsg:  "query rejected",
		},
		{
			name: "Unsafe source allows write query",
			yaml: "sources: [{name: s, type: sqlite, dsn: x, query: 'DELETE FROM t', unsafe: true}]\n",
		},
		{
			name: "Retry with defaults",
			yaml: "input: {folder: d}\nretry: {enabled: true, initial_delay: 2s}\n",
		},
		{
			name:    "Bad retry backoff",
			yaml:    "input: {folder: d}\nretry: {enabled: true, backoff: random}\n",
			wantErr: true,
			errMsg:  "retry",
		},
		{
			name:    "Redis without address",
			yaml:    "input: {folder: d}\nresult_log: {type: redis, name: R}\n",
			wantErr: true,
			errMsg:  "address is required",
		},
		{
			name:    "Bad schedule",
			yaml:    "input: {folder: d}\nschedule: every day\n",
			wantErr: true,
			errMsg:  "schedule",
		},
		{
			name:    "Unknown step kind",
			yaml:    "input: {folder: d}\nsteps: [{kind: pivot}]\n",
			wantErr: true,
			errMsg:  "steps[0]",
		},
		{
			name:    "Invalid YAML",
			yaml:    "input: [",
			wantErr: true,
			errMsg:  "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !IsConfigError(err) {
					t.Errorf("Expected ConfigError, got %T", err)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cfg == nil {
				t.Fatal("Expected config, got nil")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !IsConfigError(err) {
		t.Errorf("Expected ConfigError for missing file, got %v", err)
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{
		Input:     InputConfig{Folder: "data"},
		Output:    OutputConfig{Compress: true},
		ResultLog: ResultLogConfig{Type: "redis", Address: "a", Name: "R"},
		Retry:     retry.Config{Enabled: true},
	}
	cfg.Sources = append(cfg.Sources, sourceFixture())
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	cfg.SetDefaults()

	if cfg.Name != "stepflow" {
		t.Errorf("Expected default name, got %s", cfg.Name)
	}
	if len(cfg.Input.Extensions) != 2 || cfg.Input.Delimiter != "," || cfg.Input.Encoding != "utf-8" || cfg.Input.Workers != 4 {
		t.Errorf("Unexpected input defaults: %+v", cfg.Input)
	}
	if cfg.Output.Folder != "sql_outputs" || cfg.Output.Level != 3 {
		t.Errorf("Unexpected output defaults: %+v", cfg.Output)
	}
	if cfg.Sources[0].Timeout != 60 {
		t.Errorf("Expected source timeout 60, got %d", cfg.Sources[0].Timeout)
	}
	if cfg.ResultLog.TTL != 3600 {
		t.Errorf("Expected TTL 3600, got %d", cfg.ResultLog.TTL)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Backoff != retry.BackoffExponential {
		t.Errorf("Unexpected retry defaults: %+v", cfg.Retry)
	}

	opts := cfg.LoaderOptions()
	if opts.Delimiter != "," || opts.Workers != 4 {
		t.Errorf("Unexpected loader options: %+v", opts)
	}
}

func TestSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stepflow.yaml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Error("Expected error when config file exists")
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Sample config must be valid: %v", err)
	}
	p, err := cfg.Definition().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Name != "orders-report" || p.Len() != 3 {
		t.Errorf("Unexpected pipeline %s with %d steps", p.Name, p.Len())
	}

	// секция steps переживает повторную сериализацию
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back.Steps) != 3 || back.Steps[1].Kind != "group_by" {
		t.Errorf("Unexpected steps after round trip: %+v", back.Steps)
	}
}

func sourceFixture() ingest.Source {
	return ingest.Source{Name: "customers", Type: "sqlite", DSN: "shop.db", Query: "SELECT * FROM customers"}
}
