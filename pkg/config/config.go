// Package config загружает YAML конфигурацию прохода stepflow.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-stepflow/pkg/ingest"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/retry"
	"github.com/ruslano69/tdtp-stepflow/pkg/security"
)

// Config содержит полную конфигурацию прохода
type Config struct {
	Name      string             `yaml:"name"`
	Input     InputConfig        `yaml:"input"`
	Sources   []ingest.Source    `yaml:"sources,omitempty"`
	Output    OutputConfig       `yaml:"output"`
	Verify    VerifyConfig       `yaml:"verify"`
	ResultLog ResultLogConfig    `yaml:"result_log"`
	Retry     retry.Config       `yaml:"retry,omitempty"`    // повторы запросов источников и публикации
	Schedule  string             `yaml:"schedule,omitempty"` // cron выражение или @every
	Steps     []pipeline.StepDef `yaml:"steps"`
}

// InputConfig определяет папку с CSV/XLSX файлами
type InputConfig struct {
	Folder     string   `yaml:"folder"`
	Extensions []string `yaml:"extensions,omitempty"`
	Delimiter  string   `yaml:"delimiter,omitempty"`
	Encoding   string   `yaml:"encoding,omitempty"` // utf-8, windows-1251, koi8-r, cp866
	Sheet      string   `yaml:"sheet,omitempty"`
	Workers    int      `yaml:"workers,omitempty"`
}

// OutputConfig определяет выходную папку и состав файлов
type OutputConfig struct {
	Folder   string `yaml:"folder"`
	XLSX     bool   `yaml:"xlsx"`     // книга steps.xlsx со всеми шагами
	Compress bool   `yaml:"compress"` // zstd для CSV шагов
	Level    int    `yaml:"level,omitempty"`
	Manifest bool   `yaml:"manifest"`
}

// VerifyConfig включает сверку SQL шагов в SQLite workspace
type VerifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ResultLogConfig определяет параметры публикации результата прохода
type ResultLogConfig struct {
	Type     string `yaml:"type"`     // Тип: redis (пустое = отключено)
	Address  string `yaml:"address"`  // Адрес Redis, например "127.0.0.1:6379"
	Name     string `yaml:"name"`     // Имя результата (ключ/канал), например "ORDERS_V1"
	Password string `yaml:"password"` // Пароль Redis (опционально)
	DB       int    `yaml:"db"`       // Индекс базы данных Redis
	TTL      int    `yaml:"ttl"`      // TTL ключа в секундах (по умолчанию 3600)
}

// Enabled - публикация включена
func (r ResultLogConfig) Enabled() bool {
	return r.Type != "" && r.Type != "none"
}

// ConfigError - ошибка конфигурации. Такая ошибка прерывает запуск.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError проверяет, что err - ошибка конфигурации
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func fieldError(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Load читает и разбирает YAML файл без проверки
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to read config file: %w", err)}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}
	return &cfg, nil
}

// LoadConfig загружает конфигурацию, проверяет ее и заполняет значения по умолчанию
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Input.Folder == "" && len(c.Sources) == 0 {
		return fieldError("input", "input.folder or at least one source is required")
	}
	if err := c.Input.Validate(); err != nil {
		return err
	}
	for i := range c.Sources {
		if err := validateSource(c.Sources[i]); err != nil {
			return fieldError(fmt.Sprintf("sources[%d] (%s)", i, c.Sources[i].Name), "%w", err)
		}
	}
	if c.Output.Level < 0 || c.Output.Level > 22 {
		return fieldError("output.level", "zstd level must be between 1 and 22")
	}
	if err := c.ResultLog.Validate(); err != nil {
		return fieldError("result_log", "%w", err)
	}
	if c.Retry.Enabled {
		r := c.Retry
		r.SetDefaults()
		if err := r.Validate(); err != nil {
			return fieldError("retry", "%w", err)
		}
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fieldError("schedule", "%w", err)
		}
	}
	for i := range c.Steps {
		if _, err := c.Steps[i].Step(); err != nil {
			return fieldError(fmt.Sprintf("steps[%d]", i), "%w", err)
		}
	}
	return nil
}

// Validate проверяет корректность InputConfig
func (in *InputConfig) Validate() error {
	if in.Delimiter != "" && utf8.RuneCountInString(in.Delimiter) != 1 {
		return fieldError("input.delimiter", "delimiter must be a single character, got %q", in.Delimiter)
	}
	if !ingest.ValidEncoding(in.Encoding) {
		return fieldError("input.encoding", "unsupported encoding '%s', must be one of: utf-8, windows-1251, koi8-r, cp866", in.Encoding)
	}
	for _, ext := range in.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fieldError("input.extensions", "extension %q must start with '.'", ext)
		}
	}
	if in.Workers < 0 {
		return fieldError("input.workers", "workers must be positive")
	}
	return nil
}

func validateSource(s ingest.Source) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !ingest.SupportedSource(s.Type) {
		return fmt.Errorf("unsupported type '%s', must be one of: postgres, mssql, mysql, sqlite", s.Type)
	}
	if s.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if s.Query == "" {
		return fmt.Errorf("query is required for type '%s'", s.Type)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if err := security.NewSQLValidator(!s.Unsafe).Validate(s.Query); err != nil {
		return fmt.Errorf("query rejected: %w", err)
	}
	return nil
}

// Validate проверяет корректность ResultLogConfig
func (r *ResultLogConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if r.Type != "redis" {
		return fmt.Errorf("unsupported type '%s', must be 'redis'", r.Type)
	}
	if r.Address == "" {
		return fmt.Errorf("address is required when type is 'redis'")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required when type is 'redis'")
	}
	return nil
}

// SetDefaults устанавливает значения по умолчанию для необязательных полей
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "stepflow"
	}
	if len(c.Input.Extensions) == 0 {
		c.Input.Extensions = append([]string(nil), ingest.DefaultExtensions...)
	}
	if c.Input.Delimiter == "" {
		c.Input.Delimiter = ","
	}
	if c.Input.Encoding == "" {
		c.Input.Encoding = "utf-8"
	}
	if c.Input.Workers == 0 {
		c.Input.Workers = 4
	}
	for i := range c.Sources {
		if c.Sources[i].Timeout == 0 {
			c.Sources[i].Timeout = 60 // 60 секунд по умолчанию
		}
	}
	if c.Output.Folder == "" {
		c.Output.Folder = "sql_outputs"
	}
	if c.Output.Compress && c.Output.Level == 0 {
		c.Output.Level = 3
	}
	if c.ResultLog.Type == "redis" && c.ResultLog.TTL == 0 {
		c.ResultLog.TTL = 3600 // 1 час по умолчанию
	}
	if c.Retry.Enabled {
		c.Retry.SetDefaults()
	}
}

// Definition возвращает описание конвейера из секции steps
func (c *Config) Definition() *pipeline.Definition {
	return &pipeline.Definition{Name: c.Name, Steps: c.Steps}
}

// LoaderOptions возвращает параметры разбора входных файлов
func (c *Config) LoaderOptions() ingest.Options {
	return ingest.Options{
		Delimiter: c.Input.Delimiter,
		Encoding:  c.Input.Encoding,
		Sheet:     c.Input.Sheet,
		Workers:   c.Input.Workers,
	}
}
