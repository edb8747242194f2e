// Package export сохраняет результаты шагов: CSV по шагам, книгу XLSX и манифест.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

// StepOutputsDir - подпапка выходной папки для файлов шагов
const StepOutputsDir = "step_outputs"

// Options - параметры экспорта
type Options struct {
	Folder   string // выходная папка
	Compress bool   // писать .csv.zst
	Level    int    // уровень zstd, 1-22
}

// Exporter пишет файлы шагов в <Folder>/step_outputs
type Exporter struct {
	dir     string
	encoder *zstd.Encoder
	files   []FileEntry
	logger  zerolog.Logger
}

// EnsureDir создает <folder>/step_outputs и возвращает ее путь
func EnsureDir(folder string) (string, error) {
	if strings.TrimSpace(folder) == "" {
		return "", fmt.Errorf("output folder is not set")
	}
	dir := filepath.Join(folder, StepOutputsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create %s folder: %w", StepOutputsDir, err)
	}
	return dir, nil
}

// NewExporter создает экспортер и папку для файлов шагов
func NewExporter(opts Options) (*Exporter, error) {
	dir, err := EnsureDir(opts.Folder)
	if err != nil {
		return nil, err
	}
	e := &Exporter{dir: dir, logger: zerolog.Nop()}

	if opts.Compress {
		level := opts.Level
		if level <= 0 {
			level = 3
		}
		e.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	return e, nil
}

// WithLogger задает логгер экспортера
func (e *Exporter) WithLogger(logger zerolog.Logger) *Exporter {
	e.logger = logger
	return e
}

// Dir возвращает папку файлов шагов
func (e *Exporter) Dir() string {
	return e.dir
}

// Close освобождает энкодер
func (e *Exporter) Close() {
	if e.encoder != nil {
		e.encoder.Close()
	}
}

// StepFileName возвращает имя файла шага: step_<n>_<название шага>.csv,
// название в нижнем регистре, пробелы заменены на "_"
func StepFileName(n int, kind steps.Kind) string {
	title := strings.ToLower(strings.ReplaceAll(kind.Title(), " ", "_"))
	return fmt.Sprintf("step_%d_%s.csv", n, title)
}

// WriteStep сохраняет результат шага n и возвращает путь файла
func (e *Exporter) WriteStep(n int, kind steps.Kind, t *table.Table) (string, error) {
	if t == nil {
		return "", fmt.Errorf("step %d has no output", n)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return "", fmt.Errorf("failed to encode step %d: %w", n, err)
	}
	data := buf.Bytes()

	name := StepFileName(n, kind)
	if e.encoder != nil {
		data = e.encoder.EncodeAll(data, nil)
		name += ".zst"
	}

	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	e.files = append(e.files, FileEntry{
		File:     name,
		Step:     n,
		Kind:     kind,
		Rows:     t.Len(),
		Size:     int64(len(data)),
		Checksum: Checksum(data),
	})
	e.logger.Debug().Str("file", name).Int("step", n).Int("rows", t.Len()).Msg("step output written")
	return path, nil
}

// WriteCSV пишет таблицу в CSV: строка заголовков, затем строки; NULL - пустая ячейка
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = row[i].String()
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decompress распаковывает файл шага, записанный с Compress
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
