package export

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
	"github.com/ruslano69/tdtp-stepflow/pkg/xlsx"
)

// Имена итоговых файлов в папке step_outputs
const (
	WorkbookFile = "steps.xlsx"
	ManifestFile = "manifest.json"
)

// FileEntry - запись манифеста о файле шага
type FileEntry struct {
	File     string     `json:"file"`
	Step     int        `json:"step"`
	Kind     steps.Kind `json:"kind"`
	Rows     int        `json:"rows"`
	Size     int64      `json:"size"`
	Checksum string     `json:"xxh3"`
}

// Manifest - описание файлов прохода
type Manifest struct {
	RunID     string      `json:"run_id"`
	Pipeline  string      `json:"pipeline,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Files     []FileEntry `json:"files"`
	Failed    []int       `json:"failed_steps,omitempty"`
}

// Checksum вычисляет xxh3 хеш данных в hex
func Checksum(data []byte) string {
	h := xxh3.Hash(data)
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(h)
		h >>= 8
	}
	return hex.EncodeToString(b)
}

// WriteReport сохраняет результаты успешных шагов прохода.
// Ошибка записи одного файла не останавливает запись остальных.
func (e *Exporter) WriteReport(report *pipeline.RunReport) ([]string, []error) {
	var (
		paths []string
		errs  []error
	)
	for _, s := range report.Steps {
		if s.Err != nil {
			continue
		}
		path, err := e.WriteStep(s.Number, s.Kind, s.Table)
		if err != nil {
			e.logger.Error().Err(err).Int("step", s.Number).Msg("step output not written")
			errs = append(errs, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}

// WriteWorkbook сохраняет результаты успешных шагов в одну книгу, лист на шаг
func (e *Exporter) WriteWorkbook(report *pipeline.RunReport) (string, error) {
	var (
		tables []*table.Table
		names  []string
	)
	for _, s := range report.Steps {
		if s.Err != nil || s.Table == nil {
			continue
		}
		tables = append(tables, s.Table)
		names = append(names, fmt.Sprintf("%s %s", s.Name, s.Kind.Title()))
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("no successful steps to write")
	}

	path := filepath.Join(e.dir, WorkbookFile)
	if err := xlsx.WriteTables(path, tables, names); err != nil {
		return "", fmt.Errorf("failed to write workbook: %w", err)
	}
	e.logger.Debug().Str("file", WorkbookFile).Int("sheets", len(tables)).Msg("workbook written")
	return path, nil
}

// WriteManifest сохраняет manifest.json по файлам, записанным WriteStep
func (e *Exporter) WriteManifest(report *pipeline.RunReport) (string, error) {
	m := Manifest{
		RunID:     report.ID.String(),
		Pipeline:  report.Pipeline,
		CreatedAt: report.EndTime,
		Files:     e.files,
	}
	for _, s := range report.Steps {
		if s.Err != nil {
			m.Failed = append(m.Failed, s.Number)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(e.dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Files возвращает записи о файлах, записанных WriteStep
func (e *Exporter) Files() []FileEntry {
	return e.files
}
