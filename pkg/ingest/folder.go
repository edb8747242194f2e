package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// FolderResult - итог загрузки папки
type FolderResult struct {
	Tables []*table.Table // в порядке имен файлов
	Errors []*LoadError
}

// LoadFolder загружает из папки dir все файлы с расширениями exts.
// Ошибка отдельного файла попадает в Errors, остальные файлы загружаются.
// Ошибка возвращается только если папку нельзя прочитать или отменен контекст.
func (l *Loader) LoadFolder(ctx context.Context, dir string, exts []string) (*FolderResult, error) {
	files, err := ScanFolder(dir, exts)
	if err != nil {
		return nil, err
	}

	tables := make([]*table.Table, len(files))
	errs := make([]*LoadError, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				errs[i] = &LoadError{File: filepath.Base(path), Err: err}
				return nil
			}
			t, err := l.Load(filepath.Base(path), data)
			if err != nil {
				errs[i] = err.(*LoadError)
				return nil
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &FolderResult{}
	for i := range files {
		if errs[i] != nil {
			l.logger.Warn().Err(errs[i].Err).Str("file", errs[i].File).Msg("file skipped")
			result.Errors = append(result.Errors, errs[i])
			continue
		}
		result.Tables = append(result.Tables, tables[i])
	}
	l.logger.Info().Str("folder", dir).Int("tables", len(result.Tables)).Int("errors", len(result.Errors)).Msg("folder loaded")
	return result, nil
}

// ScanFolder возвращает отсортированные пути файлов с указанными расширениями
// (без учета регистра). Подпапки не просматриваются.
func ScanFolder(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == strings.ToLower(want) {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
