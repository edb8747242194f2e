package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat - расширение файла не поддерживается
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile - в файле нет строки заголовков
	ErrEmptyFile = errors.New("file has no header row")
)

// LoadError - ошибка загрузки одного файла или источника.
// Загрузка остальных файлов продолжается.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
