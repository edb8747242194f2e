// Package ingest загружает CSV/XLSX файлы и таблицы баз данных в table.Table.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/xlsx"
)

// Поддерживаемые расширения файлов
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

// DefaultExtensions - расширения, которые ищутся в папке по умолчанию
var DefaultExtensions = []string{ExtCSV, ExtXLSX}

// Options - параметры разбора файлов
type Options struct {
	Delimiter string // разделитель CSV, по умолчанию ","
	Encoding  string // utf-8, windows-1251, koi8-r, cp866
	Sheet     string // лист XLSX, по умолчанию первый
	Workers   int    // параллельность LoadFolder
}

// Loader разбирает содержимое файлов в таблицы
type Loader struct {
	opts   Options
	logger zerolog.Logger
}

// NewLoader создает загрузчик
func NewLoader(opts Options) *Loader {
	if opts.Delimiter == "" {
		opts.Delimiter = ","
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Loader{opts: opts, logger: zerolog.Nop()}
}

// WithLogger задает логгер загрузчика
func (l *Loader) WithLogger(logger zerolog.Logger) *Loader {
	l.logger = logger
	return l
}

// TableName возвращает имя таблицы для файла: имя без расширения
func TableName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load разбирает содержимое файла по его расширению
func (l *Loader) Load(filename string, data []byte) (*table.Table, error) {
	name := TableName(filename)

	var (
		t   *table.Table
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtCSV:
		t, err = l.parseCSV(name, data)
	case ExtXLSX:
		t, err = l.parseXLSX(name, data)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return nil, &LoadError{File: filename, Err: err}
	}

	l.logger.Debug().Str("file", filename).Str("table", t.Name).Int("rows", t.Len()).Int("columns", len(t.Columns)).Msg("file loaded")
	return t, nil
}

func (l *Loader) parseCSV(name string, data []byte) (*table.Table, error) {
	r, err := l.decode(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.Comma = []rune(l.opts.Delimiter)[0]
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return BuildTable(name, records[0], records[1:], nil)
}

func (l *Loader) parseXLSX(name string, data []byte) (*table.Table, error) {
	sheet, err := xlsx.Read(bytes.NewReader(data), l.opts.Sheet)
	if err != nil {
		return nil, err
	}
	return BuildTable(name, sheet.Header, sheet.Rows, sheet.Types)
}

// decode возвращает поток UTF-8 без BOM
func (l *Loader) decode(data []byte) (io.Reader, error) {
	enc, err := lookupEncoding(l.opts.Encoding)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(bytes.NewReader(data), enc.NewDecoder()), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251, nil
	case "koi8-r", "koi8r":
		return charmap.KOI8R, nil
	case "cp866", "ibm866":
		return charmap.CodePage866, nil
	}
	return nil, fmt.Errorf("unsupported encoding: %s", name)
}

// ValidEncoding проверяет имя кодировки
func ValidEncoding(name string) bool {
	_, err := lookupEncoding(name)
	return err == nil
}
