package ingest

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// InferTypes определяет тип каждой колонки по непустым ячейкам.
// Колонка INTEGER, если все значения целые; REAL, если все числа;
// BOOLEAN для true/false; TIMESTAMP для дат; иначе TEXT.
func InferTypes(columns int, rows [][]string) []schema.DataType {
	conv := schema.NewConverter()
	types := make([]schema.DataType, columns)
	for col := 0; col < columns; col++ {
		var current schema.DataType
		for _, row := range rows {
			if col >= len(row) || isNullToken(row[col]) {
				continue
			}
			current = widen(current, conv.Infer(row[col]))
			if current == schema.TypeText {
				break
			}
		}
		if current == "" {
			current = schema.TypeText
		}
		types[col] = current
	}
	return types
}

// widen объединяет тип колонки с типом очередного значения
func widen(current, next schema.DataType) schema.DataType {
	switch {
	case current == "" || current == next:
		return next
	case next == "":
		return current
	case isNumber(current) && isNumber(next):
		return schema.TypeReal
	default:
		return schema.TypeText
	}
}

func isNumber(t schema.DataType) bool {
	return t == schema.TypeInteger || t == schema.TypeReal
}

func isNullToken(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan")
}

// BuildTable собирает таблицу из заголовка и строковых ячеек.
// При types == nil типы определяются по данным.
func BuildTable(name string, header []string, rows [][]string, types []schema.DataType) (*table.Table, error) {
	if len(header) == 0 {
		return nil, ErrEmptyFile
	}
	if types == nil {
		types = InferTypes(len(header), rows)
	}

	columns := make([]table.Column, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		colName := strings.TrimSpace(h)
		if colName == "" {
			colName = fmt.Sprintf("column_%d", i+1)
		}
		// повторяющиеся имена получают суффикс .N
		if n, dup := seen[colName]; dup {
			seen[colName] = n + 1
			colName = fmt.Sprintf("%s.%d", colName, n)
		} else {
			seen[colName] = 1
		}
		columns[i] = table.Column{Name: colName, Type: types[i]}
	}

	conv := schema.NewLenientConverter()
	t := table.New(name, columns...)
	t.Rows = make([][]schema.Value, 0, len(rows))
	for _, raw := range rows {
		row := make([]schema.Value, len(columns))
		for j, c := range columns {
			cell := ""
			if j < len(raw) {
				cell = raw[j]
			}
			if c.Type == schema.TypeText && isNullToken(cell) {
				row[j] = schema.Null()
				continue
			}
			row[j], _ = conv.ParseValue(cell, c.Type)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
