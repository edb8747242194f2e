package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Insert добавляет одну строку в таблицу каталога.
// Values - значения по именам колонок; незаданные колонки получают NULL.
type Insert struct {
	Table   string            `yaml:"table"`
	Columns []string          `yaml:"columns"`
	Values  map[string]string `yaml:"values"`
}

func (s *Insert) Kind() Kind { return KindInsert }

func (s *Insert) Inputs() []string { return nonEmpty(s.Table) }

// order возвращает колонки вставки: Columns или отсортированные ключи Values
func (s *Insert) order() []string {
	if len(s.Columns) > 0 {
		return s.Columns
	}
	return sortedKeys(s.Values)
}

func (s *Insert) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindInsert, "table", s.Table)
	if err != nil {
		return nil, err
	}
	if len(s.Values) == 0 {
		return nil, required(KindInsert, "values")
	}

	conv := schema.NewConverter()
	row := make([]schema.Value, len(src.Columns))
	for name, raw := range s.Values {
		idx := src.ColumnIndex(name)
		if idx < 0 {
			return nil, invalid(KindInsert, "values", "column '%s' not found in %s", name, s.Table)
		}
		v, err := conv.ParseValue(raw, src.Columns[idx].Type)
		if err != nil {
			return nil, invalid(KindInsert, "values."+name, "%v", err)
		}
		row[idx] = v
	}

	out := src.Clone()
	if err := out.AppendRow(row); err != nil {
		return nil, err
	}
	env.Catalog.Put(out)
	env.Notef("inserted 1 row into %s", s.Table)
	return out, nil
}

func (s *Insert) Render() (string, error) {
	if s.Table == "" {
		return "", required(KindInsert, "table")
	}
	cols := s.order()
	if len(cols) == 0 {
		return "", required(KindInsert, "values")
	}
	vals := make([]string, len(cols))
	for i, c := range cols {
		v, ok := s.Values[c]
		if !ok || emptyAsNull(v) {
			vals[i] = "NULL"
			continue
		}
		vals[i] = quoted(v)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ident(s.Table), identList(cols), strings.Join(vals, ", ")), nil
}

func (s *Insert) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	s.Table = choose(tables, s.Table)
	src := catalogTable(cat, s.Table)

	fields := []Field{selectField("table", "Table", tables, s.Table)}
	if src == nil {
		return fields
	}
	s.Columns = src.ColumnNames()
	if s.Values == nil {
		s.Values = map[string]string{}
	}
	for k := range s.Values {
		if !src.HasColumn(k) {
			delete(s.Values, k)
		}
	}
	for _, c := range src.Columns {
		fields = append(fields, Field{
			Key:   "values." + c.Name,
			Label: fmt.Sprintf("%s (%s)", c.Name, schema.FormName(c.Type)),
			Type:  FieldText,
			Value: s.Values[c.Name],
		})
	}
	return fields
}
