package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Delete удаляет строки, где ConditionCol равна ConditionVal.
// Значение приводится к типу колонки; если не приводится - сравниваются строки.
type Delete struct {
	Table        string `yaml:"table"`
	ConditionCol string `yaml:"condition_col"`
	ConditionVal string `yaml:"condition_val"`
}

func (s *Delete) Kind() Kind { return KindDelete }

func (s *Delete) Inputs() []string { return nonEmpty(s.Table) }

func (s *Delete) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindDelete, "table", s.Table)
	if err != nil {
		return nil, err
	}
	if s.ConditionCol == "" {
		return nil, required(KindDelete, "condition_col")
	}
	ci, err := src.MustColumn(s.ConditionCol)
	if err != nil {
		return nil, err
	}

	match := func(v schema.Value) bool {
		return !v.IsNull() && strings.TrimSpace(v.String()) == strings.TrimSpace(s.ConditionVal)
	}
	if target, err := schema.NewConverter().ParseValue(s.ConditionVal, src.Columns[ci].Type); err == nil && !target.IsNull() {
		match = func(v schema.Value) bool { return schema.Equal(v, target) }
	}

	out := src.Filter(func(row []schema.Value) bool { return !match(row[ci]) })
	deleted := src.Len() - out.Len()
	env.Catalog.Put(out)
	env.Notef("Deleted %d row(s)", deleted)
	return out, nil
}

func (s *Delete) Render() (string, error) {
	if s.Table == "" {
		return "", required(KindDelete, "table")
	}
	if s.ConditionCol == "" {
		return "", invalid(KindDelete, "condition_col", "missing condition")
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s;", ident(s.Table), ident(s.ConditionCol), quoted(s.ConditionVal)), nil
}

func (s *Delete) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	s.Table = choose(tables, s.Table)
	columns := columnNames(catalogTable(cat, s.Table), nil)
	s.ConditionCol = choose(columns, s.ConditionCol)
	return []Field{
		selectField("table", "Table", tables, s.Table),
		selectField("condition_col", "Where column", columns, s.ConditionCol),
		textField("condition_val", "Equals", s.ConditionVal),
	}
}
