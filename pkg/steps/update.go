package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Update присваивает UpdateCol значение NewValue в строках, где ConditionCol
// равна ConditionVal (сравнение строкового представления без пробелов по краям).
// Rows ограничивает обновление выбранными номерами строк.
type Update struct {
	Table        string `yaml:"table"`
	ConditionCol string `yaml:"condition_col"`
	ConditionVal string `yaml:"condition_val"`
	UpdateCol    string `yaml:"update_col"`
	NewValue     string `yaml:"new_value"`
	Rows         []int  `yaml:"rows"`
}

func (s *Update) Kind() Kind { return KindUpdate }

func (s *Update) Inputs() []string { return nonEmpty(s.Table) }

func (s *Update) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindUpdate, "table", s.Table)
	if err != nil {
		return nil, err
	}
	if s.ConditionCol == "" {
		return nil, required(KindUpdate, "condition_col")
	}
	if s.UpdateCol == "" {
		return nil, required(KindUpdate, "update_col")
	}
	ci, err := src.MustColumn(s.ConditionCol)
	if err != nil {
		return nil, err
	}
	if _, err := src.MustColumn(s.UpdateCol); err != nil {
		return nil, err
	}

	var selected map[int]bool
	if len(s.Rows) > 0 {
		selected = make(map[int]bool, len(s.Rows))
		for _, r := range s.Rows {
			selected[r] = true
		}
	}

	out := src.Clone()
	ui := out.ColumnIndex(s.UpdateCol)
	want := strings.TrimSpace(s.ConditionVal)

	value, err := schema.NewConverter().ParseValue(s.NewValue, out.Columns[ui].Type)
	if err != nil {
		// значение не подходит к типу колонки - колонка становится текстовой
		if _, err := out.RetypeColumn(s.UpdateCol, schema.TypeText, schema.NewConverter()); err != nil {
			return nil, err
		}
		value = schema.Text(s.NewValue)
		env.Notef("column %s converted to text to hold '%s'", s.UpdateCol, s.NewValue)
	}

	updated := 0
	for r, row := range out.Rows {
		if selected != nil && !selected[r] {
			continue
		}
		if row[ci].IsNull() || strings.TrimSpace(row[ci].String()) != want {
			continue
		}
		row[ui] = value
		updated++
	}

	env.Catalog.Put(out)
	env.Notef("updated %d row(s) in %s", updated, s.Table)
	return out, nil
}

func (s *Update) Render() (string, error) {
	switch {
	case s.Table == "":
		return "", required(KindUpdate, "table")
	case s.UpdateCol == "":
		return "", required(KindUpdate, "update_col")
	case s.ConditionCol == "":
		return "", required(KindUpdate, "condition_col")
	}
	return fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		ident(s.Table), ident(s.UpdateCol), quoted(s.NewValue),
		ident(s.ConditionCol), quoted(s.ConditionVal)), nil
}

func (s *Update) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	s.Table = choose(tables, s.Table)
	src := catalogTable(cat, s.Table)
	columns := columnNames(src, nil)
	s.ConditionCol = choose(columns, s.ConditionCol)
	s.UpdateCol = choose(columns, s.UpdateCol)

	var kept []int
	for _, r := range s.Rows {
		if r >= 0 && r < src.Len() {
			kept = append(kept, r)
		}
	}
	s.Rows = kept
	rows := make([]string, len(kept))
	for i, r := range kept {
		rows[i] = fmt.Sprint(r)
	}

	return []Field{
		selectField("table", "Table", tables, s.Table),
		selectField("condition_col", "Where column", columns, s.ConditionCol),
		textField("condition_val", "Equals", s.ConditionVal),
		selectField("update_col", "Column to update", columns, s.UpdateCol),
		textField("new_value", "New value", s.NewValue),
		{Key: "rows", Label: "Rows", Type: FieldText, Value: strings.Join(rows, ","), Help: "row numbers to restrict the update, empty for all"},
	}
}
