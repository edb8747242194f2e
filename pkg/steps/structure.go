package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Действия ModifyStructure
const (
	ActionAddColumn     = "add_column"
	ActionDeleteColumn  = "delete_column"
	ActionAddRow        = "add_row"
	ActionDeleteRow     = "delete_row"
	ActionRenameColumns = "rename_columns"
	ActionConvertTypes  = "convert_types"
)

var structureActions = []string{
	ActionAddColumn, ActionDeleteColumn, ActionAddRow,
	ActionDeleteRow, ActionRenameColumns, ActionConvertTypes,
}

// ModifyStructure меняет структуру или строки таблицы каталога.
// Значения приводятся нестрого: то, что не приводится к типу, становится NULL.
type ModifyStructure struct {
	Table        string            `yaml:"table"`
	Action       string            `yaml:"action"`
	NewColumn    string            `yaml:"new_column"`
	Dtype        string            `yaml:"dtype"`
	Default      string            `yaml:"default"`
	Values       []string          `yaml:"values"`
	Columns      []string          `yaml:"columns"`
	ConditionCol string            `yaml:"condition_col"`
	ConditionVal string            `yaml:"condition_val"`
	Rename       map[string]string `yaml:"rename"`
	Types        map[string]string `yaml:"types"`
}

func (s *ModifyStructure) Kind() Kind { return KindModifyStructure }

func (s *ModifyStructure) Inputs() []string { return nonEmpty(s.Table) }

func (s *ModifyStructure) dtype() schema.DataType {
	dt, err := schema.ParseType(s.Dtype)
	if err != nil {
		return schema.TypeText
	}
	return dt
}

func (s *ModifyStructure) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindModifyStructure, "table", s.Table)
	if err != nil {
		return nil, err
	}
	out := src.Clone()
	lenient := schema.NewLenientConverter()

	switch s.Action {
	case ActionAddColumn:
		if s.NewColumn == "" {
			return nil, required(KindModifyStructure, "new_column")
		}
		if out.HasColumn(s.NewColumn) {
			return nil, invalid(KindModifyStructure, "new_column", "column '%s' already exists", s.NewColumn)
		}
		dt := s.dtype()
		values := make([]schema.Value, out.Len())
		for i := range values {
			raw := s.Default
			if i < len(s.Values) {
				raw = s.Values[i]
			}
			values[i], _ = lenient.ParseValue(raw, dt)
		}
		if err := out.AddColumn(table.Column{Name: s.NewColumn, Type: dt}, values); err != nil {
			return nil, err
		}

	case ActionDeleteColumn:
		if len(s.Columns) == 0 {
			return nil, required(KindModifyStructure, "columns")
		}
		if err := out.DropColumns(s.Columns...); err != nil {
			return nil, err
		}

	case ActionAddRow:
		if len(s.Values) != len(out.Columns) {
			return nil, invalid(KindModifyStructure, "values", "got %d value(s), table %s has %d column(s)", len(s.Values), s.Table, len(out.Columns))
		}
		row := make([]schema.Value, len(out.Columns))
		for i, c := range out.Columns {
			row[i], _ = lenient.ParseValue(s.Values[i], c.Type)
		}
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}

	case ActionDeleteRow:
		if s.ConditionCol == "" {
			return nil, required(KindModifyStructure, "condition_col")
		}
		ci, err := out.MustColumn(s.ConditionCol)
		if err != nil {
			return nil, err
		}
		match := rowMatcher(out.Columns[ci].Type, s.ConditionVal)
		before := out.Len()
		out = out.Filter(func(row []schema.Value) bool { return !match(row[ci]) })
		env.Notef("deleted %d row(s)", before-out.Len())

	case ActionRenameColumns:
		if len(s.Rename) == 0 {
			return nil, required(KindModifyStructure, "rename")
		}
		if err := out.RenameColumns(s.Rename); err != nil {
			return nil, err
		}

	case ActionConvertTypes:
		if len(s.Types) == 0 {
			return nil, required(KindModifyStructure, "types")
		}
		for _, col := range sortedKeys(s.Types) {
			dt, err := schema.ParseType(s.Types[col])
			if err != nil {
				return nil, invalid(KindModifyStructure, "types."+col, "%v", err)
			}
			failed, err := out.RetypeColumn(col, dt, lenient)
			if err != nil {
				return nil, err
			}
			if failed > 0 {
				env.Notef("column %s: %d value(s) could not be converted to %s and were set to null", col, failed, s.Types[col])
			}
		}

	default:
		return nil, invalid(KindModifyStructure, "action", "unknown action '%s'", s.Action)
	}

	env.Catalog.Put(out)
	return out, nil
}

// rowMatcher сравнивает значения колонки с введенным: текст без учета
// регистра и пробелов по краям, остальные типы после приведения
func rowMatcher(t schema.DataType, raw string) func(schema.Value) bool {
	if !schema.IsTextType(t) {
		if target, err := schema.NewConverter().ParseValue(raw, t); err == nil && !target.IsNull() {
			return func(v schema.Value) bool { return schema.Equal(v, target) }
		}
	}
	return func(v schema.Value) bool { return schema.EqualText(v, raw, true) }
}

func (s *ModifyStructure) Render() (string, error) {
	if s.Table == "" {
		return "", required(KindModifyStructure, "table")
	}
	t := ident(s.Table)
	var b strings.Builder

	switch s.Action {
	case ActionAddColumn:
		if s.NewColumn == "" {
			return "", required(KindModifyStructure, "new_column")
		}
		c := ident(s.NewColumn)
		fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN %s %s", t, c, sqlTypeOf(s.dtype()))
		if s.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", quoted(s.Default))
		}
		b.WriteString(";")
		for i, v := range s.Values {
			fmt.Fprintf(&b, "\nUPDATE %s SET %s = %s WHERE rowid = %d;", t, c, sqlValue(v), i+1)
		}

	case ActionDeleteColumn:
		if len(s.Columns) == 0 {
			return "", required(KindModifyStructure, "columns")
		}
		for i, c := range s.Columns {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "ALTER TABLE %s DROP COLUMN %s;", t, ident(c))
		}

	case ActionAddRow:
		if len(s.Values) == 0 {
			return "", required(KindModifyStructure, "values")
		}
		vals := make([]string, len(s.Values))
		for i, v := range s.Values {
			vals[i] = sqlValue(v)
		}
		fmt.Fprintf(&b, "INSERT INTO %s VALUES (%s);", t, strings.Join(vals, ", "))

	case ActionDeleteRow:
		if s.ConditionCol == "" {
			return "", required(KindModifyStructure, "condition_col")
		}
		fmt.Fprintf(&b, "DELETE FROM %s WHERE %s = %s;", t, ident(s.ConditionCol), sqlValue(s.ConditionVal))

	case ActionRenameColumns:
		if len(s.Rename) == 0 {
			return "", required(KindModifyStructure, "rename")
		}
		for i, old := range sortedKeys(s.Rename) {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "ALTER TABLE %s RENAME COLUMN %s TO %s;", t, ident(old), ident(s.Rename[old]))
		}

	case ActionConvertTypes:
		if len(s.Types) == 0 {
			return "", required(KindModifyStructure, "types")
		}
		for i, col := range sortedKeys(s.Types) {
			dt, err := schema.ParseType(s.Types[col])
			if err != nil {
				return "", invalid(KindModifyStructure, "types."+col, "%v", err)
			}
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "ALTER TABLE %s ALTER COLUMN %s TYPE %s;", t, ident(col), sqlTypeOf(dt))
		}

	default:
		return "", invalid(KindModifyStructure, "action", "unknown action '%s'", s.Action)
	}
	return b.String(), nil
}

func (s *ModifyStructure) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	s.Table = choose(tables, s.Table)
	s.Action = choose(structureActions, s.Action)
	src := catalogTable(cat, s.Table)
	columns := columnNames(src, nil)

	fields := []Field{
		selectField("table", "Table", tables, s.Table),
		selectField("action", "Action", structureActions, s.Action),
	}

	switch s.Action {
	case ActionAddColumn:
		s.Dtype = choose(schema.FormTypes, s.Dtype)
		fields = append(fields,
			textField("new_column", "New column name", s.NewColumn),
			selectField("dtype", "Type", schema.FormTypes, s.Dtype),
			textField("default", "Default value", s.Default),
			Field{Key: "values", Label: "Values per row", Type: FieldText, Value: strings.Join(s.Values, ","), Help: "optional, overrides the default row by row"},
		)

	case ActionDeleteColumn:
		s.Columns = chooseMany(columns, s.Columns)
		fields = append(fields, multiField("columns", "Columns to delete", columns, s.Columns))

	case ActionAddRow:
		fields = append(fields, Field{
			Key:   "values",
			Label: "Row values",
			Type:  FieldText,
			Value: strings.Join(s.Values, ","),
			Help:  strings.Join(columns, ", "),
		})

	case ActionDeleteRow:
		s.ConditionCol = choose(columns, s.ConditionCol)
		fields = append(fields,
			selectField("condition_col", "Where column", columns, s.ConditionCol),
			textField("condition_val", "Equals", s.ConditionVal),
		)

	case ActionRenameColumns:
		if s.Rename == nil {
			s.Rename = map[string]string{}
		}
		for _, c := range columns {
			fields = append(fields, Field{Key: "rename." + c, Label: "New name for " + c, Type: FieldText, Value: s.Rename[c]})
		}

	case ActionConvertTypes:
		if s.Types == nil {
			s.Types = map[string]string{}
		}
		if src == nil {
			break
		}
		options := append([]string{""}, schema.FormTypes...)
		for _, c := range src.Columns {
			fields = append(fields, Field{
				Key:     "types." + c.Name,
				Label:   fmt.Sprintf("%s (%s)", c.Name, schema.FormName(c.Type)),
				Type:    FieldSelect,
				Options: options,
				Value:   s.Types[c.Name],
			})
		}
	}
	return fields
}
