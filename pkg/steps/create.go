package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// CreateAndSave создает таблицу OutputName из выбранных колонок базовой
// таблицы и/или колонок с ручным вводом и регистрирует ее в каталоге.
// Колонки базовой таблицы и ручного ввода склеиваются по номеру строки.
type CreateAndSave struct {
	OutputName  string            `yaml:"output_name"`
	BaseTable   string            `yaml:"base_table"`
	BaseColumns []string          `yaml:"base_columns"`
	Columns     []string          `yaml:"columns"`
	Types       map[string]string `yaml:"types"`
	Rows        string            `yaml:"rows"`
}

func (c *CreateAndSave) Kind() Kind { return KindCreateAndSave }

func (c *CreateAndSave) Inputs() []string {
	if len(c.BaseColumns) == 0 {
		return nil
	}
	return nonEmpty(c.BaseTable)
}

func (c *CreateAndSave) outputName() string {
	if c.OutputName == "" {
		return "new_table"
	}
	return c.OutputName
}

func (c *CreateAndSave) Execute(env *Env) (*table.Table, error) {
	var base *table.Table
	if c.BaseTable != "" && len(c.BaseColumns) > 0 {
		src, err := env.lookup(KindCreateAndSave, "base_table", c.BaseTable)
		if err != nil {
			return nil, err
		}
		if base, err = src.Project(c.BaseColumns); err != nil {
			return nil, err
		}
	}

	var custom *table.Table
	if len(c.Columns) > 0 {
		var rows [][]string
		for _, r := range parseRows(c.Rows) {
			if len(r) != len(c.Columns) {
				env.Notef("skipped row with %d value(s), expected %d", len(r), len(c.Columns))
				continue
			}
			rows = append(rows, r)
		}
		if len(rows) > 0 {
			custom = buildTyped(env, c.outputName(), c.Columns, c.Types, rows)
		}
	}

	var out *table.Table
	switch {
	case base == nil && custom == nil:
		return nil, invalid(KindCreateAndSave, "", "no data provided from base table or manual input")
	case custom == nil:
		out = base
	case base == nil:
		out = custom
	default:
		var err error
		if out, err = concatColumns(base, custom); err != nil {
			return nil, err
		}
	}

	out.Name = c.outputName()
	env.Catalog.Put(out)
	env.Notef("table %s saved with %d row(s)", out.Name, out.Len())
	return out, nil
}

// concatColumns склеивает таблицы по номеру строки; короткая дополняется NULL
func concatColumns(a, b *table.Table) (*table.Table, error) {
	out := a.Clone()
	n := a.Len()
	if b.Len() > n {
		n = b.Len()
	}
	for len(out.Rows) < n {
		out.Rows = append(out.Rows, make([]schema.Value, len(out.Columns)))
	}
	for i, col := range b.Columns {
		values := make([]schema.Value, n)
		for r := 0; r < b.Len(); r++ {
			values[r] = b.Rows[r][i]
		}
		if err := out.AddColumn(col, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *CreateAndSave) Render() (string, error) {
	if len(c.Columns) == 0 && (c.BaseTable == "" || len(c.BaseColumns) == 0) {
		return "", invalid(KindCreateAndSave, "", "no columns to create")
	}
	name := ident(c.outputName())

	var defs []string
	for _, col := range c.BaseColumns {
		defs = append(defs, ident(col))
	}
	for _, col := range c.Columns {
		dt, err := schema.ParseType(c.Types[col])
		if err != nil {
			dt = schema.TypeText
		}
		defs = append(defs, ident(col)+" "+sqlTypeOf(dt))
	}

	var b strings.Builder
	if len(c.BaseColumns) > 0 && c.BaseTable != "" {
		fmt.Fprintf(&b, "-- %s copied from %s by row position\n", identList(c.BaseColumns), ident(c.BaseTable))
	}
	fmt.Fprintf(&b, "CREATE TABLE %s (%s);", name, strings.Join(defs, ", "))
	for _, r := range parseRows(c.Rows) {
		if len(r) != len(c.Columns) {
			continue
		}
		vals := make([]string, len(r))
		for i, v := range r {
			vals[i] = typedSQLValue(v, c.Types[c.Columns[i]])
		}
		fmt.Fprintf(&b, "\nINSERT INTO %s (%s) VALUES (%s);", name, identList(c.Columns), strings.Join(vals, ", "))
	}
	return b.String(), nil
}

// typedSQLValue печатает значение по объявленному типу колонки:
// строки и даты в кавычках, пустое значение - NULL
func typedSQLValue(v, declared string) string {
	if emptyAsNull(v) {
		return "NULL"
	}
	dt, err := schema.ParseType(declared)
	if err != nil || dt == schema.TypeText || dt == schema.TypeTimestamp {
		return quoted(v)
	}
	if isNumber(v) || dt == schema.TypeBoolean {
		return strings.TrimSpace(v)
	}
	return quoted(v)
}

func (c *CreateAndSave) Form(cat table.Catalog) []Field {
	tables := append([]string{""}, tableNames(cat)...)
	c.BaseTable = choose(tables, c.BaseTable)
	baseCols := columnNames(catalogTable(cat, c.BaseTable), nil)
	c.BaseColumns = chooseMany(baseCols, c.BaseColumns)

	fields := []Field{
		textField("output_name", "New table name", c.outputName()),
		Field{Key: "base_table", Label: "Base table (optional)", Type: FieldSelect, Options: tables, Value: c.BaseTable},
		multiField("base_columns", "Columns from base table", baseCols, c.BaseColumns),
		textField("columns", "Custom columns", strings.Join(c.Columns, ",")),
	}
	for _, col := range c.Columns {
		t := choose(schema.FormTypes, c.Types[col])
		if c.Types == nil {
			c.Types = map[string]string{}
		}
		c.Types[col] = t
		fields = append(fields, selectField("types."+col, "Type of "+col, schema.FormTypes, t))
	}
	fields = append(fields, Field{
		Key:   "rows",
		Label: "Rows",
		Type:  FieldTextarea,
		Value: c.Rows,
		Help:  "comma-separated values, one row per line or separated by ';'",
	})
	return fields
}
