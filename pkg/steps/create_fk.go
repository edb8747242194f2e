package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// SQL типы колонок CreateWithForeignLink
var fkSQLTypes = map[string]string{
	schema.FormInt:      "INTEGER",
	schema.FormFloat:    "FLOAT",
	schema.FormStr:      "VARCHAR(255)",
	schema.FormDatetime: "TIMESTAMP",
}

// CreateWithForeignLink создает таблицу из ручного ввода, первая колонка
// которой (FKColumn) ссылается на колонку другой таблицы. Ссылка
// информационная: значения без пары в FKTable только отмечаются.
type CreateWithForeignLink struct {
	OutputName string            `yaml:"output_name"`
	FKTable    string            `yaml:"fk_table"`
	FKColumn   string            `yaml:"fk_column"`
	Columns    []string          `yaml:"columns"`
	Types      map[string]string `yaml:"types"`
	Rows       string            `yaml:"rows"`
}

func (c *CreateWithForeignLink) Kind() Kind { return KindCreateWithForeignLink }

func (c *CreateWithForeignLink) Inputs() []string {
	if c.FKColumn == "" {
		return nil
	}
	return nonEmpty(c.FKTable)
}

func (c *CreateWithForeignLink) outputName() string {
	if c.OutputName == "" {
		return "new_table"
	}
	return c.OutputName
}

func (c *CreateWithForeignLink) linked() bool {
	return c.FKTable != "" && c.FKColumn != ""
}

// fullColumns - колонки с колонкой ссылки первой
func (c *CreateWithForeignLink) fullColumns() []string {
	if !c.linked() || allowed(c.Columns, c.FKColumn) {
		return c.Columns
	}
	return append([]string{c.FKColumn}, c.Columns...)
}

func (c *CreateWithForeignLink) formType(col string) string {
	if c.linked() && col == c.FKColumn && c.Types[col] == "" {
		return schema.FormStr
	}
	t := strings.ToLower(strings.TrimSpace(c.Types[col]))
	if _, ok := fkSQLTypes[t]; ok {
		return t
	}
	return schema.FormStr
}

func (c *CreateWithForeignLink) Execute(env *Env) (*table.Table, error) {
	columns := c.fullColumns()
	if len(columns) == 0 {
		return nil, required(KindCreateWithForeignLink, "columns")
	}

	var rows [][]string
	for _, r := range parseRows(c.Rows) {
		if len(r) != len(columns) {
			env.Notef("skipped row with %d value(s), expected %d", len(r), len(columns))
			continue
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil, invalid(KindCreateWithForeignLink, "rows", "no valid rows entered")
	}

	types := make(map[string]string, len(columns))
	for _, col := range columns {
		types[col] = c.formType(col)
	}
	out := buildTyped(env, c.outputName(), columns, types, rows)

	if c.linked() {
		ref, err := env.lookup(KindCreateWithForeignLink, "fk_table", c.FKTable)
		if err != nil {
			return nil, err
		}
		ri, err := ref.MustColumn(c.FKColumn)
		if err != nil {
			return nil, err
		}
		known := make(map[string]bool, ref.Len())
		for _, row := range ref.Rows {
			known[strings.TrimSpace(row[ri].String())] = true
		}
		li := out.ColumnIndex(c.FKColumn)
		missing := 0
		for _, row := range out.Rows {
			if !row[li].IsNull() && !known[strings.TrimSpace(row[li].String())] {
				missing++
			}
		}
		if missing > 0 {
			env.Notef("%d row(s) reference %s values not present in %s", missing, c.FKColumn, c.FKTable)
		}
	}

	env.Catalog.Put(out)
	return out, nil
}

func (c *CreateWithForeignLink) Render() (string, error) {
	columns := c.fullColumns()
	rows := parseRows(c.Rows)
	if len(columns) == 0 || len(rows) == 0 {
		return "", invalid(KindCreateWithForeignLink, "", "missing data or columns for %s", c.outputName())
	}
	name := ident(c.outputName())

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = ident(col) + " " + fkSQLTypes[c.formType(col)]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s);", name, strings.Join(defs, ", "))
	for _, r := range rows {
		if len(r) != len(columns) {
			continue
		}
		vals := make([]string, len(r))
		for i, v := range r {
			switch {
			case emptyAsNull(v):
				vals[i] = "NULL"
			case c.formType(columns[i]) == schema.FormStr || c.formType(columns[i]) == schema.FormDatetime:
				vals[i] = quoted(v)
			default:
				vals[i] = sqlValue(v)
			}
		}
		fmt.Fprintf(&b, "\nINSERT INTO %s (%s) VALUES (%s);", name, identList(columns), strings.Join(vals, ", "))
	}
	return b.String(), nil
}

func (c *CreateWithForeignLink) Form(cat table.Catalog) []Field {
	tables := append([]string{""}, tableNames(cat)...)
	c.FKTable = choose(tables, c.FKTable)
	refCols := columnNames(catalogTable(cat, c.FKTable), nil)
	if c.FKTable == "" {
		c.FKColumn = ""
	} else {
		c.FKColumn = choose(refCols, c.FKColumn)
	}

	fields := []Field{
		textField("output_name", "Table name", c.outputName()),
		{Key: "fk_table", Label: "Referenced table (optional)", Type: FieldSelect, Options: tables, Value: c.FKTable},
		{Key: "fk_column", Label: "Referenced column", Type: FieldSelect, Options: refCols, Value: c.FKColumn},
		textField("columns", "Columns", strings.Join(c.Columns, ",")),
	}
	if c.Types == nil {
		c.Types = map[string]string{}
	}
	for _, col := range c.Columns {
		c.Types[col] = c.formType(col)
		fields = append(fields, selectField("types."+col, "Type of "+col, schema.FormTypes, c.Types[col]))
	}
	help := "values separated by commas, rows separated by ';'"
	if c.linked() {
		help = fmt.Sprintf("first value of each row is %s.%s", c.FKTable, c.FKColumn)
	}
	fields = append(fields, Field{Key: "rows", Label: "Rows", Type: FieldTextarea, Value: c.Rows, Help: help})
	return fields
}
