package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Типы колонок формы CreateWithPrimaryKey
var pkTypes = []string{"INT", "TEXT", "FLOAT", "DATE", "BOOLEAN"}

// CreateWithPrimaryKey создает таблицу с первичным ключом из ручного ввода.
// Строка с неверным количеством значений - ошибка шага.
type CreateWithPrimaryKey struct {
	OutputName string            `yaml:"output_name"`
	Columns    []string          `yaml:"columns"`
	Types      map[string]string `yaml:"types"`
	PrimaryKey string            `yaml:"primary_key"`
	Rows       string            `yaml:"rows"`
}

func (c *CreateWithPrimaryKey) Kind() Kind { return KindCreateWithPrimaryKey }

func (c *CreateWithPrimaryKey) Inputs() []string { return nil }

func (c *CreateWithPrimaryKey) outputName() string {
	if c.OutputName == "" {
		return "new_table"
	}
	return c.OutputName
}

func (c *CreateWithPrimaryKey) columnType(col string) string {
	if t := strings.ToUpper(strings.TrimSpace(c.Types[col])); t != "" {
		return t
	}
	return "TEXT"
}

func (c *CreateWithPrimaryKey) validate() error {
	if len(c.Columns) == 0 {
		return required(KindCreateWithPrimaryKey, "columns")
	}
	if c.PrimaryKey == "" {
		return required(KindCreateWithPrimaryKey, "primary_key")
	}
	if !allowed(c.Columns, c.PrimaryKey) {
		return invalid(KindCreateWithPrimaryKey, "primary_key", "'%s' is not one of the columns", c.PrimaryKey)
	}
	return nil
}

func (c *CreateWithPrimaryKey) Execute(env *Env) (*table.Table, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	rows := parseRows(c.Rows)
	for i, r := range rows {
		if len(r) != len(c.Columns) {
			return nil, invalid(KindCreateWithPrimaryKey, "rows", "row %d has %d value(s), expected %d", i+1, len(r), len(c.Columns))
		}
	}

	types := make(map[string]string, len(c.Columns))
	for _, col := range c.Columns {
		types[col] = c.columnType(col)
	}
	out := buildTyped(env, c.outputName(), c.Columns, types, rows)

	pk := out.ColumnIndex(c.PrimaryKey)
	seen := make(map[string]bool)
	for _, row := range out.Rows {
		key := table.Key(row[pk])
		if seen[key] {
			env.Notef("duplicate primary key value %s", row[pk].String())
		}
		seen[key] = true
	}

	env.Catalog.Put(out)
	return out, nil
}

func (c *CreateWithPrimaryKey) Render() (string, error) {
	if len(c.Columns) == 0 {
		return "", invalid(KindCreateWithPrimaryKey, "", "columns or data types missing")
	}
	if err := c.validate(); err != nil {
		return "", err
	}
	name := ident(c.outputName())

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", name)
	for _, col := range c.Columns {
		fmt.Fprintf(&b, "    %s %s,\n", ident(col), c.columnType(col))
	}
	fmt.Fprintf(&b, "    PRIMARY KEY (%s)\n);\n", ident(c.PrimaryKey))

	for _, r := range parseRows(c.Rows) {
		if len(r) != len(c.Columns) {
			continue
		}
		vals := make([]string, len(r))
		for i, v := range r {
			switch c.columnType(c.Columns[i]) {
			case "TEXT", "DATE":
				vals[i] = quoted(v)
			default:
				vals[i] = sqlValue(v)
			}
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s);\n", name, identList(c.Columns), strings.Join(vals, ", "))
	}
	return b.String(), nil
}

func (c *CreateWithPrimaryKey) Form(cat table.Catalog) []Field {
	fields := []Field{
		textField("output_name", "Table name", c.outputName()),
		textField("columns", "Columns", strings.Join(c.Columns, ",")),
	}
	if c.Types == nil {
		c.Types = map[string]string{}
	}
	for _, col := range c.Columns {
		c.Types[col] = choose(pkTypes, c.columnType(col))
		fields = append(fields, selectField("types."+col, "Type of "+col, pkTypes, c.Types[col]))
	}
	c.PrimaryKey = choose(c.Columns, c.PrimaryKey)
	fields = append(fields,
		selectField("primary_key", "Primary key", c.Columns, c.PrimaryKey),
		Field{Key: "rows", Label: "Rows", Type: FieldTextarea, Value: c.Rows, Help: "one row per line, values separated by commas"},
	)
	return fields
}
