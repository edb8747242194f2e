package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// AggregateColumn сворачивает колонку в одно значение.
// Результат - таблица из одной строки и одной колонки Alias
// (по умолчанию {func}_{col}).
type AggregateColumn struct {
	Table    string `yaml:"table"`
	Column   string `yaml:"column"`
	Function string `yaml:"function"`
	Alias    string `yaml:"alias"`
}

func (a *AggregateColumn) Kind() Kind { return KindAggregateColumn }

func (a *AggregateColumn) Inputs() []string { return nonEmpty(a.Table) }

func (a *AggregateColumn) function() (string, error) {
	fn := strings.ToLower(strings.TrimSpace(a.Function))
	if fn == "" {
		return "", required(KindAggregateColumn, "function")
	}
	if !isAggregateFunction(fn) {
		return "", invalid(KindAggregateColumn, "function", "unsupported function '%s'", a.Function)
	}
	return fn, nil
}

func (a *AggregateColumn) alias(fn string) string {
	if a.Alias != "" {
		return a.Alias
	}
	return fn + "_" + a.Column
}

func (a *AggregateColumn) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindAggregateColumn, "table", a.Table)
	if err != nil {
		return nil, err
	}
	if a.Column == "" {
		return nil, required(KindAggregateColumn, "column")
	}
	fn, err := a.function()
	if err != nil {
		return nil, err
	}
	idx, err := src.MustColumn(a.Column)
	if err != nil {
		return nil, err
	}

	v, err := expr.Aggregate(fn, src.ColumnValues(idx))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s(%s): %w", fn, a.Column, err)
	}

	out := table.New(src.Name, table.Column{
		Name: a.alias(fn),
		Type: aggregateType(fn, src.Columns[idx].Type),
	})
	out.Rows = append(out.Rows, []schema.Value{v})
	return out, nil
}

func (a *AggregateColumn) Render() (string, error) {
	if a.Table == "" {
		return "", required(KindAggregateColumn, "table")
	}
	if a.Column == "" {
		return "", required(KindAggregateColumn, "column")
	}
	fn, err := a.function()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s(%s) AS %s FROM %s",
		sqlAggregate(fn), ident(a.Column), ident(a.alias(fn)), ident(a.Table)), nil
}

func (a *AggregateColumn) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	a.Table = choose(tables, a.Table)
	numeric := columnNames(catalogTable(cat, a.Table), isNumericColumn)
	a.Column = choose(numeric, a.Column)
	a.Function = choose(aggregateFunctions, strings.ToLower(a.Function))

	return []Field{
		selectField("table", "Table", tables, a.Table),
		selectField("column", "Column", numeric, a.Column),
		selectField("function", "Function", aggregateFunctions, a.Function),
		textField("alias", "Alias", a.Alias),
	}
}
