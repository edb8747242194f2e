package steps

import (
	"fmt"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Filter оставляет строки, удовлетворяющие условию.
// Условие задается колонкой, оператором и значением либо выражением
// Expression, которое имеет приоритет.
type Filter struct {
	Table      string `yaml:"table"`
	Column     string `yaml:"column"`
	Operator   string `yaml:"operator"`
	Value      string `yaml:"value"`
	Value2     string `yaml:"value2"`
	Expression string `yaml:"expression"`

	// Text - значение сравнивается как строка (колонка TEXT).
	// Заполняется формой по типу колонки.
	Text bool `yaml:"text,omitempty"`
}

func (f *Filter) Kind() Kind { return KindFilter }

func (f *Filter) Inputs() []string { return nonEmpty(f.Table) }

// Predicate строит AST условия
func (f *Filter) Predicate() (expr.Expr, error) {
	return f.predicate(f.Text)
}

func (f *Filter) predicate(text bool) (expr.Expr, error) {
	if f.Expression != "" {
		x, err := expr.Parse(f.Expression)
		if err != nil {
			return nil, invalid(KindFilter, "expression", "%v", err)
		}
		return x, nil
	}
	if f.Column == "" {
		return nil, required(KindFilter, "column")
	}

	lit := literal
	if text {
		lit = textLiteral
	}
	col := expr.Col(f.Column)
	switch f.Operator {
	case "==", "!=", ">", "<", ">=", "<=", "contains":
		return expr.Bin(f.Operator, col, expr.Lit(lit(f.Value))), nil
	case "between", "not between":
		return &expr.BetweenExpr{
			X:    col,
			Low:  expr.Lit(lit(f.Value)),
			High: expr.Lit(lit(f.Value2)),
			Not:  f.Operator == "not between",
		}, nil
	case "":
		return nil, required(KindFilter, "operator")
	}
	return nil, invalid(KindFilter, "operator", "unsupported operator '%s'", f.Operator)
}

func (f *Filter) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindFilter, "table", f.Table)
	if err != nil {
		return nil, err
	}
	// значение для TEXT колонки не приводится к числу
	text := f.Text || (f.Expression == "" && schema.NormalizeType(columnType(src, f.Column)) == schema.TypeText)
	pred, err := f.predicate(text)
	if err != nil {
		return nil, err
	}
	if expr.HasAggregate(pred) {
		return nil, invalid(KindFilter, "expression", "aggregate functions are not allowed in a row filter")
	}

	ev := expr.NewEvaluator(src, env.Catalog)
	rows, err := ev.Match(pred)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", f.Table, err)
	}

	out := table.New(src.Name, src.Columns...)
	for _, i := range rows {
		if err := out.AppendRow(src.Rows[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *Filter) Render() (string, error) {
	if f.Table == "" {
		return "", required(KindFilter, "table")
	}
	pred, err := f.Predicate()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s", ident(f.Table), expr.SQL(pred)), nil
}

func (f *Filter) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	f.Table = choose(tables, f.Table)
	src := catalogTable(cat, f.Table)

	columns := columnNames(src, nil)
	f.Column = choose(columns, f.Column)
	operators := FilterOperators(columnType(src, f.Column))
	f.Operator = choose(operators, f.Operator)
	f.Text = src != nil && schema.NormalizeType(columnType(src, f.Column)) == schema.TypeText

	fields := []Field{
		selectField("table", "Table", tables, f.Table),
		selectField("column", "Column", columns, f.Column),
		selectField("operator", "Operator", operators, f.Operator),
		textField("value", "Value", f.Value),
	}
	if f.Operator == "between" || f.Operator == "not between" {
		fields = append(fields, textField("value2", "Upper bound", f.Value2))
	}
	fields = append(fields, Field{
		Key:   "expression",
		Label: "Expression",
		Type:  FieldTextarea,
		Value: f.Expression,
		Help:  "overrides column/operator/value, e.g. amount > 15 and customer == 'A'",
	})
	return fields
}
