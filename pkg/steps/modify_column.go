package steps

import (
	"fmt"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Режимы ModifyColumn
const (
	ModeStandard = "standard"
	ModeManual   = "manual"
)

// Источники правого операнда
const (
	RHSConstant = "constant"
	RHSColumn   = "column"
)

var (
	modifyModes = []string{ModeStandard, ModeManual}
	rhsSources  = []string{RHSConstant, RHSColumn}
)

// ModifyColumn добавляет вычисляемую колонку Alias к копии таблицы.
// В режиме standard значение - "column operator rhs", где rhs - константа
// или колонка (возможно другой таблицы, по номеру строки). В режиме manual
// значение задается выражением Expression.
type ModifyColumn struct {
	Table      string `yaml:"table"`
	Alias      string `yaml:"alias"`
	Mode       string `yaml:"mode"`
	Column     string `yaml:"column"`
	Operator   string `yaml:"operator"`
	RHS        string `yaml:"rhs"`
	RHSTable   string `yaml:"rhs_table"`
	RHSColumn  string `yaml:"rhs_column"`
	Constant   string `yaml:"constant"`
	Expression string `yaml:"expression"`
}

func (m *ModifyColumn) Kind() Kind { return KindModifyColumn }

func (m *ModifyColumn) Inputs() []string {
	if m.Mode != ModeManual && m.RHS == RHSColumn && m.RHSTable != m.Table {
		return nonEmpty(m.Table, m.RHSTable)
	}
	return nonEmpty(m.Table)
}

func (m *ModifyColumn) alias() string {
	if m.Alias != "" {
		return m.Alias
	}
	if m.Mode == ModeManual {
		return "new_column"
	}
	return fmt.Sprintf("%s_%s_new", m.Column, m.Operator)
}

func (m *ModifyColumn) rhsTable() string {
	if m.RHSTable == "" {
		return m.Table
	}
	return m.RHSTable
}

// Expr строит AST вычисляемого значения
func (m *ModifyColumn) Expr() (expr.Expr, error) {
	if m.Mode == ModeManual {
		if m.Expression == "" {
			return nil, required(KindModifyColumn, "expression")
		}
		x, err := expr.Parse(m.Expression)
		if err != nil {
			return nil, invalid(KindModifyColumn, "expression", "%v", err)
		}
		if expr.HasAggregate(x) {
			return nil, invalid(KindModifyColumn, "expression", "aggregate functions are not allowed here")
		}
		return x, nil
	}

	if m.Column == "" {
		return nil, required(KindModifyColumn, "column")
	}
	if !isModifyOperator(m.Operator) {
		return nil, invalid(KindModifyColumn, "operator", "unsupported operator '%s'", m.Operator)
	}

	var rhs expr.Expr
	switch m.RHS {
	case RHSColumn:
		if m.RHSColumn == "" {
			return nil, required(KindModifyColumn, "rhs_column")
		}
		ref := &expr.ColumnRef{Name: m.RHSColumn}
		if m.rhsTable() != m.Table {
			ref.Table = m.rhsTable()
		}
		rhs = ref
	case RHSConstant, "":
		rhs = expr.Lit(literal(m.Constant))
	default:
		return nil, invalid(KindModifyColumn, "rhs", "expected constant or column, got '%s'", m.RHS)
	}
	return expr.Bin(m.Operator, expr.Col(m.Column), rhs), nil
}

func isModifyOperator(op string) bool {
	for _, o := range numericModifyOperators {
		if o == op {
			return true
		}
	}
	return false
}

func (m *ModifyColumn) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindModifyColumn, "table", m.Table)
	if err != nil {
		return nil, err
	}
	x, err := m.Expr()
	if err != nil {
		return nil, err
	}

	var values []schema.Value
	if m.Mode == ModeManual {
		ev := expr.NewEvaluator(src, env.Catalog)
		if err := ev.Check(x); err != nil {
			return nil, err
		}
		values, err = ev.Column(x)
	} else {
		values, err = m.standard(env, src)
	}
	if err != nil {
		return nil, fmt.Errorf("modify column %s: %w", m.alias(), err)
	}

	out := src.Clone()
	if err := out.SetColumn(table.Column{Name: m.alias(), Type: inferType(values)}, values); err != nil {
		return nil, err
	}
	return out, nil
}

// standard вычисляет "column operator rhs" с приведением операндов:
// если один из операндов текстовый - оба сравниваются и складываются как строки,
// иначе нечисловые значения (и NULL) считаются нулем
func (m *ModifyColumn) standard(env *Env, src *table.Table) ([]schema.Value, error) {
	li, err := src.MustColumn(m.Column)
	if err != nil {
		return nil, err
	}
	lhs := src.ColumnValues(li)

	var (
		rhs     []schema.Value
		rhsText bool
	)
	if m.RHS == RHSColumn {
		rt, err := env.lookup(KindModifyColumn, "rhs_table", m.rhsTable())
		if err != nil {
			return nil, err
		}
		ri, err := rt.MustColumn(m.RHSColumn)
		if err != nil {
			return nil, err
		}
		rhs = make([]schema.Value, len(lhs))
		for i := range rhs {
			if i < len(rt.Rows) {
				rhs[i] = rt.Rows[i][ri]
			}
		}
		rhsText = schema.IsTextType(rt.Columns[ri].Type)
	} else {
		c := literal(m.Constant)
		rhs = make([]schema.Value, len(lhs))
		for i := range rhs {
			rhs[i] = c
		}
		rhsText = c.Kind() == schema.KindText
	}

	text := schema.IsTextType(src.Columns[li].Type) || rhsText
	if text && !allowed(textModifyOperators, m.Operator) {
		return nil, invalid(KindModifyColumn, "operator", "operator '%s' is not allowed for text operands", m.Operator)
	}

	out := make([]schema.Value, len(lhs))
	for i := range lhs {
		var l, r schema.Value
		if text {
			l, r = schema.Text(lhs[i].String()), schema.Text(rhs[i].String())
		} else {
			l, r = numeric(lhs[i]), numeric(rhs[i])
		}
		v, err := expr.Apply(m.Operator, l, r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func allowed(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// numeric приводит значение к числу; целые остаются целыми
func numeric(v schema.Value) schema.Value {
	if v.Kind() == schema.KindInt {
		return v
	}
	return schema.Float(v.NumberOrZero())
}

// inferType определяет тип колонки по вычисленным значениям
func inferType(values []schema.Value) schema.DataType {
	var t schema.DataType
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		vt := v.Type()
		switch {
		case t == "":
			t = vt
		case t == vt:
		case schema.IsNumericType(t) && schema.IsNumericType(vt):
			t = schema.TypeReal
		default:
			return schema.TypeText
		}
	}
	if t == "" {
		return schema.TypeText
	}
	return t
}

func (m *ModifyColumn) Render() (string, error) {
	if m.Table == "" {
		return "", required(KindModifyColumn, "table")
	}
	x, err := m.Expr()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT *, (%s) AS %s FROM %s", expr.SQL(x), ident(m.alias()), ident(m.Table)), nil
}

func (m *ModifyColumn) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	m.Table = choose(tables, m.Table)
	m.Mode = choose(modifyModes, m.Mode)
	src := catalogTable(cat, m.Table)

	fields := []Field{
		selectField("table", "Table", tables, m.Table),
		selectField("mode", "Mode", modifyModes, m.Mode),
	}

	if m.Mode == ModeManual {
		return append(fields,
			textField("alias", "New column name", m.Alias),
			Field{
				Key:   "expression",
				Label: "Expression",
				Type:  FieldTextarea,
				Value: m.Expression,
				Help:  "e.g. amount * 1.2 or orders.amount * rates.rate",
			})
	}

	columns := columnNames(src, nil)
	m.Column = choose(columns, m.Column)
	m.RHS = choose(rhsSources, m.RHS)
	fields = append(fields,
		selectField("column", "Column", columns, m.Column),
		selectField("rhs", "Right operand", rhsSources, m.RHS),
	)

	text := schema.IsTextType(columnType(src, m.Column))
	if m.RHS == RHSColumn {
		m.RHSTable = choose(tables, m.rhsTable())
		rhsCols := columnNames(catalogTable(cat, m.RHSTable), nil)
		m.RHSColumn = choose(rhsCols, m.RHSColumn)
		text = text || schema.IsTextType(columnType(catalogTable(cat, m.RHSTable), m.RHSColumn))
		fields = append(fields,
			selectField("rhs_table", "Right table", tables, m.RHSTable),
			selectField("rhs_column", "Right column", rhsCols, m.RHSColumn),
		)
	} else {
		text = text || (m.Constant != "" && literal(m.Constant).Kind() == schema.KindText)
		fields = append(fields, textField("constant", "Constant", m.Constant))
	}

	operators := ModifyOperators(text)
	m.Operator = choose(operators, m.Operator)
	fields = append(fields,
		selectField("operator", "Operator", operators, m.Operator),
		textField("alias", "New column name", m.Alias),
	)
	return fields
}
