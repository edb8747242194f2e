package expr

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Evaluator вычисляет выражения над строками таблицы.
// Ссылка table.col на другую таблицу каталога берет значение из строки
// с тем же номером; если строк меньше, результат NULL.
type Evaluator struct {
	table   *table.Table
	catalog table.Catalog
}

// NewEvaluator создает вычислитель для таблицы. catalog может быть nil.
func NewEvaluator(t *table.Table, catalog table.Catalog) *Evaluator {
	return &Evaluator{table: t, catalog: catalog}
}

// scope - строка или группа строк, над которой вычисляется выражение
type scope struct {
	row   int
	group []int // не nil при вычислении HAVING
}

// Eval вычисляет выражение для одной строки
func (e *Evaluator) Eval(x Expr, row int) (schema.Value, error) {
	return e.eval(x, scope{row: row})
}

// EvalGroup вычисляет выражение для группы строк; агрегаты считаются по группе,
// обычные ссылки на колонки берут значение первой строки группы.
func (e *Evaluator) EvalGroup(x Expr, rows []int) (schema.Value, error) {
	first := -1
	if len(rows) > 0 {
		first = rows[0]
	}
	if rows == nil {
		rows = []int{}
	}
	return e.eval(x, scope{row: first, group: rows})
}

// Column вычисляет выражение для всех строк таблицы
func (e *Evaluator) Column(x Expr) ([]schema.Value, error) {
	out := make([]schema.Value, e.table.Len())
	for i := range out {
		v, err := e.Eval(x, i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Match возвращает индексы строк, для которых условие истинно (NULL - ложь)
func (e *Evaluator) Match(x Expr) ([]int, error) {
	var matched []int
	for i := 0; i < e.table.Len(); i++ {
		v, err := e.Eval(x, i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if v.Truthy() {
			matched = append(matched, i)
		}
	}
	return matched, nil
}

// Check проверяет, что все ссылки на колонки разрешимы
func (e *Evaluator) Check(x Expr) error {
	for _, ref := range Columns(x) {
		t, err := e.resolveTable(ref)
		if err != nil {
			return err
		}
		if !t.HasColumn(ref.Name) {
			return fmt.Errorf("unknown column '%s' in table '%s'", ref.Name, t.Name)
		}
	}
	return nil
}

func (e *Evaluator) eval(x Expr, sc scope) (schema.Value, error) {
	switch n := x.(type) {
	case *Literal:
		return n.Value, nil

	case *ParenExpr:
		return e.eval(n.X, sc)

	case *ColumnRef:
		return e.column(n, sc.row)

	case *UnaryExpr:
		v, err := e.eval(n.X, sc)
		if err != nil {
			return schema.Null(), err
		}
		if n.Operator == "not" {
			if v.IsNull() {
				return v, nil
			}
			return schema.Bool(!v.Truthy()), nil
		}
		return Negate(v)

	case *BinaryExpr:
		return e.binary(n, sc)

	case *BetweenExpr:
		v, err := e.eval(n.X, sc)
		if err != nil {
			return schema.Null(), err
		}
		low, err := e.eval(n.Low, sc)
		if err != nil {
			return schema.Null(), err
		}
		high, err := e.eval(n.High, sc)
		if err != nil {
			return schema.Null(), err
		}
		if v.IsNull() || low.IsNull() || high.IsNull() {
			return schema.Null(), nil
		}
		in := schema.Compare(v, low) >= 0 && schema.Compare(v, high) <= 0
		return schema.Bool(in != n.Not), nil

	case *IsNullExpr:
		v, err := e.eval(n.X, sc)
		if err != nil {
			return schema.Null(), err
		}
		return schema.Bool(v.IsNull() != n.Not), nil

	case *CallExpr:
		if isAggregate(n.Func) {
			return e.aggregate(n, sc)
		}
		args := make([]schema.Value, len(n.Args))
		for i, arg := range n.Args {
			v, err := e.eval(arg, sc)
			if err != nil {
				return schema.Null(), err
			}
			args[i] = v
		}
		return callScalar(n.Func, args)
	}

	return schema.Null(), fmt.Errorf("unsupported expression %T", x)
}

func (e *Evaluator) binary(n *BinaryExpr, sc scope) (schema.Value, error) {
	left, err := e.eval(n.Left, sc)
	if err != nil {
		return schema.Null(), err
	}

	// Трехзначная логика с коротким замыканием
	switch n.Operator {
	case "and":
		if !left.IsNull() && !left.Truthy() {
			return schema.Bool(false), nil
		}
	case "or":
		if !left.IsNull() && left.Truthy() {
			return schema.Bool(true), nil
		}
	}

	right, err := e.eval(n.Right, sc)
	if err != nil {
		return schema.Null(), err
	}
	return Apply(n.Operator, left, right)
}

func (e *Evaluator) resolveTable(ref *ColumnRef) (*table.Table, error) {
	if ref.Table == "" || ref.Table == e.table.Name {
		return e.table, nil
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("unknown table '%s'", ref.Table)
	}
	t, ok := e.catalog.Table(ref.Table)
	if !ok {
		return nil, fmt.Errorf("unknown table '%s'", ref.Table)
	}
	return t, nil
}

func (e *Evaluator) column(ref *ColumnRef, row int) (schema.Value, error) {
	t, err := e.resolveTable(ref)
	if err != nil {
		return schema.Null(), err
	}
	idx := t.ColumnIndex(ref.Name)
	if idx < 0 {
		return schema.Null(), fmt.Errorf("unknown column '%s' in table '%s'", ref.Name, t.Name)
	}
	if row < 0 || row >= len(t.Rows) {
		return schema.Null(), nil
	}
	return t.Rows[row][idx], nil
}

func (e *Evaluator) aggregate(n *CallExpr, sc scope) (schema.Value, error) {
	if sc.group == nil {
		return schema.Null(), fmt.Errorf("aggregate function %s is only allowed in HAVING", n.Func)
	}
	if n.Star {
		return schema.Int(int64(len(sc.group))), nil
	}

	values := make([]schema.Value, 0, len(sc.group))
	for _, row := range sc.group {
		v, err := e.eval(n.Args[0], scope{row: row})
		if err != nil {
			return schema.Null(), err
		}
		values = append(values, v)
	}
	return Aggregate(n.Func, values)
}

// Apply применяет бинарный оператор к двум значениям.
// Арифметика с NULL дает NULL; "+" с текстовым операндом - конкатенация.
func Apply(op string, left, right schema.Value) (schema.Value, error) {
	switch op {
	case "and":
		return logicAnd(left, right), nil
	case "or":
		return logicOr(left, right), nil
	}

	if left.IsNull() || right.IsNull() {
		return schema.Null(), nil
	}

	switch op {
	case "==", "=":
		return schema.Bool(schema.Compare(left, right) == 0), nil
	case "!=", "<>":
		return schema.Bool(schema.Compare(left, right) != 0), nil
	case "<":
		return schema.Bool(schema.Compare(left, right) < 0), nil
	case "<=":
		return schema.Bool(schema.Compare(left, right) <= 0), nil
	case ">":
		return schema.Bool(schema.Compare(left, right) > 0), nil
	case ">=":
		return schema.Bool(schema.Compare(left, right) >= 0), nil
	case "contains":
		return schema.Bool(strings.Contains(left.String(), right.String())), nil
	case "+":
		if left.Kind() == schema.KindText || right.Kind() == schema.KindText {
			return schema.Text(left.String() + right.String()), nil
		}
		return arithmetic(op, left, right)
	case "-", "*", "/", "%", "**":
		return arithmetic(op, left, right)
	}

	return schema.Null(), fmt.Errorf("unsupported operator '%s'", op)
}

// Negate меняет знак числа
func Negate(v schema.Value) (schema.Value, error) {
	switch v.Kind() {
	case schema.KindNull:
		return v, nil
	case schema.KindInt:
		return schema.Int(-v.IntValue()), nil
	case schema.KindFloat:
		return schema.Float(-v.FloatValue()), nil
	}
	f, ok := v.Float64()
	if !ok {
		return schema.Null(), fmt.Errorf("cannot negate non-numeric value '%s'", v.String())
	}
	return schema.Float(-f), nil
}

func arithmetic(op string, left, right schema.Value) (schema.Value, error) {
	if left.Kind() == schema.KindInt && right.Kind() == schema.KindInt {
		a, b := left.IntValue(), right.IntValue()
		switch op {
		// при переполнении int64 результат становится REAL
		case "+":
			sum := a + b
			if (a >= 0) == (b >= 0) && (sum >= 0) != (a >= 0) {
				return schema.Float(float64(a) + float64(b)), nil
			}
			return schema.Int(sum), nil
		case "-":
			diff := a - b
			if (a >= 0) != (b >= 0) && (diff >= 0) != (a >= 0) {
				return schema.Float(float64(a) - float64(b)), nil
			}
			return schema.Int(diff), nil
		case "*":
			prod := a * b
			if a != 0 && (prod/a != b || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64)) {
				return schema.Float(float64(a) * float64(b)), nil
			}
			return schema.Int(prod), nil
		case "%":
			if b == 0 {
				return schema.Null(), nil
			}
			r := a % b
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return schema.Int(r), nil
		case "**":
			if b >= 0 {
				p := math.Pow(float64(a), float64(b))
				if math.Abs(p) < 1<<53 {
					return schema.Int(int64(p)), nil
				}
				return schema.Float(p), nil
			}
		}
	}

	a, okA := left.Float64()
	b, okB := right.Float64()
	if !okA || !okB {
		return schema.Null(), fmt.Errorf("cannot apply '%s' to '%s' and '%s'", op, left.String(), right.String())
	}

	switch op {
	case "+":
		return schema.Float(a + b), nil
	case "-":
		return schema.Float(a - b), nil
	case "*":
		return schema.Float(a * b), nil
	case "/":
		if b == 0 {
			return schema.Null(), nil
		}
		return schema.Float(a / b), nil
	case "%":
		if b == 0 {
			return schema.Null(), nil
		}
		r := math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return schema.Float(r), nil
	case "**":
		return schema.Float(math.Pow(a, b)), nil
	}
	return schema.Null(), fmt.Errorf("unsupported operator '%s'", op)
}

func logicAnd(left, right schema.Value) schema.Value {
	if (!left.IsNull() && !left.Truthy()) || (!right.IsNull() && !right.Truthy()) {
		return schema.Bool(false)
	}
	if left.IsNull() || right.IsNull() {
		return schema.Null()
	}
	return schema.Bool(true)
}

func logicOr(left, right schema.Value) schema.Value {
	if (!left.IsNull() && left.Truthy()) || (!right.IsNull() && right.Truthy()) {
		return schema.Bool(true)
	}
	if left.IsNull() || right.IsNull() {
		return schema.Null()
	}
	return schema.Bool(false)
}

func callScalar(fn string, args []schema.Value) (schema.Value, error) {
	switch fn {
	case "coalesce":
		for _, v := range args {
			if !v.IsNull() {
				return v, nil
			}
		}
		return schema.Null(), nil
	}

	v := args[0]
	if v.IsNull() {
		return v, nil
	}

	switch fn {
	case "abs":
		switch v.Kind() {
		case schema.KindInt:
			if v.IntValue() < 0 {
				return schema.Int(-v.IntValue()), nil
			}
			return v, nil
		case schema.KindFloat:
			return schema.Float(math.Abs(v.FloatValue())), nil
		}
		f, ok := v.Float64()
		if !ok {
			return schema.Null(), fmt.Errorf("abs: non-numeric value '%s'", v.String())
		}
		return schema.Float(math.Abs(f)), nil

	case "round":
		digits := int64(0)
		if len(args) > 1 {
			d, ok := args[1].Float64()
			if !ok {
				return schema.Null(), fmt.Errorf("round: invalid digits '%s'", args[1].String())
			}
			digits = int64(d)
		}
		if v.Kind() == schema.KindInt {
			return v, nil
		}
		f, ok := v.Float64()
		if !ok {
			return schema.Null(), fmt.Errorf("round: non-numeric value '%s'", v.String())
		}
		scale := math.Pow(10, float64(digits))
		return schema.Float(math.RoundToEven(f*scale) / scale), nil

	case "lower":
		return schema.Text(strings.ToLower(v.String())), nil
	case "upper":
		return schema.Text(strings.ToUpper(v.String())), nil
	case "length":
		return schema.Int(int64(utf8.RuneCountInString(v.String()))), nil
	}

	return schema.Null(), fmt.Errorf("unknown function '%s'", fn)
}

// Aggregate сворачивает значения функцией sum, mean (avg), count, min, max.
// NULL пропускаются; sum пустого набора - 0, mean/min/max пустого набора - NULL.
func Aggregate(fn string, values []schema.Value) (schema.Value, error) {
	switch fn {
	case "count":
		n := 0
		for _, v := range values {
			if !v.IsNull() {
				n++
			}
		}
		return schema.Int(int64(n)), nil

	case "min", "max":
		var best schema.Value
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			if best.IsNull() {
				best = v
				continue
			}
			cmp := schema.Compare(v, best)
			if (fn == "min" && cmp < 0) || (fn == "max" && cmp > 0) {
				best = v
			}
		}
		return best, nil

	case "sum", "mean", "avg", "median":
		allInt := true
		var isum int64
		var fsum float64
		var nums []float64
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			f, ok := v.Float64()
			if !ok {
				return schema.Null(), fmt.Errorf("%s: non-numeric value '%s'", fn, v.String())
			}
			if v.Kind() == schema.KindInt {
				isum += v.IntValue()
			} else {
				allInt = false
			}
			fsum += f
			nums = append(nums, f)
		}
		switch fn {
		case "sum":
			if allInt {
				return schema.Int(isum), nil
			}
			return schema.Float(fsum), nil
		case "median":
			return median(nums), nil
		default:
			if len(nums) == 0 {
				return schema.Null(), nil
			}
			return schema.Float(fsum / float64(len(nums))), nil
		}
	}

	return schema.Null(), fmt.Errorf("unknown aggregate function '%s'", fn)
}

func median(nums []float64) schema.Value {
	if len(nums) == 0 {
		return schema.Null()
	}
	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return schema.Float(sorted[mid])
	}
	return schema.Float((sorted[mid-1] + sorted[mid]) / 2)
}
