package steps

import (
	"fmt"
	"math"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Стратегии обработки пропусков
const (
	StrategyDrop   = "drop"
	StrategyMean   = "mean"
	StrategyMedian = "median"
	StrategyMode   = "mode"
	StrategyCustom = "custom"
)

var missingStrategies = []string{StrategyDrop, StrategyMean, StrategyMedian, StrategyMode, StrategyCustom}

// HandleMissing удаляет или заполняет NULL в колонке таблицы.
// Результат заменяет таблицу в каталоге.
type HandleMissing struct {
	Table       string `yaml:"table"`
	Column      string `yaml:"column"`
	Strategy    string `yaml:"strategy"`
	CustomValue string `yaml:"custom_value"`
}

func (s *HandleMissing) Kind() Kind { return KindHandleMissing }

func (s *HandleMissing) Inputs() []string { return nonEmpty(s.Table) }

func (s *HandleMissing) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindHandleMissing, "table", s.Table)
	if err != nil {
		return nil, err
	}
	if s.Column == "" {
		return nil, required(KindHandleMissing, "column")
	}
	ci, err := src.MustColumn(s.Column)
	if err != nil {
		return nil, err
	}
	if !allowed(missingStrategies, s.Strategy) {
		return nil, invalid(KindHandleMissing, "strategy", "unknown strategy '%s'", s.Strategy)
	}

	var out *table.Table
	if s.Strategy == StrategyDrop {
		out = src.Filter(func(row []schema.Value) bool { return !row[ci].IsNull() })
		env.Notef("dropped %d row(s) with missing %s", src.Len()-out.Len(), s.Column)
	} else {
		fill, err := s.fillValue(src, ci)
		if err != nil {
			return nil, err
		}
		out = src.Clone()
		if fill.IsNull() {
			env.Notef("column %s has no values to compute %s from", s.Column, s.Strategy)
		} else {
			if out.Columns[ci].Type == schema.TypeInteger && fill.Kind() == schema.KindFloat {
				if _, err := out.RetypeColumn(s.Column, schema.TypeReal, schema.NewConverter()); err != nil {
					return nil, err
				}
			}
			filled := 0
			for _, row := range out.Rows {
				if row[ci].IsNull() {
					row[ci] = fill
					filled++
				}
			}
			env.Notef("filled %d missing value(s) in %s with %s", filled, s.Column, fill.String())
		}
	}

	env.Catalog.Put(out)
	return out, nil
}

// fillValue вычисляет значение для заполнения пропусков
func (s *HandleMissing) fillValue(src *table.Table, ci int) (schema.Value, error) {
	col := src.Columns[ci]
	values := src.ColumnValues(ci)

	switch s.Strategy {
	case StrategyMean, StrategyMedian:
		if !schema.IsNumericType(col.Type) {
			return schema.Null(), invalid(KindHandleMissing, "strategy", "%s requires a numeric column, %s is %s", s.Strategy, col.Name, col.Type)
		}
		v, err := expr.Aggregate(s.Strategy, values)
		if err != nil {
			return schema.Null(), err
		}
		if f := v.FloatValue(); !v.IsNull() && col.Type == schema.TypeInteger && f == math.Trunc(f) {
			return schema.Int(int64(f)), nil
		}
		return v, nil

	case StrategyMode:
		return mode(values), nil

	case StrategyCustom:
		if s.CustomValue == "" {
			return schema.Null(), required(KindHandleMissing, "custom_value")
		}
		v, err := schema.NewConverter().ParseValue(s.CustomValue, col.Type)
		if err != nil {
			return schema.Null(), invalid(KindHandleMissing, "custom_value", "%v", err)
		}
		return v, nil
	}
	return schema.Null(), invalid(KindHandleMissing, "strategy", "unknown strategy '%s'", s.Strategy)
}

// mode - самое частое непустое значение; при равенстве частот - наименьшее
func mode(values []schema.Value) schema.Value {
	counts := make(map[string]int)
	var best schema.Value
	bestCount := 0
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		k := table.Key(v)
		counts[k]++
		n := counts[k]
		if n > bestCount || (n == bestCount && schema.Compare(v, best) < 0) {
			best, bestCount = v, n
		}
	}
	return best
}

func (s *HandleMissing) Render() (string, error) {
	switch {
	case s.Table == "":
		return "", required(KindHandleMissing, "table")
	case s.Column == "":
		return "", required(KindHandleMissing, "column")
	}
	t, c := ident(s.Table), ident(s.Column)
	switch s.Strategy {
	case StrategyDrop:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s IS NOT NULL", t, c), nil
	case StrategyCustom:
		return fmt.Sprintf("SELECT *, COALESCE(%s, %s) AS %s FROM %s", c, quoted(s.CustomValue), ident(s.Column+"_filled"), t), nil
	case StrategyMean:
		return fmt.Sprintf("UPDATE %s SET %s = (SELECT AVG(%s) FROM %s) WHERE %s IS NULL", t, c, c, t, c), nil
	case StrategyMedian, StrategyMode:
		return fmt.Sprintf("-- Strategy %s may require preprocessing", s.Strategy), nil
	}
	return "", invalid(KindHandleMissing, "strategy", "unknown strategy '%s'", s.Strategy)
}

func (s *HandleMissing) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	s.Table = choose(tables, s.Table)
	src := catalogTable(cat, s.Table)
	columns := columnNames(src, nil)
	s.Column = choose(columns, s.Column)

	// mean и median доступны только для числовых колонок
	strategies := missingStrategies
	if s.Column != "" && !schema.IsNumericType(columnType(src, s.Column)) {
		strategies = []string{StrategyDrop, StrategyMode, StrategyCustom}
	}
	s.Strategy = choose(strategies, s.Strategy)

	fields := []Field{
		selectField("table", "Table", tables, s.Table),
		selectField("column", "Column", columns, s.Column),
		selectField("strategy", "Strategy", strategies, s.Strategy),
	}
	if s.Strategy == StrategyCustom {
		fields = append(fields, textField("custom_value", "Fill value", s.CustomValue))
	}
	return fields
}
