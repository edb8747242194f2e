package steps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// GroupBy группирует строки по колонкам и вычисляет агрегаты.
// Колонка результата агрегата называется {func}_{col}. Группы упорядочены
// по ключу, NULL - отдельная группа. Having фильтрует группы выражением
// с агрегатными функциями.
type GroupBy struct {
	Table        string            `yaml:"table"`
	GroupCols    []string          `yaml:"group_cols"`
	Aggregations map[string]string `yaml:"aggregations"`
	Having       string            `yaml:"having"`
}

func (g *GroupBy) Kind() Kind { return KindGroupBy }

func (g *GroupBy) Inputs() []string { return nonEmpty(g.Table) }

// aggregation - агрегат одной колонки
type aggregation struct {
	column   string
	function string
}

// alias возвращает имя колонки результата
func (a aggregation) alias() string {
	return a.function + "_" + a.column
}

// plan возвращает агрегаты в порядке колонок src (или по имени, если src nil)
func (g *GroupBy) plan(src *table.Table) ([]aggregation, error) {
	cols := sortedKeys(g.Aggregations)
	if src != nil {
		ordered := make([]string, 0, len(cols))
		for _, c := range src.Columns {
			if _, ok := g.Aggregations[c.Name]; ok {
				ordered = append(ordered, c.Name)
			}
		}
		for _, c := range cols {
			if !src.HasColumn(c) {
				return nil, fmt.Errorf("column '%s' not found in table '%s'", c, src.Name)
			}
		}
		cols = ordered
	}

	out := make([]aggregation, 0, len(cols))
	for _, c := range cols {
		fn := strings.ToLower(strings.TrimSpace(g.Aggregations[c]))
		if !isAggregateFunction(fn) {
			return nil, invalid(KindGroupBy, "aggregations."+c, "unsupported function '%s'", g.Aggregations[c])
		}
		out = append(out, aggregation{column: c, function: fn})
	}
	return out, nil
}

func isAggregateFunction(fn string) bool {
	for _, f := range aggregateFunctions {
		if f == fn {
			return true
		}
	}
	return false
}

func (g *GroupBy) having() (expr.Expr, error) {
	if strings.TrimSpace(g.Having) == "" {
		return nil, nil
	}
	x, err := expr.Parse(g.Having)
	if err != nil {
		return nil, invalid(KindGroupBy, "having", "%v", err)
	}
	return x, nil
}

func (g *GroupBy) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindGroupBy, "table", g.Table)
	if err != nil {
		return nil, err
	}
	if len(g.GroupCols) == 0 {
		return nil, required(KindGroupBy, "group_cols")
	}

	groupIdx := make([]int, len(g.GroupCols))
	for i, name := range g.GroupCols {
		if groupIdx[i], err = src.MustColumn(name); err != nil {
			return nil, err
		}
	}
	aggs, err := g.plan(src)
	if err != nil {
		return nil, err
	}
	having, err := g.having()
	if err != nil {
		return nil, err
	}

	// Группы в порядке первого появления, затем сортировка по ключу
	type group struct {
		key  []schema.Value
		rows []int
	}
	index := make(map[string]*group)
	var groups []*group
	for i, row := range src.Rows {
		k := table.RowKey(row, groupIdx)
		grp, ok := index[k]
		if !ok {
			key := make([]schema.Value, len(groupIdx))
			for j, idx := range groupIdx {
				key[j] = row[idx]
			}
			grp = &group{key: key}
			index[k] = grp
			groups = append(groups, grp)
		}
		grp.rows = append(grp.rows, i)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		for j := range groups[a].key {
			if cmp := schema.Compare(groups[a].key[j], groups[b].key[j]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	// Колонки результата
	out := table.New(src.Name)
	for _, idx := range groupIdx {
		out.Columns = append(out.Columns, src.Columns[idx])
	}
	aggIdx := make([]int, len(aggs))
	for i, a := range aggs {
		aggIdx[i] = src.ColumnIndex(a.column)
		out.Columns = append(out.Columns, table.Column{
			Name: a.alias(),
			Type: aggregateType(a.function, src.Columns[aggIdx[i]].Type),
		})
	}

	ev := expr.NewEvaluator(src, env.Catalog)
	for _, grp := range groups {
		if having != nil {
			v, err := ev.EvalGroup(having, grp.rows)
			if err != nil {
				return nil, fmt.Errorf("having: %w", err)
			}
			if !v.Truthy() {
				continue
			}
		}

		row := make([]schema.Value, 0, len(out.Columns))
		row = append(row, grp.key...)
		for i, a := range aggs {
			values := make([]schema.Value, len(grp.rows))
			for j, r := range grp.rows {
				values[j] = src.Rows[r][aggIdx[i]]
			}
			v, err := expr.Aggregate(a.function, values)
			if err != nil {
				return nil, fmt.Errorf("aggregate %s(%s): %w", a.function, a.column, err)
			}
			row = append(row, v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// aggregateType - тип колонки результата агрегата
func aggregateType(fn string, src schema.DataType) schema.DataType {
	switch fn {
	case "count":
		return schema.TypeInteger
	case "mean", "avg", "median":
		return schema.TypeReal
	case "sum":
		if schema.NormalizeType(src) == schema.TypeInteger {
			return schema.TypeInteger
		}
		return schema.TypeReal
	default:
		return schema.NormalizeType(src)
	}
}

func (g *GroupBy) Render() (string, error) {
	if g.Table == "" {
		return "", required(KindGroupBy, "table")
	}
	if len(g.GroupCols) == 0 {
		return "", required(KindGroupBy, "group_cols")
	}
	aggs, err := g.plan(nil)
	if err != nil {
		return "", err
	}

	selects := []string{identList(g.GroupCols)}
	for _, a := range aggs {
		selects = append(selects, fmt.Sprintf("%s(%s) AS %s", sqlAggregate(a.function), ident(a.column), ident(a.alias())))
	}
	sql := fmt.Sprintf("SELECT %s FROM %s GROUP BY %s",
		strings.Join(selects, ", "), ident(g.Table), identList(g.GroupCols))

	having, err := g.having()
	if err != nil {
		return "", err
	}
	if having != nil {
		sql += " HAVING " + expr.SQL(having)
	}
	return sql, nil
}

func (g *GroupBy) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	g.Table = choose(tables, g.Table)
	src := catalogTable(cat, g.Table)

	columns := columnNames(src, nil)
	g.GroupCols = chooseMany(columns, g.GroupCols)

	// Агрегаты только по числовым колонкам вне группировки
	numeric := columnNames(src, func(c table.Column) bool {
		if !isNumericColumn(c) {
			return false
		}
		for _, gc := range g.GroupCols {
			if gc == c.Name {
				return false
			}
		}
		return true
	})
	kept := map[string]string{}
	for _, c := range numeric {
		if fn, ok := g.Aggregations[c]; ok {
			kept[c] = choose(aggregateFunctions, fn)
		}
	}
	g.Aggregations = kept

	fields := []Field{
		selectField("table", "Table", tables, g.Table),
		multiField("group_cols", "Group by", columns, g.GroupCols),
	}
	for _, c := range numeric {
		fields = append(fields, Field{
			Key:     "aggregations." + c,
			Label:   "Aggregate " + c,
			Type:    FieldSelect,
			Options: append([]string{""}, aggregateFunctions...),
			Value:   g.Aggregations[c],
		})
	}
	fields = append(fields, Field{
		Key:   "having",
		Label: "Having",
		Type:  FieldText,
		Value: g.Having,
		Help:  "e.g. sum(amount) > 100",
	})
	return fields
}
