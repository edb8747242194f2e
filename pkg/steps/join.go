package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Типы соединения
var joinTypes = []string{"inner", "left", "right", "outer"}

// Join соединяет две таблицы по ключевым колонкам.
// CastToStr сравнивает ключи по текстовому представлению, ForeignKey
// оставляет в правой таблице только ключи, присутствующие слева.
type Join struct {
	LeftTable  string `yaml:"left_table"`
	RightTable string `yaml:"right_table"`
	LeftOn     string `yaml:"left_on"`
	RightOn    string `yaml:"right_on"`
	JoinType   string `yaml:"join_type"`
	CastToStr  bool   `yaml:"cast_to_str"`
	ForeignKey bool   `yaml:"foreign_key"`
	OutputName string `yaml:"output_name"`
}

func (j *Join) Kind() Kind { return KindJoin }

func (j *Join) Inputs() []string { return nonEmpty(j.LeftTable, j.RightTable) }

func (j *Join) joinType() (string, error) {
	jt := strings.ToLower(strings.TrimSpace(j.JoinType))
	if jt == "" {
		return "inner", nil
	}
	for _, t := range joinTypes {
		if t == jt {
			return jt, nil
		}
	}
	return "", invalid(KindJoin, "join_type", "unsupported join type '%s'", j.JoinType)
}

// joinKey - ключ соединения; NULL не соединяется ни с чем
func (j *Join) joinKey(v schema.Value) (string, bool) {
	if v.IsNull() {
		return "", false
	}
	if j.CastToStr {
		return v.String(), true
	}
	return table.Key(v), true
}

func (j *Join) Execute(env *Env) (*table.Table, error) {
	left, err := env.lookup(KindJoin, "left_table", j.LeftTable)
	if err != nil {
		return nil, err
	}
	right, err := env.lookup(KindJoin, "right_table", j.RightTable)
	if err != nil {
		return nil, err
	}
	if j.LeftOn == "" {
		return nil, required(KindJoin, "left_on")
	}
	if j.RightOn == "" {
		return nil, required(KindJoin, "right_on")
	}
	jt, err := j.joinType()
	if err != nil {
		return nil, err
	}
	lk, err := left.MustColumn(j.LeftOn)
	if err != nil {
		return nil, err
	}
	rk, err := right.MustColumn(j.RightOn)
	if err != nil {
		return nil, err
	}

	rightRows := right.Rows
	if j.ForeignKey {
		present := make(map[string]bool)
		for _, row := range left.Rows {
			if k, ok := j.joinKey(row[lk]); ok {
				present[k] = true
			}
		}
		rightRows = nil
		for _, row := range right.Rows {
			if k, ok := j.joinKey(row[rk]); ok && present[k] {
				rightRows = append(rightRows, row)
			}
		}
		if dropped := len(right.Rows) - len(rightRows); dropped > 0 {
			env.Notef("foreign key filter dropped %d row(s) of %s", dropped, right.Name)
		}
	}

	out, layout := j.layout(left, right, lk, rk)

	rightIndex := make(map[string][]int)
	for i, row := range rightRows {
		if k, ok := j.joinKey(row[rk]); ok {
			rightIndex[k] = append(rightIndex[k], i)
		}
	}
	matchedRight := make([]bool, len(rightRows))

	if jt == "right" {
		leftIndex := make(map[string][]int)
		for i, row := range left.Rows {
			if k, ok := j.joinKey(row[lk]); ok {
				leftIndex[k] = append(leftIndex[k], i)
			}
		}
		for _, rrow := range rightRows {
			k, ok := j.joinKey(rrow[rk])
			matches := leftIndex[k]
			if !ok || len(matches) == 0 {
				out.Rows = append(out.Rows, layout.row(nil, rrow))
				continue
			}
			for _, li := range matches {
				out.Rows = append(out.Rows, layout.row(left.Rows[li], rrow))
			}
		}
	} else {
		for _, lrow := range left.Rows {
			k, ok := j.joinKey(lrow[lk])
			matches := rightIndex[k]
			if !ok || len(matches) == 0 {
				if jt == "left" || jt == "outer" {
					out.Rows = append(out.Rows, layout.row(lrow, nil))
				}
				continue
			}
			for _, ri := range matches {
				matchedRight[ri] = true
				out.Rows = append(out.Rows, layout.row(lrow, rightRows[ri]))
			}
		}
		if jt == "outer" {
			for i, rrow := range rightRows {
				if !matchedRight[i] {
					out.Rows = append(out.Rows, layout.row(nil, rrow))
				}
			}
		}
	}

	if j.OutputName != "" {
		out.Name = j.OutputName
		env.Catalog.Put(out)
	}
	return out, nil
}

// joinLayout - откуда берется каждая колонка результата
type joinLayout struct {
	sources []joinSource
	castKey bool
}

type joinSource struct {
	left, right int // индексы в левой/правой строке, -1 - нет
	key         bool
}

func (l joinLayout) row(lrow, rrow []schema.Value) []schema.Value {
	out := make([]schema.Value, len(l.sources))
	for i, s := range l.sources {
		var v schema.Value
		switch {
		case s.left >= 0 && lrow != nil:
			v = lrow[s.left]
		case s.right >= 0 && rrow != nil:
			v = rrow[s.right]
		}
		if s.key && l.castKey && !v.IsNull() {
			v = schema.Text(v.String())
		}
		out[i] = v
	}
	return out
}

// layout строит колонки результата: сначала левые, затем правые.
// Одноименный ключ выводится один раз, остальные совпадения имен
// получают суффиксы _x и _y.
func (j *Join) layout(left, right *table.Table, lk, rk int) (*table.Table, joinLayout) {
	sameKey := j.LeftOn == j.RightOn
	l := joinLayout{castKey: j.CastToStr}

	rightNames := make(map[string]bool)
	for i, c := range right.Columns {
		if sameKey && i == rk {
			continue
		}
		rightNames[c.Name] = true
	}
	leftNames := make(map[string]bool)
	for _, c := range left.Columns {
		leftNames[c.Name] = true
	}

	out := table.New(left.Name + "_" + right.Name)
	for i, c := range left.Columns {
		src := joinSource{left: i, right: -1}
		name := c.Name
		typ := c.Type
		if i == lk {
			src.key = true
			if sameKey {
				src.right = rk
			}
			if j.CastToStr {
				typ = schema.TypeText
			}
		}
		if rightNames[name] {
			name += "_x"
		}
		out.Columns = append(out.Columns, table.Column{Name: name, Type: typ})
		l.sources = append(l.sources, src)
	}
	for i, c := range right.Columns {
		if sameKey && i == rk {
			continue
		}
		src := joinSource{left: -1, right: i}
		name := c.Name
		typ := c.Type
		if i == rk {
			src.key = true
			if j.CastToStr {
				typ = schema.TypeText
			}
		}
		if leftNames[name] {
			name += "_y"
		}
		out.Columns = append(out.Columns, table.Column{Name: name, Type: typ})
		l.sources = append(l.sources, src)
	}
	return out, l
}

func (j *Join) Render() (string, error) {
	if j.LeftTable == "" || j.RightTable == "" {
		return "", invalid(KindJoin, "", "left_table and right_table are required")
	}
	if j.LeftOn == "" || j.RightOn == "" {
		return "", invalid(KindJoin, "", "left_on and right_on are required")
	}
	jt, err := j.joinType()
	if err != nil {
		return "", err
	}
	sqlType := strings.ToUpper(jt)
	if jt == "outer" {
		sqlType = "FULL OUTER"
	}

	l, r := ident(j.LeftTable), ident(j.RightTable)
	lon, ron := ident(j.LeftOn), ident(j.RightOn)
	rightSrc := r
	if j.ForeignKey {
		rightSrc = fmt.Sprintf("(SELECT * FROM %s WHERE %s IN (SELECT %s FROM %s)) AS %s", r, ron, lon, l, r)
	}
	return fmt.Sprintf("SELECT * FROM %s %s JOIN %s ON %s.%s = %s.%s", l, sqlType, rightSrc, l, lon, r, ron), nil
}

func (j *Join) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	j.LeftTable = choose(tables, j.LeftTable)
	j.RightTable = choose(tables, j.RightTable)

	leftCols := columnNames(catalogTable(cat, j.LeftTable), nil)
	rightCols := columnNames(catalogTable(cat, j.RightTable), nil)
	j.LeftOn = choose(leftCols, j.LeftOn)
	j.RightOn = choose(rightCols, j.RightOn)
	j.JoinType = choose(joinTypes, strings.ToLower(j.JoinType))

	return []Field{
		selectField("left_table", "Left table", tables, j.LeftTable),
		selectField("right_table", "Right table", tables, j.RightTable),
		selectField("left_on", "Left key", leftCols, j.LeftOn),
		selectField("right_on", "Right key", rightCols, j.RightOn),
		selectField("join_type", "Join type", joinTypes, j.JoinType),
		boolField("cast_to_str", "Compare keys as text", j.CastToStr),
		boolField("foreign_key", "Keep only right rows referenced by the left table", j.ForeignKey),
		textField("output_name", "Save as table (optional)", j.OutputName),
	}
}
