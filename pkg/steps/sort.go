package steps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Sort сортирует строки по колонкам в одном направлении.
// Сортировка стабильная, NULL меньше любого значения.
type Sort struct {
	Table     string   `yaml:"table"`
	Columns   []string `yaml:"columns"`
	Ascending bool     `yaml:"ascending"`
}

func (s *Sort) Kind() Kind { return KindSort }

func (s *Sort) Inputs() []string { return nonEmpty(s.Table) }

func (s *Sort) Execute(env *Env) (*table.Table, error) {
	src, err := env.lookup(KindSort, "table", s.Table)
	if err != nil {
		return nil, err
	}
	if len(s.Columns) == 0 {
		return nil, required(KindSort, "columns")
	}

	idx := make([]int, len(s.Columns))
	for i, name := range s.Columns {
		j, err := src.MustColumn(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}

	out := src.Clone()
	sort.SliceStable(out.Rows, func(a, b int) bool {
		for _, j := range idx {
			cmp := schema.Compare(out.Rows[a][j], out.Rows[b][j])
			if cmp == 0 {
				continue
			}
			if s.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return out, nil
}

func (s *Sort) Render() (string, error) {
	if s.Table == "" {
		return "", required(KindSort, "table")
	}
	if len(s.Columns) == 0 {
		return "", required(KindSort, "columns")
	}
	dir := "ASC"
	if !s.Ascending {
		dir = "DESC"
	}
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = ident(c) + " " + dir
	}
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s", ident(s.Table), strings.Join(parts, ", ")), nil
}

func (s *Sort) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	s.Table = choose(tables, s.Table)
	columns := columnNames(catalogTable(cat, s.Table), nil)
	s.Columns = chooseMany(columns, s.Columns)

	return []Field{
		selectField("table", "Table", tables, s.Table),
		multiField("columns", "Sort by", columns, s.Columns),
		boolField("ascending", "Ascending", s.Ascending),
	}
}
