package steps

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/merge"
)

var setOperations = []string{"UNION", "UNION ALL", "INTERSECT", "EXCEPT"}

// SetOperation объединяет две таблицы с одинаковыми колонками операцией
// над множествами. UNION, INTERSECT и EXCEPT возвращают различные строки,
// UNION ALL сохраняет все строки.
type SetOperation struct {
	Table1     string `yaml:"table1"`
	Table2     string `yaml:"table2"`
	Operation  string `yaml:"operation"`
	OutputName string `yaml:"output_name"`
}

func (s *SetOperation) Kind() Kind { return KindSetOperation }

func (s *SetOperation) Inputs() []string { return nonEmpty(s.Table1, s.Table2) }

func (s *SetOperation) operation() string {
	return strings.ToUpper(strings.Join(strings.Fields(s.Operation), " "))
}

// outputName - имя результата; по умолчанию {t1}_{OP}_{t2}
func (s *SetOperation) outputName() string {
	if s.OutputName != "" {
		return s.OutputName
	}
	return fmt.Sprintf("%s_%s_%s", s.Table1, strings.ReplaceAll(s.operation(), " ", "_"), s.Table2)
}

func (s *SetOperation) Execute(env *Env) (*table.Table, error) {
	left, err := env.lookup(KindSetOperation, "table1", s.Table1)
	if err != nil {
		return nil, err
	}
	right, err := env.lookup(KindSetOperation, "table2", s.Table2)
	if err != nil {
		return nil, err
	}
	strategy, err := merge.ParseOperation(s.Operation)
	if err != nil {
		return nil, invalid(KindSetOperation, "operation", "%v", err)
	}
	if !left.SameColumns(right) {
		return nil, invalid(KindSetOperation, "", "tables %s and %s must have the same columns in the same order", s.Table1, s.Table2)
	}

	res, err := merge.NewMerger(merge.MergeOptions{Strategy: strategy}).Merge(left, right)
	if err != nil {
		return nil, err
	}
	out := res.Table
	out.Name = s.outputName()
	env.Catalog.Put(out)
	env.Notef("%s: %d row(s) in, %d row(s) out", s.operation(), res.Stats.TotalRowsIn, res.Stats.TotalRowsOut)
	return out, nil
}

func (s *SetOperation) Render() (string, error) {
	switch {
	case s.Table1 == "":
		return "", required(KindSetOperation, "table1")
	case s.Table2 == "":
		return "", required(KindSetOperation, "table2")
	}
	if _, err := merge.ParseOperation(s.Operation); err != nil {
		return "", invalid(KindSetOperation, "operation", "%v", err)
	}
	return fmt.Sprintf("SELECT * FROM %s\n%s\nSELECT * FROM %s;", ident(s.Table1), s.operation(), ident(s.Table2)), nil
}

func (s *SetOperation) Form(cat table.Catalog) []Field {
	tables := tableNames(cat)
	s.Table1 = choose(tables, s.Table1)
	s.Table2 = choose(tables, s.Table2)
	s.Operation = choose(setOperations, s.operation())

	fields := []Field{
		selectField("table1", "First table", tables, s.Table1),
		selectField("table2", "Second table", tables, s.Table2),
		selectField("operation", "Operation", setOperations, s.Operation),
		{Key: "output_name", Label: "Result table name", Type: FieldText, Value: s.OutputName, Help: "default " + s.outputName()},
	}
	a, b := catalogTable(cat, s.Table1), catalogTable(cat, s.Table2)
	if a != nil && b != nil && !a.SameColumns(b) {
		fields[1].Help = "columns differ from " + s.Table1
	}
	return fields
}
