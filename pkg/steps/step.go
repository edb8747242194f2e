package steps

import (
	"fmt"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Step - типизированный шаг конвейера.
// Execute выполняет шаг над таблицами каталога, Render строит эквивалентный SQL,
// Form строит описание формы и нормализует поля под текущий каталог.
type Step interface {
	Kind() Kind
	Inputs() []string
	Execute(env *Env) (*table.Table, error)
	Render() (string, error)
	Form(cat table.Catalog) []Field
}

// Env - окружение выполнения шага
type Env struct {
	Catalog table.Catalog
	notes   []string
}

// NewEnv создает окружение над каталогом
func NewEnv(cat table.Catalog) *Env {
	return &Env{Catalog: cat}
}

// Notef добавляет сообщение о выполнении (количество строк, пропущенные строки и т.п.)
func (e *Env) Notef(format string, args ...any) {
	e.notes = append(e.notes, fmt.Sprintf(format, args...))
}

// Notes возвращает сообщения, накопленные при выполнении
func (e *Env) Notes() []string {
	return e.notes
}

// lookup возвращает таблицу каталога или ошибку
func (e *Env) lookup(kind Kind, field, name string) (*table.Table, error) {
	if name == "" {
		return nil, required(kind, field)
	}
	if e.Catalog == nil {
		return nil, fmt.Errorf("table '%s' not found", name)
	}
	t, ok := e.Catalog.Table(name)
	if !ok {
		return nil, fmt.Errorf("table '%s' not found", name)
	}
	return t, nil
}

// ParamError - ошибка параметров шага
type ParamError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ParamError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: field '%s': %s", e.Kind, e.Field, e.Message)
}

func required(kind Kind, field string) error {
	return &ParamError{Kind: kind, Field: field, Message: "is required"}
}

func invalid(kind Kind, field, format string, args ...any) error {
	return &ParamError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// New создает шаг указанного вида со значениями по умолчанию
func New(kind Kind) (Step, error) {
	switch kind {
	case KindFilter:
		return &Filter{Operator: "=="}, nil
	case KindSort:
		return &Sort{Ascending: true}, nil
	case KindGroupBy:
		return &GroupBy{Aggregations: map[string]string{}}, nil
	case KindJoin:
		return &Join{JoinType: "inner", CastToStr: true}, nil
	case KindCreateWithPrimaryKey:
		return &CreateWithPrimaryKey{OutputName: "new_table", Types: map[string]string{}}, nil
	case KindAggregateColumn:
		return &AggregateColumn{Function: "sum"}, nil
	case KindModifyColumn:
		return &ModifyColumn{Mode: ModeStandard, Operator: "+", RHS: RHSConstant}, nil
	case KindCreateAndSave:
		return &CreateAndSave{OutputName: "new_table", Types: map[string]string{}}, nil
	case KindInsert:
		return &Insert{Values: map[string]string{}}, nil
	case KindUpdate:
		return &Update{}, nil
	case KindDelete:
		return &Delete{}, nil
	case KindSetOperation:
		return &SetOperation{Operation: "UNION"}, nil
	case KindHandleMissing:
		return &HandleMissing{Strategy: "drop"}, nil
	case KindModifyStructure:
		return &ModifyStructure{Action: ActionAddColumn, Dtype: "str", Rename: map[string]string{}, Types: map[string]string{}}, nil
	case KindCreateWithForeignLink:
		return &CreateWithForeignLink{OutputName: "new_table", Types: map[string]string{}}, nil
	}
	return nil, fmt.Errorf("unknown step kind '%s'", kind)
}

// MustNew создает шаг известного вида; для тестов и констант
func MustNew(kind Kind) Step {
	s, err := New(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// PrimaryField возвращает имя поля основной входной таблицы вида шага
func PrimaryField(kind Kind) string {
	switch kind {
	case KindJoin:
		return "left_table"
	case KindSetOperation:
		return "table1"
	case KindCreateAndSave:
		return "base_table"
	case KindCreateWithForeignLink:
		return "fk_table"
	case KindCreateWithPrimaryKey:
		return ""
	default:
		return "table"
	}
}

// PrimaryTable возвращает основную входную таблицу шага
func PrimaryTable(s Step) string {
	field := PrimaryField(s.Kind())
	if field == "" {
		return ""
	}
	return Values(s)[field]
}

func nonEmpty(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
