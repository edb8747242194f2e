package pipeline

import (
	"errors"
	"fmt"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

var (
	// ErrUnsupportedStep - шаг не задан
	ErrUnsupportedStep = errors.New("unsupported step or missing data")

	// ErrNoSuchStep - индекс шага вне списка
	ErrNoSuchStep = errors.New("no such step")
)

// Result - результат выполнения одного шага
type Result struct {
	// Table - результат шага; при ошибке - неизмененная входная таблица
	// или пустая таблица
	Table *table.Table
	Notes []string
	Err   error
}

// Failed сообщает, завершился ли шаг ошибкой
func (r Result) Failed() bool {
	return r.Err != nil
}

// StepError - ошибка выполнения шага конвейера
type StepError struct {
	Number int
	Kind   steps.Kind
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Number, e.Kind.Title(), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Execute выполняет шаг над каталогом. Паника шага перехватывается и
// превращается в ошибку; при ошибке возвращается безопасный результат.
func Execute(s steps.Step, cat table.Catalog) (res Result) {
	if s == nil {
		return Result{Table: table.New("empty"), Err: ErrUnsupportedStep}
	}
	env := steps.NewEnv(cat)

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("%s: internal error: %v", s.Kind(), r)}
		}
		res.Notes = env.Notes()
		if res.Err != nil {
			res.Table = fallback(s, cat)
		}
	}()

	t, err := s.Execute(env)
	if err != nil {
		return Result{Err: err}
	}
	if t == nil {
		return Result{Err: ErrUnsupportedStep}
	}
	return Result{Table: t}
}

// fallback - неизмененная основная входная таблица или пустая таблица
func fallback(s steps.Step, cat table.Catalog) *table.Table {
	if cat != nil {
		if name := steps.PrimaryTable(s); name != "" {
			if t, ok := cat.Table(name); ok {
				return t
			}
		}
	}
	return table.New("empty")
}

// RenderSQL строит SQL шага. Ошибка построения возвращается SQL-комментарием.
func RenderSQL(s steps.Step) (sql string) {
	if s == nil {
		return "-- Unsupported step or missing data"
	}
	defer func() {
		if r := recover(); r != nil {
			sql = fmt.Sprintf("-- Error generating SQL: %v", r)
		}
	}()
	out, err := s.Render()
	if err != nil {
		return fmt.Sprintf("-- Error generating SQL: %v", err)
	}
	return out
}
