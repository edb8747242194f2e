// Package pipeline хранит упорядоченный список шагов, выполняет его
// проход за проходом и кэширует результат каждого шага как step_N.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

// Entry - шаг конвейера с постоянным идентификатором
type Entry struct {
	ID   uuid.UUID
	Step steps.Step
}

// Pipeline - упорядоченная последовательность шагов и кэш их результатов.
// Не потокобезопасен: вызывающая сторона сериализует операции.
type Pipeline struct {
	Name    string
	entries []*Entry
	outputs map[int]*table.Table // номер шага (с 1) -> результат последнего прохода
	logger  zerolog.Logger
}

// Option настраивает Pipeline
type Option func(*Pipeline)

// WithLogger задает логгер проходов
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New создает пустой конвейер
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		outputs: make(map[int]*table.Table),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Len возвращает количество шагов
func (p *Pipeline) Len() int {
	return len(p.entries)
}

// Entries возвращает шаги в порядке выполнения
func (p *Pipeline) Entries() []*Entry {
	out := make([]*Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Step возвращает шаг по индексу (с 0)
func (p *Pipeline) Step(index int) (steps.Step, error) {
	if err := p.checkIndex(index); err != nil {
		return nil, err
	}
	return p.entries[index].Step, nil
}

// Add добавляет готовый шаг и возвращает его индекс
func (p *Pipeline) Add(s steps.Step) int {
	p.entries = append(p.entries, &Entry{ID: uuid.New(), Step: s})
	return len(p.entries) - 1
}

// AppendStep добавляет шаг указанного вида со значениями по умолчанию
func (p *Pipeline) AppendStep(kind steps.Kind) (int, error) {
	s, err := steps.New(kind)
	if err != nil {
		return -1, err
	}
	return p.Add(s), nil
}

// DeleteStep удаляет шаг. Шаги, ссылавшиеся на его результат, не удаляются:
// они завершатся ошибкой при следующем проходе.
func (p *Pipeline) DeleteStep(index int) error {
	if err := p.checkIndex(index); err != nil {
		return err
	}
	p.entries = append(p.entries[:index], p.entries[index+1:]...)
	p.outputs = make(map[int]*table.Table)
	return nil
}

// SetStepField присваивает значение поля шага
func (p *Pipeline) SetStepField(index int, field, value string) error {
	if err := p.checkIndex(index); err != nil {
		return err
	}
	return steps.Set(p.entries[index].Step, field, value)
}

// SetStepKind меняет вид шага. Поля прежнего вида сбрасываются, переносится
// только основная входная таблица, если она есть у обоих видов.
func (p *Pipeline) SetStepKind(index int, kind steps.Kind) error {
	if err := p.checkIndex(index); err != nil {
		return err
	}
	old := p.entries[index].Step
	if old.Kind() == kind {
		return nil
	}
	next, err := steps.New(kind)
	if err != nil {
		return err
	}
	if field := steps.PrimaryField(kind); field != "" {
		if primary := steps.PrimaryTable(old); primary != "" {
			if err := steps.Set(next, field, primary); err != nil {
				return err
			}
		}
	}
	p.entries[index].Step = next
	return nil
}

// Output возвращает результат шага по номеру (с 1) из последнего прохода
func (p *Pipeline) Output(number int) (*table.Table, bool) {
	t, ok := p.outputs[number]
	return t, ok
}

func (p *Pipeline) checkIndex(index int) error {
	if index < 0 || index >= len(p.entries) {
		return fmt.Errorf("%w: index %d out of range [0, %d)", ErrNoSuchStep, index, len(p.entries))
	}
	return nil
}

// StepName возвращает имя результата шага по номеру (с 1)
func StepName(number int) string {
	return fmt.Sprintf("step_%d", number)
}
