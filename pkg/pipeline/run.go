package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

// StepResult - итог шага в проходе конвейера
type StepResult struct {
	Number   int // номер шага с 1
	ID       uuid.UUID
	Kind     steps.Kind
	Name     string // step_N
	Output   string // имя результата шага до переименования в step_N
	Table    *table.Table
	SQL      string
	Notes    []string
	Err      error
	Rows     int
	Duration time.Duration
}

// RunReport - итог прохода конвейера
type RunReport struct {
	ID        uuid.UUID
	Pipeline  string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Steps     []StepResult
}

// Failed возвращает количество шагов, завершившихся ошибкой
func (r *RunReport) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Errors возвращает ошибки шагов
func (r *RunReport) Errors() []error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

// Run выполняет все шаги по порядку над хранилищем store.
// Шаг N видит таблицы хранилища и результаты step_1..step_{N-1}.
// Ошибка шага не прерывает проход. Отмена контекста проверяется между шагами.
func (p *Pipeline) Run(ctx context.Context, store *table.Store) (*RunReport, error) {
	report := &RunReport{
		ID:        uuid.New(),
		Pipeline:  p.Name,
		StartTime: time.Now(),
	}
	defer func() {
		report.EndTime = time.Now()
		report.Duration = report.EndTime.Sub(report.StartTime)
	}()
	runsTotal.Inc()

	p.outputs = make(map[int]*table.Table)
	log := p.logger.With().Str("run", report.ID.String()).Logger()

	for i, e := range p.entries {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("step", i+1).Msg("run cancelled")
			return report, err
		}

		number := i + 1
		cat := &scope{base: store, outputs: p.outputs, upTo: number}
		start := time.Now()
		res := Execute(e.Step, cat)
		elapsed := time.Since(start)

		sr := StepResult{
			Number:   number,
			ID:       e.ID,
			Kind:     e.Step.Kind(),
			Name:     StepName(number),
			SQL:      RenderSQL(e.Step),
			Notes:    res.Notes,
			Duration: elapsed,
		}

		status := "ok"
		if res.Err != nil {
			status = "error"
			sr.Err = &StepError{Number: number, Kind: sr.Kind, Err: res.Err}
			sr.Table = res.Table
			log.Error().Err(res.Err).Int("step", number).Str("kind", string(sr.Kind)).Dur("duration", elapsed).Msg("step failed")
		} else {
			sr.Output = res.Table.Name
			out := res.Table.Rename(sr.Name)
			p.outputs[number] = out
			sr.Table = out
			sr.Rows = out.Len()
			log.Info().Int("step", number).Str("kind", string(sr.Kind)).Int("rows", sr.Rows).Dur("duration", elapsed).Msg("step done")
		}
		stepExecutionsTotal.WithLabelValues(string(sr.Kind), status).Inc()
		stepDuration.WithLabelValues(string(sr.Kind)).Observe(elapsed.Seconds())

		report.Steps = append(report.Steps, sr)
	}
	return report, nil
}

// StepForm - форма шага и SQL шага после нормализации формой
type StepForm struct {
	Fields []steps.Field
	SQL    string
}

// Form строит форму шага index над хранилищем и результатами предыдущих
// шагов последнего прохода. Результаты step_j (j < номера шага) перечислены
// всегда, даже если еще не вычислены. Если входные таблицы шага недоступны,
// форма строится по копии шага, чтобы не потерять выбор пользователя.
// SQL рендерится по тому же шагу; ошибка рендера становится комментарием.
func (p *Pipeline) Form(index int, store *table.Store) (*StepForm, error) {
	if err := p.checkIndex(index); err != nil {
		return nil, err
	}
	cat := &scope{base: store, outputs: p.outputs, upTo: index + 1, listAll: true}
	s := p.entries[index].Step
	for _, name := range s.Inputs() {
		if _, ok := cat.Table(name); !ok {
			s = steps.Clone(s)
			break
		}
	}
	fields := s.Form(cat)
	return &StepForm{Fields: fields, SQL: RenderSQL(s)}, nil
}

// scope - каталог шага: хранилище плюс результаты предыдущих шагов
type scope struct {
	base    *table.Store
	outputs map[int]*table.Table
	upTo    int  // видны шаги с номером < upTo
	listAll bool // перечислять step_j, даже если результата нет
}

func (s *scope) Table(name string) (*table.Table, bool) {
	if n, ok := ParseStepName(name); ok {
		if n >= s.upTo {
			return nil, false
		}
		t, ok := s.outputs[n]
		return t, ok
	}
	if s.base == nil {
		return nil, false
	}
	return s.base.Table(name)
}

func (s *scope) Put(t *table.Table) {
	if t == nil || s.base == nil {
		return
	}
	if _, ok := ParseStepName(t.Name); ok {
		return
	}
	s.base.Put(t)
}

func (s *scope) Names() []string {
	var names []string
	if s.base != nil {
		names = s.base.Names()
	}
	for n := 1; n < s.upTo; n++ {
		if _, ok := s.outputs[n]; ok || s.listAll {
			names = append(names, StepName(n))
		}
	}
	return names
}

// ParseStepName разбирает имя вида step_N и возвращает номер шага
func ParseStepName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "step_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
