// Package api exposes a stepflow session over HTTP: upload tables, edit
// the step list, run it and read back step outputs and generated SQL.
package api

import (
	"context"
	"sync"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/ingest"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

// Session is one editing session: the uploaded tables and the step list.
// All operations are serialised by mu.
type Session struct {
	mu     sync.Mutex
	base   *table.Store // tables as uploaded
	work   *table.Store // base snapshot the last pass ran on
	pipe   *pipeline.Pipeline
	loader *ingest.Loader
	last   *pipeline.RunReport
}

// NewSession creates a session over the given tables and pipeline.
// A nil store or pipeline starts empty.
func NewSession(store *table.Store, p *pipeline.Pipeline, loader *ingest.Loader) *Session {
	if store == nil {
		store = table.NewStore()
	}
	if p == nil {
		p = pipeline.New()
	}
	if loader == nil {
		loader = ingest.NewLoader(ingest.Options{})
	}
	return &Session{
		base:   store,
		work:   store.Snapshot(),
		pipe:   p,
		loader: loader,
	}
}

// Upload parses a csv or xlsx file and adds it to the session tables.
// A table with the same name is replaced.
func (s *Session) Upload(filename string, data []byte) (*table.Table, error) {
	t, err := s.loader.Load(filename, data)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.Put(t)
	s.work = s.base.Snapshot()
	return t, nil
}

// Tables returns the uploaded tables in upload order.
func (s *Session) Tables() []*table.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*table.Table
	for _, name := range s.base.Names() {
		if t, ok := s.base.Table(name); ok {
			out = append(out, t)
		}
	}
	return out
}

// Table resolves a table by name. step_N names resolve to the cached
// output of the last pass; other names see the state after that pass.
func (s *Session) Table(name string) (*table.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := pipeline.ParseStepName(name); ok {
		return s.pipe.Output(n)
	}
	if t, ok := s.work.Table(name); ok {
		return t, true
	}
	return s.base.Table(name)
}

// Steps returns a view of every step in order.
func (s *Session) Steps() []stepView {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.pipe.Entries()
	out := make([]stepView, 0, len(entries))
	for i, e := range entries {
		out = append(out, newStepView(i, e))
	}
	return out
}

// AppendStep adds a step of the given kind with default fields.
func (s *Session) AppendStep(kind steps.Kind) (stepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.pipe.AppendStep(kind)
	if err != nil {
		return stepView{}, err
	}
	return newStepView(idx, s.pipe.Entries()[idx]), nil
}

// DeleteStep removes the step at index.
func (s *Session) DeleteStep(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe.DeleteStep(index)
}

// SetField assigns one field of the step at index.
func (s *Session) SetField(index int, field, value string) (stepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pipe.SetStepField(index, field, value); err != nil {
		return stepView{}, err
	}
	return newStepView(index, s.pipe.Entries()[index]), nil
}

// SetKind switches the step at index to another kind.
func (s *Session) SetKind(index int, kind steps.Kind) (stepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pipe.SetStepKind(index, kind); err != nil {
		return stepView{}, err
	}
	return newStepView(index, s.pipe.Entries()[index]), nil
}

// Form builds the form of the step at index against the current tables,
// with the step SQL rendered after the form normalised it.
func (s *Session) Form(index int) (*pipeline.StepForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe.Form(index, s.work)
}

// Run executes a fresh pass over a snapshot of the uploaded tables, so
// destructive steps never touch the uploads themselves.
func (s *Session) Run(ctx context.Context) (*pipeline.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.work = s.base.Snapshot()
	report, err := s.pipe.Run(ctx, s.work)
	s.last = report
	return report, err
}

// LastReport returns the report of the last pass, nil before the first.
func (s *Session) LastReport() *pipeline.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SQL returns the per-step statements and the chained query.
func (s *Session) SQL() ([]string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stmts := s.pipe.SQL()
	return stmts, pipeline.Chain(stmts)
}

// Columns compares the column sets of the uploaded tables.
func (s *Session) Columns() ingest.ColumnReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tables []*table.Table
	for _, name := range s.base.Names() {
		if t, ok := s.base.Table(name); ok {
			tables = append(tables, t)
		}
	}
	return ingest.CompareColumns(tables)
}

// Definition exports the current step list as a pipeline definition.
func (s *Session) Definition() (*pipeline.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pipeline.FromPipeline(s.pipe)
}

