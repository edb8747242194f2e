package api

import (
	"time"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

type tableSummary struct {
	Name    string         `json:"name"`
	Columns []table.Column `json:"columns"`
	Rows    int            `json:"rows"`
}

type tableView struct {
	tableSummary
	Data [][]any `json:"data"`
}

func summarize(t *table.Table) tableSummary {
	return tableSummary{Name: t.Name, Columns: t.Columns, Rows: t.Len()}
}

// newTableView renders at most limit rows; limit <= 0 renders all of them.
func newTableView(t *table.Table, limit int) tableView {
	rows := t.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	data := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = cellJSON(v)
		}
		data[i] = cells
	}
	return tableView{tableSummary: summarize(t), Data: data}
}

// cellJSON keeps timestamps in the same text form the CSV export uses.
func cellJSON(v schema.Value) any {
	if v.Kind() == schema.KindTime {
		return v.String()
	}
	return v.Any()
}

type stepView struct {
	Index  int               `json:"index"`
	ID     string            `json:"id"`
	Kind   steps.Kind        `json:"kind"`
	Title  string            `json:"title"`
	Values map[string]string `json:"values"`
	SQL    string            `json:"sql"`
}

func newStepView(index int, e *pipeline.Entry) stepView {
	return stepView{
		Index:  index,
		ID:     e.ID.String(),
		Kind:   e.Step.Kind(),
		Title:  e.Step.Kind().Title(),
		Values: steps.Values(e.Step),
		SQL:    pipeline.RenderSQL(e.Step),
	}
}

type stepResultView struct {
	Number     int        `json:"number"`
	Name       string     `json:"name"`
	Kind       steps.Kind `json:"kind"`
	Output     string     `json:"output,omitempty"`
	Rows       int        `json:"rows"`
	SQL        string     `json:"sql"`
	Notes      []string   `json:"notes,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

type runView struct {
	ID         string           `json:"id"`
	Pipeline   string           `json:"pipeline,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMs int64            `json:"duration_ms"`
	Failed     int              `json:"failed"`
	Steps      []stepResultView `json:"steps"`
}

func newRunView(r *pipeline.RunReport) runView {
	v := runView{
		ID:         r.ID.String(),
		Pipeline:   r.Pipeline,
		StartedAt:  r.StartTime,
		DurationMs: r.Duration.Milliseconds(),
		Failed:     r.Failed(),
		Steps:      make([]stepResultView, 0, len(r.Steps)),
	}
	for _, s := range r.Steps {
		sv := stepResultView{
			Number:     s.Number,
			Name:       s.Name,
			Kind:       s.Kind,
			Output:     s.Output,
			Rows:       s.Rows,
			SQL:        s.SQL,
			Notes:      s.Notes,
			DurationMs: s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			sv.Error = s.Err.Error()
		}
		v.Steps = append(v.Steps, sv)
	}
	return v
}

type sqlView struct {
	Steps   []string `json:"steps"`
	Chained string   `json:"chained"`
}

// formView is a step form together with the SQL the normalised step renders.
type formView struct {
	Fields []steps.Field `json:"fields"`
	SQL    string        `json:"sql"`
}
