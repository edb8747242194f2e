package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/diff"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

// Статусы проверки шага
const (
	StatusMatch    = "match"
	StatusDiverged = "diverged"
	StatusSkipped  = "skipped"
	StatusError    = "error"
)

// Check - итог проверки SQL одного шага
type Check struct {
	Step     int        `json:"step"`
	Kind     steps.Kind `json:"kind"`
	Status   string     `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	Added    int        `json:"added,omitempty"`    // строки только в результате SQL
	Removed  int        `json:"removed,omitempty"`  // строки только в результате исполнителя
	Modified int        `json:"modified,omitempty"` // не используется при сравнении без ключа
}

// VerifyReport - итог проверки прохода
type VerifyReport struct {
	Checks []Check `json:"checks"`
}

// Count возвращает количество проверок со статусом status
func (r *VerifyReport) Count(status string) int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Divergences возвращает проверки, в которых SQL и исполнитель разошлись
func (r *VerifyReport) Divergences() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status == StatusDiverged || c.Status == StatusError {
			out = append(out, c)
		}
	}
	return out
}

// Verify загружает таблицы store в workspace и выполняет SQL каждого успешного
// шага report по порядку. Результат SELECT сравнивается с результатом шага
// как мультимножество строк. После изменяющих инструкций сравнивается
// измененная таблица. Результат шага загружается как step_N, чтобы следующие
// шаги могли на него ссылаться.
//
// store - таблицы в состоянии до прохода.
func (w *Workspace) Verify(ctx context.Context, store *table.Store, report *pipeline.RunReport) (*VerifyReport, error) {
	for _, name := range store.Names() {
		t, _ := store.Table(name)
		if err := w.LoadTable(ctx, t); err != nil {
			return nil, err
		}
	}

	differ := diff.NewDiffer(diff.DiffOptions{CaseSensitive: true, Precision: 9})
	out := &VerifyReport{}

	for _, s := range report.Steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if s.Err != nil {
			out.Checks = append(out.Checks, Check{Step: s.Number, Kind: s.Kind, Status: StatusSkipped, Reason: "step failed"})
			continue
		}

		check := w.verifyStep(ctx, differ, s)
		out.Checks = append(out.Checks, check)

		log := w.logger.Debug()
		if check.Status == StatusDiverged || check.Status == StatusError {
			log = w.logger.Warn()
		}
		log.Int("step", s.Number).Str("kind", string(s.Kind)).Str("status", check.Status).Str("reason", check.Reason).Msg("step verified")

		// состояние workspace следует за исполнителем; новые таблицы
		// (например, результат Join с output_name) регистрируются
		if s.Output != "" && (!isSelect(s.SQL) || !w.HasTable(s.Output)) {
			if err := w.LoadTable(ctx, s.Table.Rename(s.Output)); err != nil {
				return out, err
			}
		}
		if err := w.LoadTable(ctx, s.Table); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (w *Workspace) verifyStep(ctx context.Context, differ *diff.Differ, s pipeline.StepResult) Check {
	check := Check{Step: s.Number, Kind: s.Kind}
	sqlText := strings.TrimSpace(s.SQL)

	if sqlText == "" || strings.HasPrefix(sqlText, "--") {
		check.Status = StatusSkipped
		check.Reason = "no executable SQL"
		return check
	}

	var (
		got *table.Table
		err error
	)
	if isSelect(sqlText) {
		got, err = w.Query(ctx, sqlText, s.Name)
	} else {
		if err = w.Exec(ctx, sqlText); err == nil {
			if s.Output == "" || !w.HasTable(s.Output) {
				check.Status = StatusSkipped
				check.Reason = "statement has no result table"
				return check
			}
			got, err = w.Query(ctx, "SELECT * FROM "+expr.Ident(s.Output), s.Output)
		}
	}
	if err != nil {
		check.Status = StatusError
		check.Reason = err.Error()
		return check
	}

	res, err := differ.Compare(s.Table, got.Rename(s.Table.Name))
	if err != nil {
		check.Status = StatusDiverged
		check.Reason = err.Error()
		return check
	}
	check.Added = res.Stats.AddedCount
	check.Removed = res.Stats.RemovedCount
	check.Modified = res.Stats.ModifiedCount
	if res.IsEqual() {
		check.Status = StatusMatch
		return check
	}
	check.Status = StatusDiverged
	check.Reason = fmt.Sprintf("%d row(s) only in SQL result, %d row(s) only in step output", check.Added, check.Removed)
	return check
}

// isSelect - инструкция возвращает строки
func isSelect(sqlText string) bool {
	head := strings.ToUpper(strings.TrimSpace(sqlText))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH")
}
