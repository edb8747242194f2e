package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

// Helper: хранилище с таблицей orders
func ordersStore() *table.Store {
	store := table.NewStore()
	store.Put(table.NewBuilder("orders").
		AddInteger("id").
		AddText("customer").
		AddInteger("amount").
		Row(1, "A", 10).
		Row(2, "B", 20).
		Row(3, "A", 30).
		Build())
	return store
}

// Helper: добавить шаг и заполнить поля
func addStep(t *testing.T, p *Pipeline, kind steps.Kind, fields ...string) int {
	t.Helper()
	idx, err := p.AppendStep(kind)
	if err != nil {
		t.Fatalf("AppendStep(%s) failed: %v", kind, err)
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if err := p.SetStepField(idx, fields[i], fields[i+1]); err != nil {
			t.Fatalf("SetStepField(%s) failed: %v", fields[i], err)
		}
	}
	return idx
}

func TestPipeline_RunChainsStepOutputs(t *testing.T) {
	p := New()
	addStep(t, p, steps.KindFilter, "table", "orders", "column", "amount", "operator", ">", "value", "15")
	addStep(t, p, steps.KindGroupBy, "table", "step_1", "group_cols", "customer", "aggregations.amount", "sum")

	report, err := p.Run(context.Background(), ordersStore())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Failed() != 0 {
		t.Fatalf("Expected no failures, got %v", report.Errors())
	}

	first, ok := p.Output(1)
	if !ok || first.Len() != 2 || first.Name != "step_1" {
		t.Fatalf("Unexpected step_1 output: %v", first)
	}
	second := report.Steps[1].Table
	if second.Len() != 2 {
		t.Fatalf("Expected 2 groups, got %d", second.Len())
	}
	if second.Rows[0][1].IntValue() != 30 || second.Rows[1][1].IntValue() != 20 {
		t.Errorf("Unexpected sums: %v", second.Rows)
	}
	if report.Steps[0].SQL != "SELECT * FROM orders WHERE amount > 15" {
		t.Errorf("Unexpected SQL: %s", report.Steps[0].SQL)
	}
}

func TestPipeline_FailedStepDoesNotStopRun(t *testing.T) {
	p := New()
	addStep(t, p, steps.KindFilter, "table", "orders", "column", "nope", "operator", "==", "value", "1")
	addStep(t, p, steps.KindSort, "table", "orders", "columns", "amount", "ascending", "false")
	addStep(t, p, steps.KindSort, "table", "step_1", "columns", "amount")

	report, err := p.Run(context.Background(), ordersStore())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Steps) != 3 || report.Failed() != 2 {
		t.Fatalf("Expected 3 steps with 2 failures, got %d steps, %d failures", len(report.Steps), report.Failed())
	}

	var se *StepError
	if !errors.As(report.Steps[0].Err, &se) || se.Number != 1 || se.Kind != steps.KindFilter {
		t.Errorf("Expected StepError for step 1, got %v", report.Steps[0].Err)
	}
	// безопасный результат - неизмененная входная таблица
	if report.Steps[0].Table == nil || report.Steps[0].Table.Len() != 3 {
		t.Errorf("Expected fallback to the input table, got %v", report.Steps[0].Table)
	}
	if _, ok := p.Output(1); ok {
		t.Error("Failed step must not be cached")
	}
	if report.Steps[1].Err != nil || report.Steps[1].Table.Rows[0][2].IntValue() != 30 {
		t.Errorf("Step 2 should succeed: %v", report.Steps[1].Err)
	}
	if report.Steps[2].Err == nil || !strings.Contains(report.Steps[2].Err.Error(), "step_1") {
		t.Errorf("Step 3 should fail on missing step_1, got %v", report.Steps[2].Err)
	}
}

func TestPipeline_ForwardReferenceFails(t *testing.T) {
	p := New()
	addStep(t, p, steps.KindSort, "table", "step_2", "columns", "amount")
	addStep(t, p, steps.KindSort, "table", "orders", "columns", "amount")

	report, _ := p.Run(context.Background(), ordersStore())
	if report.Steps[0].Err == nil {
		t.Error("Expected forward reference to fail")
	}
	if report.Steps[1].Err != nil {
		t.Errorf("Second step should succeed, got %v", report.Steps[1].Err)
	}
}

func TestPipeline_DeleteStepLeavesDanglingReference(t *testing.T) {
	p := New()
	addStep(t, p, steps.KindFilter, "table", "orders", "column", "customer", "operator", "==", "value", "A")
	addStep(t, p, steps.KindSort, "table", "step_1", "columns", "amount")
	addStep(t, p, steps.KindSort, "table", "step_2", "columns", "amount")

	if err := p.DeleteStep(0); err != nil {
		t.Fatalf("DeleteStep failed: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("Expected 2 steps, got %d", p.Len())
	}
	report, _ := p.Run(context.Background(), ordersStore())
	if report.Steps[0].Err == nil {
		t.Error("Expected dangling step_1 reference to fail")
	}
	if err := p.DeleteStep(5); err == nil {
		t.Error("Expected out of range error")
	}
}

func TestPipeline_DestructiveStepsMutateStore(t *testing.T) {
	store := ordersStore()
	p := New()
	addStep(t, p, steps.KindInsert, "table", "orders", "values.id", "4", "values.customer", "C", "values.amount", "5")
	addStep(t, p, steps.KindAggregateColumn, "table", "orders", "column", "amount", "function", "count")

	report, _ := p.Run(context.Background(), store)
	if report.Failed() != 0 {
		t.Fatalf("Unexpected failures: %v", report.Errors())
	}
	if got := report.Steps[1].Table.Rows[0][0].IntValue(); got != 4 {
		t.Errorf("Expected the aggregate to see the inserted row, got count %d", got)
	}
	orders, _ := store.Table("orders")
	if orders.Len() != 4 {
		t.Errorf("Expected orders to have 4 rows, got %d", orders.Len())
	}
}

func TestPipeline_SetStepKind(t *testing.T) {
	p := New()
	idx := addStep(t, p, steps.KindFilter, "table", "orders", "column", "amount", "value", "5")

	if err := p.SetStepKind(idx, steps.KindSort); err != nil {
		t.Fatalf("SetStepKind failed: %v", err)
	}
	s, _ := p.Step(idx)
	sortStep, ok := s.(*steps.Sort)
	if !ok {
		t.Fatalf("Expected *steps.Sort, got %T", s)
	}
	if sortStep.Table != "orders" || len(sortStep.Columns) != 0 {
		t.Errorf("Expected only the table carried over, got %+v", sortStep)
	}

	if err := p.SetStepKind(idx, steps.KindJoin); err != nil {
		t.Fatalf("SetStepKind failed: %v", err)
	}
	s, _ = p.Step(idx)
	if s.(*steps.Join).LeftTable != "orders" {
		t.Errorf("Expected left_table carried over, got %+v", s)
	}

	if err := p.SetStepKind(idx, "pivot"); err == nil {
		t.Error("Expected error for unknown kind")
	}
	if err := p.SetStepField(idx, "nope", "x"); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestPipeline_RunCancelled(t *testing.T) {
	p := New()
	addStep(t, p, steps.KindSort, "table", "orders", "columns", "amount")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := p.Run(ctx, ordersStore())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(report.Steps) != 0 {
		t.Errorf("Expected no steps executed, got %d", len(report.Steps))
	}
}

func TestPipeline_FormListsEarlierSteps(t *testing.T) {
	p := New()
	addStep(t, p, steps.KindFilter, "table", "orders", "column", "amount", "operator", ">", "value", "15")
	idx := addStep(t, p, steps.KindSort, "table", "step_1", "columns", "customer")
	store := ordersStore()

	// до прохода step_1 не вычислен: выбор пользователя сохраняется
	form, err := p.Form(idx, store)
	if err != nil {
		t.Fatalf("Form failed: %v", err)
	}
	fields := form.Fields
	if !strings.Contains(strings.Join(fields[0].Options, ","), "step_1") {
		t.Errorf("Expected step_1 among options, got %v", fields[0].Options)
	}
	s, _ := p.Step(idx)
	if s.(*steps.Sort).Table != "step_1" || len(s.(*steps.Sort).Columns) != 1 {
		t.Errorf("Selection must survive a form pass without outputs, got %+v", s)
	}

	if _, err := p.Run(context.Background(), store); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	form, _ = p.Form(idx, store)
	fields = form.Fields
	if fields[1].Value != "customer" {
		t.Errorf("Expected customer selected, got %q", fields[1].Value)
	}

	first, _ := p.Form(0, store)
	if strings.Contains(strings.Join(first.Fields[0].Options, ","), "step_") {
		t.Errorf("Step 1 must not see step outputs, got %v", first.Fields[0].Options)
	}
}

func TestPipeline_FormRendersSQL(t *testing.T) {
	p := New()
	addStep(t, p, steps.KindFilter, "table", "orders", "column", "customer", "value", "7")
	addStep(t, p, steps.KindFilter, "table", "orders", "expression", "amount >")
	store := ordersStore()

	tests := []struct {
		index int
		want  string
	}{
		{0, "SELECT * FROM orders WHERE customer = '7'"},
		{1, "-- Error generating SQL: "},
	}
	for _, tt := range tests {
		form, err := p.Form(tt.index, store)
		if err != nil {
			t.Fatalf("Form(%d) failed: %v", tt.index, err)
		}
		if !strings.HasPrefix(form.SQL, tt.want) {
			t.Errorf("Form(%d): expected SQL %q, got %q", tt.index, tt.want, form.SQL)
		}
	}
	if _, err := p.Form(5, store); !errors.Is(err, ErrNoSuchStep) {
		t.Errorf("Expected ErrNoSuchStep, got %v", err)
	}
}

func TestExecute_RecoversFromPanics(t *testing.T) {
	res := Execute(panicStep{}, ordersStore())
	if res.Err == nil || !strings.Contains(res.Err.Error(), "boom") {
		t.Fatalf("Expected recovered error, got %v", res.Err)
	}
	if res.Table == nil {
		t.Error("Expected fallback table")
	}

	res = Execute(nil, ordersStore())
	if !errors.Is(res.Err, ErrUnsupportedStep) || res.Table == nil || res.Table.Len() != 0 {
		t.Errorf("Expected empty fallback for nil step, got %+v", res)
	}
}

func TestRenderSQL(t *testing.T) {
	if got := RenderSQL(nil); got != "-- Unsupported step or missing data" {
		t.Errorf("Unexpected SQL for nil step: %s", got)
	}
	if got := RenderSQL(&steps.Delete{Table: "t"}); !strings.HasPrefix(got, "-- Error generating SQL: ") {
		t.Errorf("Expected error comment, got %s", got)
	}
	if got := RenderSQL(panicStep{}); !strings.HasPrefix(got, "-- Error generating SQL: ") {
		t.Errorf("Expected error comment for panic, got %s", got)
	}
}

func TestChain(t *testing.T) {
	if got := Chain(nil); got != "" {
		t.Errorf("Expected empty chain, got %q", got)
	}
	if got := Chain([]string{"SELECT 1"}); got != "SELECT 1" {
		t.Errorf("Single statement must be returned verbatim, got %q", got)
	}

	got := Chain([]string{
		"SELECT * FROM orders WHERE amount > 15",
		"SELECT * FROM step_1 ORDER BY amount ASC;",
	})
	want := "WITH step_1 AS (\n  SELECT * FROM orders WHERE amount > 15\n),\n" +
		"step_2 AS (\n  SELECT * FROM step_1 ORDER BY amount ASC\n)\n" +
		"SELECT * FROM step_2;"
	if got != want {
		t.Errorf("Chain() =\n%s\nwant\n%s", got, want)
	}
}

// panicStep - шаг, который паникует при выполнении и построении SQL
type panicStep struct{}

func (panicStep) Kind() steps.Kind { return steps.KindFilter }
func (panicStep) Inputs() []string { return nil }
func (panicStep) Execute(*steps.Env) (*table.Table, error) { panic("boom") }
func (panicStep) Render() (string, error) { panic("boom") }
func (panicStep) Form(table.Catalog) []steps.Field { return nil }
