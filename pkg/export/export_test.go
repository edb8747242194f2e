package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

func ordersStore() *table.Store {
	store := table.NewStore()
	store.Put(table.NewBuilder("orders").
		AddInteger("id").
		AddText("customer").
		AddInteger("amount").
		Row(1, "A", 10).
		Row(2, nil, 20).
		Row(3, "A", 30).
		Build())
	return store
}

func runOrders(t *testing.T) *pipeline.RunReport {
	t.Helper()
	p := pipeline.New()
	for _, s := range []steps.Step{
		&steps.Filter{Table: "orders", Column: "amount", Operator: ">", Value: "15"},
		&steps.GroupBy{Table: "step_1", GroupCols: []string{"customer"}, Aggregations: map[string]string{"amount": "sum"}},
		&steps.Sort{Table: "missing", Columns: []string{"amount"}, Ascending: true},
	} {
		p.Add(s)
	}
	report, err := p.Run(context.Background(), ordersStore())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return report
}

func TestStepFileName(t *testing.T) {
	tests := []struct {
		n    int
		kind steps.Kind
		want string
	}{
		{1, steps.KindFilter, "step_1_filter_rows.csv"},
		{2, steps.KindGroupBy, "step_2_group_by.csv"},
		{10, steps.KindInsert, "step_10_insert.csv"},
		{3, steps.KindHandleMissing, "step_3_handle_missing_values.csv"},
	}
	for _, tt := range tests {
		if got := StepFileName(tt.n, tt.kind); got != tt.want {
			t.Errorf("StepFileName(%d, %s) = %s, want %s", tt.n, tt.kind, got, tt.want)
		}
	}
}

func TestWriteReport(t *testing.T) {
	report := runOrders(t)
	out := t.TempDir()
	e, err := NewExporter(Options{Folder: out})
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer e.Close()

	paths, errs := e.WriteReport(report)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	// шаг 3 завершился ошибкой и не сохраняется
	if len(paths) != 2 {
		t.Fatalf("Expected 2 files, got %v", paths)
	}
	if filepath.Dir(paths[0]) != filepath.Join(out, StepOutputsDir) {
		t.Errorf("Unexpected folder: %s", paths[0])
	}

	data, err := os.ReadFile(filepath.Join(out, StepOutputsDir, "step_1_filter_rows.csv"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	want := "id,customer,amount\n2,,20\n3,A,30\n"
	if string(data) != want {
		t.Errorf("Unexpected CSV:\n%s\nwant\n%s", data, want)
	}

	manifest, err := e.WriteManifest(report)
	if err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	raw, _ := os.ReadFile(manifest)
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(m.Files) != 2 || len(m.Failed) != 1 || m.Failed[0] != 3 {
		t.Errorf("Unexpected manifest: %+v", m)
	}
	if m.Files[0].Checksum != Checksum(data) {
		t.Errorf("Checksum mismatch: %s vs %s", m.Files[0].Checksum, Checksum(data))
	}
}

func TestWriteStep_Compressed(t *testing.T) {
	report := runOrders(t)
	e, err := NewExporter(Options{Folder: t.TempDir(), Compress: true})
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer e.Close()

	path, err := e.WriteStep(1, steps.KindFilter, report.Steps[0].Table)
	if err != nil {
		t.Fatalf("WriteStep failed: %v", err)
	}
	if !strings.HasSuffix(path, "step_1_filter_rows.csv.zst") {
		t.Errorf("Unexpected path: %s", path)
	}
	compressed, _ := os.ReadFile(path)
	plain, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !strings.HasPrefix(string(plain), "id,customer,amount\n") {
		t.Errorf("Unexpected content: %s", plain)
	}

	if _, err := e.WriteStep(2, steps.KindSort, nil); err == nil {
		t.Error("Expected error for nil table")
	}
}

func TestWriteWorkbook(t *testing.T) {
	report := runOrders(t)
	e, err := NewExporter(Options{Folder: t.TempDir()})
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	path, err := e.WriteWorkbook(report)
	if err != nil {
		t.Fatalf("WriteWorkbook failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Workbook not written: %v", err)
	}

	if _, err := e.WriteWorkbook(&pipeline.RunReport{}); err == nil {
		t.Error("Expected error for empty report")
	}
}

func TestEnsureDir(t *testing.T) {
	if _, err := EnsureDir(""); err == nil {
		t.Error("Expected error for empty folder")
	}

	// файл на месте папки
	file := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := EnsureDir(file); err == nil {
		t.Error("Expected error when output folder is a file")
	}
}
