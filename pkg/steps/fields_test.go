package steps

import (
	"errors"
	"testing"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"filter", KindFilter},
		{"Filter Rows", KindFilter},
		{"Group By", KindGroupBy},
		{"groupby", KindGroupBy},
		{"Create & Save New Table", KindCreateAndSave},
		{"create-and-save-new-table", KindCreateAndSave},
		{"INSERT", KindInsert},
		{"set_op", KindSetOperation},
		{"  Handle Missing Values ", KindHandleMissing},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}

	if _, err := ParseKind("pivot"); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestKinds_AllConstructible(t *testing.T) {
	if len(Kinds) != 15 {
		t.Errorf("Expected 15 kinds, got %d", len(Kinds))
	}
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("kind %s is not valid", k)
		}
		s, err := New(k)
		if err != nil {
			t.Fatalf("New(%s) failed: %v", k, err)
		}
		if s.Kind() != k {
			t.Errorf("New(%s) returned %s", k, s.Kind())
		}
		back, err := ParseKind(k.Title())
		if err != nil || back != k {
			t.Errorf("title %q does not parse back to %s: %v", k.Title(), k, err)
		}
	}
	if _, err := New("pivot"); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestSetAndValues(t *testing.T) {
	g := MustNew(KindGroupBy)

	steps := []struct {
		field, value string
	}{
		{"table", "orders"},
		{"group_cols", "customer, region,"},
		{"aggregations.amount", "sum"},
		{"aggregations.qty", "count"},
		{"having", "sum(amount) > 10"},
	}
	for _, s := range steps {
		if err := Set(g, s.field, s.value); err != nil {
			t.Fatalf("Set(%s) failed: %v", s.field, err)
		}
	}

	v := Values(g)
	want := map[string]string{
		"table":               "orders",
		"group_cols":          "customer,region",
		"aggregations.amount": "sum",
		"aggregations.qty":    "count",
		"having":              "sum(amount) > 10",
	}
	for k, w := range want {
		if v[k] != w {
			t.Errorf("Values[%s] = %q, want %q", k, v[k], w)
		}
	}

	// пустое значение удаляет ключ словаря
	if err := Set(g, "aggregations.qty", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := Values(g)["aggregations.qty"]; ok {
		t.Error("Expected aggregations.qty removed")
	}

	// словарь целиком
	if err := Set(g, "aggregations", "a=min, b:max"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	agg := g.(*GroupBy).Aggregations
	if len(agg) != 2 || agg["a"] != "min" || agg["b"] != "max" {
		t.Errorf("Unexpected aggregations: %v", agg)
	}
}

func TestSet_TypedFields(t *testing.T) {
	s := MustNew(KindSort)
	if err := Set(s, "ascending", "false"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if s.(*Sort).Ascending {
		t.Error("Expected ascending false")
	}

	u := MustNew(KindUpdate)
	if err := Set(u, "rows", "1, 3"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if rows := u.(*Update).Rows; len(rows) != 2 || rows[1] != 3 {
		t.Errorf("Unexpected rows: %v", rows)
	}

	errorCases := []struct {
		step         Step
		field, value string
	}{
		{MustNew(KindFilter), "nope", "x"},
		{MustNew(KindSort), "ascending", "maybe"},
		{MustNew(KindUpdate), "rows", "1,x"},
		{MustNew(KindFilter), "table.x", "y"},
		{MustNew(KindGroupBy), "aggregations", "novalue"},
	}
	for _, tc := range errorCases {
		err := Set(tc.step, tc.field, tc.value)
		var pe *ParamError
		if !errors.As(err, &pe) {
			t.Errorf("Set(%s, %s=%q): expected ParamError, got %v", tc.step.Kind(), tc.field, tc.value, err)
		}
	}
}

func TestFieldNamesAndPrimaryTable(t *testing.T) {
	j := &Join{LeftTable: "a", RightTable: "b"}
	names := FieldNames(j)
	if len(names) == 0 || names[0] != "left_table" {
		t.Errorf("Unexpected field names: %v", names)
	}
	if !HasField(j, "cast_to_str") || HasField(j, "table") {
		t.Error("HasField mismatch")
	}
	if PrimaryTable(j) != "a" {
		t.Errorf("Expected primary table a, got %s", PrimaryTable(j))
	}
	if PrimaryTable(MustNew(KindCreateWithPrimaryKey)) != "" {
		t.Error("CreateWithPrimaryKey has no input table")
	}
}

func TestForm_FallsBackToAvailableOptions(t *testing.T) {
	store := ordersStore()

	f := &Filter{Table: "missing", Column: "missing", Operator: "between"}
	fields := f.Form(store)
	if f.Table != "orders" || f.Column != "id" {
		t.Errorf("Expected fallback to orders.id, got %s.%s", f.Table, f.Column)
	}
	if f.Operator != "between" {
		t.Errorf("between is valid for a numeric column, got %s", f.Operator)
	}
	if len(fields) != 6 {
		t.Errorf("Expected value2 field for between, got %d fields", len(fields))
	}

	f = &Filter{Table: "orders", Column: "customer", Operator: ">"}
	f.Form(store)
	if f.Operator != "==" {
		t.Errorf("Expected text column operator fallback to ==, got %s", f.Operator)
	}

	empty := &Filter{Table: "orders"}
	empty.Form(table.NewStore())
	if empty.Table != "" {
		t.Errorf("Expected empty table with empty catalog, got %s", empty.Table)
	}

	g := &GroupBy{Table: "orders", GroupCols: []string{"customer", "gone"}, Aggregations: map[string]string{"amount": "sum", "customer": "sum"}}
	g.Form(store)
	if len(g.GroupCols) != 1 || g.GroupCols[0] != "customer" {
		t.Errorf("Unexpected group cols: %v", g.GroupCols)
	}
	if len(g.Aggregations) != 1 || g.Aggregations["amount"] != "sum" {
		t.Errorf("Unexpected aggregations: %v", g.Aggregations)
	}
}

func TestModifyColumn_FormOperators(t *testing.T) {
	store := ordersStore()

	m := &ModifyColumn{Table: "orders", Mode: ModeStandard, Column: "customer", RHS: RHSConstant, Operator: "*"}
	m.Form(store)
	if m.Operator != "+" {
		t.Errorf("Expected text operator fallback to +, got %s", m.Operator)
	}

	m = &ModifyColumn{Table: "orders", Mode: ModeStandard, Column: "amount", RHS: RHSConstant, Constant: "3", Operator: "**"}
	m.Form(store)
	if m.Operator != "**" {
		t.Errorf("Expected ** kept for numeric operands, got %s", m.Operator)
	}
}
