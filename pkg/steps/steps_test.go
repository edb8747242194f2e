package steps

import (
	"errors"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Helper: каталог с таблицей orders
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

func run(t *testing.T, s Step, store *table.Store) (*table.Table, *Env) {
	t.Helper()
	env := NewEnv(store)
	out, err := s.Execute(env)
	if err != nil {
		t.Fatalf("%s: Execute failed: %v", s.Kind(), err)
	}
	return out, env
}

func TestFilter_Orders(t *testing.T) {
	step := &Filter{Table: "orders", Column: "amount", Operator: ">", Value: "15"}

	out, _ := run(t, step, ordersStore())
	if out.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", out.Len())
	}
	if out.Rows[0][0].IntValue() != 2 || out.Rows[1][0].IntValue() != 3 {
		t.Errorf("Expected ids 2 and 3, got %v and %v", out.Rows[0][0], out.Rows[1][0])
	}

	sql, err := step.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if sql != "SELECT * FROM orders WHERE amount > 15" {
		t.Errorf("Unexpected SQL: %s", sql)
	}
}

func TestFilter_EqualsIsSubset(t *testing.T) {
	store := ordersStore()
	src, _ := store.Table("orders")

	for _, customer := range []string{"A", "B", "C"} {
		out, _ := run(t, &Filter{Table: "orders", Column: "customer", Operator: "==", Value: customer}, store)
		for _, row := range out.Rows {
			if row[1].String() != customer {
				t.Errorf("customer %s: unexpected row %v", customer, row)
			}
		}
		want := 0
		for _, row := range src.Rows {
			if row[1].String() == customer {
				want++
			}
		}
		if out.Len() != want {
			t.Errorf("customer %s: expected %d rows, got %d", customer, want, out.Len())
		}
	}
}

func TestFilter_BetweenAndExpression(t *testing.T) {
	store := ordersStore()

	out, _ := run(t, &Filter{Table: "orders", Column: "amount", Operator: "between", Value: "10", Value2: "20"}, store)
	if out.Len() != 2 {
		t.Errorf("between: expected 2 rows, got %d", out.Len())
	}

	out, _ = run(t, &Filter{Table: "orders", Expression: "amount > 15 and customer == 'A'"}, store)
	if out.Len() != 1 || out.Rows[0][0].IntValue() != 3 {
		t.Errorf("expression: expected only id 3, got %v", out.Rows)
	}

	_, err := (&Filter{Table: "orders", Expression: "sum(amount) > 1"}).Execute(NewEnv(store))
	if err == nil {
		t.Error("Expected error for aggregate in row filter")
	}
}

func TestFilter_MissingTable(t *testing.T) {
	_, err := (&Filter{Table: "nope", Column: "a", Operator: "=="}).Execute(NewEnv(table.NewStore()))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not found error, got %v", err)
	}

	_, err = (&Filter{Column: "a", Operator: "=="}).Execute(NewEnv(table.NewStore()))
	var pe *ParamError
	if !errors.As(err, &pe) || pe.Field != "table" {
		t.Errorf("Expected ParamError for table, got %v", err)
	}
}

func TestSort(t *testing.T) {
	store := ordersStore()
	out, _ := run(t, &Sort{Table: "orders", Columns: []string{"customer", "amount"}, Ascending: false}, store)

	want := []int64{2, 3, 1}
	for i, id := range want {
		if out.Rows[i][0].IntValue() != id {
			t.Errorf("row %d: expected id %d, got %v", i, id, out.Rows[i][0])
		}
	}

	src, _ := store.Table("orders")
	if src.Rows[0][0].IntValue() != 1 {
		t.Error("Sort must not modify the source table")
	}
}

func TestGroupBy_Orders(t *testing.T) {
	step := &GroupBy{Table: "orders", GroupCols: []string{"customer"}, Aggregations: map[string]string{"amount": "sum"}}

	out, _ := run(t, step, ordersStore())
	if out.Len() != 2 {
		t.Fatalf("Expected 2 groups, got %d", out.Len())
	}
	if got := out.ColumnNames(); len(got) != 2 || got[1] != "sum_amount" {
		t.Errorf("Unexpected columns: %v", got)
	}
	if out.Rows[0][0].String() != "A" || out.Rows[0][1].IntValue() != 40 {
		t.Errorf("Expected (A, 40), got %v", out.Rows[0])
	}
	if out.Rows[1][0].String() != "B" || out.Rows[1][1].IntValue() != 20 {
		t.Errorf("Expected (B, 20), got %v", out.Rows[1])
	}

	sql, err := step.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, part := range []string{"GROUP BY customer", "SUM(amount) AS sum_amount"} {
		if !strings.Contains(sql, part) {
			t.Errorf("SQL %q does not contain %q", sql, part)
		}
	}
}

func TestGroupBy_CountsPartitionRows(t *testing.T) {
	store := table.NewStore()
	store.Put(table.NewBuilder("t").
		AddText("k").AddInteger("v").
		Row("x", 1).Row(nil, 2).Row("y", 3).Row("x", 4).Row(nil, nil).
		Build())

	out, _ := run(t, &GroupBy{Table: "t", GroupCols: []string{"k"}, Aggregations: map[string]string{"v": "count"}}, store)
	if out.Len() != 3 {
		t.Fatalf("Expected 3 groups (NULL, x, y), got %d", out.Len())
	}
	if !out.Rows[0][0].IsNull() {
		t.Errorf("Expected NULL group first, got %v", out.Rows[0][0])
	}

	out, _ = run(t, &GroupBy{Table: "t", GroupCols: []string{"k"}, Aggregations: map[string]string{}}, store)
	if out.Len() != 3 {
		t.Errorf("Expected 3 groups without aggregations, got %d", out.Len())
	}
}

func TestGroupBy_Having(t *testing.T) {
	step := &GroupBy{
		Table:        "orders",
		GroupCols:    []string{"customer"},
		Aggregations: map[string]string{"amount": "mean"},
		Having:       "sum(amount) > 25",
	}
	out, _ := run(t, step, ordersStore())
	if out.Len() != 1 || out.Rows[0][0].String() != "A" {
		t.Fatalf("Expected only group A, got %v", out.Rows)
	}
	if out.Rows[0][1].FloatValue() != 20 {
		t.Errorf("Expected mean 20, got %v", out.Rows[0][1])
	}
}

func TestJoin_SelfRoundTrip(t *testing.T) {
	store := ordersStore()
	out, _ := run(t, &Join{LeftTable: "orders", RightTable: "orders", LeftOn: "id", RightOn: "id", JoinType: "inner"}, store)

	if out.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", out.Len())
	}
	want := []string{"id", "customer_x", "amount_x", "customer_y", "amount_y"}
	got := out.ColumnNames()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Expected columns %v, got %v", want, got)
	}
	for i, row := range out.Rows {
		if row[1].String() != row[3].String() || row[2].String() != row[4].String() {
			t.Errorf("row %d: left and right halves differ: %v", i, row)
		}
	}
}

func TestJoin_Types(t *testing.T) {
	store := ordersStore()
	store.Put(table.NewBuilder("customers").
		AddText("code").AddText("name").
		Row("A", "Alpha").Row("C", "Gamma").
		Build())

	tests := []struct {
		joinType string
		want     int
	}{
		{"inner", 2},
		{"left", 3},
		{"right", 3},
		{"outer", 4},
	}
	for _, tt := range tests {
		t.Run(tt.joinType, func(t *testing.T) {
			step := &Join{LeftTable: "orders", RightTable: "customers", LeftOn: "customer", RightOn: "code", JoinType: tt.joinType, CastToStr: true}
			out, _ := run(t, step, store)
			if out.Len() != tt.want {
				t.Errorf("Expected %d rows, got %d", tt.want, out.Len())
			}
		})
	}
}

func TestAggregateColumn(t *testing.T) {
	out, _ := run(t, &AggregateColumn{Table: "orders", Column: "amount", Function: "max"}, ordersStore())
	if out.Len() != 1 || out.Rows[0][0].IntValue() != 30 {
		t.Errorf("Expected max 30, got %v", out.Rows)
	}
}

func TestModifyColumn(t *testing.T) {
	store := ordersStore()

	out, _ := run(t, &ModifyColumn{Table: "orders", Mode: ModeStandard, Column: "amount", Operator: "*", RHS: RHSConstant, Constant: "2"}, store)
	idx := out.ColumnIndex("amount_*_new")
	if idx < 0 {
		t.Fatalf("Expected column amount_*_new, got %v", out.ColumnNames())
	}
	if out.Rows[2][idx].IntValue() != 60 {
		t.Errorf("Expected 60, got %v", out.Rows[2][idx])
	}

	out, _ = run(t, &ModifyColumn{Table: "orders", Mode: ModeManual, Alias: "big", Expression: "amount >= 20"}, store)
	idx = out.ColumnIndex("big")
	if out.Rows[0][idx].Truthy() || !out.Rows[1][idx].Truthy() {
		t.Errorf("Unexpected values: %v", out.ColumnValues(idx))
	}

	_, err := (&ModifyColumn{Table: "orders", Mode: ModeStandard, Column: "customer", Operator: "*", RHS: RHSConstant, Constant: "2"}).Execute(NewEnv(store))
	if err == nil {
		t.Error("Expected error for '*' on text column")
	}
}

func TestCreateSteps(t *testing.T) {
	store := ordersStore()

	env := NewEnv(store)
	pk := &CreateWithPrimaryKey{
		OutputName: "rates",
		Columns:    []string{"code", "rate"},
		Types:      map[string]string{"code": "TEXT", "rate": "FLOAT"},
		PrimaryKey: "code",
		Rows:       "A, 1.5\nB, 2",
	}
	if _, err := pk.Execute(env); err != nil {
		t.Fatalf("CreateWithPrimaryKey failed: %v", err)
	}
	rates, ok := store.Table("rates")
	if !ok || rates.Len() != 2 || rates.Columns[1].Type != schema.TypeReal {
		t.Fatalf("Expected registered rates table, got %v", rates)
	}

	bad := &CreateWithPrimaryKey{OutputName: "x", Columns: []string{"a", "b"}, PrimaryKey: "a", Rows: "1"}
	if _, err := bad.Execute(NewEnv(store)); err == nil {
		t.Error("Expected error for short row")
	}

	cs := &CreateAndSave{OutputName: "labels", BaseTable: "orders", BaseColumns: []string{"id"}, Columns: []string{"label"}, Rows: "one;two"}
	out, env := run(t, cs, store)
	if out.Len() != 3 || !out.Rows[2][1].IsNull() {
		t.Errorf("Expected 3 rows with NULL padding, got %v", out.Rows)
	}
	if len(env.Notes()) == 0 {
		t.Error("Expected a note about the saved table")
	}

	fk := &CreateWithForeignLink{OutputName: "payments", FKTable: "orders", FKColumn: "id", Columns: []string{"paid"}, Types: map[string]string{"paid": "int"}, Rows: "1,5;9,7;bad"}
	out, env = run(t, fk, store)
	if out.Len() != 2 || out.Columns[0].Name != "id" {
		t.Fatalf("Expected 2 rows with id first, got %v %v", out.ColumnNames(), out.Rows)
	}
	notes := strings.Join(env.Notes(), "\n")
	if !strings.Contains(notes, "skipped") || !strings.Contains(notes, "not present") {
		t.Errorf("Expected notes about skipped row and missing reference, got %q", notes)
	}
}

func TestInsertUpdateDelete(t *testing.T) {
	store := ordersStore()

	run(t, &Insert{Table: "orders", Values: map[string]string{"id": "4", "customer": "C"}}, store)
	orders, _ := store.Table("orders")
	if orders.Len() != 4 || !orders.Rows[3][2].IsNull() {
		t.Fatalf("Expected inserted row with NULL amount, got %v", orders.Rows)
	}
	if _, err := (&Insert{Table: "orders", Values: map[string]string{"id": "x"}}).Execute(NewEnv(store)); err == nil {
		t.Error("Expected error for non-integer id")
	}
	if _, err := (&Insert{Table: "orders", Values: map[string]string{"nope": "1"}}).Execute(NewEnv(store)); err == nil {
		t.Error("Expected error for unknown column")
	}

	_, env := run(t, &Update{Table: "orders", ConditionCol: "customer", ConditionVal: "A", UpdateCol: "amount", NewValue: "0"}, store)
	orders, _ = store.Table("orders")
	if orders.Rows[0][2].IntValue() != 0 || orders.Rows[2][2].IntValue() != 0 || orders.Rows[1][2].IntValue() != 20 {
		t.Errorf("Unexpected amounts after update: %v", orders.ColumnValues(2))
	}
	if env.Notes()[0] != "updated 2 row(s) in orders" {
		t.Errorf("Unexpected note: %v", env.Notes())
	}

	run(t, &Update{Table: "orders", ConditionCol: "id", ConditionVal: "2", UpdateCol: "amount", NewValue: "n/a"}, store)
	orders, _ = store.Table("orders")
	if orders.Columns[2].Type != schema.TypeText || orders.Rows[1][2].String() != "n/a" {
		t.Errorf("Expected amount converted to text, got %v %v", orders.Columns[2], orders.Rows[1])
	}

	_, env = run(t, &Delete{Table: "orders", ConditionCol: "customer", ConditionVal: "A"}, store)
	orders, _ = store.Table("orders")
	if orders.Len() != 2 {
		t.Errorf("Expected 2 rows after delete, got %d", orders.Len())
	}
	if env.Notes()[0] != "Deleted 2 row(s)" {
		t.Errorf("Unexpected note: %v", env.Notes())
	}
}

func TestSetOperation_Self(t *testing.T) {
	store := table.NewStore()
	store.Put(table.NewBuilder("t").AddText("a").Row("x").Row("x").Row("y").Build())

	out, _ := run(t, &SetOperation{Table1: "t", Table2: "t", Operation: "UNION"}, store)
	if out.Len() != 2 {
		t.Errorf("UNION self: expected 2 distinct rows, got %d", out.Len())
	}
	if out.Name != "t_UNION_t" {
		t.Errorf("Unexpected output name %s", out.Name)
	}
	if _, ok := store.Table("t_UNION_t"); !ok {
		t.Error("Expected result registered in catalog")
	}

	out, _ = run(t, &SetOperation{Table1: "t", Table2: "t", Operation: "EXCEPT"}, store)
	if out.Len() != 0 {
		t.Errorf("EXCEPT self: expected 0 rows, got %d", out.Len())
	}

	out, _ = run(t, &SetOperation{Table1: "t", Table2: "t", Operation: "union all", OutputName: "all"}, store)
	if out.Len() != 6 || out.Name != "all" {
		t.Errorf("UNION ALL: expected 6 rows in 'all', got %d in %s", out.Len(), out.Name)
	}

	store.Put(table.NewBuilder("u").AddText("b").Row("x").Build())
	if _, err := (&SetOperation{Table1: "t", Table2: "u", Operation: "UNION"}).Execute(NewEnv(store)); err == nil {
		t.Error("Expected error for different columns")
	}
}

func TestHandleMissing(t *testing.T) {
	newStore := func() *table.Store {
		store := table.NewStore()
		store.Put(table.NewBuilder("t").
			AddText("k").AddInteger("v").
			Row("a", 1).Row("b", nil).Row("a", 2).Row(nil, 4).
			Build())
		return store
	}

	tests := []struct {
		name     string
		step     *HandleMissing
		wantRows int
		check    func(*table.Table) bool
	}{
		{"drop", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyDrop}, 3, nil},
		{"mean", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyMean}, 4, func(t *table.Table) bool {
			return t.Columns[1].Type == schema.TypeReal && t.Rows[1][1].FloatValue() == 7.0/3
		}},
		{"median", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyMedian}, 4, func(t *table.Table) bool {
			return t.Columns[1].Type == schema.TypeInteger && t.Rows[1][1].IntValue() == 2
		}},
		{"mode", &HandleMissing{Table: "t", Column: "k", Strategy: StrategyMode}, 4, func(t *table.Table) bool {
			return t.Rows[3][0].String() == "a"
		}},
		{"custom", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyCustom, CustomValue: "-1"}, 4, func(t *table.Table) bool {
			return t.Rows[1][1].IntValue() == -1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, tt.step, newStore())
			if out.Len() != tt.wantRows {
				t.Fatalf("Expected %d rows, got %d", tt.wantRows, out.Len())
			}
			if tt.check != nil && !tt.check(out) {
				t.Errorf("Unexpected result: %v %v", out.Columns, out.Rows)
			}
		})
	}

	if _, err := (&HandleMissing{Table: "t", Column: "k", Strategy: StrategyMean}).Execute(NewEnv(newStore())); err == nil {
		t.Error("Expected error for mean on text column")
	}
}

func TestHandleMissing_DropIsIdempotent(t *testing.T) {
	store := table.NewStore()
	store.Put(table.NewBuilder("t").AddInteger("v").Row(1).Row(nil).Row(3).Build())
	step := &HandleMissing{Table: "t", Column: "v", Strategy: StrategyDrop}

	first, _ := run(t, step, store)
	second, _ := run(t, step, store)
	if first.Len() != 2 || second.Len() != 2 {
		t.Errorf("Expected 2 rows both times, got %d and %d", first.Len(), second.Len())
	}
}

func TestModifyStructure(t *testing.T) {
	tests := []struct {
		name  string
		step  *ModifyStructure
		check func(*table.Table) bool
	}{
		{"add column", &ModifyStructure{Table: "orders", Action: ActionAddColumn, NewColumn: "qty", Dtype: "int", Default: "1", Values: []string{"5"}},
			func(t *table.Table) bool {
				i := t.ColumnIndex("qty")
				return i == 3 && t.Rows[0][i].IntValue() == 5 && t.Rows[2][i].IntValue() == 1
			}},
		{"delete column", &ModifyStructure{Table: "orders", Action: ActionDeleteColumn, Columns: []string{"customer"}},
			func(t *table.Table) bool { return len(t.Columns) == 2 && !t.HasColumn("customer") }},
		{"add row", &ModifyStructure{Table: "orders", Action: ActionAddRow, Values: []string{"4", "D", "x"}},
			func(t *table.Table) bool { return t.Len() == 4 && t.Rows[3][2].IsNull() }},
		{"delete row", &ModifyStructure{Table: "orders", Action: ActionDeleteRow, ConditionCol: "customer", ConditionVal: " a "},
			func(t *table.Table) bool { return t.Len() == 1 }},
		{"rename", &ModifyStructure{Table: "orders", Action: ActionRenameColumns, Rename: map[string]string{"amount": "total"}},
			func(t *table.Table) bool { return t.HasColumn("total") && !t.HasColumn("amount") }},
		{"convert", &ModifyStructure{Table: "orders", Action: ActionConvertTypes, Types: map[string]string{"amount": "float"}},
			func(t *table.Table) bool { return t.Columns[2].Type == schema.TypeReal && t.Rows[0][2].FloatValue() == 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, tt.step, ordersStore())
			if !tt.check(out) {
				t.Errorf("Unexpected result: %v %v", out.Columns, out.Rows)
			}
		})
	}

	bad := &ModifyStructure{Table: "orders", Action: ActionAddRow, Values: []string{"1"}}
	if _, err := bad.Execute(NewEnv(ordersStore())); err == nil {
		t.Error("Expected error for add_row with wrong number of values")
	}
}

func TestStepsDoNotPanicOnEmptyFields(t *testing.T) {
	store := ordersStore()
	for _, kind := range Kinds {
		s := MustNew(kind)
		// Ошибка допустима, паника - нет
		_, _ = s.Execute(NewEnv(store))
		_, _ = s.Render()
		_ = s.Form(store)
		_ = s.Form(nil)
	}
}

func TestFilter_TextColumnExactMatch(t *testing.T) {
	store := table.NewStore()
	store.Put(table.NewBuilder("codes").
		AddText("zip").
		Row("007").Row("7").Row("7.0").
		Build())

	tests := []struct {
		operator string
		value    string
		want     []string
	}{
		{"==", "7", []string{"7"}},
		{"!=", "7", []string{"007", "7.0"}},
		{"contains", "0", []string{"007", "7.0"}},
		{"==", "'007'", []string{"007"}},
	}
	for _, tt := range tests {
		t.Run(tt.operator+" "+tt.value, func(t *testing.T) {
			out, _ := run(t, &Filter{Table: "codes", Column: "zip", Operator: tt.operator, Value: tt.value}, store)
			got := out.ColumnValues(0)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Errorf("row %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}

	f := &Filter{Table: "codes", Column: "zip", Operator: "==", Value: "7"}
	f.Form(store)
	if !f.Text {
		t.Fatal("Expected form to mark text comparison for a TEXT column")
	}
	sql, err := f.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if sql != "SELECT * FROM codes WHERE zip = '7'" {
		t.Errorf("Unexpected SQL: %s", sql)
	}

	num := &Filter{Table: "orders", Column: "amount", Operator: ">", Value: "15"}
	num.Form(ordersStore())
	if num.Text {
		t.Error("Numeric column must keep numeric comparison")
	}
}

// joinStore - orders (A, B, A) и customers (A, C, D)
func joinStore() *table.Store {
	store := ordersStore()
	store.Put(table.NewBuilder("customers").
		AddText("code").AddText("name").
		Row("A", "Alpha").Row("C", "Gamma").Row("D", "Delta").
		Build())
	return store
}

func rowStrings(t *table.Table) []string {
	rows := make([]string, t.Len())
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.String()
		}
		rows[i] = strings.Join(cells, "|")
	}
	return rows
}

func TestJoin_FilterCommutes(t *testing.T) {
	for _, key := range []string{"A", "B", "C", "Z"} {
		t.Run(key, func(t *testing.T) {
			store := joinStore()
			join := &Join{LeftTable: "orders", RightTable: "customers", LeftOn: "customer", RightOn: "code", JoinType: "inner"}

			// join, затем фильтр по ключу
			joined, _ := run(t, join, store)
			joined.Name = "joined"
			store.Put(joined)
			first, _ := run(t, &Filter{Table: "joined", Column: "customer", Operator: "==", Value: key}, store)

			// фильтр каждой стороны, затем join
			left, _ := run(t, &Filter{Table: "orders", Column: "customer", Operator: "==", Value: key}, store)
			right, _ := run(t, &Filter{Table: "customers", Column: "code", Operator: "==", Value: key}, store)
			filtered := table.NewStore()
			filtered.Put(left)
			filtered.Put(right)
			second, _ := run(t, join, filtered)

			a, b := rowStrings(first), rowStrings(second)
			if strings.Join(a, "\n") != strings.Join(b, "\n") {
				t.Errorf("Expected equal results:\n%v\n%v", a, b)
			}
		})
	}
}

func TestJoin_ForeignKeyFilter(t *testing.T) {
	tests := []struct {
		joinType   string
		foreignKey bool
		want       int
	}{
		{"outer", false, 5},
		{"outer", true, 3},
		{"right", false, 4},
		{"right", true, 2},
		{"inner", true, 2},
	}
	for _, tt := range tests {
		name := tt.joinType
		if tt.foreignKey {
			name += " fk"
		}
		t.Run(name, func(t *testing.T) {
			step := &Join{LeftTable: "orders", RightTable: "customers", LeftOn: "customer", RightOn: "code", JoinType: tt.joinType, ForeignKey: tt.foreignKey}
			out, env := run(t, step, joinStore())
			if out.Len() != tt.want {
				t.Errorf("Expected %d rows, got %d: %v", tt.want, out.Len(), rowStrings(out))
			}
			dropped := strings.Contains(strings.Join(env.Notes(), "\n"), "dropped 2 row(s) of customers")
			if dropped != tt.foreignKey {
				t.Errorf("Unexpected notes: %v", env.Notes())
			}
		})
	}
}

func TestUpdate_SelectedRows(t *testing.T) {
	tests := []struct {
		name    string
		rows    []int
		amounts []int64
		note    string
	}{
		{"all matches", nil, []int64{0, 20, 0}, "updated 2 row(s) in orders"},
		{"one selected", []int{2}, []int64{10, 20, 0}, "updated 1 row(s) in orders"},
		{"selected row does not match", []int{1}, []int64{10, 20, 30}, "updated 0 row(s) in orders"},
		{"out of range", []int{7}, []int64{10, 20, 30}, "updated 0 row(s) in orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := ordersStore()
			step := &Update{Table: "orders", ConditionCol: "customer", ConditionVal: "A", UpdateCol: "amount", NewValue: "0", Rows: tt.rows}
			_, env := run(t, step, store)

			orders, _ := store.Table("orders")
			for i, want := range tt.amounts {
				if got := orders.Rows[i][2].IntValue(); got != want {
					t.Errorf("row %d: expected amount %d, got %d", i, want, got)
				}
			}
			if env.Notes()[0] != tt.note {
				t.Errorf("Unexpected note: %v", env.Notes())
			}
		})
	}
}
