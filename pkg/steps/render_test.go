package steps

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{"filter eq text", &Filter{Table: "orders", Column: "customer", Operator: "==", Value: "A"},
			"SELECT * FROM orders WHERE customer = 'A'"},
		{"sort", &Sort{Table: "orders", Columns: []string{"customer", "amount"}, Ascending: true},
			"SELECT * FROM orders ORDER BY customer ASC, amount ASC"},
		{"aggregate", &AggregateColumn{Table: "orders", Column: "amount", Function: "mean"},
			"SELECT AVG(amount) AS mean_amount FROM orders"},
		{"join", &Join{LeftTable: "orders", RightTable: "customers", LeftOn: "customer", RightOn: "code", JoinType: "outer"},
			"SELECT * FROM orders FULL OUTER JOIN customers ON orders.customer = customers.code"},
		{"modify column", &ModifyColumn{Table: "orders", Mode: ModeStandard, Column: "amount", Operator: "*", RHS: RHSConstant, Constant: "2", Alias: "double"},
			"SELECT *, (amount * 2) AS double FROM orders"},
		{"insert", &Insert{Table: "orders", Columns: []string{"id", "customer"}, Values: map[string]string{"id": "4", "customer": "D"}},
			"INSERT INTO orders (id, customer) VALUES ('4', 'D')"},
		{"update", &Update{Table: "orders", ConditionCol: "id", ConditionVal: "1", UpdateCol: "amount", NewValue: "5"},
			"UPDATE orders SET amount = '5' WHERE id = '1'"},
		{"delete", &Delete{Table: "orders", ConditionCol: "customer", ConditionVal: "A"},
			"DELETE FROM orders WHERE customer = 'A';"},
		{"set operation", &SetOperation{Table1: "a", Table2: "b", Operation: "intersect"},
			"SELECT * FROM a\nINTERSECT\nSELECT * FROM b;"},
		{"missing drop", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyDrop},
			"SELECT * FROM t WHERE v IS NOT NULL"},
		{"missing custom", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyCustom, CustomValue: "0"},
			"SELECT *, COALESCE(v, '0') AS v_filled FROM t"},
		{"missing mean", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyMean},
			"UPDATE t SET v = (SELECT AVG(v) FROM t) WHERE v IS NULL"},
		{"missing median", &HandleMissing{Table: "t", Column: "v", Strategy: StrategyMedian},
			"-- Strategy median may require preprocessing"},
		{"add column", &ModifyStructure{Table: "t", Action: ActionAddColumn, NewColumn: "c", Dtype: "int", Default: "0"},
			"ALTER TABLE t ADD COLUMN c INTEGER DEFAULT '0';"},
		{"rename columns", &ModifyStructure{Table: "t", Action: ActionRenameColumns, Rename: map[string]string{"b": "y", "a": "x"}},
			"ALTER TABLE t RENAME COLUMN a TO x;\nALTER TABLE t RENAME COLUMN b TO y;"},
		{"create pk", &CreateWithPrimaryKey{OutputName: "r", Columns: []string{"code", "rate"}, Types: map[string]string{"rate": "FLOAT"}, PrimaryKey: "code", Rows: "A,1.5"},
			"CREATE TABLE r (\n    code TEXT,\n    rate FLOAT,\n    PRIMARY KEY (code)\n);\nINSERT INTO r (code, rate) VALUES ('A', 1.5);\n"},
		{"create fk", &CreateWithForeignLink{OutputName: "p", FKTable: "orders", FKColumn: "id", Columns: []string{"paid"}, Types: map[string]string{"paid": "int"}, Rows: "1,5"},
			"CREATE TABLE p (id VARCHAR(255), paid INTEGER);\nINSERT INTO p (id, paid) VALUES ('1', 5);"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.step.Render()
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		message string
	}{
		{"delete without condition", &Delete{Table: "t"}, "missing condition"},
		{"fk without rows", &CreateWithForeignLink{OutputName: "p", Columns: []string{"a"}}, "missing data or columns for p"},
		{"pk without columns", &CreateWithPrimaryKey{OutputName: "r"}, "columns or data types missing"},
		{"bad set operation", &SetOperation{Table1: "a", Table2: "b", Operation: "MINUS"}, "unknown set operation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.step.Render()
			if err == nil || !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected error containing %q, got %v", tt.message, err)
			}
		})
	}
}
