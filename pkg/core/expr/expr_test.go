package expr

import (
	"math"
	"testing"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

func ordersTable() *table.Table {
	return table.NewBuilder("orders").
		AddInteger("id").
		AddText("customer").
		AddInteger("amount").
		Row(1, "A", 10).
		Row(2, "B", 20).
		Row(3, "A", 30).
		Row(4, nil, nil).
		Build()
}

func TestLexer_Operators(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"== = != <>", []TokenType{TokenEq, TokenEq, TokenNotEq, TokenNotEq}},
		{"< <= > >=", []TokenType{TokenLt, TokenLte, TokenGt, TokenGte}},
		{"+ - * / % **", []TokenType{TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenPower}},
		{"( ) , .", []TokenType{TokenLParen, TokenRParen, TokenComma, TokenDot}},
		{"AND or Not & |", []TokenType{TokenAnd, TokenOr, TokenNot, TokenAnd, TokenOr}},
		{"between CONTAINS is null true False", []TokenType{TokenBetween, TokenContains, TokenIs, TokenNull, TokenTrue, TokenFalse}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			for i, expectedType := range tt.expected {
				tok := lexer.NextToken()
				if tok.Type != expectedType {
					t.Errorf("token[%d]: expected %v, got %v (literal: %s)", i, expectedType, tok.Type, tok.Literal)
				}
			}
			if tok := lexer.NextToken(); tok.Type != TokenEOF {
				t.Errorf("expected EOF, got %v", tok)
			}
		})
	}
}

func TestLexer_Literals(t *testing.T) {
	tests := []struct {
		input    string
		typ      TokenType
		expected string
	}{
		{"123", TokenNumber, "123"},
		{"12.5", TokenNumber, "12.5"},
		{".5", TokenNumber, ".5"},
		{"1e3", TokenNumber, "1e3"},
		{"'it''s'", TokenString, "it's"},
		{`"say \"hi\""`, TokenString, `say "hi"`},
		{"`order date`", TokenIdent, "order date"},
		{"сумма", TokenIdent, "сумма"},
		{"col_1", TokenIdent, "col_1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			if tok.Type != tt.typ {
				t.Errorf("type = %v, want %v", tok.Type, tt.typ)
			}
			if tok.Literal != tt.expected {
				t.Errorf("literal = %q, want %q", tok.Literal, tt.expected)
			}
		})
	}
}

func TestParse_SQL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"amount > 15", "amount > 15"},
		{"amount == 20", "amount = 20"},
		{"customer == 'A' and amount >= 10", "customer = 'A' AND amount >= 10"},
		{"a or b and c", "a OR b AND c"},
		{"(a or b) and c", "(a OR b) AND c"},
		{"a - (b - c)", "a - (b - c)"},
		{"a - b - c", "a - b - c"},
		{"2 ** 3 ** 2", "POWER(2, POWER(3, 2))"},
		{"-2 ** 2", "-POWER(2, 2)"},
		{"price * -1", "price * -1"},
		{"customer contains 'A'", "customer LIKE '%A%'"},
		{"amount between 10 and 20", "amount BETWEEN 10 AND 20"},
		{"amount not between 10 and 20", "amount NOT BETWEEN 10 AND 20"},
		{"amount is not null", "amount IS NOT NULL"},
		{"not amount > 5", "NOT amount > 5"},
		{"name + '_x'", "name || '_x'"},
		{"orders.amount + 1", "orders.amount + 1"},
		{"sum(amount) > 25", "SUM(amount) > 25"},
		{"mean(amount)", "AVG(amount)"},
		{"count(*) >= 2", "COUNT(*) >= 2"},
		{"coalesce(amount, 0)", "COALESCE(amount, 0)"},
		{"`order date` is null", `"order date" IS NULL`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			x, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got := SQL(x); got != tt.expected {
				t.Errorf("SQL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	inputs := []string{
		"",
		"amount >",
		"(amount > 1",
		"__import__('os')",
		"eval(1)",
		"amount between 1",
		"amount is 5",
		"abs(1, 2)",
		"a b",
		"orders.",
		"a ; b",
	}

	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestEvaluator_Match(t *testing.T) {
	tbl := ordersTable()
	ev := NewEvaluator(tbl, nil)

	tests := []struct {
		input    string
		expected []int
	}{
		{"amount > 15", []int{1, 2}},
		{"customer == 'A'", []int{0, 2}},
		{"customer != 'A'", []int{1}},
		{"amount between 10 and 20", []int{0, 1}},
		{"amount not between 10 and 20", []int{2}},
		{"customer contains 'B'", []int{1}},
		{"amount is null", []int{3}},
		{"amount > 15 or customer == 'A'", []int{0, 1, 2}},
		{"not (amount > 15)", []int{0}},
		{"amount % 20 == 0", []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			x, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			got, err := ev.Match(x)
			if err != nil {
				t.Fatalf("Match error = %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Match() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Match() = %v, want %v", got, tt.expected)
					break
				}
			}
		})
	}
}

func TestEvaluator_Arithmetic(t *testing.T) {
	tbl := ordersTable()
	ev := NewEvaluator(tbl, nil)

	tests := []struct {
		input    string
		row      int
		expected string
		kind     schema.Kind
	}{
		{"amount * 2", 0, "20", schema.KindInt},
		{"amount / 4", 0, "2.5", schema.KindFloat},
		{"amount / 0", 0, "", schema.KindNull},
		{"amount + 0.5", 1, "20.5", schema.KindFloat},
		{"2 ** 10", 0, "1024", schema.KindInt},
		{"-7 % 3", 0, "2", schema.KindInt},
		{"customer + '-' + id", 0, "A-1", schema.KindText},
		{"amount + 1", 3, "", schema.KindNull},
		{"coalesce(amount, 0)", 3, "0", schema.KindInt},
		{"abs(-3.5)", 0, "3.5", schema.KindFloat},
		{"round(2.567, 2)", 0, "2.57", schema.KindFloat},
		{"upper(customer)", 1, "B", schema.KindText},
		{"length('привет')", 0, "6", schema.KindInt},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			x, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			v, err := ev.Eval(x, tt.row)
			if err != nil {
				t.Fatalf("Eval error = %v", err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("kind = %v, want %v", v.Kind(), tt.kind)
			}
			if v.String() != tt.expected {
				t.Errorf("Eval() = %q, want %q", v.String(), tt.expected)
			}
		})
	}
}

func TestEvaluator_CrossTableReference(t *testing.T) {
	store := table.NewStore()
	orders := ordersTable()
	rates := table.NewBuilder("rates").AddReal("rate").Row(1.5).Row(2.0).Build()
	store.Put(orders)
	store.Put(rates)

	x, err := Parse("orders.amount * rates.rate")
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	ev := NewEvaluator(orders, store)
	values, err := ev.Column(x)
	if err != nil {
		t.Fatalf("Column error = %v", err)
	}
	if values[0].String() != "15.0" || values[1].String() != "40.0" {
		t.Errorf("values = %v", values)
	}
	if !values[2].IsNull() {
		t.Error("rows beyond the other table should be NULL")
	}

	bad, _ := Parse("missing.col + 1")
	if err := ev.Check(bad); err == nil {
		t.Error("Check should fail for unknown table")
	}
}

func TestEvaluator_Errors(t *testing.T) {
	ev := NewEvaluator(ordersTable(), nil)

	for _, input := range []string{"nope > 1", "sum(amount) > 1", "customer - 1"} {
		x, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", input, err)
		}
		if _, err := ev.Eval(x, 0); err == nil {
			t.Errorf("Eval(%q) should fail", input)
		}
	}
}

func TestEvaluator_EvalGroup(t *testing.T) {
	ev := NewEvaluator(ordersTable(), nil)

	tests := []struct {
		input    string
		rows     []int
		expected string
	}{
		{"sum(amount)", []int{0, 2}, "40"},
		{"mean(amount)", []int{0, 2}, "20.0"},
		{"count(amount)", []int{0, 3}, "1"},
		{"count(*)", []int{0, 3}, "2"},
		{"max(amount) - min(amount)", []int{0, 1, 2}, "20"},
		{"sum(amount) > 25 and customer == 'A'", []int{0, 2}, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			x, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			v, err := ev.EvalGroup(x, tt.rows)
			if err != nil {
				t.Fatalf("EvalGroup error = %v", err)
			}
			if v.String() != tt.expected {
				t.Errorf("EvalGroup() = %q, want %q", v.String(), tt.expected)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	values := []schema.Value{schema.Int(3), schema.Null(), schema.Int(1), schema.Float(2)}

	tests := map[string]string{
		"sum":    "6.0",
		"mean":   "2.0",
		"count":  "3",
		"min":    "1",
		"max":    "3",
		"median": "2.0",
	}
	for fn, want := range tests {
		v, err := Aggregate(fn, values)
		if err != nil {
			t.Fatalf("Aggregate(%s) error = %v", fn, err)
		}
		if v.String() != want {
			t.Errorf("Aggregate(%s) = %q, want %q", fn, v.String(), want)
		}
	}

	if v, _ := Aggregate("mean", nil); !v.IsNull() {
		t.Error("mean of empty set should be NULL")
	}
	if _, err := Aggregate("stddev", values); err == nil {
		t.Error("unknown aggregate should fail")
	}
}

func TestHasAggregateAndColumns(t *testing.T) {
	x, _ := Parse("sum(amount) > 10 and customer == 'A'")
	if !HasAggregate(x) {
		t.Error("HasAggregate should be true")
	}
	refs := Columns(x)
	if len(refs) != 2 || refs[0].Name != "amount" || refs[1].Name != "customer" {
		t.Errorf("Columns() = %v", refs)
	}

	y, _ := Parse("amount > 10")
	if HasAggregate(y) {
		t.Error("HasAggregate should be false")
	}
}

func TestArithmetic_IntOverflow(t *testing.T) {
	const maxInt, minInt = math.MaxInt64, math.MinInt64

	tests := []struct {
		op    string
		a, b  int64
		kind  schema.Kind
		wantF float64
		wantI int64
	}{
		{"+", maxInt, 1, schema.KindFloat, float64(maxInt) + 1, 0},
		{"+", minInt, -1, schema.KindFloat, float64(minInt) - 1, 0},
		{"+", maxInt, -1, schema.KindInt, 0, maxInt - 1},
		{"-", minInt, 1, schema.KindFloat, float64(minInt) - 1, 0},
		{"-", 0, minInt, schema.KindFloat, -float64(minInt), 0},
		{"-", -5, 3, schema.KindInt, 0, -8},
		{"*", maxInt, 2, schema.KindFloat, float64(maxInt) * 2, 0},
		{"*", -1, minInt, schema.KindFloat, -float64(minInt), 0},
		{"*", minInt, -1, schema.KindFloat, -float64(minInt), 0},
		{"*", 1 << 31, 1 << 31, schema.KindInt, 0, 1 << 62},
		{"*", 0, minInt, schema.KindInt, 0, 0},
	}
	for _, tt := range tests {
		v, err := arithmetic(tt.op, schema.Int(tt.a), schema.Int(tt.b))
		if err != nil {
			t.Fatalf("%d %s %d: %v", tt.a, tt.op, tt.b, err)
		}
		if v.Kind() != tt.kind {
			t.Errorf("%d %s %d: kind = %v, want %v", tt.a, tt.op, tt.b, v.Kind(), tt.kind)
			continue
		}
		if tt.kind == schema.KindFloat && v.FloatValue() != tt.wantF {
			t.Errorf("%d %s %d = %v, want %v", tt.a, tt.op, tt.b, v.FloatValue(), tt.wantF)
		}
		if tt.kind == schema.KindInt && v.IntValue() != tt.wantI {
			t.Errorf("%d %s %d = %d, want %d", tt.a, tt.op, tt.b, v.IntValue(), tt.wantI)
		}
	}
}
