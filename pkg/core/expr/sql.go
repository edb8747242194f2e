package expr

import (
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
)

// SQL печатает выражение как SQL.
// == печатается как =, ** как POWER(a, b), contains как LIKE '%v%',
// + с текстовым литералом как ||.
func SQL(x Expr) string {
	var b strings.Builder
	writeSQL(&b, x, precLowest)
	return b.String()
}

// Quote возвращает строковый SQL литерал с экранированием кавычек
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ident печатает идентификатор; имена с пробелами и спецсимволами берутся в двойные кавычки
func Ident(name string) string {
	if isPlainIdent(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// LiteralSQL печатает значение как SQL литерал
func LiteralSQL(v schema.Value) string {
	switch v.Kind() {
	case schema.KindNull:
		return "NULL"
	case schema.KindInt:
		return strconv.FormatInt(v.IntValue(), 10)
	case schema.KindFloat:
		return strconv.FormatFloat(v.FloatValue(), 'f', -1, 64)
	case schema.KindBool:
		if v.BoolValue() {
			return "TRUE"
		}
		return "FALSE"
	default:
		return Quote(v.String())
	}
}

func isPlainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' || c >= 0x80 || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			continue
		}
		if i > 0 && isDigit(c) {
			continue
		}
		return false
	}
	return lookupKeyword(name) == TokenIdent && !sqlReserved[toLowerASCII(name)]
}

var sqlReserved = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true,
	"by": true, "having": true, "table": true, "values": true, "limit": true,
	"join": true, "on": true, "as": true, "in": true, "like": true, "index": true,
	"key": true, "primary": true, "union": true, "except": true, "intersect": true,
}

var sqlOperators = map[string]string{
	"==":  "=",
	"!=":  "!=",
	"<":   "<",
	"<=":  "<=",
	">":   ">",
	">=":  ">=",
	"+":   "+",
	"-":   "-",
	"*":   "*",
	"/":   "/",
	"%":   "%",
	"and": "AND",
	"or":  "OR",
}

func binaryPrecedence(op string) int {
	switch op {
	case "or":
		return precOr
	case "and":
		return precAnd
	case "+", "-":
		return precSum
	case "*", "/", "%":
		return precProduct
	case "**":
		return precPower
	default:
		return precCompare
	}
}

func writeSQL(b *strings.Builder, x Expr, parent int) {
	switch n := x.(type) {
	case *Literal:
		b.WriteString(LiteralSQL(n.Value))

	case *ColumnRef:
		if n.Table != "" {
			b.WriteString(Ident(n.Table))
			b.WriteByte('.')
		}
		b.WriteString(Ident(n.Name))

	case *ParenExpr:
		b.WriteByte('(')
		writeSQL(b, n.X, precLowest)
		b.WriteByte(')')

	case *UnaryExpr:
		if n.Operator == "not" {
			wrap := parent > precNot
			if wrap {
				b.WriteByte('(')
			}
			b.WriteString("NOT ")
			writeSQL(b, n.X, precNot)
			if wrap {
				b.WriteByte(')')
			}
			return
		}
		b.WriteByte('-')
		writeSQL(b, n.X, precUnary)

	case *BinaryExpr:
		writeBinary(b, n, parent)

	case *BetweenExpr:
		wrap := parent >= precCompare
		if wrap {
			b.WriteByte('(')
		}
		writeSQL(b, n.X, precCompare)
		if n.Not {
			b.WriteString(" NOT BETWEEN ")
		} else {
			b.WriteString(" BETWEEN ")
		}
		writeSQL(b, n.Low, precCompare)
		b.WriteString(" AND ")
		writeSQL(b, n.High, precCompare)
		if wrap {
			b.WriteByte(')')
		}

	case *IsNullExpr:
		wrap := parent >= precCompare
		if wrap {
			b.WriteByte('(')
		}
		writeSQL(b, n.X, precCompare)
		if n.Not {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
		if wrap {
			b.WriteByte(')')
		}

	case *CallExpr:
		name := strings.ToUpper(n.Func)
		if n.Func == "mean" {
			name = "AVG"
		}
		b.WriteString(name)
		b.WriteByte('(')
		if n.Star {
			b.WriteByte('*')
		}
		for i, arg := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeSQL(b, arg, precLowest)
		}
		b.WriteByte(')')
	}
}

func writeBinary(b *strings.Builder, n *BinaryExpr, parent int) {
	switch n.Operator {
	case "**":
		b.WriteString("POWER(")
		writeSQL(b, n.Left, precLowest)
		b.WriteString(", ")
		writeSQL(b, n.Right, precLowest)
		b.WriteByte(')')
		return

	case "contains":
		wrap := parent >= precCompare
		if wrap {
			b.WriteByte('(')
		}
		writeSQL(b, n.Left, precCompare)
		b.WriteString(" LIKE ")
		if lit, ok := n.Right.(*Literal); ok && !lit.Value.IsNull() {
			b.WriteString(Quote("%" + lit.Value.String() + "%"))
		} else {
			b.WriteString("'%' || ")
			writeSQL(b, n.Right, precSum)
			b.WriteString(" || '%'")
		}
		if wrap {
			b.WriteByte(')')
		}
		return
	}

	prec := binaryPrecedence(n.Operator)
	op := sqlOperators[n.Operator]
	if n.Operator == "+" && (isTextLiteral(n.Left) || isTextLiteral(n.Right)) {
		op = "||"
	}

	// Левоассоциативные операторы: правый операнд того же приоритета берется в скобки
	wrap := prec < parent || (prec == precCompare && parent == precCompare)
	if wrap {
		b.WriteByte('(')
	}
	writeSQL(b, n.Left, prec)
	b.WriteByte(' ')
	b.WriteString(op)
	b.WriteByte(' ')
	writeSQL(b, n.Right, prec+1)
	if wrap {
		b.WriteByte(')')
	}
}

func isTextLiteral(x Expr) bool {
	lit, ok := x.(*Literal)
	return ok && lit.Value.Kind() == schema.KindText
}
