package expr

import (
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
)

// Node базовый интерфейс для всех узлов AST
type Node interface {
	node()
	String() string
}

// Expr представляет выражение
type Expr interface {
	Node
	expr()
}

// Literal - константа
type Literal struct {
	Value schema.Value
}

func (l *Literal) node() {}
func (l *Literal) expr() {}
func (l *Literal) String() string {
	return "Literal: " + l.Value.String()
}

// ColumnRef - ссылка на колонку: col или table.col
type ColumnRef struct {
	Table string
	Name  string
}

func (c *ColumnRef) node() {}
func (c *ColumnRef) expr() {}
func (c *ColumnRef) String() string {
	if c.Table != "" {
		return "ColumnRef: " + c.Table + "." + c.Name
	}
	return "ColumnRef: " + c.Name
}

// UnaryExpr - унарный минус или not
type UnaryExpr struct {
	Operator string // "-", "not"
	X        Expr
}

func (u *UnaryExpr) node() {}
func (u *UnaryExpr) expr() {}
func (u *UnaryExpr) String() string {
	return "UnaryExpr: " + u.Operator
}

// BinaryExpr - арифметика, сравнение, логика, contains
type BinaryExpr struct {
	Left     Expr
	Operator string // "+", "-", "*", "/", "%", "**", "==", "!=", "<", "<=", ">", ">=", "and", "or", "contains"
	Right    Expr
}

func (b *BinaryExpr) node() {}
func (b *BinaryExpr) expr() {}
func (b *BinaryExpr) String() string {
	return "BinaryExpr: " + b.Operator
}

// BetweenExpr - x [not] between low and high
type BetweenExpr struct {
	X    Expr
	Low  Expr
	High Expr
	Not  bool
}

func (b *BetweenExpr) node() {}
func (b *BetweenExpr) expr() {}
func (b *BetweenExpr) String() string {
	if b.Not {
		return "BetweenExpr: NOT BETWEEN"
	}
	return "BetweenExpr: BETWEEN"
}

// IsNullExpr - x is [not] null
type IsNullExpr struct {
	X   Expr
	Not bool
}

func (i *IsNullExpr) node() {}
func (i *IsNullExpr) expr() {}
func (i *IsNullExpr) String() string {
	if i.Not {
		return "IsNullExpr: IS NOT NULL"
	}
	return "IsNullExpr: IS NULL"
}

// CallExpr - вызов функции из белого списка
type CallExpr struct {
	Func string
	Args []Expr
	Star bool // count(*)
}

func (c *CallExpr) node() {}
func (c *CallExpr) expr() {}
func (c *CallExpr) String() string {
	return "CallExpr: " + c.Func
}

// ParenExpr - выражение в скобках
type ParenExpr struct {
	X Expr
}

func (p *ParenExpr) node() {}
func (p *ParenExpr) expr() {}
func (p *ParenExpr) String() string {
	return "ParenExpr"
}

// Col создает ссылку на колонку текущей таблицы
func Col(name string) *ColumnRef {
	return &ColumnRef{Name: name}
}

// Lit создает литерал
func Lit(v schema.Value) *Literal {
	return &Literal{Value: v}
}

// Bin создает бинарное выражение
func Bin(op string, left, right Expr) *BinaryExpr {
	return &BinaryExpr{Left: left, Operator: op, Right: right}
}

// Walk обходит дерево в глубину; fn возвращает false, чтобы не спускаться в потомков
func Walk(x Expr, fn func(Expr) bool) {
	if x == nil || !fn(x) {
		return
	}
	switch n := x.(type) {
	case *UnaryExpr:
		Walk(n.X, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *BetweenExpr:
		Walk(n.X, fn)
		Walk(n.Low, fn)
		Walk(n.High, fn)
	case *IsNullExpr:
		Walk(n.X, fn)
	case *CallExpr:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	case *ParenExpr:
		Walk(n.X, fn)
	}
}

// Columns возвращает все ссылки на колонки в выражении
func Columns(x Expr) []*ColumnRef {
	var refs []*ColumnRef
	Walk(x, func(n Expr) bool {
		if c, ok := n.(*ColumnRef); ok {
			refs = append(refs, c)
		}
		return true
	})
	return refs
}

// HasAggregate проверяет, содержит ли выражение агрегатную функцию
func HasAggregate(x Expr) bool {
	found := false
	Walk(x, func(n Expr) bool {
		if c, ok := n.(*CallExpr); ok && isAggregate(c.Func) {
			found = true
		}
		return !found
	})
	return found
}
