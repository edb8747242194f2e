package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
)

// Приоритеты операторов: or < and < not < сравнение < +- < */% < унарный минус < **
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precCompare
	precSum
	precProduct
	precUnary
	precPower
)

var infixPrecedence = map[TokenType]int{
	TokenOr:       precOr,
	TokenAnd:      precAnd,
	TokenEq:       precCompare,
	TokenNotEq:    precCompare,
	TokenLt:       precCompare,
	TokenLte:      precCompare,
	TokenGt:       precCompare,
	TokenGte:      precCompare,
	TokenContains: precCompare,
	TokenBetween:  precCompare,
	TokenIs:       precCompare,
	TokenPlus:     precSum,
	TokenMinus:    precSum,
	TokenStar:     precProduct,
	TokenSlash:    precProduct,
	TokenPercent:  precProduct,
	TokenPower:    precPower,
}

var infixOperator = map[TokenType]string{
	TokenOr:       "or",
	TokenAnd:      "and",
	TokenEq:       "==",
	TokenNotEq:    "!=",
	TokenLt:       "<",
	TokenLte:      "<=",
	TokenGt:       ">",
	TokenGte:      ">=",
	TokenContains: "contains",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenStar:     "*",
	TokenSlash:    "/",
	TokenPercent:  "%",
	TokenPower:    "**",
}

// Функции из белого списка: имя -> (минимум, максимум аргументов); -1 без ограничения
var functions = map[string][2]int{
	"abs":      {1, 1},
	"round":    {1, 2},
	"lower":    {1, 1},
	"upper":    {1, 1},
	"length":   {1, 1},
	"coalesce": {1, -1},
	"sum":      {1, 1},
	"mean":     {1, 1},
	"avg":      {1, 1},
	"count":    {1, 1},
	"min":      {1, 1},
	"max":      {1, 1},
}

func isAggregate(name string) bool {
	switch name {
	case "sum", "mean", "avg", "count", "min", "max":
		return true
	}
	return false
}

// Parser разбирает выражения
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []string
}

// NewParser создает новый парсер
func NewParser(input string) *Parser {
	p := &Parser{
		lexer:  NewLexer(input),
		errors: []string{},
	}

	// Читаем два токена для инициализации curToken и peekToken
	p.nextToken()
	p.nextToken()

	return p
}

// Parse разбирает выражение целиком
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	p := NewParser(input)
	return p.ParseExpression()
}

// ParseExpression разбирает выражение до конца ввода
func (p *Parser) ParseExpression() (Expr, error) {
	x, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TokenEOF {
		p.addError(fmt.Sprintf("unexpected %v %q", p.curToken.Type, p.curToken.Literal))
	}
	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parse errors: %s", strings.Join(p.errors, "; "))
	}
	return x, nil
}

// Errors возвращает ошибки парсинга
func (p *Parser) Errors() []string {
	return p.errors
}

// nextToken продвигает токены
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// addError добавляет ошибку
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("parse error at pos %d: %s", p.curToken.Pos, msg))
}

// expectToken проверяет текущий токен и продвигается
func (p *Parser) expectToken(t TokenType) error {
	if p.curToken.Type == t {
		p.nextToken()
		return nil
	}
	return fmt.Errorf("parse error at pos %d: expected %v, got %v", p.curToken.Pos, t, p.curToken.Type)
}

// parseExpression парсит выражение с приоритетами (Pratt)
func (p *Parser) parseExpression(precedence int) (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.curToken.Type

		// x not between a and b / x not contains y
		negated := false
		if tok == TokenNot && (p.peekToken.Type == TokenBetween || p.peekToken.Type == TokenContains) {
			if precCompare <= precedence {
				break
			}
			negated = true
			p.nextToken()
			tok = p.curToken.Type
		}

		opPrecedence, ok := infixPrecedence[tok]
		if !ok || opPrecedence <= precedence {
			break
		}
		p.nextToken()

		switch tok {
		case TokenBetween:
			left, err = p.parseBetween(left, negated)
		case TokenIs:
			left, err = p.parseIsNull(left)
		case TokenPower:
			// правоассоциативный
			var right Expr
			right, err = p.parseExpression(opPrecedence - 1)
			left = &BinaryExpr{Left: left, Operator: "**", Right: right}
		default:
			var right Expr
			right, err = p.parseExpression(opPrecedence)
			left = &BinaryExpr{Left: left, Operator: infixOperator[tok], Right: right}
			if negated {
				left = &UnaryExpr{Operator: "not", X: left}
			}
		}
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// parsePrefix парсит операнд или префиксный оператор
func (p *Parser) parsePrefix() (Expr, error) {
	tok := p.curToken

	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		return parseNumber(tok)

	case TokenString:
		p.nextToken()
		return Lit(schema.Text(tok.Literal)), nil

	case TokenTrue:
		p.nextToken()
		return Lit(schema.Bool(true)), nil

	case TokenFalse:
		p.nextToken()
		return Lit(schema.Bool(false)), nil

	case TokenNull:
		p.nextToken()
		return Lit(schema.Null()), nil

	case TokenMinus:
		p.nextToken()
		x, err := p.parseExpression(precUnary)
		if err != nil {
			return nil, err
		}
		// -5 сворачиваем в литерал
		if lit, ok := x.(*Literal); ok && lit.Value.IsNumeric() {
			if lit.Value.Kind() == schema.KindInt {
				return Lit(schema.Int(-lit.Value.IntValue())), nil
			}
			return Lit(schema.Float(-lit.Value.FloatValue())), nil
		}
		return &UnaryExpr{Operator: "-", X: x}, nil

	case TokenPlus:
		p.nextToken()
		return p.parseExpression(precUnary)

	case TokenNot:
		p.nextToken()
		x, err := p.parseExpression(precNot)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: "not", X: x}, nil

	case TokenLParen:
		p.nextToken()
		x, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if err := p.expectToken(TokenRParen); err != nil {
			return nil, err
		}
		return &ParenExpr{X: x}, nil

	case TokenIdent:
		p.nextToken()
		if p.curToken.Type == TokenLParen {
			return p.parseCall(tok)
		}
		if p.curToken.Type == TokenDot {
			p.nextToken()
			if p.curToken.Type != TokenIdent {
				return nil, fmt.Errorf("parse error at pos %d: expected column name after '%s.'", p.curToken.Pos, tok.Literal)
			}
			name := p.curToken.Literal
			p.nextToken()
			return &ColumnRef{Table: tok.Literal, Name: name}, nil
		}
		return &ColumnRef{Name: tok.Literal}, nil

	case TokenEOF:
		return nil, fmt.Errorf("parse error at pos %d: unexpected end of expression", tok.Pos)
	}

	return nil, fmt.Errorf("parse error at pos %d: unexpected %v %q", tok.Pos, tok.Type, tok.Literal)
}

// parseCall парсит вызов функции; curToken - открывающая скобка
func (p *Parser) parseCall(name Token) (Expr, error) {
	fn := strings.ToLower(name.Literal)
	arity, ok := functions[fn]
	if !ok {
		return nil, fmt.Errorf("parse error at pos %d: unknown function '%s'", name.Pos, name.Literal)
	}
	p.nextToken() // (

	call := &CallExpr{Func: fn}

	if fn == "count" && p.curToken.Type == TokenStar && p.peekToken.Type == TokenRParen {
		p.nextToken()
		p.nextToken()
		call.Star = true
		return call, nil
	}

	if p.curToken.Type != TokenRParen {
		for {
			arg, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)

			if p.curToken.Type == TokenComma {
				p.nextToken()
				continue
			}
			break
		}
	}
	if err := p.expectToken(TokenRParen); err != nil {
		return nil, err
	}

	if len(call.Args) < arity[0] || (arity[1] >= 0 && len(call.Args) > arity[1]) {
		return nil, fmt.Errorf("function %s: wrong number of arguments (%d)", fn, len(call.Args))
	}
	return call, nil
}

// parseBetween парсит "low and high" после BETWEEN
func (p *Parser) parseBetween(x Expr, not bool) (Expr, error) {
	low, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TokenAnd {
		return nil, fmt.Errorf("parse error at pos %d: expected AND in BETWEEN", p.curToken.Pos)
	}
	p.nextToken()
	high, err := p.parseExpression(precCompare)
	if err != nil {
		return nil, err
	}
	return &BetweenExpr{X: x, Low: low, High: high, Not: not}, nil
}

// parseIsNull парсит "[not] null" после IS
func (p *Parser) parseIsNull(x Expr) (Expr, error) {
	not := false
	if p.curToken.Type == TokenNot {
		not = true
		p.nextToken()
	}
	if p.curToken.Type != TokenNull {
		return nil, fmt.Errorf("parse error at pos %d: expected NULL after IS", p.curToken.Pos)
	}
	p.nextToken()
	return &IsNullExpr{X: x, Not: not}, nil
}

func parseNumber(tok Token) (Expr, error) {
	if !strings.ContainsAny(tok.Literal, ".eE") {
		if i, err := strconv.ParseInt(tok.Literal, 10, 64); err == nil {
			return Lit(schema.Int(i)), nil
		}
	}
	f, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		return nil, fmt.Errorf("parse error at pos %d: invalid number %q", tok.Pos, tok.Literal)
	}
	return Lit(schema.Float(f)), nil
}
