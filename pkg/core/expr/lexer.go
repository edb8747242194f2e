package expr

import (
	"fmt"
	"unicode"
)

// TokenType тип токена
type TokenType int

const (
	// Специальные токены
	TokenEOF TokenType = iota
	TokenIllegal

	// Идентификаторы и литералы
	TokenIdent  // имена колонок, таблиц и функций
	TokenString // 'строка' или "строка"
	TokenNumber // 123, 123.45

	// Ключевые слова
	TokenAnd
	TokenOr
	TokenNot
	TokenBetween
	TokenContains
	TokenIs
	TokenNull
	TokenTrue
	TokenFalse

	// Операторы
	TokenEq      // == или =
	TokenNotEq   // != или <>
	TokenLt      // <
	TokenLte     // <=
	TokenGt      // >
	TokenGte     // >=
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenPower   // **
	TokenLParen  // (
	TokenRParen  // )
	TokenComma   // ,
	TokenDot     // .
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenIllegal:  "ILLEGAL",
	TokenIdent:    "IDENT",
	TokenString:   "STRING",
	TokenNumber:   "NUMBER",
	TokenAnd:      "AND",
	TokenOr:       "OR",
	TokenNot:      "NOT",
	TokenBetween:  "BETWEEN",
	TokenContains: "CONTAINS",
	TokenIs:       "IS",
	TokenNull:     "NULL",
	TokenTrue:     "TRUE",
	TokenFalse:    "FALSE",
	TokenEq:       "==",
	TokenNotEq:    "!=",
	TokenLt:       "<",
	TokenLte:      "<=",
	TokenGt:       ">",
	TokenGte:      ">=",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenStar:     "*",
	TokenSlash:    "/",
	TokenPercent:  "%",
	TokenPower:    "**",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenComma:    ",",
	TokenDot:      ".",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token представляет токен
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // позиция в исходной строке
}

// String возвращает строковое представление токена
func (t Token) String() string {
	return fmt.Sprintf("Token{Type:%v, Literal:%q, Pos:%d}", t.Type, t.Literal, t.Pos)
}

// Lexer лексический анализатор выражений
type Lexer struct {
	input   string
	pos     int  // текущая позиция
	readPos int  // следующая позиция для чтения
	ch      byte // текущий символ
}

// NewLexer создает новый лексер
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// NextToken возвращает следующий токен
func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipWhitespace()

	tok.Pos = l.pos

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		tok.Literal = ""
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Literal = "=="
		} else {
			tok.Literal = "="
		}
		tok.Type = TokenEq
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = TokenNotEq
			tok.Literal = "!="
		} else {
			tok.Type = TokenIllegal
			tok.Literal = string(l.ch)
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok.Type = TokenLte
			tok.Literal = "<="
		case '>':
			l.readChar()
			tok.Type = TokenNotEq
			tok.Literal = "<>"
		default:
			tok.Type = TokenLt
			tok.Literal = "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = TokenGte
			tok.Literal = ">="
		} else {
			tok.Type = TokenGt
			tok.Literal = ">"
		}
	case '+':
		tok.Type = TokenPlus
		tok.Literal = "+"
	case '-':
		tok.Type = TokenMinus
		tok.Literal = "-"
	case '*':
		if l.peekChar() == '*' {
			l.readChar()
			tok.Type = TokenPower
			tok.Literal = "**"
		} else {
			tok.Type = TokenStar
			tok.Literal = "*"
		}
	case '/':
		tok.Type = TokenSlash
		tok.Literal = "/"
	case '%':
		tok.Type = TokenPercent
		tok.Literal = "%"
	case '(':
		tok.Type = TokenLParen
		tok.Literal = "("
	case ')':
		tok.Type = TokenRParen
		tok.Literal = ")"
	case ',':
		tok.Type = TokenComma
		tok.Literal = ","
	case '.':
		if isDigit(l.peekChar()) {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type = TokenDot
		tok.Literal = "."
	case '&':
		// Синоним and в стиле pandas
		tok.Type = TokenAnd
		tok.Literal = "&"
	case '|':
		tok.Type = TokenOr
		tok.Literal = "|"
	case '\'', '"':
		tok.Type = TokenString
		tok.Literal = l.readString(l.ch)
		return tok // readString уже продвинулся
	case '`':
		// Идентификатор в обратных кавычках: `order date`
		tok.Type = TokenIdent
		tok.Literal = l.readString('`')
		return tok
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = lookupKeyword(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type = TokenIllegal
		tok.Literal = string(l.ch)
	}

	l.readChar()
	return tok
}

// readChar читает следующий символ
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar смотрит следующий символ без продвижения
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// readIdentifier читает идентификатор или ключевое слово
func (l *Lexer) readIdentifier() string {
	position := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.pos]
}

// readNumber читает число с необязательной дробной частью и экспонентой
func (l *Lexer) readNumber() string {
	position := l.pos
	hasDecimal := false

	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[position:l.pos]
}

// readString читает строку в кавычках; удвоенная кавычка или \' - экранирование
func (l *Lexer) readString(quote byte) string {
	l.readChar() // пропускаем открывающую кавычку

	var out []byte
	for l.ch != 0 {
		if l.ch == '\\' && l.peekChar() == quote {
			l.readChar()
		} else if l.ch == quote {
			if l.peekChar() != quote {
				break
			}
			l.readChar()
		}
		out = append(out, l.ch)
		l.readChar()
	}

	if l.ch == quote {
		l.readChar() // пропускаем закрывающую кавычку
	}

	return string(out)
}

// skipWhitespace пропускает пробелы
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// isLetter проверяет, может ли символ входить в идентификатор.
// Байты >= 0x80 считаются частью UTF-8 имени (кириллица в заголовках CSV).
func isLetter(ch byte) bool {
	return ch == '_' || ch >= 0x80 || unicode.IsLetter(rune(ch))
}

// isDigit проверяет, является ли символ цифрой
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

var keywords = map[string]TokenType{
	"and":      TokenAnd,
	"or":       TokenOr,
	"not":      TokenNot,
	"between":  TokenBetween,
	"contains": TokenContains,
	"is":       TokenIs,
	"null":     TokenNull,
	"none":     TokenNull,
	"nan":      TokenNull,
	"true":     TokenTrue,
	"false":    TokenFalse,
}

// lookupKeyword определяет, является ли идентификатор ключевым словом (без учета регистра)
func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[toLowerASCII(ident)]; ok {
		return tok
	}
	return TokenIdent
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Tokens возвращает все токены (для отладки)
func (l *Lexer) Tokens() []Token {
	tokens := []Token{}
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens
}
