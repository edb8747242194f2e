package steps

import (
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
)

// ident печатает имя таблицы или колонки
func ident(name string) string {
	return expr.Ident(name)
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

// sqlValue печатает введенное пользователем значение: числа без кавычек,
// пустое значение и null как NULL, остальное - строковым литералом
func sqlValue(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return "NULL"
	}
	if isNumber(s) {
		return s
	}
	return expr.Quote(s)
}

// quoted печатает значение всегда строковым литералом
func quoted(raw string) string {
	return expr.Quote(raw)
}

// isNumber - десятичная запись числа (inf и nan не считаются)
func isNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "iInN") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// literal превращает введенное значение в литерал выражения:
// число, если строка разбирается как число, иначе текст.
// Кавычки вокруг значения снимаются.
func literal(raw string) schema.Value {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return schema.Text(s[1 : len(s)-1])
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return schema.Int(i)
	}
	if isNumber(s) {
		f, _ := strconv.ParseFloat(s, 64)
		return schema.Float(f)
	}
	return schema.Text(raw)
}

// textLiteral - литерал для сравнения с текстовой колонкой: всегда строка
func textLiteral(raw string) schema.Value {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return schema.Text(s[1 : len(s)-1])
	}
	return schema.Text(raw)
}

// sqlAggregate печатает имя агрегатной функции
func sqlAggregate(fn string) string {
	if fn == "mean" {
		return "AVG"
	}
	return strings.ToUpper(fn)
}

// sqlTypeOf печатает тип колонки для CREATE TABLE / ALTER TABLE
func sqlTypeOf(t schema.DataType) string {
	switch schema.NormalizeType(t) {
	case schema.TypeInteger:
		return "INTEGER"
	case schema.TypeReal:
		return "REAL"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}
