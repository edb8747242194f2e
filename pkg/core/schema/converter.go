package schema

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Поддерживаемые форматы дат при разборе строк
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"2006/01/02",
	"01/02/2006",
}

// Converter отвечает за разбор и приведение значений
type Converter struct {
	// Lenient - при неудачном приведении возвращать NULL вместо ошибки
	Lenient bool
}

// NewConverter создает строгий конвертер
func NewConverter() *Converter {
	return &Converter{}
}

// NewLenientConverter создает конвертер, который превращает ошибки приведения в NULL
func NewLenientConverter() *Converter {
	return &Converter{Lenient: true}
}

// ParseValue парсит строковое значение согласно типу колонки.
// Пустая строка - NULL для всех типов кроме TEXT.
func (c *Converter) ParseValue(raw string, t DataType) (Value, error) {
	normalized := NormalizeType(t)

	if normalized == TypeText {
		return Text(raw), nil
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "null") || strings.EqualFold(trimmed, "nan") {
		return Null(), nil
	}

	var (
		v   Value
		err error
	)
	switch normalized {
	case TypeInteger:
		v, err = parseInteger(trimmed)
	case TypeReal:
		v, err = parseReal(trimmed)
	case TypeBoolean:
		v, err = parseBoolean(trimmed)
	case TypeTimestamp:
		v, err = parseTime(trimmed)
	default:
		err = &ValidationError{Message: "unsupported type: " + string(t), Value: raw}
	}

	if err != nil {
		if c.Lenient {
			return Null(), nil
		}
		return Null(), err
	}
	return v, nil
}

// Cast приводит значение к типу t.
// NULL остается NULL для любого типа.
func (c *Converter) Cast(v Value, t DataType) (Value, error) {
	if v.IsNull() {
		return v, nil
	}

	normalized := NormalizeType(t)
	switch normalized {
	case TypeText:
		return Text(v.String()), nil

	case TypeInteger:
		switch v.Kind() {
		case KindInt:
			return v, nil
		case KindFloat:
			f := v.FloatValue()
			if math.IsInf(f, 0) {
				return c.fail(v, "cannot convert infinity to integer")
			}
			return Int(int64(f)), nil
		case KindBool:
			if v.BoolValue() {
				return Int(1), nil
			}
			return Int(0), nil
		case KindText:
			return c.ParseValue(v.TextValue(), TypeInteger)
		}

	case TypeReal:
		switch v.Kind() {
		case KindFloat:
			return v, nil
		case KindInt:
			return Float(float64(v.IntValue())), nil
		case KindBool:
			if v.BoolValue() {
				return Float(1), nil
			}
			return Float(0), nil
		case KindText:
			return c.ParseValue(v.TextValue(), TypeReal)
		}

	case TypeBoolean:
		switch v.Kind() {
		case KindBool:
			return v, nil
		case KindInt, KindFloat:
			return Bool(v.Truthy()), nil
		case KindText:
			return c.ParseValue(v.TextValue(), TypeBoolean)
		}

	case TypeTimestamp:
		switch v.Kind() {
		case KindTime:
			return v, nil
		case KindText:
			return c.ParseValue(v.TextValue(), TypeTimestamp)
		}
	}

	return c.fail(v, "cannot convert "+string(v.Type())+" to "+string(normalized))
}

// Infer определяет наиболее узкий тип для строкового значения:
// INTEGER, REAL, BOOLEAN, TIMESTAMP, затем TEXT
func (c *Converter) Infer(raw string) DataType {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return TypeInteger
	}
	if _, err := parseReal(trimmed); err == nil {
		return TypeReal
	}
	if strings.EqualFold(trimmed, "true") || strings.EqualFold(trimmed, "false") {
		return TypeBoolean
	}
	if _, err := parseTime(trimmed); err == nil {
		return TypeTimestamp
	}
	return TypeText
}

func (c *Converter) fail(v Value, msg string) (Value, error) {
	if c.Lenient {
		return Null(), nil
	}
	return Null(), &ValidationError{Message: msg, Value: v.String()}
}

// parseInteger парсит INTEGER; допускает запись вида "10.0"
func parseInteger(s string) (Value, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return Int(int64(f)), nil
	}
	return Null(), &ValidationError{Message: "invalid integer value", Value: s}
}

// parseReal парсит REAL/FLOAT/DOUBLE
func parseReal(s string) (Value, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return Null(), &ValidationError{Message: "invalid float value", Value: s}
	}
	return Float(f), nil
}

// parseBoolean парсит BOOLEAN (true/false, 1/0, yes/no)
func parseBoolean(s string) (Value, error) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return Bool(true), nil
	case "0", "false", "f", "no", "n":
		return Bool(false), nil
	}
	return Null(), &ValidationError{Message: "invalid boolean value", Value: s}
}

// parseTime парсит дату или дату со временем
func parseTime(s string) (Value, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time(t), nil
		}
	}
	return Null(), &ValidationError{Message: "invalid datetime value", Value: s}
}
