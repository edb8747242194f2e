package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind - вид скалярного значения в ячейке таблицы
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBool
	KindTime
)

// TimeLayout - формат вывода временных значений
const TimeLayout = "2006-01-02 15:04:05"

// Value представляет типизированное значение ячейки.
// Нулевое значение Value{} - это NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	t    time.Time
}

// Null возвращает NULL
func Null() Value { return Value{} }

// Int создает целое значение
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float создает вещественное значение. NaN хранится как NULL.
func Float(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{kind: KindFloat, f: v}
}

// Text создает строковое значение
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Bool создает логическое значение
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Time создает временное значение
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// Kind возвращает вид значения
func (v Value) Kind() Kind { return v.kind }

// IsNull проверяет на NULL
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric - целое или вещественное
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// IntValue возвращает целое (для KindInt)
func (v Value) IntValue() int64 { return v.i }

// FloatValue возвращает вещественное (для KindFloat)
func (v Value) FloatValue() float64 { return v.f }

// TextValue возвращает строку (для KindText)
func (v Value) TextValue() string { return v.s }

// BoolValue возвращает логическое значение (для KindBool)
func (v Value) BoolValue() bool { return v.b }

// TimeValue возвращает время (для KindTime)
func (v Value) TimeValue() time.Time { return v.t }

// Type возвращает тип данных, соответствующий виду значения
func (v Value) Type() DataType {
	switch v.kind {
	case KindInt:
		return TypeInteger
	case KindFloat:
		return TypeReal
	case KindBool:
		return TypeBoolean
	case KindTime:
		return TypeTimestamp
	default:
		return TypeText
	}
}

// Float64 - нестрогое числовое приведение.
// ok=false для NULL и для строк, которые не являются числом.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NumberOrZero - числовое приведение, где нечисловые значения дают 0
func (v Value) NumberOrZero() float64 {
	f, ok := v.Float64()
	if !ok || math.IsNaN(f) {
		return 0
	}
	return f
}

// Truthy - истинность значения в условиях фильтра
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindText:
		return v.s != ""
	case KindTime:
		return !v.t.IsZero()
	default:
		return false
	}
}

// String форматирует значение для вывода и CSV. NULL - пустая строка.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return FormatFloat(v.f)
	case KindText:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindTime:
		if v.t.Hour() == 0 && v.t.Minute() == 0 && v.t.Second() == 0 && v.t.Nanosecond() == 0 {
			return v.t.Format("2006-01-02")
		}
		return v.t.Format(TimeLayout)
	default:
		return ""
	}
}

// FormatFloat печатает float без хвостовых нулей, целые значения - с ".0"
func FormatFloat(f float64) string {
	if math.IsInf(f, 0) {
		if f > 0 {
			return "inf"
		}
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Any возвращает значение как нативный тип Go (nil для NULL).
// Используется драйверами database/sql и excelize.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// FromAny конвертирует нативное значение Go (из database/sql или excelize) в Value
func FromAny(x any) Value {
	switch v := x.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		if v > math.MaxInt64 {
			return Float(float64(v))
		}
		return Int(int64(v))
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case bool:
		return Bool(v)
	case time.Time:
		return Time(v)
	case []byte:
		return Text(string(v))
	case string:
		return Text(v)
	default:
		return Text(fmt.Sprint(v))
	}
}
