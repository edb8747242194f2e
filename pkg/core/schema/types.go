package schema

import (
	"fmt"
	"strings"
)

// DataType представляет тип данных колонки
type DataType string

// Поддерживаемые типы данных
const (
	TypeInteger   DataType = "INTEGER"
	TypeInt       DataType = "INT"
	TypeReal      DataType = "REAL"
	TypeFloat     DataType = "FLOAT"
	TypeDouble    DataType = "DOUBLE"
	TypeDecimal   DataType = "DECIMAL"
	TypeText      DataType = "TEXT"
	TypeVarchar   DataType = "VARCHAR"
	TypeChar      DataType = "CHAR"
	TypeString    DataType = "STRING"
	TypeBoolean   DataType = "BOOLEAN"
	TypeBool      DataType = "BOOL"
	TypeDate      DataType = "DATE"
	TypeDatetime  DataType = "DATETIME"
	TypeTimestamp DataType = "TIMESTAMP"
)

// Имена типов, которые пользователь выбирает в формах шагов
const (
	FormInt      = "int"
	FormFloat    = "float"
	FormStr      = "str"
	FormBool     = "bool"
	FormDatetime = "datetime"
)

// FormTypes - типы, доступные в формах создания таблиц
var FormTypes = []string{FormStr, FormInt, FormFloat, FormDatetime}

// ValidationError ошибка приведения значения к типу
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s (value: '%s')", e.Message, e.Value)
	}
	return fmt.Sprintf("validation error for field '%s': %s (value: '%s')",
		e.Field, e.Message, e.Value)
}

// IsNumericType проверяет является ли тип числовым
func IsNumericType(t DataType) bool {
	switch NormalizeType(t) {
	case TypeInteger, TypeReal:
		return true
	default:
		return false
	}
}

// IsTextType проверяет является ли тип текстовым
func IsTextType(t DataType) bool {
	return NormalizeType(t) == TypeText
}

// IsDateTimeType проверяет является ли тип временным
func IsDateTimeType(t DataType) bool {
	return NormalizeType(t) == TypeTimestamp
}

// IsBooleanType проверяет является ли тип логическим
func IsBooleanType(t DataType) bool {
	return NormalizeType(t) == TypeBoolean
}

// NormalizeType сводит синонимы (включая имена типов из форм) к пяти базовым типам.
// Неизвестный тип возвращается как есть.
func NormalizeType(t DataType) DataType {
	switch DataType(strings.ToUpper(strings.TrimSpace(string(t)))) {
	case TypeInteger, TypeInt, "INT64", "BIGINT", "SMALLINT":
		return TypeInteger
	case TypeReal, TypeFloat, TypeDouble, TypeDecimal, "FLOAT64", "NUMERIC":
		return TypeReal
	case TypeText, TypeVarchar, TypeChar, TypeString, "STR", "OBJECT":
		return TypeText
	case TypeBoolean, TypeBool:
		return TypeBoolean
	case TypeDate, TypeDatetime, TypeTimestamp:
		return TypeTimestamp
	default:
		return t
	}
}

// IsValidType проверяет валидность типа данных
func IsValidType(t DataType) bool {
	switch NormalizeType(t) {
	case TypeInteger, TypeReal, TypeText, TypeBoolean, TypeTimestamp:
		return true
	default:
		return false
	}
}

// ParseType разбирает имя типа из формы или SQL
func ParseType(name string) (DataType, error) {
	t := NormalizeType(DataType(name))
	if !IsValidType(t) {
		return "", fmt.Errorf("unsupported data type '%s'", name)
	}
	return t, nil
}

// FormName возвращает имя типа в терминах форм (int, float, str, bool, datetime)
func FormName(t DataType) string {
	switch NormalizeType(t) {
	case TypeInteger:
		return FormInt
	case TypeReal:
		return FormFloat
	case TypeBoolean:
		return FormBool
	case TypeTimestamp:
		return FormDatetime
	default:
		return FormStr
	}
}
