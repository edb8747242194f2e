package schema

import (
	"strings"
)

// Compare сравнивает два значения.
// Возвращает: -1 если a < b, 0 если равны, 1 если a > b.
// NULL меньше любого значения; числа сравниваются независимо от int/float;
// строка и число сравниваются как числа, если строка разбирается как число.
func Compare(a, b Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}

	switch {
	case a.Kind() == KindInt && b.Kind() == KindInt:
		return compareInts(a.IntValue(), b.IntValue())

	case a.Kind() == KindTime && b.Kind() == KindTime:
		switch {
		case a.TimeValue().Before(b.TimeValue()):
			return -1
		case a.TimeValue().After(b.TimeValue()):
			return 1
		}
		return 0

	case a.Kind() == KindBool && b.Kind() == KindBool:
		// false < true
		return compareInts(boolInt(a.BoolValue()), boolInt(b.BoolValue()))

	case a.IsNumeric() || b.IsNumeric():
		fa, okA := a.Float64()
		fb, okB := b.Float64()
		if okA && okB {
			return compareFloats(fa, fb)
		}
	}

	// Текстовое и остальные сочетания
	return compareStrings(a.String(), b.String())
}

// Equal - равенство значений; NULL не равен ничему, включая NULL
func Equal(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}
	return Compare(a, b) == 0
}

// Same - равенство для дедупликации и группировки: NULL равен NULL
func Same(a, b Value) bool {
	return Compare(a, b) == 0 && a.IsNull() == b.IsNull()
}

// EqualText сравнивает строковые представления без учета пробелов по краям
func EqualText(a Value, s string, foldCase bool) bool {
	if a.IsNull() {
		return false
	}
	left := strings.TrimSpace(a.String())
	right := strings.TrimSpace(s)
	if foldCase {
		return strings.EqualFold(left, right)
	}
	return left == right
}

func compareInts(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// compareStrings сравнивает строки лексикографически
func compareStrings(a, b string) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
