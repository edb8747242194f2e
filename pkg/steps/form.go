package steps

import (
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Типы элементов формы
const (
	FieldText        = "text"
	FieldTextarea    = "textarea"
	FieldSelect      = "select"
	FieldMultiSelect = "multiselect"
	FieldCheckbox    = "checkbox"
	FieldMap         = "map"
)

// Field описывает один элемент формы шага
type Field struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Value    string   `json:"value"`
	Help     string   `json:"help,omitempty"`
}

// Операторы фильтра по типу колонки
var (
	numericFilterOperators = []string{"==", "!=", ">", "<", ">=", "<=", "between", "not between"}
	textFilterOperators    = []string{"==", "!=", "contains"}

	numericModifyOperators = []string{"+", "-", "*", "/", "%", "**", "==", "!=", ">", "<", ">=", "<="}
	textModifyOperators    = []string{"+", "==", "!="}

	aggregateFunctions = []string{"sum", "mean", "count", "min", "max"}
)

// FilterOperators возвращает операторы фильтра, допустимые для типа колонки
func FilterOperators(t schema.DataType) []string {
	if schema.IsNumericType(t) {
		return numericFilterOperators
	}
	return textFilterOperators
}

// ModifyOperators возвращает операторы ModifyColumn; text - хотя бы один операнд текстовый
func ModifyOperators(text bool) []string {
	if text {
		return textModifyOperators
	}
	return numericModifyOperators
}

// choose возвращает current, если он среди options, иначе первый вариант
func choose(options []string, current string) string {
	for _, o := range options {
		if o == current {
			return current
		}
	}
	if len(options) == 0 {
		return ""
	}
	return options[0]
}

// chooseMany оставляет только существующие варианты, сохраняя порядок выбора
func chooseMany(options, current []string) []string {
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}
	out := []string{}
	for _, c := range current {
		if allowed[c] {
			out = append(out, c)
		}
	}
	return out
}

func tableNames(cat table.Catalog) []string {
	if cat == nil {
		return nil
	}
	return cat.Names()
}

func catalogTable(cat table.Catalog, name string) *table.Table {
	if cat == nil || name == "" {
		return nil
	}
	t, _ := cat.Table(name)
	return t
}

// columnNames возвращает имена колонок, удовлетворяющих keep (nil - все)
func columnNames(t *table.Table, keep func(table.Column) bool) []string {
	if t == nil {
		return nil
	}
	out := []string{}
	for _, c := range t.Columns {
		if keep == nil || keep(c) {
			out = append(out, c.Name)
		}
	}
	return out
}

func isNumericColumn(c table.Column) bool {
	return schema.IsNumericType(c.Type)
}

func columnType(t *table.Table, name string) schema.DataType {
	if t == nil {
		return ""
	}
	c, ok := t.Column(name)
	if !ok {
		return ""
	}
	return c.Type
}

func selectField(key, label string, options []string, value string) Field {
	return Field{Key: key, Label: label, Type: FieldSelect, Required: true, Options: options, Value: value}
}

func multiField(key, label string, options, value []string) Field {
	return Field{Key: key, Label: label, Type: FieldMultiSelect, Options: options, Value: strings.Join(value, ",")}
}

func textField(key, label, value string) Field {
	return Field{Key: key, Label: label, Type: FieldText, Value: value}
}

func boolField(key, label string, value bool) Field {
	v := "false"
	if value {
		v = "true"
	}
	return Field{Key: key, Label: label, Type: FieldCheckbox, Value: v}
}
