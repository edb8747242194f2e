package table

import (
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
)

// Builder помогает строить таблицы
type Builder struct {
	name    string
	columns []Column
	rows    [][]schema.Value
}

// NewBuilder создает новый builder
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// AddInteger добавляет INTEGER колонку
func (b *Builder) AddInteger(name string) *Builder {
	return b.AddColumn(name, schema.TypeInteger)
}

// AddReal добавляет REAL колонку
func (b *Builder) AddReal(name string) *Builder {
	return b.AddColumn(name, schema.TypeReal)
}

// AddText добавляет TEXT колонку
func (b *Builder) AddText(name string) *Builder {
	return b.AddColumn(name, schema.TypeText)
}

// AddBoolean добавляет BOOLEAN колонку
func (b *Builder) AddBoolean(name string) *Builder {
	return b.AddColumn(name, schema.TypeBoolean)
}

// AddTimestamp добавляет TIMESTAMP колонку
func (b *Builder) AddTimestamp(name string) *Builder {
	return b.AddColumn(name, schema.TypeTimestamp)
}

// AddColumn добавляет колонку произвольного типа
func (b *Builder) AddColumn(name string, t schema.DataType) *Builder {
	b.columns = append(b.columns, Column{Name: name, Type: schema.NormalizeType(t)})
	return b
}

// Row добавляет строку из нативных значений Go (nil - NULL)
func (b *Builder) Row(values ...any) *Builder {
	row := make([]schema.Value, len(values))
	for i, v := range values {
		row[i] = schema.FromAny(v)
	}
	b.rows = append(b.rows, row)
	return b
}

// ColumnCount возвращает количество колонок
func (b *Builder) ColumnCount() int {
	return len(b.columns)
}

// Build строит таблицу. Строки неверной длины дополняются NULL или обрезаются.
func (b *Builder) Build() *Table {
	t := New(b.name, b.columns...)
	for _, row := range b.rows {
		fixed := make([]schema.Value, len(b.columns))
		copy(fixed, row)
		t.Rows = append(t.Rows, fixed)
	}
	return t
}
