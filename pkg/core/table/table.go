package table

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
)

// Column описывает колонку таблицы
type Column struct {
	Name string          `json:"name"`
	Type schema.DataType `json:"type"`
}

// Table - именованная упорядоченная коллекция строк.
// Rows[i][j] - значение колонки Columns[j] в строке i.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]schema.Value
}

// New создает пустую таблицу
func New(name string, columns ...Column) *Table {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{
		Name:    name,
		Columns: cols,
		Rows:    [][]schema.Value{},
	}
}

// Len возвращает количество строк
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Clone возвращает глубокую копию таблицы
func (t *Table) Clone() *Table {
	out := New(t.Name, t.Columns...)
	out.Rows = make([][]schema.Value, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = cloneRow(row)
	}
	return out
}

// Rename возвращает копию таблицы под другим именем
func (t *Table) Rename(name string) *Table {
	out := t.Clone()
	out.Name = name
	return out
}

// ColumnIndex возвращает индекс колонки или -1
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn проверяет наличие колонки
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column возвращает описание колонки по имени
func (t *Table) Column(name string) (Column, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return Column{}, false
	}
	return t.Columns[idx], true
}

// ColumnNames возвращает имена колонок в порядке объявления
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnValues возвращает значения одной колонки
func (t *Table) ColumnValues(idx int) []schema.Value {
	values := make([]schema.Value, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values
}

// Value возвращает значение ячейки
func (t *Table) Value(row int, column string) (schema.Value, bool) {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return schema.Null(), false
	}
	return t.Rows[row][idx], true
}

// MustColumn возвращает индекс колонки или ошибку с именем таблицы
func (t *Table) MustColumn(name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return -1, fmt.Errorf("column '%s' not found in table '%s'", name, t.Name)
	}
	return idx, nil
}

// AppendRow добавляет строку; длина должна совпадать с количеством колонок
func (t *Table) AppendRow(row []schema.Value) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table '%s' has %d columns", len(row), t.Name, len(t.Columns))
	}
	t.Rows = append(t.Rows, cloneRow(row))
	return nil
}

// AddColumn добавляет колонку. Недостающие значения дополняются NULL,
// лишние отбрасываются.
func (t *Table) AddColumn(col Column, values []schema.Value) error {
	if col.Name == "" {
		return fmt.Errorf("column name is empty")
	}
	if t.HasColumn(col.Name) {
		return fmt.Errorf("column '%s' already exists in table '%s'", col.Name, t.Name)
	}
	t.Columns = append(t.Columns, col)
	for i := range t.Rows {
		v := schema.Null()
		if i < len(values) {
			v = values[i]
		}
		t.Rows[i] = append(t.Rows[i], v)
	}
	return nil
}

// SetColumn заменяет значения существующей колонки или добавляет новую
func (t *Table) SetColumn(col Column, values []schema.Value) error {
	idx := t.ColumnIndex(col.Name)
	if idx < 0 {
		return t.AddColumn(col, values)
	}
	t.Columns[idx].Type = col.Type
	for i := range t.Rows {
		v := schema.Null()
		if i < len(values) {
			v = values[i]
		}
		t.Rows[i][idx] = v
	}
	return nil
}

// DropColumns удаляет колонки
func (t *Table) DropColumns(names ...string) error {
	drop := make(map[int]bool, len(names))
	for _, name := range names {
		idx, err := t.MustColumn(name)
		if err != nil {
			return err
		}
		drop[idx] = true
	}

	keep := make([]int, 0, len(t.Columns))
	for i := range t.Columns {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	t.reorder(keep)
	return nil
}

// RenameColumns переименовывает колонки по отображению old -> new
func (t *Table) RenameColumns(mapping map[string]string) error {
	for oldName, newName := range mapping {
		if _, err := t.MustColumn(oldName); err != nil {
			return err
		}
		if strings.TrimSpace(newName) == "" {
			return fmt.Errorf("new name for column '%s' is empty", oldName)
		}
	}

	renamed := make([]string, len(t.Columns))
	seen := make(map[string]bool, len(t.Columns))
	for i, col := range t.Columns {
		name := col.Name
		if newName, ok := mapping[name]; ok {
			name = strings.TrimSpace(newName)
		}
		if seen[name] {
			return fmt.Errorf("duplicate column name after rename: %s", name)
		}
		seen[name] = true
		renamed[i] = name
	}
	for i := range t.Columns {
		t.Columns[i].Name = renamed[i]
	}
	return nil
}

// Project возвращает новую таблицу только с указанными колонками
func (t *Table) Project(names []string) (*Table, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j, err := t.MustColumn(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	out := t.Clone()
	out.reorder(idx)
	return out, nil
}

// SameColumns проверяет совпадение имен колонок и их порядка
func (t *Table) SameColumns(other *Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i].Name != other.Columns[i].Name {
			return false
		}
	}
	return true
}

// RetypeColumn приводит все значения колонки к типу dt.
// Возвращает количество значений, которые не удалось привести (они стали NULL
// при нестрогом конвертере).
func (t *Table) RetypeColumn(name string, dt schema.DataType, conv *schema.Converter) (int, error) {
	idx, err := t.MustColumn(name)
	if err != nil {
		return 0, err
	}
	normalized, err := schema.ParseType(string(dt))
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, row := range t.Rows {
		before := row[idx]
		v, err := conv.Cast(before, normalized)
		if err != nil {
			return failed, fmt.Errorf("column '%s': %w", name, err)
		}
		if v.IsNull() && !before.IsNull() {
			failed++
		}
		row[idx] = v
	}
	t.Columns[idx].Type = normalized
	return failed, nil
}

// Filter возвращает копию таблицы со строками, для которых keep вернул true
func (t *Table) Filter(keep func(row []schema.Value) bool) *Table {
	out := New(t.Name, t.Columns...)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, cloneRow(row))
		}
	}
	return out
}

// reorder оставляет колонки с индексами idx в указанном порядке
func (t *Table) reorder(idx []int) {
	cols := make([]Column, len(idx))
	for i, j := range idx {
		cols[i] = t.Columns[j]
	}
	for r, row := range t.Rows {
		newRow := make([]schema.Value, len(idx))
		for i, j := range idx {
			newRow[i] = row[j]
		}
		t.Rows[r] = newRow
	}
	t.Columns = cols
}

func cloneRow(row []schema.Value) []schema.Value {
	out := make([]schema.Value, len(row))
	copy(out, row)
	return out
}
