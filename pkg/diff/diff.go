package diff

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// DiffResult представляет результат сравнения двух таблиц
type DiffResult struct {
	Added    [][]schema.Value // Добавленные строки (есть в B, нет в A)
	Removed  [][]schema.Value // Удалённые строки (есть в A, нет в B)
	Modified []ModifiedRow    // Изменённые строки (только при сравнении по ключу)
	Stats    DiffStats        // Статистика
	Columns  []table.Column   // Колонки A
}

// ModifiedRow представляет изменённую строку
type ModifiedRow struct {
	Key     string              // Значение ключевого поля
	OldRow  []schema.Value      // Старые значения
	NewRow  []schema.Value      // Новые значения
	Changes map[int]FieldChange // Изменения по индексам полей
}

// FieldChange представляет изменение одного поля
type FieldChange struct {
	FieldName string
	OldValue  string
	NewValue  string
}

// DiffStats содержит статистику сравнения
type DiffStats struct {
	TotalInA       int // Всего строк в A
	TotalInB       int // Всего строк в B
	AddedCount     int // Количество добавленных
	RemovedCount   int // Количество удалённых
	ModifiedCount  int // Количество изменённых
	UnchangedCount int // Количество неизменённых
}

// DiffOptions опции для сравнения
type DiffOptions struct {
	// KeyFields - поля для идентификации строк.
	// Пустой список - сравнение строк как мультимножеств без учета порядка.
	KeyFields []string

	// IgnoreFields - игнорировать эти поля при сравнении
	IgnoreFields []string

	// CaseSensitive - учитывать регистр при сравнении строк
	CaseSensitive bool

	// Precision - число значащих цифр при сравнении вещественных чисел (0 - 10)
	Precision int
}

// Differ выполняет сравнение таблиц
type Differ struct {
	options DiffOptions
}

// NewDiffer создаёт новый Differ
func NewDiffer(options DiffOptions) *Differ {
	if options.Precision <= 0 {
		options.Precision = 10
	}
	return &Differ{
		options: options,
	}
}

// Compare сравнивает две таблицы с одинаковыми именами колонок.
// Типы колонок не сравниваются: 1, 1.0 и true считаются равными.
func (d *Differ) Compare(tableA, tableB *table.Table) (*DiffResult, error) {
	if tableA == nil || tableB == nil {
		return nil, fmt.Errorf("tables cannot be nil")
	}

	// Проверяем совместимость колонок
	if err := validateColumns(tableA, tableB); err != nil {
		return nil, fmt.Errorf("columns mismatch: %w", err)
	}

	ignoreIndices, err := fieldIndices(tableA, d.options.IgnoreFields)
	if err != nil {
		return nil, err
	}

	result := &DiffResult{
		Columns: tableA.Columns,
		Stats: DiffStats{
			TotalInA: len(tableA.Rows),
			TotalInB: len(tableB.Rows),
		},
	}

	if len(d.options.KeyFields) == 0 {
		d.compareMultisets(tableA, tableB, ignoreIndices, result)
		return result, nil
	}

	keyIndices, err := fieldIndices(tableA, d.options.KeyFields)
	if err != nil {
		return nil, err
	}

	mapA, orderA := d.buildRowMap(tableA.Rows, keyIndices)
	mapB, orderB := d.buildRowMap(tableB.Rows, keyIndices)

	// Находим удалённые и изменённые строки
	for _, key := range orderA {
		rowA := mapA[key]
		rowB, existsInB := mapB[key]

		if !existsInB {
			result.Removed = append(result.Removed, rowA)
			result.Stats.RemovedCount++
			continue
		}

		if modified, changes := d.compareRows(rowA, rowB, ignoreIndices, tableA.Columns); modified {
			result.Modified = append(result.Modified, ModifiedRow{
				Key:     key,
				OldRow:  rowA,
				NewRow:  rowB,
				Changes: changes,
			})
			result.Stats.ModifiedCount++
		} else {
			result.Stats.UnchangedCount++
		}
	}

	// Находим добавленные строки
	for _, key := range orderB {
		if _, existsInA := mapA[key]; !existsInA {
			result.Added = append(result.Added, mapB[key])
			result.Stats.AddedCount++
		}
	}

	return result, nil
}

// compareMultisets сравнивает строки без ключа: каждая строка B погашает
// одну равную строку A
func (d *Differ) compareMultisets(tableA, tableB *table.Table, ignoreIndices []int, result *DiffResult) {
	pending := make(map[string][]int)
	for i, row := range tableA.Rows {
		key := d.rowKey(row, nil, ignoreIndices)
		pending[key] = append(pending[key], i)
	}

	for _, row := range tableB.Rows {
		key := d.rowKey(row, nil, ignoreIndices)
		if rows := pending[key]; len(rows) > 0 {
			pending[key] = rows[1:]
			result.Stats.UnchangedCount++
			continue
		}
		result.Added = append(result.Added, row)
		result.Stats.AddedCount++
	}

	var removed []int
	for _, rows := range pending {
		removed = append(removed, rows...)
	}
	sort.Ints(removed)
	for _, i := range removed {
		result.Removed = append(result.Removed, tableA.Rows[i])
		result.Stats.RemovedCount++
	}
}

// validateColumns проверяет совпадение имен колонок
func validateColumns(a, b *table.Table) error {
	if len(a.Columns) != len(b.Columns) {
		return fmt.Errorf("different number of columns: %d vs %d", len(a.Columns), len(b.Columns))
	}

	for i, colA := range a.Columns {
		colB := b.Columns[i]
		if colA.Name != colB.Name {
			return fmt.Errorf("column name mismatch at position %d: %s vs %s", i, colA.Name, colB.Name)
		}
	}

	return nil
}

// fieldIndices возвращает индексы полей по их именам
func fieldIndices(t *table.Table, names []string) ([]int, error) {
	indices := make([]int, 0, len(names))
	for _, name := range names {
		idx, err := t.MustColumn(name)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// buildRowMap создаёт map для быстрого поиска строк по ключу
func (d *Differ) buildRowMap(rows [][]schema.Value, keyIndices []int) (map[string][]schema.Value, []string) {
	m := make(map[string][]schema.Value)
	var order []string
	for _, row := range rows {
		key := d.rowKey(row, keyIndices, nil)
		if _, exists := m[key]; !exists {
			order = append(order, key)
		}
		m[key] = row
	}
	return m, order
}

// rowKey создаёт ключ из значений полей; keyIndices nil - все поля кроме ignore
func (d *Differ) rowKey(row []schema.Value, keyIndices, ignoreIndices []int) string {
	var parts []string
	if keyIndices == nil {
		for i, v := range row {
			if !contains(ignoreIndices, i) {
				parts = append(parts, d.normalize(v))
			}
		}
	} else {
		for _, idx := range keyIndices {
			parts = append(parts, d.normalize(row[idx]))
		}
	}
	return strings.Join(parts, "|")
}

// normalize приводит значение к форме для сравнения
func (d *Differ) normalize(v schema.Value) string {
	switch v.Kind() {
	case schema.KindNull:
		return "\x00"
	case schema.KindInt, schema.KindFloat, schema.KindBool:
		f, _ := v.Float64()
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', d.options.Precision, 64)
	}
	s := v.String()
	if !d.options.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

// compareRows сравнивает две строки
func (d *Differ) compareRows(rowA, rowB []schema.Value, ignoreIndices []int, columns []table.Column) (bool, map[int]FieldChange) {
	changes := make(map[int]FieldChange)
	modified := false

	for i := 0; i < len(rowA) && i < len(rowB); i++ {
		// Пропускаем игнорируемые поля
		if contains(ignoreIndices, i) {
			continue
		}

		if d.normalize(rowA[i]) != d.normalize(rowB[i]) {
			modified = true
			changes[i] = FieldChange{
				FieldName: columns[i].Name,
				OldValue:  rowA[i].String(),
				NewValue:  rowB[i].String(),
			}
		}
	}

	return modified, changes
}

// contains проверяет наличие элемента в slice
func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

func joinRow(row []schema.Value) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = v.String()
	}
	return strings.Join(parts, " | ")
}

// FormatText форматирует результат в текстовый вид
func (r *DiffResult) FormatText() string {
	var sb strings.Builder

	sb.WriteString("=== Diff Statistics ===\n")
	sb.WriteString(fmt.Sprintf("Total in A: %d\n", r.Stats.TotalInA))
	sb.WriteString(fmt.Sprintf("Total in B: %d\n", r.Stats.TotalInB))
	sb.WriteString(fmt.Sprintf("Added:      %d\n", r.Stats.AddedCount))
	sb.WriteString(fmt.Sprintf("Removed:    %d\n", r.Stats.RemovedCount))
	sb.WriteString(fmt.Sprintf("Modified:   %d\n", r.Stats.ModifiedCount))
	sb.WriteString(fmt.Sprintf("Unchanged:  %d\n\n", r.Stats.UnchangedCount))

	if len(r.Added) > 0 {
		sb.WriteString(fmt.Sprintf("=== Added (%d) ===\n", len(r.Added)))
		for _, row := range r.Added {
			sb.WriteString(fmt.Sprintf("+ %s\n", joinRow(row)))
		}
		sb.WriteString("\n")
	}

	if len(r.Removed) > 0 {
		sb.WriteString(fmt.Sprintf("=== Removed (%d) ===\n", len(r.Removed)))
		for _, row := range r.Removed {
			sb.WriteString(fmt.Sprintf("- %s\n", joinRow(row)))
		}
		sb.WriteString("\n")
	}

	if len(r.Modified) > 0 {
		sb.WriteString(fmt.Sprintf("=== Modified (%d) ===\n", len(r.Modified)))
		for _, mod := range r.Modified {
			sb.WriteString(fmt.Sprintf("~ Key: %s\n", mod.Key))
			idx := make([]int, 0, len(mod.Changes))
			for i := range mod.Changes {
				idx = append(idx, i)
			}
			sort.Ints(idx)
			for _, i := range idx {
				change := mod.Changes[i]
				sb.WriteString(fmt.Sprintf("  [%d] %s: '%s' → '%s'\n",
					i, change.FieldName, change.OldValue, change.NewValue))
			}
		}
	}

	return sb.String()
}

// IsEqual проверяет идентичность данных
func (r *DiffResult) IsEqual() bool {
	return r.Stats.AddedCount == 0 &&
		r.Stats.RemovedCount == 0 &&
		r.Stats.ModifiedCount == 0
}
