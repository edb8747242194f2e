package merge

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// MergeStrategy определяет стратегию объединения
type MergeStrategy int

const (
	// StrategyUnion - объединение всех строк (дедупликация по ключу)
	StrategyUnion MergeStrategy = iota

	// StrategyIntersection - только строки, присутствующие во всех таблицах
	StrategyIntersection

	// StrategyLeftPriority - при конфликтах приоритет левой (первой) таблице
	StrategyLeftPriority

	// StrategyRightPriority - при конфликтах приоритет правой (последней) таблице
	StrategyRightPriority

	// StrategyAppend - просто добавить все строки (без дедупликации)
	StrategyAppend

	// StrategyExcept - строки первой таблицы, отсутствующие в остальных
	StrategyExcept
)

// ParseOperation переводит SQL-имя операции над множествами в стратегию
func ParseOperation(op string) (MergeStrategy, error) {
	switch strings.ToUpper(strings.Join(strings.Fields(op), " ")) {
	case "UNION":
		return StrategyUnion, nil
	case "UNION ALL":
		return StrategyAppend, nil
	case "INTERSECT":
		return StrategyIntersection, nil
	case "EXCEPT":
		return StrategyExcept, nil
	}
	return 0, fmt.Errorf("unknown set operation '%s'", op)
}

// MergeOptions опции для объединения
type MergeOptions struct {
	// Strategy - стратегия объединения
	Strategy MergeStrategy

	// KeyFields - поля для идентификации строк (по умолчанию вся строка)
	KeyFields []string
}

// MergeResult результат объединения
type MergeResult struct {
	Table     *table.Table // Результирующая таблица
	Stats     MergeStats   // Статистика
	Conflicts []Conflict   // Обнаруженные конфликты
}

// MergeStats статистика объединения
type MergeStats struct {
	TotalTables    int // Количество объединённых таблиц
	TotalRowsIn    int // Всего строк на входе
	TotalRowsOut   int // Строк в результате
	Duplicates     int // Дубликаты (удалено при дедупликации)
	ConflictsCount int // Конфликты (строки с одинаковым ключом и разными значениями)
}

// Conflict представляет конфликт при объединении
type Conflict struct {
	Key            string         // Ключ строки
	ExistingRow    []schema.Value // Существующая строка
	ConflictingRow []schema.Value // Конфликтующая строка
	Resolution     string         // Как был разрешён: "kept_existing", "used_new"
}

// Merger выполняет объединение таблиц с одинаковыми колонками
type Merger struct {
	options MergeOptions
}

// NewMerger создаёт новый Merger
func NewMerger(options MergeOptions) *Merger {
	return &Merger{
		options: options,
	}
}

// Merge объединяет несколько таблиц в одну.
// Порядок строк результата - порядок первого появления.
func (m *Merger) Merge(tables ...*table.Table) (*MergeResult, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to merge")
	}

	// Проверяем совместимость колонок
	base := tables[0]
	for i := 1; i < len(tables); i++ {
		if err := validateColumns(base, tables[i]); err != nil {
			return nil, fmt.Errorf("table %d (%s) columns mismatch: %w", i, tables[i].Name, err)
		}
	}

	keyIndices, err := m.keyIndices(base)
	if err != nil {
		return nil, err
	}

	switch m.options.Strategy {
	case StrategyUnion:
		return m.mergeWithPriority(tables, keyIndices, true)
	case StrategyIntersection:
		return m.mergeIntersection(tables, keyIndices)
	case StrategyLeftPriority:
		return m.mergeWithPriority(tables, keyIndices, true)
	case StrategyRightPriority:
		return m.mergeWithPriority(tables, keyIndices, false)
	case StrategyAppend:
		return m.mergeAppend(tables)
	case StrategyExcept:
		return m.mergeExcept(tables, keyIndices)
	default:
		return nil, fmt.Errorf("unknown merge strategy: %d", m.options.Strategy)
	}
}

// rowIndex - хеш-индекс строк по ключу (xxh3) с проверкой коллизий
type rowIndex struct {
	keyIndices []int
	buckets    map[uint64][]int
	rows       [][]schema.Value
}

func newRowIndex(keyIndices []int) *rowIndex {
	return &rowIndex{keyIndices: keyIndices, buckets: make(map[uint64][]int)}
}

// find возвращает позицию строки с тем же ключом или -1
func (ix *rowIndex) find(row []schema.Value) (int, uint64) {
	h := xxh3.HashString(table.RowKey(row, ix.keyIndices))
	for _, pos := range ix.buckets[h] {
		if sameKey(ix.rows[pos], row, ix.keyIndices) {
			return pos, h
		}
	}
	return -1, h
}

func (ix *rowIndex) add(row []schema.Value, h uint64) int {
	pos := len(ix.rows)
	ix.rows = append(ix.rows, row)
	ix.buckets[h] = append(ix.buckets[h], pos)
	return pos
}

// mergeWithPriority объединяет уникальные строки; при совпадении ключа
// остается первая (leftPriority) или последняя строка
func (m *Merger) mergeWithPriority(tables []*table.Table, keyIndices []int, leftPriority bool) (*MergeResult, error) {
	ix := newRowIndex(keyIndices)
	result := &MergeResult{
		Stats: MergeStats{
			TotalTables: len(tables),
		},
	}

	for _, t := range tables {
		result.Stats.TotalRowsIn += len(t.Rows)

		for _, row := range t.Rows {
			pos, h := ix.find(row)
			if pos < 0 {
				ix.add(row, h)
				continue
			}

			result.Stats.Duplicates++
			existing := ix.rows[pos]
			if sameKey(existing, row, nil) {
				continue
			}

			conflict := Conflict{
				Key:            displayKey(row, keyIndices),
				ExistingRow:    existing,
				ConflictingRow: row,
				Resolution:     "kept_existing",
			}
			if !leftPriority {
				ix.rows[pos] = row
				conflict.Resolution = "used_new"
			}
			result.Conflicts = append(result.Conflicts, conflict)
			result.Stats.ConflictsCount++
		}
	}

	result.Table = buildTable(tables[0], ix.rows)
	result.Stats.TotalRowsOut = len(ix.rows)
	return result, nil
}

// mergeIntersection оставляет только строки, присутствующие во всех таблицах
func (m *Merger) mergeIntersection(tables []*table.Table, keyIndices []int) (*MergeResult, error) {
	ix := newRowIndex(keyIndices)
	counts := []int{}

	for _, row := range tables[0].Rows {
		if pos, h := ix.find(row); pos < 0 {
			ix.add(row, h)
			counts = append(counts, 1)
		}
	}

	// Проверяем наличие в остальных таблицах
	for i := 1; i < len(tables); i++ {
		seen := make(map[int]bool)
		for _, row := range tables[i].Rows {
			pos, _ := ix.find(row)
			if pos >= 0 && !seen[pos] {
				seen[pos] = true
				counts[pos]++
			}
		}
	}

	result := &MergeResult{
		Stats: MergeStats{
			TotalTables: len(tables),
			TotalRowsIn: len(tables[0].Rows),
		},
	}

	rows := make([][]schema.Value, 0)
	for pos, count := range counts {
		if count == len(tables) {
			rows = append(rows, ix.rows[pos])
		}
	}

	result.Table = buildTable(tables[0], rows)
	result.Stats.TotalRowsOut = len(rows)
	return result, nil
}

// mergeExcept оставляет уникальные строки первой таблицы, которых нет в остальных
func (m *Merger) mergeExcept(tables []*table.Table, keyIndices []int) (*MergeResult, error) {
	exclude := newRowIndex(keyIndices)
	for _, t := range tables[1:] {
		for _, row := range t.Rows {
			if pos, h := exclude.find(row); pos < 0 {
				exclude.add(row, h)
			}
		}
	}

	kept := newRowIndex(keyIndices)
	for _, row := range tables[0].Rows {
		if pos, _ := exclude.find(row); pos >= 0 {
			continue
		}
		if pos, h := kept.find(row); pos < 0 {
			kept.add(row, h)
		}
	}

	result := &MergeResult{
		Table: buildTable(tables[0], kept.rows),
		Stats: MergeStats{
			TotalTables:  len(tables),
			TotalRowsIn:  len(tables[0].Rows),
			TotalRowsOut: len(kept.rows),
		},
	}
	return result, nil
}

// mergeAppend просто добавляет все строки без дедупликации
func (m *Merger) mergeAppend(tables []*table.Table) (*MergeResult, error) {
	allRows := make([][]schema.Value, 0)
	for _, t := range tables {
		allRows = append(allRows, t.Rows...)
	}

	result := &MergeResult{
		Table: buildTable(tables[0], allRows),
		Stats: MergeStats{
			TotalTables:  len(tables),
			TotalRowsIn:  len(allRows),
			TotalRowsOut: len(allRows),
		},
	}
	return result, nil
}

// buildTable создаёт таблицу с колонками base из копий строк
func buildTable(base *table.Table, rows [][]schema.Value) *table.Table {
	out := table.New(base.Name, base.Columns...)
	for _, row := range rows {
		cp := make([]schema.Value, len(row))
		copy(cp, row)
		out.Rows = append(out.Rows, cp)
	}
	return out
}

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

// keyIndices возвращает индексы ключевых колонок; nil - вся строка
func (m *Merger) keyIndices(t *table.Table) ([]int, error) {
	if len(m.options.KeyFields) == 0 {
		return nil, nil
	}
	indices := make([]int, 0, len(m.options.KeyFields))
	for _, name := range m.options.KeyFields {
		idx, err := t.MustColumn(name)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// sameKey сравнивает строки по ключевым колонкам (nil - по всем)
func sameKey(a, b []schema.Value, keyIndices []int) bool {
	if keyIndices == nil {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !schema.Same(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	for _, idx := range keyIndices {
		if !schema.Same(a[idx], b[idx]) {
			return false
		}
	}
	return true
}

// displayKey печатает ключ строки через "|"
func displayKey(row []schema.Value, keyIndices []int) string {
	if keyIndices == nil {
		keyIndices = make([]int, len(row))
		for i := range row {
			keyIndices[i] = i
		}
	}
	parts := make([]string, 0, len(keyIndices))
	for _, idx := range keyIndices {
		parts = append(parts, row[idx].String())
	}
	return strings.Join(parts, "|")
}

// FormatText форматирует результат в текстовый вид
func (r *MergeResult) FormatText() string {
	var sb strings.Builder

	sb.WriteString("=== Merge Statistics ===\n")
	sb.WriteString(fmt.Sprintf("Tables merged:  %d\n", r.Stats.TotalTables))
	sb.WriteString(fmt.Sprintf("Total rows in:  %d\n", r.Stats.TotalRowsIn))
	sb.WriteString(fmt.Sprintf("Total rows out: %d\n", r.Stats.TotalRowsOut))
	sb.WriteString(fmt.Sprintf("Duplicates:     %d\n", r.Stats.Duplicates))
	sb.WriteString(fmt.Sprintf("Conflicts:      %d\n\n", r.Stats.ConflictsCount))

	limit := len(r.Conflicts)
	if limit > 10 {
		sb.WriteString(fmt.Sprintf("=== Conflicts (%d total, showing first 10) ===\n", len(r.Conflicts)))
		limit = 10
	} else if limit > 0 {
		sb.WriteString("=== Conflicts ===\n")
	}
	for _, c := range r.Conflicts[:limit] {
		sb.WriteString(fmt.Sprintf("Key %s: %s\n", c.Key, c.Resolution))
	}

	return sb.String()
}
