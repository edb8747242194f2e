package steps

import (
	"fmt"
	"strings"
)

// Kind - вид шага конвейера
type Kind string

// Поддерживаемые виды шагов
const (
	KindFilter                Kind = "filter"
	KindSort                  Kind = "sort"
	KindGroupBy               Kind = "group_by"
	KindJoin                  Kind = "join"
	KindCreateWithPrimaryKey  Kind = "create_with_primary_key"
	KindAggregateColumn       Kind = "aggregate_column"
	KindModifyColumn          Kind = "modify_column"
	KindCreateAndSave         Kind = "create_and_save"
	KindInsert                Kind = "insert"
	KindUpdate                Kind = "update"
	KindDelete                Kind = "delete"
	KindSetOperation          Kind = "set_operation"
	KindHandleMissing         Kind = "handle_missing"
	KindModifyStructure       Kind = "modify_structure"
	KindCreateWithForeignLink Kind = "create_with_foreign_link"
)

// Kinds - все виды шагов в порядке меню
var Kinds = []Kind{
	KindFilter,
	KindSort,
	KindGroupBy,
	KindJoin,
	KindCreateWithPrimaryKey,
	KindAggregateColumn,
	KindModifyColumn,
	KindCreateAndSave,
	KindInsert,
	KindUpdate,
	KindDelete,
	KindSetOperation,
	KindHandleMissing,
	KindModifyStructure,
	KindCreateWithForeignLink,
}

var titles = map[Kind]string{
	KindFilter:                "Filter Rows",
	KindSort:                  "Sort Rows",
	KindGroupBy:               "Group By",
	KindJoin:                  "Join Tables",
	KindCreateWithPrimaryKey:  "Create Table with Primary Key",
	KindAggregateColumn:       "Aggregate Column",
	KindModifyColumn:          "Modify Column",
	KindCreateAndSave:         "Create & Save New Table",
	KindInsert:                "INSERT",
	KindUpdate:                "UPDATE",
	KindDelete:                "DELETE",
	KindSetOperation:          "Set Operation",
	KindHandleMissing:         "Handle Missing Values",
	KindModifyStructure:       "Modify Table Structure",
	KindCreateWithForeignLink: "Create New Table with Foreign Link",
}

// Title возвращает отображаемое имя вида шага
func (k Kind) Title() string {
	if t, ok := titles[k]; ok {
		return t
	}
	return string(k)
}

// String реализует fmt.Stringer
func (k Kind) String() string {
	return string(k)
}

// Valid проверяет, что вид шага известен
func (k Kind) Valid() bool {
	_, ok := titles[k]
	return ok
}

// ParseKind разбирает вид шага: идентификатор ("group_by"), отображаемое
// имя ("Group By") или его snake-форму без учета регистра
func ParseKind(s string) (Kind, error) {
	norm := snake(s)
	for _, k := range Kinds {
		if norm == string(k) || norm == snake(k.Title()) {
			return k, nil
		}
	}
	// короткие синонимы
	switch norm {
	case "groupby":
		return KindGroupBy, nil
	case "aggregate":
		return KindAggregateColumn, nil
	case "missing":
		return KindHandleMissing, nil
	case "set_op", "setop":
		return KindSetOperation, nil
	}
	return "", fmt.Errorf("unknown step kind '%s'", s)
}

func snake(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "&", "and")
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if r == ' ' || r == '-' || r == '_' {
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}
	return strings.TrimSuffix(b.String(), "_")
}
