package steps

import (
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// parseRows разбирает ручной ввод строк: строки разделены ";" или переводом
// строки, поля - запятой. Пустые строки пропускаются.
func parseRows(text string) [][]string {
	var rows [][]string
	split := func(r rune) bool { return r == ';' || r == '\n' }
	for _, line := range strings.FieldsFunc(text, split) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		rows = append(rows, parts)
	}
	return rows
}

// buildTyped строит таблицу из строк ввода и приводит колонки к объявленным типам.
// Колонку, которую не удалось привести целиком, оставляем текстовой и
// сообщаем об этом; datetime приводится нестрого (ошибки дают NULL).
func buildTyped(env *Env, name string, columns []string, types map[string]string, rows [][]string) *table.Table {
	out := table.New(name)
	for _, c := range columns {
		out.Columns = append(out.Columns, table.Column{Name: c, Type: schema.TypeText})
	}
	for _, r := range rows {
		row := make([]schema.Value, len(r))
		for i, v := range r {
			row[i] = schema.Text(v)
		}
		out.Rows = append(out.Rows, row)
	}

	strict := schema.NewConverter()
	lenient := schema.NewLenientConverter()
	for _, c := range columns {
		declared, ok := types[c]
		if !ok || declared == "" {
			continue
		}
		dt, err := schema.ParseType(declared)
		if err != nil {
			env.Notef("column %s: %v, kept as text", c, err)
			continue
		}
		if dt == schema.TypeText {
			continue
		}

		if dt == schema.TypeTimestamp {
			if failed, _ := out.RetypeColumn(c, dt, lenient); failed > 0 {
				env.Notef("column %s: %d value(s) are not valid dates and were set to null", c, failed)
			}
			continue
		}

		trial := out.Clone()
		if _, err := trial.RetypeColumn(c, dt, strict); err != nil {
			env.Notef("could not convert column %s to %s: %v", c, declared, err)
			continue
		}
		out = trial
	}
	return out
}

// emptyAsNull - пустое значение и null печатаются как NULL
func emptyAsNull(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none")
}
