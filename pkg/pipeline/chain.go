package pipeline

import (
	"fmt"
	"strings"
)

// Chain объединяет SQL шагов в один запрос: каждый шаг становится
// CTE step_i, запрос заканчивается SELECT * FROM step_N.
// Единственный запрос возвращается как есть.
func Chain(sqls []string) string {
	switch len(sqls) {
	case 0:
		return ""
	case 1:
		return sqls[0]
	}

	blocks := make([]string, len(sqls))
	for i, sql := range sqls {
		body := strings.TrimSuffix(strings.TrimSpace(sql), ";")
		blocks[i] = fmt.Sprintf("%s AS (\n  %s\n)", StepName(i+1), body)
	}
	return "WITH " + strings.Join(blocks, ",\n") + fmt.Sprintf("\nSELECT * FROM %s;", StepName(len(sqls)))
}

// SQL возвращает SQL всех шагов по порядку
func (p *Pipeline) SQL() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = RenderSQL(e.Step)
	}
	return out
}

// ChainSQL возвращает SQL всего конвейера одним запросом
func (p *Pipeline) ChainSQL() string {
	return Chain(p.SQL())
}
