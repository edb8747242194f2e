package ingest

import (
	"sort"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// ColumnReport - сравнение колонок нескольких наборов данных
type ColumnReport struct {
	Datasets []string            `json:"datasets"`
	Shared   []string            `json:"shared"`  // есть во всех наборах
	Unique   map[string][]string `json:"unique"`  // набор → колонки, которых нет в других
	UsedIn   map[string][]string `json:"used_in"` // колонка → наборы, где она есть
}

// CompareColumns сравнивает колонки таблиц
func CompareColumns(tables []*table.Table) ColumnReport {
	report := ColumnReport{
		Unique: make(map[string][]string),
		UsedIn: make(map[string][]string),
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		report.Datasets = append(report.Datasets, t.Name)
		seen := make(map[string]bool)
		for _, c := range t.Columns {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			report.UsedIn[c.Name] = append(report.UsedIn[c.Name], t.Name)
		}
	}

	for col, owners := range report.UsedIn {
		switch {
		case len(report.Datasets) > 1 && len(owners) == len(report.Datasets):
			report.Shared = append(report.Shared, col)
		case len(owners) == 1:
			report.Unique[owners[0]] = append(report.Unique[owners[0]], col)
		}
	}
	sort.Strings(report.Shared)
	for ds := range report.Unique {
		sort.Strings(report.Unique[ds])
	}
	return report
}
