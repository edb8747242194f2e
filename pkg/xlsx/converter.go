package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Максимальная длина имени листа Excel
const maxSheetName = 31

// Sheet - содержимое листа: заголовки и строки в строковом виде.
// Types заполнен, если заголовки имеют вид "name (TYPE)".
type Sheet struct {
	Name   string
	Header []string
	Types  []schema.DataType
	Rows   [][]string
}

// ToXLSX - write a table to an XLSX file
//
// Creates an Excel file with formatted headers and typed cells.
// Headers show column names with types (e.g., "amount (INTEGER)").
//
// Example:
//
//	err := xlsx.ToXLSX(orders, "orders.xlsx", "Orders")
func ToXLSX(t *table.Table, filePath string, sheetName string) error {
	if sheetName == "" {
		sheetName = t.Name
	}
	return WriteTables(filePath, []*table.Table{t}, []string{sheetName})
}

// WriteTables - write several tables to one workbook, one sheet per table
//
// names[i] is the sheet name of tables[i]; empty or missing names fall back
// to the table name.
func WriteTables(filePath string, tables []*table.Table, names []string) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	for i, t := range tables {
		name := t.Name
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		name = uniqueSheetName(sheetName(name), used)
		if err := AddSheet(f, name, t); err != nil {
			return err
		}
	}

	// Лист по умолчанию удаляем, если его не заняли
	if !used["Sheet1"] {
		f.DeleteSheet("Sheet1")
	}
	f.SetActiveSheet(0)

	return f.SaveAs(filePath)
}

// AddSheet - write a table into a new sheet of an open workbook
func AddSheet(f *excelize.File, sheet string, t *table.Table) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for col, c := range t.Columns {
		cell := columnName(col+1) + "1"
		f.SetCellValue(sheet, cell, fmt.Sprintf("%s (%s)", c.Name, c.Type))
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, row := range t.Rows {
		for col, c := range t.Columns {
			cell := columnName(col+1) + strconv.Itoa(rowIdx+2)
			f.SetCellValue(sheet, cell, valueToExcel(row[col]))
			applyCellFormat(f, sheet, cell, c.Type)
		}
	}

	for col := range t.Columns {
		colName := columnName(col + 1)
		f.SetColWidth(sheet, colName, colName, 15)
	}
	return nil
}

// Read - read one sheet of an XLSX workbook
//
// An empty sheet name selects the first sheet. The first row is the header;
// short rows are padded with empty strings.
func Read(r io.Reader, sheetName string) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	// числа читаются без форматирования ячейки
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheetName)
	}

	sheet := &Sheet{Name: sheetName}
	annotated := true
	for _, h := range rows[0] {
		name, dt, ok := parseHeader(h)
		sheet.Header = append(sheet.Header, name)
		sheet.Types = append(sheet.Types, dt)
		annotated = annotated && ok
	}
	if !annotated {
		sheet.Types = nil
	}

	for _, raw := range rows[1:] {
		row := make([]string, len(sheet.Header))
		copy(row, raw)
		if isBlank(row) {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// parseHeader - parse header string "name (TYPE)"; ok=false if there is no known type
func parseHeader(header string) (name string, fieldType schema.DataType, ok bool) {
	name = strings.TrimSpace(header)
	fieldType = schema.TypeText

	if idx := strings.LastIndex(header, "("); idx > 0 {
		if endIdx := strings.LastIndex(header, ")"); endIdx > idx {
			dt, err := schema.ParseType(strings.TrimSpace(header[idx+1 : endIdx]))
			if err == nil {
				return strings.TrimSpace(header[:idx]), dt, true
			}
		}
	}
	return name, fieldType, false
}

// valueToExcel extracts a Go native value for excelize; NULL is an empty cell.
// Timestamps are written as text in schema.TimeLayout so they read back unchanged.
func valueToExcel(v schema.Value) any {
	switch v.Kind() {
	case schema.KindNull:
		return ""
	case schema.KindInt:
		return v.IntValue()
	case schema.KindFloat:
		return v.FloatValue()
	case schema.KindBool:
		if v.BoolValue() {
			return "TRUE"
		}
		return "FALSE"
	default:
		return v.String()
	}
}

// applyCellFormat - apply Excel format based on type
func applyCellFormat(f *excelize.File, sheet, cell string, fieldType schema.DataType) {
	switch schema.NormalizeType(fieldType) {
	case schema.TypeInteger:
		f.SetCellStyle(sheet, cell, cell, 1)
	case schema.TypeReal:
		f.SetCellStyle(sheet, cell, cell, 2)
	case schema.TypeTimestamp:
		f.SetCellStyle(sheet, cell, cell, 22)
	default:
		f.SetCellStyle(sheet, cell, cell, 49)
	}
}

// sheetName - valid Excel sheet name: no []:*?/\ and at most 31 characters
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[candidate]; i++ {
		suffix := "_" + strconv.Itoa(i)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[candidate] = true
	return candidate
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// columnName - convert column index to Excel column name (1 → A, 27 → AA)
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
