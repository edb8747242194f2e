package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // MS SQL Server driver
	_ "github.com/go-sql-driver/mysql"   // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib"   // PostgreSQL driver
	_ "modernc.org/sqlite"               // SQLite driver

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
)

// Source - таблица из базы данных
type Source struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // postgres, mysql, mssql, sqlite
	DSN     string `yaml:"dsn"`
	Query   string `yaml:"query"`
	Timeout int    `yaml:"timeout,omitempty"` // секунды
	Unsafe  bool   `yaml:"unsafe,omitempty"`  // разрешить запросы кроме SELECT/WITH
}

// Драйверы database/sql по типу источника
var drivers = map[string]string{
	"postgres": "pgx",
	"mysql":    "mysql",
	"mssql":    "sqlserver",
	"sqlite":   "sqlite",
}

// SupportedSource проверяет тип источника
func SupportedSource(kind string) bool {
	_, ok := drivers[strings.ToLower(kind)]
	return ok
}

// LoadDatabase выполняет запрос источника и возвращает результат как таблицу src.Name
func (l *Loader) LoadDatabase(ctx context.Context, src Source) (*table.Table, error) {
	t, err := l.loadDatabase(ctx, src)
	if err != nil {
		return nil, &LoadError{File: src.Name, Err: err}
	}
	l.logger.Info().Str("source", src.Name).Str("type", src.Type).Int("rows", t.Len()).Msg("source loaded")
	return t, nil
}

func (l *Loader) loadDatabase(ctx context.Context, src Source) (*table.Table, error) {
	driver, ok := drivers[strings.ToLower(src.Type)]
	if !ok {
		return nil, fmt.Errorf("unsupported source type: %s", src.Type)
	}
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(src.Timeout)*time.Second)
		defer cancel()
	}

	db, err := sql.Open(driver, src.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	rows, err := db.QueryContext(ctx, src.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return ScanRows(src.Name, rows)
}

// ScanRows читает результат запроса в таблицу.
// Тип колонки берется из драйвера, а для неизвестных типов определяется по данным.
func ScanRows(name string, rows *sql.Rows) (*table.Table, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	header := make([]string, len(colTypes))
	types := make([]schema.DataType, len(colTypes))
	known := true
	for i, ct := range colTypes {
		header[i] = ct.Name()
		types[i] = databaseType(ct.DatabaseTypeName())
		known = known && types[i] != ""
	}

	var raw [][]any
	for rows.Next() {
		values := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		raw = append(raw, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if known {
		t := table.New(name)
		for i := range header {
			t.Columns = append(t.Columns, table.Column{Name: header[i], Type: types[i]})
		}
		conv := schema.NewLenientConverter()
		for _, values := range raw {
			row := make([]schema.Value, len(values))
			for i, v := range values {
				row[i] = scanValue(conv, v, types[i])
			}
			t.Rows = append(t.Rows, row)
		}
		return t, nil
	}

	// SQLite и часть драйверов не сообщают тип: строим таблицу по строкам
	cells := make([][]string, len(raw))
	for r, values := range raw {
		cells[r] = make([]string, len(values))
		for i, v := range values {
			cells[r][i] = cellString(v)
		}
	}
	inferred := InferTypes(len(header), cells)
	for i := range types {
		if types[i] == "" {
			types[i] = inferred[i]
		}
	}
	return BuildTable(name, header, cells, types)
}

// databaseType сопоставляет тип колонки СУБД с типом таблицы; "" - неизвестно
func databaseType(dbType string) schema.DataType {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "INT") || t == "SERIAL" || t == "BIGSERIAL":
		return schema.TypeInteger
	case strings.Contains(t, "FLOAT") || strings.Contains(t, "DOUBLE") || strings.Contains(t, "REAL") ||
		strings.Contains(t, "NUMERIC") || strings.Contains(t, "DECIMAL") || strings.Contains(t, "MONEY"):
		return schema.TypeReal
	case strings.Contains(t, "BOOL") || t == "BIT":
		return schema.TypeBoolean
	case strings.Contains(t, "DATE") || strings.Contains(t, "TIME"):
		return schema.TypeTimestamp
	default:
		return schema.TypeText
	}
}

func scanValue(conv *schema.Converter, v any, t schema.DataType) schema.Value {
	if v == nil {
		return schema.Null()
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	val := schema.FromAny(v)
	if val.IsNull() || val.Type() == t {
		return val
	}
	out, err := conv.Cast(val, t)
	if err != nil {
		return schema.Null()
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(schema.TimeLayout)
	default:
		return schema.FromAny(x).String()
	}
}
