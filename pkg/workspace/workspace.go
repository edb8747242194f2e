// Package workspace выполняет SQL шагов в SQLite :memory: и сравнивает
// результат с результатом исполнителя шагов.
package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/expr"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
	"github.com/ruslano69/tdtp-stepflow/pkg/core/table"
	"github.com/ruslano69/tdtp-stepflow/pkg/ingest"
)

// Workspace представляет SQLite :memory: рабочую среду
type Workspace struct {
	db     *sql.DB
	tables map[string]bool // Список созданных таблиц
	logger zerolog.Logger
}

// New создает новый :memory: workspace
func New(ctx context.Context) (*Workspace, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	// :memory: база живет в одном соединении
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	return &Workspace{
		db:     db,
		tables: make(map[string]bool),
		logger: zerolog.Nop(),
	}, nil
}

// WithLogger задает логгер
func (w *Workspace) WithLogger(logger zerolog.Logger) *Workspace {
	w.logger = logger
	return w
}

// Close закрывает workspace
func (w *Workspace) Close() error {
	return w.db.Close()
}

// HasTable проверяет, создана ли таблица
func (w *Workspace) HasTable(name string) bool {
	return w.tables[name]
}

// CreateTable создает (пересоздает) таблицу по колонкам t
func (w *Workspace) CreateTable(ctx context.Context, t *table.Table) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: at least one column is required", t.Name)
	}

	drop := "DROP TABLE IF EXISTS " + expr.Ident(t.Name)
	if _, err := w.db.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", t.Name, err)
	}
	if _, err := w.db.ExecContext(ctx, createTableDDL(t)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.Name, err)
	}
	w.tables[t.Name] = true
	return nil
}

// LoadTable создает таблицу и загружает в нее строки t
func (w *Workspace) LoadTable(ctx context.Context, t *table.Table) error {
	if err := w.CreateTable(ctx, t); err != nil {
		return err
	}
	if t.Len() == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", expr.Ident(t.Name), placeholders)

	// Транзакция для производительности
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for i, row := range t.Rows {
		for j := range args {
			args[j] = sqliteValue(row[j])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	w.logger.Debug().Str("table", t.Name).Int("rows", t.Len()).Msg("table loaded into workspace")
	return nil
}

// Query выполняет SELECT и возвращает результат как таблицу name
func (w *Workspace) Query(ctx context.Context, query, name string) (*table.Table, error) {
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute SQL: %w", err)
	}
	defer rows.Close()
	return ingest.ScanRows(name, rows)
}

// Exec выполняет изменяющие инструкции (INSERT, UPDATE, DELETE, DDL)
func (w *Workspace) Exec(ctx context.Context, statements string) error {
	if _, err := w.db.ExecContext(ctx, statements); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// createTableDDL генерирует DDL для создания таблицы
func createTableDDL(t *table.Table) string {
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = expr.Ident(c.Name) + " " + sqliteType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", expr.Ident(t.Name), strings.Join(columns, ", "))
}

// sqliteType конвертирует тип колонки в тип SQLite
func sqliteType(t schema.DataType) string {
	switch schema.NormalizeType(t) {
	case schema.TypeInteger:
		return "INTEGER"
	case schema.TypeReal:
		return "REAL"
	case schema.TypeBoolean:
		return "BOOLEAN" // SQLite хранит boolean как 0/1
	case schema.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// sqliteValue конвертирует значение ячейки в аргумент драйвера
func sqliteValue(v schema.Value) any {
	switch v.Kind() {
	case schema.KindBool:
		if v.BoolValue() {
			return 1
		}
		return 0
	case schema.KindTime:
		return v.String()
	default:
		return v.Any()
	}
}
