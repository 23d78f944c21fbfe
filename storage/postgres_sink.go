package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"dataplatform/models"
	"dataplatform/utils"
)

const (
	maxBatchRows = 500
	// PostgreSQL caps a statement at 65535 bind parameters.
	maxBindParams = 65535
	// Raised when two creators race past IF NOT EXISTS: duplicate_schema, or
	// unique_violation on pg_namespace_nspname_index.
	pqDuplicateSchema = "42P06"
	pqUniqueViolation = "23505"
)

// PostgresSink is the warehouse: a dataset is a schema and rows are appended
// with schema-on-write table creation.
type PostgresSink struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresSink opens a connection pool. The warehouse being unreachable at
// startup is only logged, so the item endpoints keep working without it.
func NewPostgresSink(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Warn("[warehouse] ping failed, ingestion will fail until it is reachable: %v", err)
	}
	return &PostgresSink{db: db, logger: logger}, nil
}

// DatasetExists reports ErrDatasetNotFound only when the schema is absent.
// pg_namespace lists every schema; information_schema hides the ones the
// role holds no privilege on.
func (ps *PostgresSink) DatasetExists(ctx context.Context, dataset string) error {
	var one int
	err := ps.db.QueryRowContext(ctx,
		`SELECT 1 FROM pg_catalog.pg_namespace WHERE nspname = $1`, dataset).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDatasetNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: lookup dataset %s: %w", dataset, err)
	}
	return nil
}

// CreateDataset creates the schema; an existing schema is not an error.
func (ps *PostgresSink) CreateDataset(ctx context.Context, dataset string) error {
	_, err := ps.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(dataset))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == pqDuplicateSchema || pqErr.Code == pqUniqueViolation) {
		ps.logger.Debug("[warehouse] dataset %s created concurrently", dataset)
		return nil
	}
	if err != nil {
		return fmt.Errorf("postgres: create dataset %s: %w", dataset, err)
	}
	return nil
}

// Load appends the frame inside a single transaction: either every row lands
// or none does.
func (ps *PostgresSink) Load(ctx context.Context, ref models.TableRef, frame *models.Frame) (int64, error) {
	if frame.Empty() {
		return 0, nil
	}

	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements(ref, frame) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("postgres: prepare table %s: %w", ref, err)
		}
	}

	size := batchSize(len(frame.Columns))
	var loaded int64
	for i := 0; i < len(frame.Rows); i += size {
		end := i + size
		if end > len(frame.Rows) {
			end = len(frame.Rows)
		}
		query, args, err := insertStatement(ref, frame.Columns, frame.Rows[i:end])
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert into %s: %w", ref, err)
		}
		n, _ := res.RowsAffected()
		loaded += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	ps.logger.Debug("[warehouse] loaded %d rows into %s", loaded, ref)
	return loaded, nil
}

// Query runs sql inside a read-only transaction.
func (ps *PostgresSink) Query(ctx context.Context, query string) (*models.QueryResult, error) {
	tx, err := ps.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin read-only tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("postgres: columns: %w", err)
	}

	result := &models.QueryResult{Columns: cols}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		for i, c := range cells {
			if b, ok := c.([]byte); ok {
				cells[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	return result, nil
}

func (ps *PostgresSink) Close() error {
	return ps.db.Close()
}

func qualifiedName(ref models.TableRef) string {
	return pq.QuoteIdentifier(ref.Dataset) + "." + pq.QuoteIdentifier(ref.Table)
}

func sqlType(kind models.ColumnKind) string {
	switch kind {
	case models.KindInteger:
		return "BIGINT"
	case models.KindFloat:
		return "DOUBLE PRECISION"
	case models.KindBool:
		return "BOOLEAN"
	case models.KindJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// schemaStatements creates the table on first load and adds any columns the
// frame brings that the table does not have yet.
func schemaStatements(ref models.TableRef, frame *models.Frame) []string {
	table := qualifiedName(ref)
	defs := make([]string, len(frame.Columns))
	for i, c := range frame.Columns {
		defs[i] = pq.QuoteIdentifier(c.Name) + " " + sqlType(c.Kind)
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", ")),
	}
	for _, def := range defs {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", table, def))
	}
	return stmts
}

func batchSize(columns int) int {
	if columns <= 0 {
		return maxBatchRows
	}
	size := maxBindParams / columns
	if size > maxBatchRows {
		size = maxBatchRows
	}
	if size < 1 {
		size = 1
	}
	return size
}

func insertStatement(ref models.TableRef, cols []models.Column, rows [][]any) (string, []any, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pq.QuoteIdentifier(c.Name)
	}

	valueStrings := make([]string, 0, len(rows))
	valueArgs := make([]any, 0, len(rows)*len(cols))
	placeholders := make([]string, len(cols))

	for r, row := range rows {
		base := r * len(cols)
		for i, c := range cols {
			placeholders[i] = fmt.Sprintf("$%d", base+i+1)
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			v, err := cellValue(c.Kind, cell)
			if err != nil {
				return "", nil, fmt.Errorf("postgres: column %s row %d: %w", c.Name, r, err)
			}
			valueArgs = append(valueArgs, v)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		qualifiedName(ref), strings.Join(names, ", "), strings.Join(valueStrings, ","))
	return query, valueArgs, nil
}

// cellValue converts a decoded JSON value into a driver value for the
// column kind. nil stays nil (NULL).
func cellValue(kind models.ColumnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case models.KindInteger:
		switch n := v.(type) {
		case json.Number:
			return n.Int64()
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case models.KindFloat:
		switch n := v.(type) {
		case json.Number:
			return n.Float64()
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case models.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case models.KindJSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}

	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case map[string]any, []any:
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
	return fmt.Sprint(v), nil
}
