// =============================================================================
// sheet2sql - SQL Verification
// =============================================================================
//
// This package executes generated statements against an in-memory SQLite
// database to catch syntax errors (for example unescaped quotes) before a
// migration file is handed over.
//
// VERIFICATION:
//   1. Each table is created from its TableSpec with TEXT and NUMERIC columns
//   2. Every statement of the table's batch is executed in order
//   3. The table must have gained exactly one row per statement
//
// The check covers statement syntax and column names, not the destination
// database's own types or constraints.
//
// =============================================================================

package sqlcheck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/sheet2sql/internal/sqlwriter"
	"github.com/ginjaninja78/sheet2sql/internal/types"
)

// StatementError reports a statement SQLite rejected.
type StatementError struct {
	Table string
	// Index is the zero-based statement index within the table's batch.
	Index int
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("table %s: statement %d: %v", e.Table, e.Index, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Table pairs a spec with the batch rendered from it.
type Table struct {
	Spec  types.TableSpec
	Batch sqlwriter.Batch
}

// Verifier owns a private in-memory database.
type Verifier struct {
	conn *sql.DB
}

// Open creates an empty in-memory database.
func Open(ctx context.Context) (*Verifier, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Verifier{conn: conn}, nil
}

// Close closes the database.
func (v *Verifier) Close() error {
	return v.conn.Close()
}

// CreateTable creates the spec's table if it does not exist yet.
func (v *Verifier) CreateTable(ctx context.Context, spec types.TableSpec) error {
	if _, err := v.conn.ExecContext(ctx, CreateTableStatement(spec)); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Table, err)
	}
	return nil
}

// VerifyBatch creates the table and executes every statement of the batch.
// It stops at the first rejected statement.
func (v *Verifier) VerifyBatch(ctx context.Context, spec types.TableSpec, batch sqlwriter.Batch) error {
	if err := v.CreateTable(ctx, spec); err != nil {
		return err
	}

	before, err := v.count(ctx, spec.Table)
	if err != nil {
		return err
	}

	for i, statement := range batch.Statements {
		if _, err := v.conn.ExecContext(ctx, statement); err != nil {
			return &StatementError{Table: spec.Table, Index: i, Err: err}
		}
	}

	after, err := v.count(ctx, spec.Table)
	if err != nil {
		return err
	}
	if inserted := after - before; inserted != len(batch.Statements) {
		return fmt.Errorf("table %s: %d statement(s) inserted %d row(s)", spec.Table, len(batch.Statements), inserted)
	}

	return nil
}

// count returns the number of rows in a table. The table is named exactly
// as the INSERT statements and CreateTableStatement name it.
func (v *Verifier) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := v.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Verify checks every table in a fresh database. All failing tables are
// reported.
func Verify(ctx context.Context, tables []Table) error {
	v, err := Open(ctx)
	if err != nil {
		return err
	}
	defer v.Close()

	var errs []error
	for _, table := range tables {
		if err := v.VerifyBatch(ctx, table.Spec, table.Batch); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CreateTableStatement renders the CREATE TABLE used for verification.
func CreateTableStatement(spec types.TableSpec) string {
	columns := make([]string, len(spec.Columns))
	for i, column := range spec.Columns {
		affinity := "TEXT"
		if column.Kind == types.KindNumeric {
			affinity = "NUMERIC"
		}
		columns[i] = sqlwriter.QuoteIdentifier(column.Name) + " " + affinity
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", spec.Table, strings.Join(columns, ", "))
}
