package sqlcheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sheet2sql/internal/sqlwriter"
	"github.com/ginjaninja78/sheet2sql/internal/types"
)

func peopleSpec() types.TableSpec {
	return types.TableSpec{
		Table: "people",
		Columns: []types.Column{
			{Name: "name", Field: "name", Kind: types.KindText},
			{Name: "年齢", Field: "年齢", Kind: types.KindNumeric, NullOnEmpty: true},
		},
	}
}

func batchFor(t *testing.T, spec types.TableSpec, escape bool, records ...types.Record) sqlwriter.Batch {
	t.Helper()
	batch, err := sqlwriter.NewSerializer(sqlwriter.Options{EscapeQuotes: escape}).NewBatch(spec, records)
	require.NoError(t, err)
	return batch
}

func TestVerifyAcceptsGeneratedStatements(t *testing.T) {
	ctx := context.Background()
	spec := peopleSpec()

	v, err := Open(ctx)
	require.NoError(t, err)
	defer v.Close()

	batch := batchFor(t, spec, false,
		types.Record{"name": "Sato", "年齢": 41},
		types.Record{"name": "Suzuki", "年齢": ""},
	)
	require.NoError(t, v.VerifyBatch(ctx, spec, batch))

	n, err := v.count(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second batch for the same table is checked against its own rows.
	require.NoError(t, v.VerifyBatch(ctx, spec, batchFor(t, spec, false, types.Record{"name": "Tanaka", "年齢": 29})))
}

func TestVerifyRejectsUnescapedQuote(t *testing.T) {
	spec := peopleSpec()
	batch := batchFor(t, spec, false,
		types.Record{"name": "Sato", "年齢": 41},
		types.Record{"name": "O'Brien", "年齢": 30},
	)

	err := Verify(context.Background(), []Table{{Spec: spec, Batch: batch}})
	require.Error(t, err)

	var stmtErr *StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, "people", stmtErr.Table)
	assert.Equal(t, 1, stmtErr.Index)
}

func TestVerifyAcceptsEscapedQuote(t *testing.T) {
	spec := peopleSpec()
	batch := batchFor(t, spec, true, types.Record{"name": "O'Brien", "年齢": 30})

	assert.NoError(t, Verify(context.Background(), []Table{{Spec: spec, Batch: batch}}))
}

func TestVerifyCompactLayout(t *testing.T) {
	spec := peopleSpec()
	batch, err := sqlwriter.NewSerializer(sqlwriter.Options{Layout: sqlwriter.LayoutCompact}).
		NewBatch(spec, []types.Record{{"name": "Sato", "年齢": "41.5"}})
	require.NoError(t, err)

	assert.NoError(t, Verify(context.Background(), []Table{{Spec: spec, Batch: batch}}))
}

func TestCreateTableStatement(t *testing.T) {
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS people ("name" TEXT, "年齢" NUMERIC)`, CreateTableStatement(peopleSpec()))
}

func TestVerifyRejectsStatementWithoutRow(t *testing.T) {
	ctx := context.Background()
	spec := peopleSpec()

	v, err := Open(ctx)
	require.NoError(t, err)
	defer v.Close()

	batch := sqlwriter.Batch{Label: "people", Statements: []string{"SELECT 1;\n"}}
	err = v.VerifyBatch(ctx, spec, batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 statement(s) inserted 0 row(s)")
}
