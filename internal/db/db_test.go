package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "test_table", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"lowcarbon", "batch_diagnostics"}, []string{"a", "b"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "lowcarbon.batch_diagnostics", []string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"test_table"}, []string{"a"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "test_table", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO test_table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_Validation(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "lowcarbon.t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "lowcarbon.t", ConflictKeys: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "lowcarbon.t", Columns: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_tmp_upsert_lowcarbon_province_energy" (LIKE "lowcarbon"."province_energy" INCLUDING DEFAULTS) ON COMMIT DROP`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lowcarbon_province_energy"}, []string{"province", "year", "clean_ratio"}).
		WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("province", "year") DO UPDATE SET "clean_ratio" = EXCLUDED."clean_ratio"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "lowcarbon.province_energy",
		Columns:      []string{"province", "year", "clean_ratio"},
		ConflictKeys: []string{"province", "year"},
	}, [][]any{{"北京", 2022, 0.42}, {"上海", 2022, 0.3}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_AllKeyColumnsDoNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lowcarbon_policy_timeline"}, []string{"province", "year"}).WillReturnResult(1)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("province", "year") DO NOTHING`)).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "lowcarbon.policy_timeline",
		Columns:      []string{"province", "year"},
		ConflictKeys: []string{"province", "year"},
	}, [][]any{{"北京", 2013}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lowcarbon_t"}, []string{"id", "v"}).WillReturnError(fmt.Errorf("boom"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table: "lowcarbon.t", Columns: []string{"id", "v"}, ConflictKeys: []string{"id"},
	}, [][]any{{1, 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for lowcarbon.t")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"lowcarbon.province_emission", `"lowcarbon"."province_emission"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL("lowcarbon", tables.Emission)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "lowcarbon"."province_emission" (
	"province" TEXT NOT NULL,
	"year" INTEGER NOT NULL,
	"emission_total" DOUBLE PRECISION,
	"emission_per_gdp" DOUBLE PRECISION,
	"per_capita_t" DOUBLE PRECISION,
	"is_imputed" BOOLEAN,
	PRIMARY KEY ("province", "year")
)`, got)

	assert.Contains(t, CreateTableSQL("lowcarbon", tables.Delta), `"Δenergy" DOUBLE PRECISION`)
}

func expectMigrate(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "lowcarbon"`)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, s := range tables.All {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "lowcarbon"."` + s.Stem() + `"`)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "lowcarbon"."batch_diagnostics"`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrate(mock)
	require.NoError(t, Migrate(context.Background(), mock, "lowcarbon"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE SCHEMA").WillReturnError(fmt.Errorf("permission denied"))
	err = Migrate(context.Background(), mock, "lowcarbon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: migrate CREATE SCHEMA")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, tables.Energy.Path(dir),
		"\ufeffprovince,year,clean_ratio,fossil_ratio,total_energy_consumption\n"+
			"北京,2022,0.42,0.58,70\n"+
			",2022,0.1,0.9,1\n"+
			"上海,2022,,,\n")
	writeFile(t, filepath.Join(dir, "meta", "diagnostics.json"),
		`[{"stage":"extrapolate","province":"西藏","outcome":"skipped","reason":"insufficient history"}]`)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrate(mock)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_lowcarbon_province_energy"}, tables.Energy.ColumnNames()).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectCopyFrom(pgx.Identifier{"lowcarbon", "batch_diagnostics"},
		[]string{"run_id", "stage", "province", "year", "scenario", "outcome", "reason"}).WillReturnResult(1)

	ex := &Exporter{Pool: mock, Schema: "lowcarbon", OutDir: dir}
	res, err := ex.Export(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.ExportID)
	assert.Equal(t, map[string]int64{"energy": 2}, res.Rows)
	assert.Len(t, res.Missing, len(tables.All)-1)
	assert.Equal(t, int64(1), res.Diagnostics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTypedRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, tables.Emission.Path(dir),
		"province,year,emission_total,emission_per_gdp,per_capita_t,is_imputed\n"+
			"北京,2022,78.5,,,1\n"+
			"北京,bad,1,1,1,0\n")
	f, err := tables.Load(context.Background(), dir, tables.Emission)
	require.NoError(t, err)

	rows, skipped := typedRows(f)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"北京", 2022, 78.5, nil, nil, true}, rows[0])
}
