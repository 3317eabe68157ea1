package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset() core.Dataset {
	return core.Dataset{
		Name: `we"ird`,
		Columns: []core.ColumnSpec{
			{Name: "id", Type: core.TypeBigInt},
			{Name: "name", Type: core.TypeText},
		},
		Rows: [][]any{
			{int64(1), "Ada"},
			{int64(2), nil},
		},
	}
}

func TestStatementBuilders(t *testing.T) {
	ds := testDataset()

	assert.Equal(t, `DROP TABLE IF EXISTS "we""ird"`, DropTableSQL(ds.Name))
	assert.Equal(t, `CREATE TABLE "we""ird" ("id" BIGINT, "name" TEXT)`, CreateTableSQL(ds))
	assert.Equal(t, `INSERT INTO "we""ird" ("id", "name") VALUES (?, ?)`, InsertSQL(ds))
}

func TestInsertRows(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		errMsg    string
	}{
		{
			name: "all rows inserted in one transaction",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "we""ird"`))
				prep.ExpectExec().WithArgs(int64(1), "Ada").WillReturnResult(sqlmock.NewResult(0, 1))
				prep.ExpectExec().WithArgs(int64(2), nil).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "failed row rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "we""ird"`))
				prep.ExpectExec().WithArgs(int64(1), "Ada").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			errMsg: "failed to insert row 0",
		},
		{
			name: "begin failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(assert.AnError)
			},
			errMsg: "failed to begin load transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			conn, err := db.Conn(ctx)
			require.NoError(t, err)
			defer func() { _ = conn.Close() }()

			tt.setupMock(mock)

			err = InsertRows(ctx, conn, testDataset())
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInsertRows_NoConnection(t *testing.T) {
	err := InsertRows(context.Background(), nil, testDataset())
	assert.EqualError(t, err, "database connection not established")
}
