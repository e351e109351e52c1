package mysql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/errs"
	"benritz/sheetsql/internal/schema"
)

func newMock(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCatalog(db, "shop"), mock
}

func TestFetchTables(t *testing.T) {
	catalog, mock := newMock(t)
	mock.ExpectQuery(`FROM information_schema\.tables`).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("users"))

	tables, err := catalog.FetchTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchColumns(t *testing.T) {
	catalog, mock := newMock(t)
	mock.ExpectQuery(`FROM information_schema\.columns`).
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows([]string{
			"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_KEY", "COLUMN_DEFAULT", "COLUMN_COMMENT",
		}).
			AddRow("id", "int unsigned", "NO", "PRI", nil, "").
			AddRow("name", "varchar(255)", "NO", "", nil, "display name").
			AddRow("active", "tinyint(1)", "YES", "", "1", "").
			AddRow("nickname", "varchar(64)", "YES", "MUL", "", ""))

	columns, err := catalog.FetchColumns(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, columns, 4)

	assert.Equal(t, []string{"id", "name", "active", "nickname"}, schema.Table{Columns: columns}.ColumnNames())
	assert.True(t, columns[0].IsPrimaryKey)
	assert.False(t, columns[0].Nullable)
	assert.Nil(t, columns[0].DefaultValue)
	assert.Nil(t, columns[0].Comment)

	assert.Equal(t, "varchar(255)", columns[1].RawType)
	assert.Equal(t, "display name", schema.StringVal(columns[1].Comment))

	assert.True(t, columns[2].Nullable)
	assert.Equal(t, "1", schema.StringVal(columns[2].DefaultValue))
	assert.Equal(t, dialect.Boolean, dialect.Classify(columns[2].RawType, dialect.Generic))

	// an empty-string default is still a default
	require.NotNil(t, columns[3].DefaultValue)
	assert.Equal(t, "", *columns[3].DefaultValue)
	assert.False(t, columns[3].IsPrimaryKey)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchForeignKeys(t *testing.T) {
	catalog, mock := newMock(t)
	mock.ExpectQuery(`FROM information_schema\.key_column_usage`).
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}).
			AddRow("user_id", "users", "id").
			AddRow("user_id", "accounts", "user_id"))

	fks, err := catalog.FetchForeignKeys(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, fks, 2)

	lookup := schema.ResolveForeignKeys(fks)
	assert.Equal(t, "accounts", lookup["user_id"].ReferencedTable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchForeignKeysEmpty(t *testing.T) {
	catalog, mock := newMock(t)
	mock.ExpectQuery(`FROM information_schema\.key_column_usage`).
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}))

	fks, err := catalog.FetchForeignKeys(context.Background(), "users")
	require.NoError(t, err)
	assert.Empty(t, fks)
}

func TestDriverConfig(t *testing.T) {
	cfg := driverConfig(dialect.ConnectionParams{Host: "db", Username: "root", Password: "secret", Database: "shop"})
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.True(t, strings.HasPrefix(cfg.FormatDSN(), "root:secret@tcp(db:3306)/shop"))
}

func TestOpenUnreachable(t *testing.T) {
	_, err := Open(context.Background(), dialect.ConnectionParams{Dialect: "mysql", Host: "127.0.0.1", Port: 1, Database: "shop"})
	require.Error(t, err)
	assert.True(t, errs.IsConnectivity(err))
}

func TestOpenPastDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := Open(ctx, dialect.ConnectionParams{Dialect: "mysql", Host: "127.0.0.1", Port: 1, Database: "shop"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errs.IsConnectivity(err))
}
