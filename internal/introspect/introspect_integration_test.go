//go:build integration

package introspect

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/schema"
	"benritz/sheetsql/internal/sqlgen"
)

const ddl = `
CREATE TABLE users (
    id      integer PRIMARY KEY,
    name    varchar(64) NOT NULL,
    active  boolean DEFAULT true
);
COMMENT ON COLUMN users.name IS 'display name';
CREATE TABLE customers (
    id  integer PRIMARY KEY
);
CREATE TABLE orders (
    id           bigint PRIMARY KEY,
    user_id      integer,
    customer_id  integer,
    total        numeric(10, 2),
    CONSTRAINT fk_owner FOREIGN KEY (user_id) REFERENCES users (id)
);
CREATE TABLE invoices (
    id           integer PRIMARY KEY,
    customer_id  integer,
    user_id      integer,
    CONSTRAINT fk_owner FOREIGN KEY (customer_id) REFERENCES customers (id)
);
`

func TestIntrospectPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("app"),
		postgres.WithPassword("secret"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, ddl)
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	tables, err := New(WithConcurrency(2), WithTimeout(time.Minute)).Introspect(ctx, dialect.ConnectionParams{
		Dialect:  "postgres",
		Host:     host,
		Port:     port.Int(),
		Username: "app",
		Password: "secret",
		Database: "shop",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"customers", "invoices", "orders", "users"}, schema.Names(tables))

	invoices, orders, users := tables[1], tables[2], tables[3]
	assert.Equal(t, []string{"id", "user_id", "customer_id", "total"}, orders.ColumnNames())
	fk, ok := orders.Column("user_id")
	require.True(t, ok)
	assert.True(t, fk.IsForeignKey)
	assert.Equal(t, "users", schema.StringVal(fk.ReferencedTable))
	assert.Equal(t, "id", schema.StringVal(fk.ReferencedColumn))

	// Both tables name their constraint fk_owner; neither may pick up the other's key column.
	plain, ok := orders.Column("customer_id")
	require.True(t, ok)
	assert.False(t, plain.IsForeignKey)
	fk, ok = invoices.Column("customer_id")
	require.True(t, ok)
	assert.True(t, fk.IsForeignKey)
	assert.Equal(t, "customers", schema.StringVal(fk.ReferencedTable))
	plain, ok = invoices.Column("user_id")
	require.True(t, ok)
	assert.False(t, plain.IsForeignKey)

	name, ok := users.Column("name")
	require.True(t, ok)
	assert.Equal(t, "character varying(64)", name.RawType)
	assert.False(t, name.Nullable)
	assert.Equal(t, "display name", schema.StringVal(name.Comment))
	id, _ := users.Column("id")
	assert.True(t, id.IsPrimaryKey)

	for _, table := range tables {
		assert.NoError(t, table.Validate())
	}

	stmt, ok := sqlgen.GenerateInsert("users", sqlgen.Row{{Column: "id", Value: "7"}, {Column: "name", Value: "O'Brien"}, {Column: "active", Value: "yes"}}, users, dialect.Postgres)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id, name, active) VALUES (7, 'O''Brien', TRUE);", stmt)
}
