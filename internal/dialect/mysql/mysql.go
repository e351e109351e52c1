package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/errs"
	"benritz/sheetsql/internal/schema"
)

const (
	defaultPort = 3306
	pingTimeout = 5 * time.Second
)

func init() {
	dialect.Register(dialect.Generic, Open)
}

type Catalog struct {
	db       *sql.DB
	database string
}

var _ dialect.Catalog = (*Catalog)(nil)

func NewCatalog(db *sql.DB, database string) *Catalog {
	return &Catalog{db: db, database: database}
}

func driverConfig(params dialect.ConnectionParams) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = params.Address(defaultPort)
	cfg.User = params.Username
	cfg.Passwd = params.Password
	cfg.DBName = params.Database
	cfg.Timeout = pingTimeout
	return cfg
}

func Open(ctx context.Context, params dialect.ConnectionParams) (dialect.Catalog, error) {
	connector, err := mysql.NewConnector(driverConfig(params))
	if err != nil {
		return nil, errs.Malformed("invalid mysql connection parameters", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "ping mysql catalog")
		}
		return nil, errs.Connectivity(string(dialect.Generic), params.Address(defaultPort), err)
	}
	return NewCatalog(db, params.Database), nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) FetchTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = ?
  AND table_type = 'BASE TABLE'
ORDER BY table_name`, c.database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// FetchColumns reads column_type rather than data_type so that display widths such as
// tinyint(1) survive into the raw type.
func (c *Catalog) FetchColumns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT
    column_name,
    column_type,
    is_nullable,
    column_key,
    column_default,
    column_comment
FROM information_schema.columns
WHERE table_schema = ?
  AND table_name = ?
ORDER BY ordinal_position`, c.database, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []schema.Column{}
	for rows.Next() {
		var (
			name, columnType, isNullable, columnKey, comment string
			defaultValue                                     sql.NullString
		)
		if err := rows.Scan(
			&name,
			&columnType,
			&isNullable,
			&columnKey,
			&defaultValue,
			&comment,
		); err != nil {
			return nil, err
		}

		col := schema.Column{
			Name:         name,
			RawType:      columnType,
			Nullable:     isNullable == "YES",
			IsPrimaryKey: columnKey == "PRI",
			Comment:      schema.StringPtr(comment),
		}
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (c *Catalog) FetchForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT
    column_name,
    referenced_table_name,
    referenced_column_name
FROM information_schema.key_column_usage
WHERE table_schema = ?
  AND table_name = ?
  AND referenced_table_name IS NOT NULL
ORDER BY ordinal_position`, c.database, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fks := []schema.ForeignKey{}
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
