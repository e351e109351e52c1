package pgsql

import (
	"context"
	"database/sql"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/errs"
	"benritz/sheetsql/internal/schema"
)

const (
	defaultPort   = 5432
	defaultSchema = "public"
	pingTimeout   = 5 * time.Second
)

const tablesQuery = `
SELECT tablename
FROM pg_catalog.pg_tables
WHERE schemaname = $1
ORDER BY tablename`

const columnsQuery = `
SELECT
    c.column_name,
    c.data_type,
    c.character_maximum_length,
    c.is_nullable,
    (pk.column_name IS NOT NULL) AS is_primary_key,
    c.column_default,
    pgd.description AS column_comment
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name
     AND tc.table_schema = kcu.table_schema
     AND tc.table_name = kcu.table_name
    WHERE tc.table_schema = $1
      AND tc.table_name = $2
      AND tc.constraint_type = 'PRIMARY KEY'
) pk ON pk.column_name = c.column_name
LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = c.table_schema
LEFT JOIN pg_catalog.pg_class cls ON cls.relname = c.table_name AND cls.relnamespace = n.oid
LEFT JOIN pg_catalog.pg_description pgd ON pgd.objoid = cls.oid AND pgd.objsubid = c.ordinal_position
WHERE c.table_schema = $1
  AND c.table_name = $2
ORDER BY c.ordinal_position`

// fkQuery pairs referencing and referenced columns through pg_constraint. Constraint names are
// only unique per table, so matching information_schema views by name can mix up tables.
const fkQuery = `
SELECT
    a.attname AS column_name,
    rt.relname AS referenced_table,
    ra.attname AS referenced_column
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class t ON t.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
JOIN pg_catalog.pg_class rt ON rt.oid = con.confrelid
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
JOIN pg_catalog.pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refattnum
WHERE con.contype = 'f'
  AND n.nspname = $1
  AND t.relname = $2
ORDER BY con.conname, k.ord`

func init() {
	dialect.Register(dialect.Postgres, Open)
}

type Catalog struct {
	db     *sql.DB
	schema string
}

var _ dialect.Catalog = (*Catalog)(nil)

func NewCatalog(db *sql.DB, schemaName string) *Catalog {
	if schemaName == "" {
		schemaName = defaultSchema
	}
	return &Catalog{db: db, schema: schemaName}
}

func connString(params dialect.ConnectionParams) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     params.Address(defaultPort),
		Path:     "/" + params.Database,
		RawQuery: url.Values{"application_name": {"sheetsql"}}.Encode(),
	}
	if params.Username != "" {
		u.User = url.UserPassword(params.Username, params.Password)
	}
	return u.String()
}

func connConfig(params dialect.ConnectionParams) (*pgx.ConnConfig, error) {
	return pgx.ParseConfig(connString(params))
}

func Open(ctx context.Context, params dialect.ConnectionParams) (dialect.Catalog, error) {
	cfg, err := connConfig(params)
	if err != nil {
		return nil, errs.Malformed("invalid postgresql connection parameters", err)
	}
	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "ping postgresql catalog")
		}
		return nil, errs.Connectivity(string(dialect.Postgres), params.Address(defaultPort), err)
	}
	return NewCatalog(db, params.Schema), nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) FetchTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, tablesQuery, c.schema)
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

func (c *Catalog) FetchColumns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, columnsQuery, c.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []schema.Column{}
	for rows.Next() {
		var (
			name, dataType, isNullable string
			maxLength                  sql.NullInt64
			isPrimaryKey               bool
			defaultValue, comment      sql.NullString
		)
		if err := rows.Scan(
			&name,
			&dataType,
			&maxLength,
			&isNullable,
			&isPrimaryKey,
			&defaultValue,
			&comment,
		); err != nil {
			return nil, err
		}

		rawType := dataType
		if maxLength.Valid && maxLength.Int64 > 0 {
			rawType += "(" + strconv.FormatInt(maxLength.Int64, 10) + ")"
		}

		col := schema.Column{
			Name:         name,
			RawType:      rawType,
			Nullable:     isNullable == "YES",
			IsPrimaryKey: isPrimaryKey,
			Comment:      schema.StringPtr(comment.String),
		}
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (c *Catalog) FetchForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, fkQuery, c.schema, table)
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
