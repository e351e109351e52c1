package sqlgen

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/errs"
	"benritz/sheetsql/internal/schema"
)

func users(boolType string) schema.Table {
	return schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", RawType: "integer", IsPrimaryKey: true},
			{Name: "name", RawType: "varchar(255)"},
			{Name: "active", RawType: boolType, Nullable: true},
		},
	}
}

func TestGenerateInsertGeneric(t *testing.T) {
	row := Row{{"id", float64(7)}, {"name", "O'Brien"}, {"active", "yes"}}
	stmt, ok := GenerateInsert("users", row, users("boolean"), dialect.Generic)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id, name, active) VALUES (7, 'O''Brien', 1);", stmt)
}

func TestGenerateInsertPostgres(t *testing.T) {
	row := Row{{"id", float64(7)}, {"name", "O'Brien"}, {"active", "yes"}}
	stmt, ok := GenerateInsert("users", row, users("boolean"), dialect.Postgres)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id, name, active) VALUES (7, 'O''Brien', TRUE);", stmt)
}

func TestGenerateInsertFromJSON(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7, "name": "O'Brien", "active": "yes"}`), &row))
	stmt, ok := GenerateInsert("users", row, users("tinyint(1)"), dialect.Generic)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id, name, active) VALUES (7, 'O''Brien', 1);", stmt)
}

func TestGenerateInsertEncounterOrder(t *testing.T) {
	row := Row{{"active", "no"}, {"id", "3"}}
	stmt, ok := GenerateInsert("users", row, users("boolean"), dialect.Postgres)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (active, id) VALUES (FALSE, 3);", stmt)
}

func TestGenerateInsertOmitsBlankCells(t *testing.T) {
	row := Row{{"id", "1"}, {"name", ""}, {"active", nil}}
	stmt, ok := GenerateInsert("users", row, users("boolean"), dialect.Generic)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id) VALUES (1);", stmt)
}

func TestGenerateInsertKeepsUnparseableAsNull(t *testing.T) {
	row := Row{{"id", "n/a"}, {"active", "maybe"}}
	stmt, ok := GenerateInsert("users", row, users("boolean"), dialect.Generic)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id, active) VALUES (NULL, NULL);", stmt)
}

func TestGenerateInsertUnknownColumn(t *testing.T) {
	row := Row{{"id", "1"}, {"extra", "42"}}
	stmt, ok := GenerateInsert("users", row, users("boolean"), dialect.Generic)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id, extra) VALUES (1, '42');", stmt)
}

func TestGenerateInsertSkipsBlankRow(t *testing.T) {
	for _, row := range []Row{nil, {}, {{"id", nil}, {"name", "  "}, {"active", ""}}} {
		stmt, ok := GenerateInsert("users", row, users("boolean"), dialect.Generic)
		assert.False(t, ok)
		assert.Empty(t, stmt)
	}
}

func TestTablePlanClassifiesOnce(t *testing.T) {
	plan := NewTablePlan(users("tinyint(1)"), dialect.Generic)
	assert.Equal(t, "users", plan.Table())
	assert.Equal(t, dialect.Boolean, plan.classes["active"])
	assert.Equal(t, dialect.Numeric, plan.classes["id"])
	assert.Equal(t, dialect.Textual, plan.classes["name"])
}

func TestRowJSON(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{"z": 1.50, "a": null, "m": true, "k": "v"}`), &row))
	require.Len(t, row, 4)
	assert.Equal(t, "z", row[0].Column)
	assert.Equal(t, json.Number("1.50"), row[0].Value)
	assert.Nil(t, row[1].Value)
	assert.Equal(t, true, row[2].Value)
	assert.Equal(t, Cell{Column: "k", Value: "v"}, row[3])

	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &row))
}

func TestRowJSONRepeatedKey(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{"id": 1, "name": "a", "id": 2}`), &row))
	assert.Equal(t, Row{{Column: "id", Value: json.Number("2")}, {Column: "name", Value: "a"}}, row)

	stmt, ok := GenerateInsert("users", row, users("tinyint(1)"), dialect.Generic)
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (id, name) VALUES (2, 'a');", stmt)
}

func TestDecodePartitions(t *testing.T) {
	partitions, err := DecodePartitions(strings.NewReader(`[
		{"name": "users", "rows": [{"id": 7, "name": "O'Brien", "active": "yes"}, {}]},
		{"name": "orders", "rows": []}
	]`))
	require.NoError(t, err)
	require.Len(t, partitions, 2)
	assert.Equal(t, "users", partitions[0].Name)
	require.Len(t, partitions[0].Rows, 2)
	assert.Equal(t, []string{"id", "name", "active"}, []string{
		partitions[0].Rows[0][0].Column, partitions[0].Rows[0][1].Column, partitions[0].Rows[0][2].Column,
	})
	assert.Empty(t, partitions[0].Rows[1])
	assert.Empty(t, partitions[1].Rows)

	for name, doc := range map[string]string{
		"not json":     `{`,
		"null":         `null`,
		"missing name": `[{"rows": []}]`,
		"row not map":  `[{"name": "users", "rows": [[1]]}]`,
	} {
		_, err := DecodePartitions(strings.NewReader(doc))
		assert.True(t, errs.IsMalformed(err), name)
	}
}

func TestMatchTable(t *testing.T) {
	tables := []schema.Table{{Name: "Orders"}, {Name: "user"}, {Name: "user_role"}}

	m, ok := MatchTable("orders", tables)
	require.True(t, ok)
	assert.Equal(t, "Orders", m.Name)

	m, ok = MatchTable("2024_ORDERS_import", tables)
	require.True(t, ok)
	assert.Equal(t, "Orders", m.Name)

	// prefix ambiguity: the earlier table wins even though an exact match exists later
	m, ok = MatchTable("user_role", tables)
	require.True(t, ok)
	assert.Equal(t, "user", m.Name)

	_, ok = MatchTable("invoices", tables)
	assert.False(t, ok)

	_, ok = MatchTable("anything", []schema.Table{{Name: ""}})
	assert.False(t, ok)
}
