package sqlgen

import (
	"strings"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/schema"
)

// TablePlan holds the type class of every column of one table so rows can be rendered without
// classifying the same raw type again.
type TablePlan struct {
	table   string
	dialect dialect.Dialect
	classes map[string]dialect.TypeClass
}

func NewTablePlan(structure schema.Table, d dialect.Dialect) *TablePlan {
	classes := make(map[string]dialect.TypeClass, len(structure.Columns))
	for _, c := range structure.Columns {
		if _, ok := classes[c.Name]; ok {
			continue
		}
		classes[c.Name] = dialect.Classify(c.RawType, d)
	}
	return &TablePlan{table: structure.Name, dialect: d, classes: classes}
}

func (p *TablePlan) Table() string {
	return p.table
}

// Insert renders row as one INSERT statement. Blank cells are left out; false means the row had
// no non-blank cell and produced nothing.
func (p *TablePlan) Insert(row Row) (string, bool) {
	columns := make([]string, 0, len(row))
	values := make([]string, 0, len(row))
	for _, cell := range row {
		if blank(cell.Value) {
			continue
		}
		class, ok := p.classes[cell.Column]
		if !ok {
			class = dialect.Textual
		}
		columns = append(columns, cell.Column)
		values = append(values, coerce(cell.Value, class, p.dialect))
	}
	if len(columns) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(values, ", "))
	b.WriteString(");")
	return b.String(), true
}

// GenerateInsert renders a single row into table using structure for column types.
func GenerateInsert(table string, row Row, structure schema.Table, d dialect.Dialect) (string, bool) {
	structure.Name = table
	return NewTablePlan(structure, d).Insert(row)
}
