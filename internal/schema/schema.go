package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"benritz/sheetsql/internal/errs"
)

type Column struct {
	Name             string  `json:"name"`
	RawType          string  `json:"rawType"`
	Nullable         bool    `json:"nullable"`
	IsPrimaryKey     bool    `json:"isPrimaryKey"`
	IsForeignKey     bool    `json:"isForeignKey"`
	ReferencedTable  *string `json:"referencedTable,omitempty"`
	ReferencedColumn *string `json:"referencedColumn,omitempty"`
	DefaultValue     *string `json:"defaultValue,omitempty"`
	Comment          *string `json:"comment,omitempty"`
}

type Table struct {
	Name    string   `json:"tableName"`
	Columns []Column `json:"columns"`
}

// ForeignKey is a single key-usage row: the referencing column and its target.
type ForeignKey struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Column returns the column with the exact given name.
func (t Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// ResolveForeignKeys builds the column -> reference lookup for one table.
// Multi-segment keys can repeat a column; the last row wins.
func ResolveForeignKeys(rows []ForeignKey) map[string]ForeignKey {
	out := make(map[string]ForeignKey, len(rows))
	for _, fk := range rows {
		if fk.Column == "" || fk.ReferencedTable == "" || fk.ReferencedColumn == "" {
			continue
		}
		out[fk.Column] = fk
	}
	return out
}

// Merge copies the catalog columns in order and attaches foreign key references from lookup.
func Merge(columns []Column, lookup map[string]ForeignKey) []Column {
	out := make([]Column, len(columns))
	for i, c := range columns {
		c.IsForeignKey = false
		c.ReferencedTable = nil
		c.ReferencedColumn = nil
		if fk, ok := lookup[c.Name]; ok {
			c.IsForeignKey = true
			c.ReferencedTable = StringPtr(fk.ReferencedTable)
			c.ReferencedColumn = StringPtr(fk.ReferencedColumn)
		}
		out[i] = c
	}
	return out
}

func (t Table) Validate() error {
	if t.Name == "" {
		return errors.New("table name is empty")
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return errors.Newf("table %s has a column without a name", t.Name)
		}
		if _, ok := seen[c.Name]; ok {
			return errors.Newf("table %s has duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
		hasRef := c.ReferencedTable != nil && *c.ReferencedTable != "" &&
			c.ReferencedColumn != nil && *c.ReferencedColumn != ""
		if c.IsForeignKey != hasRef {
			return errors.Newf("column %s.%s foreign key flag does not match its reference", t.Name, c.Name)
		}
	}
	return nil
}

// DecodeTables parses a caller-carried structure list. The structure is trusted as given; only
// shape problems that make generation impossible are rejected.
func DecodeTables(r io.Reader) ([]Table, error) {
	var tables []Table
	dec := json.NewDecoder(r)
	if err := dec.Decode(&tables); err != nil {
		return nil, errs.Malformed("unable to parse table structures", err)
	}
	if tables == nil {
		return nil, errs.Malformed("table structures are missing", nil)
	}
	seen := make(map[string]struct{}, len(tables))
	for i, t := range tables {
		if strings.TrimSpace(t.Name) == "" {
			return nil, errs.Malformed(fmt.Sprintf("table structure %d has no tableName", i), nil)
		}
		if _, ok := seen[t.Name]; ok {
			return nil, errs.Malformed(fmt.Sprintf("table %s is listed more than once", t.Name), nil)
		}
		seen[t.Name] = struct{}{}
	}
	return tables, nil
}

func EncodeTables(w io.Writer, tables []Table) error {
	if tables == nil {
		tables = []Table{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tables)
}

func Names(tables []Table) []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return names
}

// StringPtr returns nil for the empty string so optional fields stay absent in JSON.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func StringVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
