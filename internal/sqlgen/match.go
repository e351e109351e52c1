package sqlgen

import (
	"strings"

	"benritz/sheetsql/internal/schema"
)

// MatchTable finds the structure for a partition name. The first table, in the given order,
// whose name equals the partition name or is contained in it wins, ignoring case.
//
// Tables whose names are prefixes of each other are ambiguous: a partition "user_role" matches
// "user" when "user" comes first.
func MatchTable(partition string, tables []schema.Table) (*schema.Table, bool) {
	name := strings.ToLower(partition)
	for i := range tables {
		table := strings.ToLower(tables[i].Name)
		if table == "" {
			continue
		}
		if table == name || strings.Contains(name, table) {
			return &tables[i], true
		}
	}
	return nil, false
}
