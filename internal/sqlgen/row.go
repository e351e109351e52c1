package sqlgen

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Cell is one named value of a data row.
type Cell struct {
	Column string
	Value  any
}

// Row keeps cells in the order they were encountered in the source data.
type Row []Cell

// UnmarshalJSON decodes a JSON object while keeping its key order. Numbers stay json.Number so
// their text reaches the SQL unchanged. A repeated key keeps its first position and its last value.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Newf("row must be a JSON object, got %v", tok)
	}

	row := Row{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return errors.Wrapf(err, "decode value of %q", key)
		}
		if i, ok := index[key]; ok {
			row[i].Value = value
			continue
		}
		index[key] = len(row)
		row = append(row, Cell{Column: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}
