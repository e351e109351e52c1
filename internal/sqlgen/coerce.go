package sqlgen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/schema"
)

const null = "NULL"

var (
	numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

	truthy = map[string]bool{"true": true, "yes": true, "y": true, "1": true}
	falsy  = map[string]bool{"false": true, "no": true, "n": true, "0": true}
)

// Coerce turns one loosely typed cell value into a SQL literal for column. A nil column is
// treated as textual. Coerce never fails: anything it cannot interpret becomes NULL.
func Coerce(raw any, column *schema.Column, d dialect.Dialect) string {
	class := dialect.Textual
	if column != nil {
		class = dialect.Classify(column.RawType, d)
	}
	return coerce(raw, class, d)
}

func coerce(raw any, class dialect.TypeClass, d dialect.Dialect) string {
	s, ok := text(raw)
	if !ok {
		return null
	}
	switch class {
	case dialect.Boolean:
		v := strings.ToLower(strings.TrimSpace(s))
		switch {
		case truthy[v]:
			return d.BoolLiteral(true)
		case falsy[v]:
			return d.BoolLiteral(false)
		}
		return null
	case dialect.Numeric:
		v := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		if !numberPattern.MatchString(v) {
			return null
		}
		return v
	default:
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}

// blank reports whether raw counts as an absent cell.
func blank(raw any) bool {
	_, ok := text(raw)
	return !ok
}

// text renders raw as the string a spreadsheet user would have typed; false means blank.
func text(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		s = strconv.FormatBool(v)
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
