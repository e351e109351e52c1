package sheet

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"benritz/sheetsql/internal/errs"
	"benritz/sheetsql/internal/schema"
	"benritz/sheetsql/internal/sqlgen"
)

const (
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxSheetName = 31
	defaultSheet = "Sheet1"
)

var (
	invalidSheetChars = regexp.MustCompile(`[*?:/\\\[\]]`)

	structureHeader = []string{
		"Column", "Type", "Required", "Primary Key", "Foreign Key",
		"Referenced Table", "Referenced Column", "Default", "Comment",
	}
)

// SheetName turns a table name into a legal worksheet name.
func SheetName(table string, index int) string {
	name := invalidSheetChars.ReplaceAllString(table, "_")
	name = strings.Trim(name, "'")
	if utf8.RuneCountInString(name) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	if strings.TrimSpace(name) == "" {
		return "Table_" + strconv.Itoa(index)
	}
	return name
}

// sheetNames assigns every table a distinct worksheet name; sheet names compare case-insensitively.
func sheetNames(tables []schema.Table) []string {
	used := map[string]bool{}
	names := make([]string, len(tables))
	for i, t := range tables {
		name := SheetName(t.Name, i)
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := "_" + strconv.Itoa(n)
			base := SheetName(t.Name, i)
			if r := []rune(base); len(r)+len(suffix) > maxSheetName {
				base = string(r[:maxSheetName-len(suffix)])
			}
			name = base + suffix
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// WriteStructure renders one sheet per table describing its columns.
func WriteStructure(w io.Writer, tables []schema.Table) error {
	return write(w, tables, 0, func(t schema.Table) [][]any {
		rows := [][]any{toRow(structureHeader)}
		for _, c := range t.Columns {
			rows = append(rows, []any{
				c.Name,
				c.RawType,
				yesNo(!c.Nullable),
				yesNo(c.IsPrimaryKey),
				yesNo(c.IsForeignKey),
				schema.StringVal(c.ReferencedTable),
				schema.StringVal(c.ReferencedColumn),
				schema.StringVal(c.DefaultValue),
				schema.StringVal(c.Comment),
			})
		}
		return rows
	})
}

// WriteTemplate renders one data-entry sheet per table whose header row is the column names,
// followed by templateEntryRows outlined blank rows.
func WriteTemplate(w io.Writer, tables []schema.Table) error {
	return write(w, tables, templateEntryRows, func(t schema.Table) [][]any {
		return [][]any{toRow(t.ColumnNames())}
	})
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

const templateEntryRows = 20

func write(w io.Writer, tables []schema.Table, entryRows int, render func(schema.Table) [][]any) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"EFEFEF"}},
	})
	if err != nil {
		return errors.Wrap(err, "create header style")
	}
	entry, err := f.NewStyle(&excelize.Style{
		Border: []excelize.Border{{Type: "bottom", Color: "D9D9D9", Style: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "create entry style")
	}

	for i, name := range sheetNames(tables) {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return errors.Wrapf(err, "rename sheet to %s", name)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "add sheet %s", name)
		}

		for r, row := range render(tables[i]) {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return errors.Wrapf(err, "write row %d of sheet %s", r+1, name)
			}
		}
		if err := f.SetRowStyle(name, 1, 1, header); err != nil {
			return errors.Wrapf(err, "style header of sheet %s", name)
		}
		if entryRows > 0 {
			if err := f.SetRowStyle(name, 2, entryRows+1, entry); err != nil {
				return errors.Wrapf(err, "style entry rows of sheet %s", name)
			}
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

// ReadPartitions decodes every worksheet of an uploaded workbook. The first row names the
// columns, each later row becomes one sqlgen.Row in header order. Blank cells decode as nil,
// and blank rows are kept for the generator to skip.
func ReadPartitions(r io.Reader) (_ []sqlgen.Partition, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errs.Malformed("unreadable workbook", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var partitions []sqlgen.Partition
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, errs.Malformed("unreadable worksheet "+name, err)
		}
		partitions = append(partitions, sqlgen.Partition{Name: name, Rows: decodeRows(rows)})
	}
	return partitions, nil
}

func decodeRows(rows [][]string) []sqlgen.Row {
	if len(rows) == 0 {
		return nil
	}
	type column struct {
		index int
		name  string
	}
	var columns []column
	seen := map[string]bool{}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		columns = append(columns, column{index: i, name: h})
	}

	out := make([]sqlgen.Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := make(sqlgen.Row, 0, len(columns))
		for _, c := range columns {
			var value any
			if c.index < len(cells) && strings.TrimSpace(cells[c.index]) != "" {
				value = cells[c.index]
			}
			row = append(row, sqlgen.Cell{Column: c.name, Value: value})
		}
		out = append(out, row)
	}
	return out
}
