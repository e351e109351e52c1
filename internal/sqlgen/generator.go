package sqlgen

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/schema"
)

type Result struct {
	Document   string
	Statements int
	// Tables lists the tables that produced at least one statement, in output order.
	Tables []string
}

// Empty reports whether no statement was generated.
func (r Result) Empty() bool {
	return r.Statements == 0
}

type Generator struct {
	dialect dialect.Dialect
	logger  logrus.FieldLogger
	now     func() time.Time
}

type GeneratorOption func(*Generator)

func WithGeneratorLogger(logger logrus.FieldLogger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithClock replaces the source of the header timestamp.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

func NewGenerator(d dialect.Dialect, opts ...GeneratorOption) *Generator {
	g := Generator{
		dialect: d,
		logger:  logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&g)
	}
	return &g
}

type group struct {
	table      string
	statements []string
}

// Generate renders every partition against tables into one SQL document. Partitions without a
// matching table or without rows are skipped and logged; they never fail the run.
func (g *Generator) Generate(partitions []Partition, tables []schema.Table) Result {
	var groups []group
	total := 0
	for _, p := range partitions {
		logger := g.logger.WithField("partition", p.Name)
		structure, ok := MatchTable(p.Name, tables)
		if !ok {
			logger.Warn("no table structure matches partition, skipping")
			continue
		}
		if len(p.Rows) == 0 {
			logger.WithField("table", structure.Name).Warn("partition has no data, skipping")
			continue
		}

		plan := NewTablePlan(*structure, g.dialect)
		var statements []string
		skipped := 0
		for _, row := range p.Rows {
			stmt, ok := plan.Insert(row)
			if !ok {
				skipped++
				continue
			}
			statements = append(statements, stmt)
		}
		logger.WithFields(logrus.Fields{
			"table":      plan.Table(),
			"statements": len(statements),
			"skipped":    skipped,
		}).Debug("rendered partition")
		if len(statements) == 0 {
			continue
		}
		groups = append(groups, group{table: plan.Table(), statements: statements})
		total += len(statements)
	}

	result := Result{Statements: total, Tables: make([]string, 0, len(groups))}
	for _, gr := range groups {
		result.Tables = append(result.Tables, gr.table)
	}
	if total == 0 {
		result.Document = emptyDocument
		return result
	}
	result.Document = g.render(result.Tables, groups)
	return result
}

const emptyDocument = "-- No usable data was found in the uploaded workbook.\n" +
	"-- Fill in the template rows and try again.\n"

func (g *Generator) render(tables []string, groups []group) string {
	var b strings.Builder
	b.WriteString("-- Generated SQL Insert Statements\n")
	b.WriteString("-- Generated at: " + g.now().UTC().Format(time.RFC3339) + "\n")
	b.WriteString("-- Dialect: " + string(g.dialect) + "\n")
	b.WriteString("-- Tables (" + strconv.Itoa(len(tables)) + "): " + strings.Join(tables, ", ") + "\n")
	for _, gr := range groups {
		b.WriteString("\n")
		for _, stmt := range gr.statements {
			b.WriteString(stmt)
			b.WriteString("\n")
		}
	}
	return b.String()
}
