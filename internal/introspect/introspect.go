package introspect

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"benritz/sheetsql/internal/dialect"
	_ "benritz/sheetsql/internal/dialect/mysql"
	_ "benritz/sheetsql/internal/dialect/pgsql"
	"benritz/sheetsql/internal/schema"
)

type Introspector struct {
	concurrency int
	timeout     time.Duration
	open        dialect.Opener
	logger      logrus.FieldLogger
}

type Option func(*Introspector)

func New(opts ...Option) *Introspector {
	i := Introspector{
		concurrency: 1,
		open:        dialect.Open,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&i)
	}
	if i.concurrency < 1 {
		i.concurrency = 1
	}
	return &i
}

// WithConcurrency sets how many tables are fetched at once. Output order does not depend on it.
func WithConcurrency(n int) Option {
	return func(i *Introspector) {
		i.concurrency = n
	}
}

// WithTimeout bounds a whole introspection run; zero means only the caller's context applies.
func WithTimeout(d time.Duration) Option {
	return func(i *Introspector) {
		i.timeout = d
	}
}

func WithOpener(open dialect.Opener) Option {
	return func(i *Introspector) {
		i.open = open
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(i *Introspector) {
		i.logger = logger
	}
}

// Introspect reads every table of the target catalog into the unified structure. Any failure
// aborts the run; partial results are never returned. The catalog connection is released on
// every path.
func (i *Introspector) Introspect(ctx context.Context, params dialect.ConnectionParams) (result []schema.Table, err error) {
	d, err := params.Validate()
	if err != nil {
		return nil, err
	}
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	logger := i.logger.WithFields(logrus.Fields{
		"dialect":  d,
		"host":     params.Host,
		"database": params.Database,
	})
	started := time.Now()

	catalog, err := i.open(ctx, params)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := catalog.Close(); cerr != nil {
			logger.WithError(cerr).Warn("failed to close catalog connection")
			if err == nil {
				result, err = nil, errors.Wrap(cerr, "close catalog connection")
			}
		}
	}()

	names, err := catalog.FetchTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	logger.WithField("tables", len(names)).Debug("fetched table list")

	tables := make([]schema.Table, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for idx, name := range names {
		g.Go(func() error {
			table, err := fetchTable(gctx, catalog, name)
			if err != nil {
				return err
			}
			if err := table.Validate(); err != nil {
				return errors.Wrapf(err, "inconsistent structure for table %s", name)
			}
			tables[idx] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("introspection failed")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"tables":   len(tables),
		"duration": time.Since(started),
	}).Info("introspected catalog")
	logger.WithField("tables", schema.Names(tables)).Debug("introspected tables")
	return tables, nil
}

func fetchTable(ctx context.Context, catalog dialect.Catalog, name string) (schema.Table, error) {
	columns, err := catalog.FetchColumns(ctx, name)
	if err != nil {
		return schema.Table{}, errors.Wrapf(err, "fetch columns for table %s", name)
	}
	fks, err := catalog.FetchForeignKeys(ctx, name)
	if err != nil {
		return schema.Table{}, errors.Wrapf(err, "fetch foreign keys for table %s", name)
	}
	return schema.Table{
		Name:    name,
		Columns: schema.Merge(columns, schema.ResolveForeignKeys(fks)),
	}, nil
}
