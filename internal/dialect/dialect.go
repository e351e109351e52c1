package dialect

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"benritz/sheetsql/internal/errs"
	"benritz/sheetsql/internal/schema"
)

type Dialect string

const (
	// Generic covers MySQL and MySQL-like catalogs.
	Generic  Dialect = "mysql"
	Postgres Dialect = "postgresql"
)

type TypeClass string

const (
	Textual TypeClass = "textual"
	Numeric TypeClass = "numeric"
	Boolean TypeClass = "boolean"
)

type vocabulary struct {
	boolean  []string
	numeric  []string
	trueLit  string
	falseLit string
}

// Keyword lists are matched by substring containment against the lower-cased raw type.
var vocabularies = map[Dialect]vocabulary{
	Generic: {
		boolean:  []string{"boolean", "tinyint(1)"},
		numeric:  []string{"int", "decimal", "float", "double", "bigint", "tinyint", "smallint"},
		trueLit:  "1",
		falseLit: "0",
	},
	Postgres: {
		boolean:  []string{"boolean"},
		numeric:  []string{"integer", "numeric", "real", "double precision", "bigint", "smallint"},
		trueLit:  "TRUE",
		falseLit: "FALSE",
	},
}

var aliases = map[string]Dialect{
	"mysql":      Generic,
	"mariadb":    Generic,
	"generic":    Generic,
	"postgresql": Postgres,
	"postgres":   Postgres,
	"pgsql":      Postgres,
}

// Parse maps a dialect tag to a supported Dialect.
func Parse(tag string) (Dialect, error) {
	if d, ok := aliases[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return d, nil
	}
	return "", errs.UnsupportedDialect(tag)
}

// Classify derives the coarse class of a raw catalog type. Boolean keywords are tested before
// numeric ones so that tinyint(1) is not swallowed by "int".
func Classify(rawType string, d Dialect) TypeClass {
	v, ok := vocabularies[d]
	if !ok {
		return Textual
	}
	raw := strings.ToLower(rawType)
	if containsAny(raw, v.boolean) {
		return Boolean
	}
	if containsAny(raw, v.numeric) {
		return Numeric
	}
	return Textual
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// BoolLiteral spells a boolean the way the dialect expects in a VALUES list.
func (d Dialect) BoolLiteral(b bool) string {
	v, ok := vocabularies[d]
	if !ok {
		v = vocabularies[Generic]
	}
	if b {
		return v.trueLit
	}
	return v.falseLit
}

type ConnectionParams struct {
	Dialect  string `json:"dialect" yaml:"dialect"`
	Host     string `json:"host" yaml:"host" validate:"required"`
	Port     int    `json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database" validate:"required"`
	// Schema only applies to PostgreSQL-like catalogs and defaults to public.
	Schema string `json:"schema,omitempty" yaml:"schema"`
}

var validate = validator.New()

// Validate checks the dialect before anything else so an unknown dialect never reaches the network.
func (p ConnectionParams) Validate() (Dialect, error) {
	d, err := Parse(p.Dialect)
	if err != nil {
		return "", err
	}
	if err := validate.Struct(p); err != nil {
		return "", errs.Malformed("invalid connection parameters", err)
	}
	return d, nil
}

func (p ConnectionParams) Address(defaultPort int) string {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Catalog is the per-dialect view of a database's metadata store.
type Catalog interface {
	// FetchTables lists the tables visible in the target database/schema in a stable order.
	FetchTables(ctx context.Context) ([]string, error)
	// FetchColumns returns the table's columns in ordinal order without foreign key details.
	FetchColumns(ctx context.Context, table string) ([]schema.Column, error)
	FetchForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error)
	Close() error
}

// Opener connects to a catalog. Implementations must return a ConnectivityError when the
// server cannot be reached and must not leak the connection on failure.
type Opener func(ctx context.Context, params ConnectionParams) (Catalog, error)

var (
	mu      sync.RWMutex
	openers = map[Dialect]Opener{}
)

func Register(d Dialect, opener Opener) {
	mu.Lock()
	defer mu.Unlock()
	if opener == nil {
		panic("dialect: Register opener is nil")
	}
	openers[d] = opener
}

func Registered() []Dialect {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Dialect, 0, len(openers))
	for d := range openers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Open validates params and opens the catalog registered for its dialect.
func Open(ctx context.Context, params ConnectionParams) (Catalog, error) {
	d, err := params.Validate()
	if err != nil {
		return nil, err
	}
	mu.RLock()
	opener, ok := openers[d]
	mu.RUnlock()
	if !ok {
		return nil, errs.UnsupportedDialect(params.Dialect)
	}
	return opener(ctx, params)
}
