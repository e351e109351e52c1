package dialect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benritz/sheetsql/internal/errs"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		raw     string
		dialect Dialect
		want    TypeClass
	}{
		{"int", Generic, Numeric},
		{"INT UNSIGNED", Generic, Numeric},
		{"bigint(20)", Generic, Numeric},
		{"decimal(10,2)", Generic, Numeric},
		{"double", Generic, Numeric},
		{"tinyint(1)", Generic, Boolean},
		{"TINYINT(1) UNSIGNED", Generic, Boolean},
		{"tinyint(4)", Generic, Numeric},
		{"boolean", Generic, Boolean},
		{"varchar(255)", Generic, Textual},
		{"datetime", Generic, Textual},
		{"point", Generic, Numeric}, // containment match on "int"
		{"integer", Postgres, Numeric},
		{"numeric(10,2)", Postgres, Numeric},
		{"double precision", Postgres, Numeric},
		{"real", Postgres, Numeric},
		{"boolean", Postgres, Boolean},
		{"int", Postgres, Textual},
		{"tinyint(1)", Postgres, Textual},
		{"character varying(255)", Postgres, Textual},
		{"timestamp without time zone", Postgres, Textual},
		{"integer", Dialect("oracle"), Textual},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect)+"/"+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw, tt.dialect))
			// determinism
			assert.Equal(t, Classify(tt.raw, tt.dialect), Classify(tt.raw, tt.dialect))
		})
	}
}

func TestBoolLiteral(t *testing.T) {
	assert.Equal(t, "1", Generic.BoolLiteral(true))
	assert.Equal(t, "0", Generic.BoolLiteral(false))
	assert.Equal(t, "TRUE", Postgres.BoolLiteral(true))
	assert.Equal(t, "FALSE", Postgres.BoolLiteral(false))
}

func TestParse(t *testing.T) {
	for tag, want := range map[string]Dialect{
		"mysql":      Generic,
		"MySQL":      Generic,
		"generic":    Generic,
		"postgresql": Postgres,
		" postgres ": Postgres,
	} {
		d, err := Parse(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, d, tag)
	}
	for _, tag := range []string{"", "mssql", "oracle"} {
		_, err := Parse(tag)
		assert.True(t, errs.IsUnsupportedDialect(err), tag)
	}
}

func TestConnectionParamsValidate(t *testing.T) {
	params := ConnectionParams{Dialect: "postgresql", Host: "db", Database: "app"}
	d, err := params.Validate()
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "db:5432", params.Address(5432))

	params.Port = 6543
	assert.Equal(t, "db:6543", params.Address(5432))

	_, err = ConnectionParams{Dialect: "mysql", Database: "app"}.Validate()
	assert.True(t, errs.IsMalformed(err))

	_, err = ConnectionParams{Dialect: "mysql", Host: "db", Database: "app", Port: 70000}.Validate()
	assert.True(t, errs.IsMalformed(err))

	// dialect is checked first
	_, err = ConnectionParams{Dialect: "mssql"}.Validate()
	assert.True(t, errs.IsUnsupportedDialect(err))
}

type nopCatalog struct{ Catalog }

func TestOpen(t *testing.T) {
	var opened ConnectionParams
	Register(Dialect("test"), func(ctx context.Context, params ConnectionParams) (Catalog, error) {
		opened = params
		return nopCatalog{}, nil
	})
	aliases["test"] = Dialect("test")
	vocabularies[Dialect("test")] = vocabularies[Generic]
	t.Cleanup(func() {
		mu.Lock()
		delete(openers, Dialect("test"))
		mu.Unlock()
		delete(aliases, "test")
		delete(vocabularies, Dialect("test"))
	})

	cat, err := Open(context.Background(), ConnectionParams{Dialect: "test", Host: "h", Database: "d"})
	require.NoError(t, err)
	assert.NotNil(t, cat)
	assert.Equal(t, "h", opened.Host)
	assert.Contains(t, Registered(), Dialect("test"))

	opened = ConnectionParams{}
	_, err = Open(context.Background(), ConnectionParams{Dialect: "sqlite", Host: "h", Database: "d"})
	assert.True(t, errs.IsUnsupportedDialect(err))
	assert.Empty(t, opened.Host)
}
