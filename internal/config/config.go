package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/introspect"
)

type Root struct {
	Connection    dialect.ConnectionParams `yaml:"connection"`
	Introspection IntrospectionSection     `yaml:"introspection"`
	Generate      GenerateSection          `yaml:"generate"`
	Server        ServerSection            `yaml:"server"`
	Log           LogSection               `yaml:"log"`
}

type IntrospectionSection struct {
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"`
}

type GenerateSection struct {
	// Dialect overrides the connection dialect for SQL generation.
	Dialect string `yaml:"dialect"`
}

type ServerSection struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Root {
	return &Root{
		Introspection: IntrospectionSection{Concurrency: 1},
		Server:        ServerSection{Addr: ":8080"},
		Log:           LogSection{Level: "info", Format: "text"},
	}
}

// LoadFile reads a config file, resolving !include directives relative to its directory.
func LoadFile(path string) (*Root, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded, err := ExpandIncludes(raw, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "expand includes of %s", path)
	}
	return Load(bytes.NewReader(expanded))
}

// Load validates a YAML document against the embedded schema and decodes it over Default().
func Load(r io.Reader) (*Root, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := validate(raw); err != nil {
		return nil, err
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode config")
	}
	expandEnv(cfg)
	return cfg, nil
}

func expandEnv(cfg *Root) {
	c := &cfg.Connection
	c.Host = os.ExpandEnv(c.Host)
	c.Username = os.ExpandEnv(c.Username)
	c.Password = os.ExpandEnv(c.Password)
	c.Database = os.ExpandEnv(c.Database)
	c.Schema = os.ExpandEnv(c.Schema)
}

func (c *Root) Timeout() (time.Duration, error) {
	if c.Introspection.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Introspection.Timeout)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid introspection timeout %q", c.Introspection.Timeout)
	}
	return d, nil
}

// GenerateDialect is the dialect INSERT statements are written in: the generate override, then
// the connection dialect, then the generic dialect.
func (c *Root) GenerateDialect() (dialect.Dialect, error) {
	tag := c.Generate.Dialect
	if tag == "" {
		tag = c.Connection.Dialect
	}
	if tag == "" {
		return dialect.Generic, nil
	}
	return dialect.Parse(tag)
}

// Options converts the introspection section into introspect.Options.
func (c *Root) Options() ([]introspect.Option, error) {
	timeout, err := c.Timeout()
	if err != nil {
		return nil, err
	}
	return []introspect.Option{
		introspect.WithConcurrency(c.Introspection.Concurrency),
		introspect.WithTimeout(timeout),
	}, nil
}
