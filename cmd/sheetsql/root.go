package main

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"benritz/sheetsql/internal/config"
	"benritz/sheetsql/internal/introspect"
	"benritz/sheetsql/internal/schema"
)

var rootCmd = &cobra.Command{
	Use:           "sheetsql",
	Short:         "Describe database tables as workbooks and turn filled-in workbooks into INSERT statements",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("sheetsql failed")
		os.Exit(1)
	}
}

func init() {
	viper.SetEnvPrefix("SHEETSQL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
}

// connectionFlags registers the catalog connection flags shared by the introspecting commands.
func connectionFlags(fs *pflag.FlagSet) {
	fs.String("dialect", "", "database dialect: mysql or postgresql")
	fs.String("host", "", "database host")
	fs.Int("port", 0, "database port (default per dialect)")
	fs.String("username", "", "database user")
	fs.String("password", "", "database password")
	fs.String("database", "", "database name")
	fs.String("schema", "", "schema to read (postgresql only, default public)")
	fs.Int("concurrency", 0, "number of tables read at once")
	fs.String("timeout", "", "deadline for reading the catalog, e.g. 30s")
	fs.String("structures", "", "read table structures from this JSON file instead of the database")
}

// loadConfig merges the config file with flags and SHEETSQL_* environment variables, which win.
func loadConfig() (*config.Root, error) {
	cfg := config.Default()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load config %s", path)
		}
		cfg = loaded
	}

	c := &cfg.Connection
	overrideString(&c.Dialect, "dialect")
	overrideString(&c.Host, "host")
	overrideInt(&c.Port, "port")
	overrideString(&c.Username, "username")
	overrideString(&c.Password, "password")
	overrideString(&c.Database, "database")
	overrideString(&c.Schema, "schema")
	overrideInt(&cfg.Introspection.Concurrency, "concurrency")
	overrideString(&cfg.Introspection.Timeout, "timeout")
	overrideString(&cfg.Generate.Dialect, "db-type")
	overrideString(&cfg.Server.Addr, "addr")
	overrideString(&cfg.Log.Level, "log-level")
	overrideString(&cfg.Log.Format, "log-format")
	if viper.IsSet("allowed-origins") {
		cfg.Server.AllowedOrigins = viper.GetStringSlice("allowed-origins")
	}

	if err := setupLogger(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if viper.IsSet(key) && viper.GetString(key) != "" {
		*dst = viper.GetString(key)
	}
}

func overrideInt(dst *int, key string) {
	if viper.IsSet(key) && viper.GetInt(key) != 0 {
		*dst = viper.GetInt(key)
	}
}

func setupLogger(l config.LogSection) error {
	if l.Level != "" {
		level, err := logrus.ParseLevel(l.Level)
		if err != nil {
			return errors.Wrap(err, "invalid log level")
		}
		logrus.SetLevel(level)
	}
	switch l.Format {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Newf("invalid log format %q", l.Format)
	}
	logrus.SetOutput(os.Stderr)
	return nil
}

func newIntrospector(cfg *config.Root) (*introspect.Introspector, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, introspect.WithLogger(logrus.StandardLogger()))
	return introspect.New(opts...), nil
}

// loadTables reads structures from --structures when given, otherwise from the live catalog.
func loadTables(cmd *cobra.Command, cfg *config.Root) ([]schema.Table, error) {
	if path := viper.GetString("structures"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return schema.DecodeTables(f)
	}
	i, err := newIntrospector(cfg)
	if err != nil {
		return nil, err
	}
	return i.Introspect(cmd.Context(), cfg.Connection)
}

// output opens --out, or stdout when it is empty or "-".
func output(cmd *cobra.Command) (io.WriteCloser, error) {
	path, _ := cmd.Flags().GetString("out")
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
