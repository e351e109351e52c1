package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"benritz/sheetsql/internal/schema"
	"benritz/sheetsql/internal/sheet"
	"benritz/sheetsql/internal/sqlgen"
)

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Read the database catalog and print the table structures as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tables, err := loadTables(cmd, cfg)
		if err != nil {
			return err
		}
		out, err := output(cmd)
		if err != nil {
			return err
		}
		defer out.Close()
		return schema.EncodeTables(out, tables)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a workbook describing every table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeWorkbook(cmd, sheet.WriteStructure)
	},
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a data-entry workbook with one sheet of column headers per table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeWorkbook(cmd, sheet.WriteTemplate)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Turn a filled-in template workbook or JSON rows into INSERT statements",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		workbook, rows := viper.GetString("workbook"), viper.GetString("rows")
		if (workbook == "") == (rows == "") {
			return errors.New("exactly one of --workbook or --rows is required")
		}
		d, err := cfg.GenerateDialect()
		if err != nil {
			return err
		}
		tables, err := loadTables(cmd, cfg)
		if err != nil {
			return err
		}

		source := workbook
		decode := sheet.ReadPartitions
		if rows != "" {
			source, decode = rows, sqlgen.DecodePartitions
		}
		partitions, err := readPartitions(source, decode)
		if err != nil {
			return err
		}

		logger := logrus.WithField("source", source)
		res := sqlgen.NewGenerator(d, sqlgen.WithGeneratorLogger(logger)).Generate(partitions, tables)
		if res.Empty() {
			logger.Warn("no statements generated")
		} else {
			logger.WithFields(logrus.Fields{
				"statements": res.Statements,
				"tables":     len(res.Tables),
			}).Info("generated insert statements")
		}

		out, err := output(cmd)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = out.Write([]byte(res.Document))
		return err
	},
}

func readPartitions(path string, decode func(io.Reader) ([]sqlgen.Partition, error)) ([]sqlgen.Partition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

func writeWorkbook(cmd *cobra.Command, write func(io.Writer, []schema.Table) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("out")
	if path == "" {
		return errors.New("required flag --out missing")
	}
	tables, err := loadTables(cmd, cfg)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, tables); err != nil {
		f.Close()
		return err
	}
	logrus.WithFields(logrus.Fields{"file": path, "tables": len(tables)}).Info("wrote workbook")
	return f.Close()
}

func init() {
	for _, cmd := range []*cobra.Command{structureCmd, exportCmd, templateCmd, generateCmd} {
		connectionFlags(cmd.Flags())
		cmd.Flags().StringP("out", "o", "", "output file")
		rootCmd.AddCommand(cmd)
	}
	generateCmd.Flags().StringP("workbook", "w", "", "filled-in template workbook")
	generateCmd.Flags().String("rows", "", `JSON file of [{"name": sheet, "rows": [{column: value}]}] partitions`)
	generateCmd.Flags().String("db-type", "", "dialect of the generated SQL (default: connection dialect)")
}
