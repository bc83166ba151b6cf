package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"csv-import-export/common"
	"csv-import-export/csvcodec"
	"csv-import-export/datasets"

	"github.com/spf13/cobra"
)

// codecFlags are the decoding flags shared by every command.
type codecFlags struct {
	delimiter string
	options   string
	schema    string
	verbose   bool
}

func (f *codecFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.delimiter, "delimiter", "d", ",", "field delimiter, may be several characters")
	cmd.Flags().StringVarP(&f.options, "options", "o", "", "codec options, e.g. trim_fields,check_cardinality")
	cmd.Flags().StringVar(&f.schema, "schema", "", "JSON file with a column list used to type values")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log skipped lines to stderr")
}

// config builds the decoder configuration the flags describe.
func (f *codecFlags) config(cmd *cobra.Command) (csvcodec.Config, error) {
	opts, err := csvcodec.ParseOptions(f.options)
	if err != nil {
		return csvcodec.Config{}, err
	}
	level := "error"
	if f.verbose {
		level = "warn"
	}
	cfg := csvcodec.Config{
		Delimiter: f.delimiter,
		Options:   opts,
		Logger:    common.NewLogger(cmd.ErrOrStderr(), level, "text"),
	}
	if f.schema != "" {
		hs, err := loadSchema(f.schema)
		if err != nil {
			return csvcodec.Config{}, err
		}
		cfg.Resolver = csvcodec.NewResolverMap(hs.List()...)
	}
	return cfg, cfg.Validate()
}

func loadSchema(path string) (csvcodec.Headers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return csvcodec.Headers{}, fmt.Errorf("read schema: %w", err)
	}
	var schema datasets.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return csvcodec.Headers{}, fmt.Errorf("parse schema: %w", err)
	}
	return schema.Headers()
}

// openInput opens the named file, or stdin when there is no name or it is "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
