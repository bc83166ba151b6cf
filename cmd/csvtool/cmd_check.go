package main

import (
	"fmt"

	"csv-import-export/csvcodec"
	"csv-import-export/parsers"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var flags codecFlags

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Report every invalid line of a delimited file",
		Long: `Decode a delimited file and report each line that cannot be decoded,
with its line number and error kind.

Invalid lines are always skipped so that all of them are reported. With
--schema, values are also checked against the column types. Exits non-zero
when any line is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			var invalid []*csvcodec.Error
			cfg.Options |= csvcodec.IgnoreInvalidLines
			cfg.OnSkip = func(cerr *csvcodec.Error) {
				invalid = append(invalid, cerr)
			}

			records := 0
			rows, errs := parsers.ParseCSV(cmd.Context(), in, cfg)
			for range rows {
				records++
			}
			if err := <-errs; err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, cerr := range invalid {
				if cerr.Header != "" {
					fmt.Fprintf(out, "line %d: %s: %s: %v\n", cerr.Line, cerr.Kind, cerr.Header, cerr.Err)
				} else {
					fmt.Fprintf(out, "line %d: %s: %v\n", cerr.Line, cerr.Kind, cerr.Err)
				}
			}
			fmt.Fprintf(out, "%d records, %d invalid lines\n", records, len(invalid))
			if len(invalid) > 0 {
				return fmt.Errorf("%d invalid lines", len(invalid))
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
