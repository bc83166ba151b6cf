package main

import (
	"fmt"

	"csv-import-export/parsers"

	"github.com/spf13/cobra"
)

func newHeadersCmd() *cobra.Command {
	var flags codecFlags

	cmd := &cobra.Command{
		Use:   "headers [file]",
		Short: "Print the header labels of a delimited file",
		Args:  cobra.MaximumNArgs(1),
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

			hs, err := parsers.CSVHeaders(in, cfg)
			if err != nil {
				return err
			}
			for i, h := range hs.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", i+1, h.Label, h.Type())
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
