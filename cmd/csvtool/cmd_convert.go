package main

import (
	"fmt"
	"io"
	"os"

	"csv-import-export/csvcodec"

	"github.com/spf13/cobra"
)

// writerOnly hides Close so the encoder leaves stdout open.
type writerOnly struct{ io.Writer }

func newConvertCmd() *cobra.Command {
	var flags codecFlags
	var toDelimiter, outOptions, output string

	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Re-encode a delimited file with another delimiter",
		Long: `Decode a delimited file and write it again, quoting fields as needed
for the output delimiter.

Reads stdin when no file is given and writes stdout unless --output is set.
Decoding stops at the first invalid line unless --options includes
ignore_invalid_lines.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			encOpts, err := csvcodec.ParseOptions(outOptions)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			dec, err := csvcodec.NewDecoder(in, cfg)
			if err != nil {
				return err
			}

			var w io.Writer = writerOnly{cmd.OutOrStdout()}
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				w = f
			}
			enc, err := csvcodec.NewEncoder(w, csvcodec.Config{
				Delimiter: toDelimiter,
				Options:   encOpts,
				Headers:   dec.Headers(),
			})
			if err != nil {
				if c, ok := w.(io.Closer); ok {
					c.Close()
				}
				return err
			}
			defer enc.Close()

			if err := enc.WriteHeaders(); err != nil {
				return err
			}
			for rec, err := range dec.Records() {
				if err != nil {
					return err
				}
				if err := enc.WriteRecord(rec); err != nil {
					return err
				}
			}
			if dec.Skipped() > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d invalid lines\n", dec.Skipped())
			}
			return enc.Close()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&toDelimiter, "to-delimiter", "t", ",", "output field delimiter")
	cmd.Flags().StringVar(&outOptions, "out-options", "", "output codec options, e.g. trim_fields")
	cmd.Flags().StringVar(&output, "output", "", "write to this file instead of stdout")
	return cmd
}
