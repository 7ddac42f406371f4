package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridloss/internal/lossengine/infrastructure/sample"
	"gridloss/internal/lossengine/infrastructure/xlsx"
)

type sampleOptions struct {
	output string
	sheet  string
}

func newSampleCmd() *cobra.Command {
	var opts sampleOptions

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the generated sample dataset as a workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(opts.output)
			if err != nil {
				return err
			}
			if err := xlsx.WriteRecords(f, opts.sheet, sample.Headers, sample.Rows()); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.output, "out", "", "Output workbook path")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "Data", "Sheet name")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
