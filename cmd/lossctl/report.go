package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gridloss/internal/config"
	"gridloss/internal/lossengine/application"
	"gridloss/internal/lossengine/application/eventbus"
	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/domain/record"
	"gridloss/internal/lossengine/infrastructure/memory"
	"gridloss/internal/lossengine/infrastructure/sample"
	"gridloss/internal/lossengine/infrastructure/xlsx"
	"gridloss/internal/lossengine/interfaces/export"
)

type reportOptions struct {
	input   string
	output  string
	formats []string
	headers string
}

func newReportCmd() *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute losses for a workbook and write the result files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "in", "", "Input workbook (default: generated sample dataset)")
	cmd.Flags().StringVar(&opts.output, "out", ".", "Output directory")
	cmd.Flags().StringSliceVar(&opts.formats, "format", []string{export.FormatCSV, export.FormatXLSX, export.FormatPDF}, "Output formats: csv, xlsx, pdf")
	cmd.Flags().StringVar(&opts.headers, "headers", "", "YAML file with header candidate overrides (same shape as the service config)")
	return cmd
}

func runReport(ctx context.Context, out io.Writer, opts reportOptions) error {
	var source application.RecordSource = sample.Source{}
	if opts.input != "" {
		source = xlsx.WorkbookSource{Path: opts.input}
	}

	fields, err := loadFieldSet(opts.headers)
	if err != nil {
		return err
	}

	repo := memory.NewSnapshotRepository(1)
	rebuild, err := application.NewRebuildService(repo, eventbus.NewInMemoryBus(),
		application.WithFieldSet(fields),
		application.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		return err
	}
	snap, err := rebuild.RebuildFrom(ctx, source)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.output, 0o755); err != nil {
		return err
	}
	for _, format := range opts.formats {
		format = strings.ToLower(strings.TrimSpace(format))
		data, err := export.Build(format, snap)
		if err != nil {
			return fmt.Errorf("export %s: %w", format, err)
		}
		path := filepath.Join(opts.output, "results."+format)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", path)
	}

	query, err := application.NewQueryService(repo, network.DefaultBands())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(query.SummaryOf(snap))
}

// loadFieldSet reads the headers section of a service config file.
func loadFieldSet(path string) (record.FieldSet, error) {
	cfg := config.Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return record.FieldSet{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return record.FieldSet{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg.FieldSet()
}
