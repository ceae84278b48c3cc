// Command catalog-preview reads a catalog workbook locally and prints the
// detected column mapping, mapped records and row errors as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"catalog-service/ingest"
	"catalog-service/sheet"

	"github.com/spf13/cobra"
)

type previewOutput struct {
	Sheet     string                  `json:"sheet"`
	Headers   []string                `json:"headers"`
	ColumnMap ingest.ColumnMapping    `json:"columnMap"`
	Valid     bool                    `json:"valid"`
	Error     string                  `json:"error,omitempty"`
	TotalRows int                     `json:"totalRows"`
	Records   []ingest.ProductRecord  `json:"records"`
	Errors    []ingest.IngestionError `json:"errors"`
}

type previewOptions struct {
	sharedHeaders  bool
	exemptFirstRow bool
	headersOnly    bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts previewOptions
	cmd := &cobra.Command{
		Use:           "catalog-preview <file.xlsx>",
		Short:         "Preview how a catalog spreadsheet would be imported",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return runPreview(out, f, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.sharedHeaders, "shared-headers", false, "let one header match several fields")
	cmd.Flags().BoolVar(&opts.exemptFirstRow, "exempt-first-row", false, "drop a failing first data row silently")
	cmd.Flags().BoolVar(&opts.headersOnly, "headers-only", false, "print the column mapping without rows")
	return cmd
}

func runPreview(out io.Writer, r io.Reader, opts previewOptions) error {
	table, err := sheet.Decode(r)
	if err != nil {
		return err
	}

	detector := ingest.Detector{Policy: ingest.ClaimOnce}
	if opts.sharedHeaders {
		detector.Policy = ingest.ShareHeaders
	}
	mapping := detector.Detect(table.Headers)
	check := ingest.ValidateMapping(mapping)

	res := previewOutput{
		Sheet:     table.Sheet,
		Headers:   table.Headers,
		ColumnMap: mapping,
		Valid:     check.Valid,
		Error:     check.Error,
		TotalRows: len(table.Rows),
		Records:   []ingest.ProductRecord{},
		Errors:    []ingest.IngestionError{},
	}
	if check.Valid && !opts.headersOnly {
		batch := ingest.Options{ExemptFirstRow: opts.exemptFirstRow}.ProcessRows(table.Rows, mapping)
		res.Records = batch.Records
		res.Errors = batch.Errors
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
