package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/datacache/internal/cache"
	"github.com/rohmanhakim/datacache/internal/dataset"
)

var (
	datasetRows     int
	datasetSep      string
	datasetNoHeader bool
)

// Rows printed when --rows is left unset.
const defaultPreviewRows = 5

var headCmd = &cobra.Command{
	Use:   "head <reference>",
	Short: "Print the first rows of a cached CSV file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSlice(cmd, args[0], takeLeading)
	},
}

var tailCmd = &cobra.Command{
	Use:   "tail <reference>",
	Short: "Print the last rows of a cached CSV file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSlice(cmd, args[0], takeTrailing)
	},
}

func init() {
	for _, command := range []*cobra.Command{headCmd, tailCmd} {
		command.Flags().IntVar(&datasetRows, "rows", defaultPreviewRows, "number of rows to print")
		command.Flags().StringVar(&datasetSep, "sep", "", "field separator (defaults to the configured one)")
		command.Flags().BoolVar(&datasetNoHeader, "no-header", false, "treat the first row as data, label columns by position")
		rootCmd.AddCommand(command)
	}
}

func takeLeading(table dataset.Table, n int) dataset.Table  { return table.Head(n) }
func takeTrailing(table dataset.Table, n int) dataset.Table { return table.Tail(n) }

func runSlice(cmd *cobra.Command, reference string, slice func(dataset.Table, int) dataset.Table) error {
	if datasetRows < 0 {
		return fmt.Errorf("rows cannot be negative")
	}

	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)
	facade := newFacade(cfg, logger)

	result, getErr := facade.GetOrFetch(cmd.Context(), reference, cache.NewGetParam(false))
	if getErr != nil {
		return getErr
	}

	table, loadErr := dataset.Load(
		result.LocalPath(),
		dataset.NewLoadParam(cfg.CsvSeparatorRune(), cfg.CsvHasHeader(), nil),
	)
	if loadErr != nil {
		return loadErr
	}

	rows := datasetRows
	if rows == 0 {
		rows = defaultPreviewRows
	}
	sliced := slice(table, rows)
	return renderTable(cmd.OutOrStdout(), sliced)
}

// renderTable prints the column row and the records aligned in columns.
func renderTable(w io.Writer, table dataset.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Columns(), "\t"))
	for _, record := range table.Rows() {
		fmt.Fprintln(tw, strings.Join(record, "\t"))
	}
	return tw.Flush()
}
