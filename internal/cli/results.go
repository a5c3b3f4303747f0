package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/ict-watcher/internal/config"
	"github.com/mvp-joe/ict-watcher/internal/storage"
)

var (
	resultsWhere  []string
	resultsColumn string
	resultsLimit  uint64
	resultsEvents string
)

// resultsCmd represents the results command
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored test results",
	Long: `Results prints rows of the results table, newest first.

Examples:
  # Last 20 results
  ictwatch results --limit 20

  # Failed runs of one product
  ictwatch results --where product_name=ProdA --where passed=0

  # Just the part numbers
  ictwatch results --column part_number

  # Files that could not be ingested
  ictwatch results --events=failed
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts := resultsOptions{
			where:  resultsWhere,
			column: resultsColumn,
			limit:  resultsLimit,
		}
		if cmd.Flags().Changed("events") {
			opts.events = true
			opts.status = resultsEvents
		}
		return runResults(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.Flags().StringArrayVar(&resultsWhere, "where", nil, "filter as column=value (repeatable)")
	resultsCmd.Flags().StringVar(&resultsColumn, "column", "", "print only this column")
	resultsCmd.Flags().Uint64Var(&resultsLimit, "limit", 50, "maximum rows, 0 for all")
	resultsCmd.Flags().StringVar(&resultsEvents, "events", "", "show the ingest audit trail instead, optionally filtered by status")
	resultsCmd.Flags().Lookup("events").NoOptDefVal = " "
}

type resultsOptions struct {
	where  []string
	column string
	limit  uint64
	events bool
	status string
}

func runResults(ctx context.Context, cfg *config.Config, opts resultsOptions, out io.Writer) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if opts.events {
		return printEvents(ctx, db, strings.TrimSpace(opts.status), opts.limit, out)
	}

	resultsTable := cfg.Database.ResultsTable
	filters, err := parseWhere(opts.where)
	if err != nil {
		return err
	}
	where, err := db.Filter(ctx, resultsTable, filters)
	if err != nil {
		return err
	}

	if opts.column != "" {
		values, err := db.ColumnValues(ctx, resultsTable, opts.column, where)
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Fprintln(out, formatValue(v))
		}
		return nil
	}

	columns, rows, err := db.Rows(ctx, resultsTable, where, opts.limit)
	if err != nil {
		return err
	}
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = formatValue(v)
		}
	}
	fmt.Fprintln(out, renderTable(columns, cells))
	fmt.Fprintf(out, "%s row(s)\n", formatNumber(len(rows)))
	return nil
}

func printEvents(ctx context.Context, db *storage.DB, status string, limit uint64, out io.Writer) error {
	events, err := db.Events(ctx, status, limit)
	if err != nil {
		return err
	}
	cells := make([][]string, len(events))
	for i, ev := range events {
		cells[i] = []string{
			ev.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			ev.Status,
			ev.ErrorKind,
			ev.Path,
			ev.Message,
		}
	}
	fmt.Fprintln(out, renderTable([]string{"time", "status", "kind", "path", "message"}, cells))
	fmt.Fprintf(out, "%s event(s)\n", formatNumber(len(events)))
	return nil
}

// parseWhere turns column=value pairs into a filter map.
func parseWhere(pairs []string) (map[string]any, error) {
	filters := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		column, value, ok := strings.Cut(pair, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid --where %q, expected column=value", pair)
		}
		filters[column] = value
	}
	return filters, nil
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
