package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/ict-watcher/internal/config"
	"github.com/mvp-joe/ict-watcher/internal/extract"
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Print the node tree of an ICT log",
	Long: `Parse reads one log file and prints its node tree, one node per line as
"name: payload", indented by depth. Repeated sibling names appear with their
_1, _2 ... suffixes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runParse(cfg, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the result record of an ICT log",
	Long: `Extract parses one log file and prints the record that would be stored:
product name, part number, start and end time, and pass flag. Nothing is
written to the database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runExtract(cfg, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(extractCmd)
}

func runParse(cfg *config.Config, path string, out, stderr io.Writer) error {
	root, err := cfg.Parser().ParseFile(path)
	if err != nil {
		return err
	}
	for _, p := range root.SuspectNames() {
		fmt.Fprintf(stderr, "warning: node name contains a brace: %s\n", p)
	}
	return root.Dump(out)
}

func runExtract(cfg *config.Config, path string, out io.Writer) error {
	ex, err := cfg.Extractor()
	if err != nil {
		return err
	}
	root, err := cfg.Parser().ParseFile(path)
	if err != nil {
		return err
	}
	rec, ok, err := ex.Extract(root)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !ok {
		fmt.Fprintf(out, "%s: no test data\n", path)
		return nil
	}
	printRecord(out, rec)
	return nil
}

func printRecord(out io.Writer, rec extract.Record) {
	const layout = "2006-01-02 15:04:05 MST"
	fmt.Fprintf(out, "product_name: %s\n", rec.ProductName)
	fmt.Fprintf(out, "part_number:  %s\n", rec.PartNumber)
	fmt.Fprintf(out, "start_time:   %s\n", rec.StartTime.Format(layout))
	fmt.Fprintf(out, "end_time:     %s\n", rec.EndTime.Format(layout))
	fmt.Fprintf(out, "passed:       %s\n", rec.Passed)
}
