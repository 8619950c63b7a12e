package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/earnings-extractor/client/cmd/extractor/ui"
	"github.com/earnings-extractor/client/internal/models"
)

var historyOutput string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past extractions",
	Long: `Fetch the extraction history from the backend. An unreachable backend
or a backend without history storage both show an empty history.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(historyOutput)
	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", historyOutput)
	}

	a := newApp(cfg, logger, "cli")
	defer a.Close()

	a.history.Start(context.Background())
	return printHistory(a.history.View(), format)
}

func printHistory(view models.HistoryView, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(ui.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(ui.Writer())
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(view.Items) == 0 {
		ui.Message("%s", view.Message)
		return nil
	}

	rows := make([][]string, 0, len(view.Items))
	for _, item := range view.Items {
		rows = append(rows, []string{
			item.Timestamp,
			strings.Join(item.InputFileNames, "\n"),
			item.DownloadURL,
		})
	}
	ui.Table([]string{"Created", "Files", "Download"}, rows)
	return nil
}
