package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/earnings-extractor/client/cmd/extractor/ui"
	"github.com/earnings-extractor/client/internal/models"
	"github.com/earnings-extractor/client/internal/processing"
	"github.com/earnings-extractor/client/internal/workbook"
)

var (
	processOutDir      string
	processPreviewRows int
)

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Extract metrics from PDF earnings reports",
	Long: `Upload the given PDFs in one request, wait for the backend to build the
spreadsheet, and save it as pdf_report.xlsx in the output directory.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutDir, "out", "o", "", "directory to save pdf_report.xlsx in (default DOWNLOAD_DIR or .)")
	processCmd.Flags().IntVar(&processPreviewRows, "preview", 10, "rows of each sheet to print after download, 0 to skip")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	files, err := readSelection(args)
	if err != nil {
		return err
	}

	a := newApp(cfg, logger, "cli")
	defer a.Close()

	if err := a.processing.Select(files); err != nil {
		return err
	}

	ui.Section("PDF Extraction")
	for _, f := range files {
		ui.Info("%s (%s)", f.Name, ui.Bytes(int64(len(f.Content))))
	}

	spin := ui.NewSpinner(fmt.Sprintf("Processing %d file(s)...", len(files)))
	spin.Start()
	err = a.processing.Process(context.Background())
	spin.Stop()

	switch {
	case errors.Is(err, processing.ErrNoFiles):
		ui.Error("%s", processing.ValidationMessage)
		return err
	case err != nil:
		ui.Error("%s", a.processing.Snapshot().Error)
		return err
	}

	dir := processOutDir
	if dir == "" {
		dir = cfg.GetDownloadDir()
	}
	sink := processing.DirSink{Dir: dir}
	if err := a.processing.Download(sink); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	snap := a.processing.Snapshot()
	ui.Success("Saved %s (%s)", sink.Path(models.ResultFilename), ui.Bytes(snap.Result.Size))

	if view := a.history.View(); view.Status == models.HistoryStatusLoaded {
		ui.Info("%d extraction(s) in history", len(view.Items))
	}

	if processPreviewRows > 0 {
		printPreview(sink.Path(models.ResultFilename), processPreviewRows)
	}
	return nil
}

// readSelection loads the named PDFs in argument order.
func readSelection(paths []string) ([]models.SelectedFile, error) {
	files := make([]models.SelectedFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, models.SelectedFile{Name: filepath.Base(p), Content: data})
	}
	return files, nil
}

func printPreview(path string, rows int) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Msg("preview unavailable")
		return
	}

	sheets, err := workbook.Preview(data, rows)
	if err != nil {
		ui.Warning("Result could not be previewed: %v", err)
		return
	}

	for _, sheet := range sheets {
		ui.Section(sheet.Name)
		if len(sheet.Rows) == 0 {
			ui.Message("(empty)")
			continue
		}
		ui.Table(sheet.Rows[0], padRows(sheet.Rows[1:], len(sheet.Rows[0])))
		if sheet.Truncated {
			ui.Message("... more rows in %s", filepath.Base(path))
		}
	}
}

// padRows gives every row the same width; trailing empty cells are
// omitted when sheets are read.
func padRows(rows [][]string, width int) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		if len(r) < width {
			r = append(r, make([]string, width-len(r))...)
		}
		out = append(out, r)
	}
	return out
}

