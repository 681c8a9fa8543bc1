package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/internal/export"
	"github.com/spf13/cobra"
)

var (
	format     string
	outputDir  string
	exportAll  bool
	clearCache bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [event-log|session-id]...",
	Short: "Export conversations to file",
	Long: `Export conversations to various formats (jsonl, md, yaml, json).

Each argument is an event log path or a session id in the history database.
Use --all to export every stored session, and --out - to write to stdout.
Use 'agent-stream list' to see stored session ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		if clearCache {
			if err := internal.NewSnapshotCache(cfg.CacheDir).ClearCache(); err != nil {
				internal.LogWarn("Failed to clear cache: %v", err)
			} else {
				internal.LogInfo("Cache cleared")
			}
		}

		targets := args
		if exportAll {
			ids, err := storedSessionIDs(cmd.Context())
			if err != nil {
				return err
			}
			targets = append(targets, ids...)
		}
		if len(targets) == 0 {
			return fmt.Errorf("nothing to export: pass event logs or session ids, or use --all")
		}

		if outputDir == "-" {
			for _, target := range targets {
				t, err := loadTranscript(cmd.Context(), target, true)
				if err != nil {
					return err
				}
				if err := exporter.Export(t, cmd.OutOrStdout()); err != nil {
					return &internal.ExportError{Format: format, Path: "-", Err: err}
				}
			}
			return nil
		}

		// Ensure output directory exists
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		exported := 0
		err = internal.ShowProgress(cmd.Context(), fmt.Sprintf("Exporting %d session(s) to %s", len(targets), outputDir), func() error {
			for _, target := range targets {
				t, err := loadTranscript(cmd.Context(), target, true)
				if err != nil {
					internal.LogError("Failed to load %s: %v", target, err)
					continue
				}
				if err := exportTo(exporter, t, outputDir); err != nil {
					internal.LogError("%v", err)
					continue
				}
				exported++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if exported == 0 {
			return fmt.Errorf("no sessions exported")
		}

		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Export complete: %d session(s) exported to %s", exported, outputDir))
		return nil
	},
}

func exportTo(exporter export.Exporter, t *internal.Transcript, dir string) error {
	filename := fmt.Sprintf("session_%s.%s", t.ID, exporter.Extension())
	path := filepath.Join(dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := exporter.Export(t, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	return nil
}

func storedSessionIDs(ctx context.Context) ([]string, error) {
	store, err := internal.OpenHistoryStore(cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory, or - for stdout")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every session in the history database")
	exportCmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Clear the cache before running")
}
