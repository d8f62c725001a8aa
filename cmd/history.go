package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/history"
)

var (
	historySearch string
	historyJSON   bool
	exportFormat  string
	exportOut     string
	downloadDir   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved transcripts",
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app.App) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func parseIndex(s string, a *app.App) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > a.History().Len() {
		return 0, fmt.Errorf("invalid history index %q (have %d entries)", s, a.History().Len())
	}
	return n - 1, nil
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved transcripts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			rows := a.History().Display(historySearch)
			if historyJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(none)")
				return nil
			}
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s  %s\n", r.Index+1, r.Entry.Date, strings.ReplaceAll(r.Entry.Text, "\n", " "))
			}
			return nil
		})
	},
}

var historyAddCmd = &cobra.Command{
	Use:   "add <text...>",
	Short: "Save text to history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			text := strings.Join(args, " ")
			reading := ""
			if c := a.Converter(); c != nil {
				if err := initDictionary(cmd, a); err == nil {
					reading = c.Convert(text)
				}
			}
			e, err := a.History().Append(text, reading)
			if err != nil {
				return err
			}
			if e == nil {
				return app.ErrEmptyTranscript
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved (%d entries)\n", a.History().Len())
			return nil
		})
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <index>",
	Short: "Delete one entry (1 is the oldest)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			i, err := parseIndex(args[0], a)
			if err != nil {
				return err
			}
			if err := a.DeleteHistory(i); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted entry %d\n", i+1)
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := a.History().Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history as json, csv or txt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			data, err := a.History().Export(exportFormat)
			if err != nil {
				return err
			}
			if exportOut == "" || exportOut == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(exportOut, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", a.History().Len(), exportOut)
			return nil
		})
	},
}

var historyImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Replace history with an exported JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readSource(cmd, args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			if err := a.ImportHistory(data, "json"); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", a.History().Len())
			return nil
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			st := a.History().Stats()
			if historyJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			retention := "forever"
			if st.RetentionDays > 0 {
				retention = fmt.Sprintf("%d days", st.RetentionDays)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries:     %d/%d\n", st.TotalItems, st.MaxItems)
			fmt.Fprintf(cmd.OutOrStdout(), "Retention:   %s\n", retention)
			fmt.Fprintf(cmd.OutOrStdout(), "Characters:  %d (avg %d)\n", st.TotalCharacters, st.AverageLength)
			if st.TotalItems > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Oldest:      %s\n", st.Oldest)
				fmt.Fprintf(cmd.OutOrStdout(), "Newest:      %s\n", st.Newest)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Storage:     %s\n", st.StorageSize)
			return nil
		})
	},
}

var historyDownloadCmd = &cobra.Command{
	Use:   "download <index>",
	Short: "Write one entry to a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			i, err := parseIndex(args[0], a)
			if err != nil {
				return err
			}
			e, _ := a.History().Get(i)
			path := filepath.Join(downloadDir, a.History().DownloadName(i))
			if err := os.WriteFile(path, []byte(history.DownloadText(e)), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

// readSource reads a file, or stdin when name is "-".
func readSource(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", name)
		}
		return nil, err
	}
	return data, nil
}

func init() {
	historyListCmd.Flags().StringVar(&historySearch, "search", "", "only entries containing this text")
	historyListCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")
	historyStatsCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")
	historyExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json, csv or txt")
	historyExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "file to write (default stdout)")
	historyDownloadCmd.Flags().StringVarP(&downloadDir, "dir", "d", ".", "directory to write to")

	historyCmd.AddCommand(historyListCmd, historyAddCmd, historyRmCmd, historyClearCmd,
		historyExportCmd, historyImportCmd, historyStatsCmd, historyDownloadCmd)
	rootCmd.AddCommand(historyCmd)
}
