package cmd

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved transcript, key and recognizer status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if a.Restore() {
				final, _ := a.Transcript()
				fmt.Fprintf(cmd.OutOrStdout(), "Transcript: %d characters saved\n", utf8.RuneCountInString(final))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Transcript: none")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "History: %d/%d entries\n", a.History().Len(), a.History().MaxItems())

			key := "not set"
			if a.Summarizer().HasKey() {
				key = "set"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model: %s (API key %s)\n", a.Summarizer().Model(), key)

			recognizer := "unavailable"
			if c, err := engine.Connect(cfg.Socket); err == nil {
				if resp, err := c.Status(); err == nil {
					recognizer = "ready"
					if resp.Listening != nil && *resp.Listening {
						recognizer = "listening"
					}
				}
				c.Close()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recognizer: %s (%s)\n", recognizer, cfg.Socket)
			fmt.Fprintf(cmd.OutOrStdout(), "Storage: %s in %s\n", cfg.Storage, cfg.DataDir)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
