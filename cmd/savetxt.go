package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/app"
)

var saveTxtDir string

var saveTxtCmd = &cobra.Command{
	Use:   "save-txt",
	Short: "Write the saved transcript to speech-text-<date>.txt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if !a.Restore() {
				return app.ErrEmptyTranscript
			}
			path, err := a.SaveTxt(saveTxtDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

func init() {
	saveTxtCmd.Flags().StringVarP(&saveTxtDir, "output", "o", ".", "directory to write to")
	rootCmd.AddCommand(saveTxtCmd)
}
