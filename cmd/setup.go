package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/config"
	"github.com/fakeyudi/minutes/internal/profile"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure minutes (re-run anytime to edit settings)",
	// Bypass the normal PersistentPreRunE so setup works before a config exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd)
	},
}

// runSetup runs the interactive setup wizard and saves the global config.
// A key given during setup is verified and stored like `minutes key set`.
func runSetup(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	existing := config.Defaults()
	if global, err := config.LoadGlobal(); err == nil {
		existing = *global
	}

	ans, err := profile.RunSetup(existing, cmd.InOrStdin(), out)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := config.SaveGlobal(ans.Config); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintln(out, "  ✓ Config saved.")

	if ans.APIKey != "" {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		res := a.Summarizer().Verify(context.Background(), ans.APIKey)
		if res.OK {
			fmt.Fprintln(out, "  ✓ API key verified and saved.")
		} else {
			fmt.Fprintf(out, "  ⚠ API key not saved: %s\n", res.Message)
			fmt.Fprintln(out, "    You can retry with: minutes key set <key>")
		}
	}

	fmt.Fprintln(out, "  Setup complete. Run 'minutes run' to start transcribing.")
	fmt.Fprintln(out)
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
