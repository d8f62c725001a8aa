package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/app"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the Gemini API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Verify a key with one request and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			res := a.Summarizer().Verify(cmd.Context(), args[0])
			if !res.OK {
				return errors.New(res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		})
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := a.Summarizer().ClearKey(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
			return nil
		})
	},
}

var keyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a key is available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			switch {
			case cfg.APIKey != "":
				fmt.Fprintln(cmd.OutOrStdout(), "API key: set (environment)")
			case a.Summarizer().HasKey():
				fmt.Fprintln(cmd.OutOrStdout(), "API key: set")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "API key: not set")
			}
			return nil
		})
	},
}

var keyVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the active key with one request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			res := a.Summarizer().Verify(cmd.Context(), "")
			if !res.OK {
				return errors.New(res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		})
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyClearCmd, keyStatusCmd, keyVerifyCmd)
	rootCmd.AddCommand(keyCmd)
}
