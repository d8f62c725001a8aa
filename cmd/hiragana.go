package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/hiragana"
)

var errNoDict = errors.New("hiragana dictionary disabled")

// initDictionary loads the tokenizer, bounded by the configured timeout.
func initDictionary(cmd *cobra.Command, a *app.App) error {
	if noDict {
		return errNoDict
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return a.InitDictionary(ctx, hiragana.LoadKagome)
}

var hiraganaCmd = &cobra.Command{
	Use:   "hiragana <text...>",
	Short: "Print the hiragana reading of Japanese text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := initDictionary(cmd, a); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.Converter().Convert(strings.Join(args, " ")))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(hiraganaCmd)
}
