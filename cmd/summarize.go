package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/gemini"
)

var (
	speakersJSON    bool
	speakersSummary bool
)

// loadTranscript puts the text to work on into the session: the named file,
// stdin for "-", or the saved transcript when no argument is given.
func loadTranscript(cmd *cobra.Command, a *app.App, args []string) error {
	if len(args) == 1 {
		data, err := readSource(cmd, args[0])
		if err != nil {
			return err
		}
		a.Session().SetFinalText(strings.TrimSpace(string(data)))
		return nil
	}
	if !a.Restore() {
		return app.ErrEmptyTranscript
	}
	return nil
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file|-]",
	Short: "Summarize a transcript with Gemini",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := loadTranscript(cmd, a, args); err != nil {
				return err
			}
			summary, err := a.Summarize(cmd.Context())
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		})
	},
}

var speakersCmd = &cobra.Command{
	Use:   "speakers [file|-]",
	Short: "Split a transcript into speakers with Gemini",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := loadTranscript(cmd, a, args); err != nil {
				return err
			}
			res, err := a.IdentifySpeakers(cmd.Context())
			if err != nil {
				return describe(err)
			}
			if res.Document == nil {
				cmd.PrintErrln("the reply was not speaker JSON; showing it as is")
				fmt.Fprintln(cmd.OutOrStdout(), res.Raw)
				return nil
			}

			if speakersJSON {
				data, err := a.Timeline().ExportJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				for _, u := range a.Timeline().Utterances() {
					fmt.Fprintf(cmd.OutOrStdout(), "【%s】%s\n", u.Name, u.Text)
				}
			}

			if speakersSummary {
				summary, err := a.SummarizeSpeakers(cmd.Context())
				if err != nil {
					return describe(err)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), summary)
			}
			return nil
		})
	},
}

// describe turns API failures into their user-facing message.
func describe(err error) error {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		return describedError{msg: gemini.Describe(err), err: err}
	}
	return err
}

type describedError struct {
	msg string
	err error
}

func (e describedError) Error() string { return e.msg }
func (e describedError) Unwrap() error { return e.err }

func init() {
	speakersCmd.Flags().BoolVar(&speakersJSON, "json", false, "print the utterances as JSON")
	speakersCmd.Flags().BoolVar(&speakersSummary, "summary", false, "also summarize what each speaker said")
	rootCmd.AddCommand(summarizeCmd, speakersCmd)
}
