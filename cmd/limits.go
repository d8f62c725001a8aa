package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/minutes/internal/app"
)

var limitsJSON bool

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show Gemini rate-limit usage per model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			stats := a.Summarizer().Stats()
			if limitsJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %11s %17s %11s\n", "MODEL", "RPM", "TPM", "RPD")
			for _, st := range stats {
				rpd := "-"
				if st.Daily != nil {
					rpd = fraction(st.Daily.Used, st.Daily.Limit)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %11s %17s %11s\n", st.Model,
					fraction(st.Requests.Used, st.Requests.Limit),
					fraction(st.Tokens.Used, st.Tokens.Limit),
					rpd)
			}
			return nil
		})
	},
}

func fraction(used, limit int) string {
	return strconv.Itoa(used) + "/" + strconv.Itoa(limit)
}

func init() {
	limitsCmd.Flags().BoolVar(&limitsJSON, "json", false, "print JSON")
	rootCmd.AddCommand(limitsCmd)
}
