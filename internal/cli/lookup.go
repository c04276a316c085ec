package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [subject] [query]",
	Short: "Resolve a name against a subject's record table",
	Long: `Fuzzy-match query against the subject's record table and print the
best entry. Requires lookup.record_source_url to be configured.

Example:
  droprelay lookup player1 zilyana`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := buildLookup(cfg)
		if cache == nil {
			return fmt.Errorf("lookup.record_source_url is not configured")
		}

		match, err := cache.Resolve(cmd.Context(), args[1], args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s\t%d\t(ratio %d)\n", match.Record.DisplayName, match.Record.Score, match.Ratio)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
