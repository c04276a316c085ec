package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/droprelay/droprelay/internal/models"
	"github.com/droprelay/droprelay/internal/rules"
	"github.com/droprelay/droprelay/internal/service"
	"github.com/droprelay/droprelay/internal/watermark"
)

var (
	ruleName     string
	ruleDest     string
	ruleKeywords string
	ruleMinValue int64
	ruleLevels   []int
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Forwarding rules management",
	Long:  "Create, list, and remove forwarding rules in the configured store",
}

var rulesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List forwarding rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := storeService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := svc.ListRules(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		if resp.Total == 0 {
			fmt.Println("No forwarding rules configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESTINATION\tKEYWORDS\tMIN VALUE\tLEVELS")
		for _, r := range resp.Rules {
			levels := "any"
			if r.SpecificLevels != nil {
				levels = strings.Trim(strings.Join(strings.Fields(fmt.Sprint(r.SpecificLevels)), ","), "[]")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				r.Name, r.Destination, strings.Join(r.Keywords, ","), r.MinValue, levels)
		}
		return w.Flush()
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a forwarding rule",
	Long: `Add a forwarding rule to the configured store.

Examples:
  droprelay rules add --name "big drops" --dest loot-feed \
      --keywords vorkath,zulrah --min-value 1000000

  droprelay rules add --name "milestones" --dest levels-feed \
      --keywords levelled --levels 99,120`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := storeService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		req := &models.CreateRuleRequest{
			Name:           ruleName,
			Destination:    ruleDest,
			Keywords:       strings.Split(ruleKeywords, ","),
			MinValue:       ruleMinValue,
			SpecificLevels: ruleLevels,
		}
		rule, err := svc.CreateRule(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to add rule: %w", err)
		}

		fmt.Printf("Rule %q created (%s)\n", rule.Name, rule.ID)
		return nil
	},
}

var rulesRemoveCmd = &cobra.Command{
	Use:     "remove [name]",
	Aliases: []string{"rm"},
	Short:   "Remove a forwarding rule by name",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := storeService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := svc.DeleteRule(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to remove rule: %w", err)
		}
		fmt.Printf("Rule %q removed\n", args[0])
		return nil
	},
}

func init() {
	rulesAddCmd.Flags().StringVar(&ruleName, "name", "", "rule name (unique, case-insensitive)")
	rulesAddCmd.Flags().StringVar(&ruleDest, "dest", "", "destination channel")
	rulesAddCmd.Flags().StringVar(&ruleKeywords, "keywords", "", "comma-separated keywords (any match forwards)")
	rulesAddCmd.Flags().Int64Var(&ruleMinValue, "min-value", 0, "minimum total value")
	rulesAddCmd.Flags().IntSliceVar(&ruleLevels, "levels", nil, "restrict to these extracted levels")
	rulesAddCmd.MarkFlagRequired("name")
	rulesAddCmd.MarkFlagRequired("dest")
	rulesAddCmd.MarkFlagRequired("keywords")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
	rootCmd.AddCommand(rulesCmd)
}

// storeService opens the configured store and wraps it in the admin
// service. The relay picks changes up on its next reload.
func storeService(ctx context.Context) (*service.Service, func(), error) {
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	provider := rules.NewProvider(repo)
	if _, err := provider.Reload(ctx); err != nil {
		repo.Close()
		return nil, nil, err
	}
	tracker := watermark.NewTracker(repo)
	if err := tracker.Load(ctx); err != nil {
		repo.Close()
		return nil, nil, err
	}

	svc := service.NewService(repo, provider, tracker, buildLookup(cfg))
	return svc, func() { repo.Close() }, nil
}
