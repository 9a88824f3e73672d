package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"loreforge/internal/loreconfig"
	"loreforge/internal/obslog"
	"loreforge/internal/reputation"
)

func reputationLedgerPath() string { return dataPath(cfg.Reputation.LedgerPath) }
func reputationRulesPath() string  { return dataPath(cfg.Reputation.RulesPath) }

var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "Inspect and adjust faction standing",
}

var reputationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the full faction ledger as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger := reputation.LoadLedgerFile(reputationLedgerPath())
		return printJSON(ledger)
	},
}

var reputationTierCmd = &cobra.Command{
	Use:   "tier <faction>",
	Short: "Print one faction's score and tier label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger := reputation.LoadLedgerFile(reputationLedgerPath())
		faction := reputation.NormalizeFactionName(args[0])
		score := ledger.Scores[faction]
		fmt.Printf("%s: %d (%s)\n", faction, score, reputation.Tier(score))
		return nil
	},
}

var reputationAdjustCmd = &cobra.Command{
	Use:   "adjust <faction> <delta> <reason> <source>",
	Short: "Apply one manual reputation adjustment and persist the ledger",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid delta: %w", err)
		}

		ledger := reputation.LoadLedgerFile(reputationLedgerPath())
		after := ledger.Adjust(time.Now(), args[0], delta, args[2], args[3])
		if err := reputation.SaveLedgerFile(reputationLedgerPath(), ledger); err != nil {
			return err
		}
		fmt.Printf("%s: %d (%s)\n", reputation.NormalizeFactionName(args[0]), after, reputation.Tier(after))
		return nil
	},
}

var reputationRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the active reputation rule table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := reputation.LoadRulesFile(reputationRulesPath())
		return printJSON(rules)
	},
}

var reputationWatchCmd = &cobra.Command{
	Use:   "watch-rules",
	Short: "Watch the rule table file for edits and hot-reload it until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := reputation.NewRuleStore()
		watcher, err := loreconfig.NewRulesWatcher(reputationRulesPath(), store)
		if err != nil {
			return fmt.Errorf("build rules watcher: %w", err)
		}
		ctx := cmd.Context()
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start rules watcher: %w", err)
		}
		defer watcher.Stop()

		obslog.Reputation("watching %s for changes; press ctrl-c to stop", reputationRulesPath())
		<-ctx.Done()
		return nil
	},
}

func init() {
	reputationCmd.AddCommand(reputationShowCmd, reputationTierCmd, reputationAdjustCmd, reputationRulesCmd, reputationWatchCmd)
}
