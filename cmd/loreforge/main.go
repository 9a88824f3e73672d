// Package main implements the loreforge CLI: a cobra command tree over
// the memory, travel, trade, and reputation engines. It mirrors
// codeNERD's cmd/nerd entry point (rootCmd, persistent flags, zap for CLI
// output, internal file logging wired through PersistentPreRunE) at a
// fraction of the subcommand surface, pointed at this module's own
// packages instead of the coding agent's.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"loreforge/internal/loreconfig"
	"loreforge/internal/obslog"
)

var (
	verbose    bool
	workspace  string
	configPath string

	logger *zap.Logger
	cfg    *loreconfig.Config
)

var rootCmd = &cobra.Command{
	Use:   "loreforge",
	Short: "loreforge - NPC memory, travel, trade, and reputation engines",
	Long: `loreforge drives a text RPG's persistent NPC memory, the
overland travel state machine, merchant trade sessions, and the faction
reputation ledger, all from one campaign data directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}

		loadedCfg, err := loreconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loadedCfg

		if err := obslog.Initialize(ws, cfg.Logging.DebugMode, cfg.Logging.Level); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		obslog.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Campaign data workspace (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "loreforge.yaml", "Path to the loreforge config file")

	rootCmd.AddCommand(memoryCmd, travelCmd, tradeCmd, reputationCmd)
}

// dataPath resolves a config-relative data path against the active
// workspace.
func dataPath(rel string) string {
	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(ws, rel)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
