package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"loreforge/internal/memstore"
	"loreforge/internal/reputation"
	"loreforge/internal/trade"
)

// playerState is the CLI's own minimal save file for gold/inventory; the
// trade engine itself is gold/inventory-agnostic (spec §4.10 keeps those
// as caller-owned facts passed into ExecuteContext).
type playerState struct {
	Gold      int             `json:"gold"`
	Inventory trade.Inventory `json:"inventory"`
}

func playerStatePath() string  { return dataPath("data/world/player_state.json") }
func tradeSessionPath() string { return dataPath("data/world/trade_session.json") }

func loadPlayerState() playerState {
	data, err := os.ReadFile(playerStatePath())
	if err != nil {
		return playerState{Gold: 50}
	}
	var ps playerState
	if err := json.Unmarshal(data, &ps); err != nil {
		return playerState{Gold: 50}
	}
	return ps
}

func savePlayerState(ps playerState) error {
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return err
	}
	return memstore.AtomicWriteFile(playerStatePath(), data)
}

func loadTradeSession() trade.Session {
	data, err := os.ReadFile(tradeSessionPath())
	if err != nil {
		return trade.Idle()
	}
	var raw trade.Session
	if err := json.Unmarshal(data, &raw); err != nil {
		return trade.Idle()
	}
	return trade.Normalize(raw)
}

func saveTradeSession(s trade.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return memstore.AtomicWriteFile(tradeSessionPath(), data)
}

func newTradeEngine() *trade.Engine {
	e := trade.New()
	e.LoadSession(loadTradeSession())
	return e
}

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Drive one NPC trade session",
}

var tradeStartCmd = &cobra.Command{
	Use:   "start <npc-id> <sell|buy>",
	Short: "Open a trade session with an NPC",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newTradeEngine()
		session := e.StartTrade(args[0], trade.Mode(args[1]), false)
		if err := saveTradeSession(session); err != nil {
			return err
		}
		return printJSON(session)
	},
}

var tradeAddCmd = &cobra.Command{
	Use:   "add <item-id> <item-name> <qty> <catalog-value>",
	Short: "Add an item to the cart at a reputation-adjusted price",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid qty: %w", err)
		}
		value, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("invalid catalog-value: %w", err)
		}

		ledger := reputation.LoadLedgerFile(dataPath(cfg.Reputation.LedgerPath))
		unitPrice := trade.PriceForItem(trade.ItemDef{Value: value}, ledger.MerchantPriceMultiplier())

		e := newTradeEngine()
		session := e.AddToCart(args[0], args[1], qty, unitPrice)
		if err := saveTradeSession(session); err != nil {
			return err
		}
		return printJSON(session)
	},
}

var tradeConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Move the session to confirming",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newTradeEngine()
		session := e.ConfirmTrade()
		if err := saveTradeSession(session); err != nil {
			return err
		}
		return printJSON(session)
	},
}

var tradeExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Atomically execute the confirmed cart against the player's gold/inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newTradeEngine()
		ps := loadPlayerState()

		result := e.ExecuteTrade(trade.ExecuteContext{
			Gold:            ps.Gold,
			Inventory:       &ps.Inventory,
			ItemDefs:        map[string]trade.ItemDef{},
			PriceMultiplier: 1.0,
			DefaultStackMax: cfg.DefaultStackMax(),
			CarriedCapacity: cfg.CarriedCapacity(),
		})

		ps.Gold = result.GoldAfter
		if err := savePlayerState(ps); err != nil {
			return err
		}
		if err := saveTradeSession(result.Session); err != nil {
			return err
		}
		for _, line := range result.Lines {
			fmt.Println(line)
		}
		return printJSON(result.Context)
	},
}

var tradeAbortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Cancel the active trade session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newTradeEngine()
		session := e.AbortTrade()
		if err := saveTradeSession(session); err != nil {
			return err
		}
		return printJSON(session)
	},
}

var tradeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current trade session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(loadTradeSession())
	},
}

func init() {
	tradeCmd.AddCommand(tradeStartCmd, tradeAddCmd, tradeConfirmCmd, tradeExecuteCmd, tradeAbortCmd, tradeStatusCmd)
}
