package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loreforge/internal/retrieval"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and drive NPC/world memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <profile> <npc-id>",
	Short: "Print one NPC's persisted memory as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		mem, err := svc.LoadNPC(args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(mem)
	},
}

var memoryWorldCmd = &cobra.Command{
	Use:   "world",
	Short: "Print the singleton world memory as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		mem, err := svc.LoadWorld()
		if err != nil {
			return err
		}
		return printJSON(mem)
	},
}

var memoryRememberCmd = &cobra.Command{
	Use:   "remember <profile> <npc-id> <player-text> <npc-reply> <scene-title>",
	Short: "Append one dialogue turn to an NPC's short-term buffer",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		if err := svc.RememberDialogueTurn(cmd.Context(), args[0], args[1], args[2], args[3], args[4]); err != nil {
			return err
		}
		fmt.Println("remembered")
		return nil
	},
}

var memoryRebuildCmd = &cobra.Command{
	Use:   "rebuild-index <profile> <npc-id>",
	Short: "Rebuild one NPC's vector index from its persisted long-term memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		n, err := svc.RebuildNPCIndex(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("rebuilt %d records\n", n)
		return nil
	},
}

var memoryRetrieveCmd = &cobra.Command{
	Use:   "retrieve <profile> <npc-id> <query>",
	Short: "Run a hybrid NPC-scoped retrieval and print the combined envelope",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		limits := retrieval.Limits{Short: cfg.Retrieval.DefaultLimit, Long: cfg.Retrieval.DefaultLimit, Retrieved: cfg.Retrieval.DefaultLimit}
		envelope, err := svc.RetrieveContext(cmd.Context(), args[0], args[1], args[2], retrieval.ModeNPC, limits)
		if err != nil {
			return err
		}
		for _, line := range envelope.Combined {
			fmt.Println(strings.TrimSpace(line))
		}
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memoryShowCmd, memoryWorldCmd, memoryRememberCmd, memoryRebuildCmd, memoryRetrieveCmd)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
