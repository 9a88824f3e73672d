package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loreforge/internal/memstore"
	"loreforge/internal/travel"
)

func travelStatePath() string {
	return dataPath("data/world/travel_state.json")
}

func loadTravelState() travel.State {
	data, err := os.ReadFile(travelStatePath())
	if err != nil {
		return travel.Idle()
	}
	var raw travel.State
	if err := json.Unmarshal(data, &raw); err != nil {
		return travel.Idle()
	}
	return travel.Normalize(raw)
}

func saveTravelState(state travel.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal travel state: %w", err)
	}
	return memstore.AtomicWriteFile(travelStatePath(), data)
}

func newTravelEngine() *travel.Engine {
	e := travel.New(nil)
	cfg.ApplyTravelTuning(e)
	e.LoadState(loadTravelState())
	return e
}

var travelCmd = &cobra.Command{
	Use:   "travel",
	Short: "Drive the overland travel state machine",
}

var travelStartCmd = &cobra.Command{
	Use:   "start <from> <to> <segment-distance> <total-distance>",
	Short: "Start a new travel leg between two map anchors",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var segDist, totalDist int
		if _, err := fmt.Sscanf(args[2], "%d", &segDist); err != nil {
			return fmt.Errorf("invalid segment-distance: %w", err)
		}
		if _, err := fmt.Sscanf(args[3], "%d", &totalDist); err != nil {
			return fmt.Errorf("invalid total-distance: %w", err)
		}

		e := newTravelEngine()
		state := e.StartTravel(args[0], args[1], travel.StartOptions{
			SegmentDistance: segDist,
			TotalDistance:   totalDist,
		})
		if err := saveTravelState(state); err != nil {
			return err
		}
		return printJSON(state)
	},
}

var travelTickCmd = &cobra.Command{
	Use:   "tick <action>",
	Short: "Advance travel by one tick (continue|accelerate|detour|camp)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newTravelEngine()
		state, event := e.TickTravel(travel.World{}, travel.Player{}, travel.Action(args[0]))
		if err := saveTravelState(state); err != nil {
			return err
		}
		if event != nil {
			fmt.Printf("event: %s - %s\n", event.Type, event.ShortText)
		}
		return printJSON(state)
	},
}

var travelStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current travel state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(loadTravelState())
	},
}

func init() {
	travelCmd.AddCommand(travelStartCmd, travelTickCmd, travelStatusCmd)
}
