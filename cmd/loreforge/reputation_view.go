package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"loreforge/internal/reputation"
)

var (
	reputationHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	reputationTitleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	reputationDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// reputationViewModel is a read-only bubbletea viewer over a faction
// ledger: a scrollable table of scores/tiers plus the most recent
// adjustment log entries, refreshed once at startup.
type reputationViewModel struct {
	viewport viewport.Model
	ledger   *reputation.Ledger
}

func newReputationViewModel(ledger *reputation.Ledger) reputationViewModel {
	vp := viewport.New(80, 20)
	m := reputationViewModel{viewport: vp, ledger: ledger}
	m.refresh()
	return m
}

func (m *reputationViewModel) refresh() {
	var sb strings.Builder

	sb.WriteString(reputationHeaderStyle.Render("Faction Standing"))
	sb.WriteString("\n\n")

	factions := make([]string, 0, len(m.ledger.Scores))
	for f := range m.ledger.Scores {
		factions = append(factions, f)
	}
	sort.Strings(factions)

	sb.WriteString(fmt.Sprintf("%-20s | %-6s | %-10s\n", "Faction", "Score", "Tier"))
	sb.WriteString(strings.Repeat("-", 42) + "\n")
	for _, f := range factions {
		score := m.ledger.Scores[f]
		sb.WriteString(fmt.Sprintf("%-20s | %-6d | %-10s\n", f, score, reputation.Tier(score)))
	}
	sb.WriteString("\n")

	sb.WriteString(reputationTitleStyle.Render("Recent adjustments"))
	sb.WriteString("\n")
	log := m.ledger.Log
	if len(log) > 20 {
		log = log[len(log)-20:]
	}
	for i := len(log) - 1; i >= 0; i-- {
		entry := log[i]
		when := entry.At
		if t, err := time.Parse(time.RFC3339, entry.At); err == nil {
			when = humanize.Time(t)
		}
		sb.WriteString(reputationDimStyle.Render(when))
		sb.WriteString(fmt.Sprintf(" %s %+d (%d -> %d) %s\n", entry.Faction, entry.Delta, entry.Before, entry.After, entry.Reason))
	}

	m.viewport.SetContent(sb.String())
}

func (m reputationViewModel) Init() tea.Cmd { return nil }

func (m reputationViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 2
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m reputationViewModel) View() string {
	return m.viewport.View() + "\n" + reputationDimStyle.Render("(q to quit, arrows/pgup/pgdn to scroll)")
}

var reputationViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open a read-only scrollable viewer over the faction ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger := reputation.LoadLedgerFile(reputationLedgerPath())
		model := newReputationViewModel(ledger)
		_, err := tea.NewProgram(model).Run()
		return err
	},
}

func init() {
	reputationCmd.AddCommand(reputationViewCmd)
}
