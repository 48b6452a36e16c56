package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Tayyab-Ali-786/Chattify/internal/utils"
)

// RosterRow is one line of the /peers table.
type RosterRow struct {
	Name       string
	ID         string
	ClientType string
	Role       string
	State      string
	Secured    bool
	Channel    bool
}

// RosterView renders the peers of the room.
func RosterView(rows []RosterRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Color.Header = text.Colors{text.Bold, text.FgHiMagenta}
	t.AppendHeader(prettytable.Row{"#", "Name", "Client", "Role", "State", "Channel", "Encrypted"})

	for i, r := range rows {
		t.AppendRow(prettytable.Row{
			i + 1,
			utils.TruncateString(r.Name, 24),
			r.ClientType,
			r.Role,
			r.State,
			yesNo(r.Channel),
			yesNo(r.Secured),
		})
	}
	t.SetColumnConfigs([]prettytable.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	t.SetCaption("%d peer(s)", len(rows))

	return t.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func RenderRoster(rows []RosterRow) {
	fmt.Println(RosterView(rows))
}

type TransferSummary struct {
	Status   string
	File     string
	Peer     string
	Size     string
	Duration string
	Speed    string
}

func TransferSummaryView(summary TransferSummary) string {
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Status", summary.Status},
		{"File", utils.TruncateString(summary.File, 40)},
		{"Peer", summary.Peer},
		{"Size", summary.Size},
		{"Duration", summary.Duration},
		{"Avg Speed", summary.Speed},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderTransferSummary(summary TransferSummary) {
	fmt.Println(TransferSummaryView(summary))
}
