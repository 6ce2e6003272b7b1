package views

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/leadtap/internal/model"
	"github.com/rendis/leadtap/internal/tui/styles"
)

// ResultsModel lists the records of the finished session.
type ResultsModel struct {
	records []model.BusinessRecord
	table   table.Model
	width   int
	height  int
}

func NewResultsModel(records []model.BusinessRecord) ResultsModel {
	columns := []table.Column{
		{Title: "Name", Width: 30},
		{Title: "Category", Width: 18},
		{Title: "Rating", Width: 6},
		{Title: "Reviews", Width: 8},
		{Title: "Phone", Width: 16},
		{Title: "Locality", Width: 16},
	}

	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, table.Row{
			r.Name,
			r.Category,
			optFloat(r.Rating),
			optInt(r.ReviewCount),
			r.Phone,
			r.Locality,
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(styles.TableStyles())

	return ResultsModel{records: records, table: t}
}

func (m ResultsModel) Init() tea.Cmd { return nil }

func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 10; h > 5 {
			m.table.SetHeight(h)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ResultsModel) View() string {
	header := styles.Title.Render(fmt.Sprintf("%d businesses", len(m.records)))
	if len(m.records) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			styles.WarningText.Render("Nothing was scraped."),
			styles.StatusBar.Render("esc quit"))
	}

	detail := ""
	if i := m.table.Cursor(); i >= 0 && i < len(m.records) {
		r := m.records[i]
		detail = styles.Subtitle.Render(r.Address)
		if r.Website != "" {
			detail += "\n" + r.Website
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.table.View(),
		"",
		detail,
		styles.StatusBar.Render("↑/↓ move • esc quit"))
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
