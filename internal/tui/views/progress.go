package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rendis/leadtap/internal/engine/session"
	"github.com/rendis/leadtap/internal/model"
	"github.com/rendis/leadtap/internal/tui/styles"
)

// Stopper halts the running session.
type Stopper interface {
	Stop()
}

// ProgressParams describes the session shown by the progress view.
type ProgressParams struct {
	Target     string
	Profile    model.Profile
	MaxResults int
	DBPath     string
	Events     <-chan session.Event
	Stopper    Stopper
}

// ProgressModel manages the scraping progress view.
type ProgressModel struct {
	params      ProgressParams
	progress    progress.Model
	startTime   time.Time
	count       int
	status      model.Status
	message     string
	done        bool
	confirmStop bool
	width       int
	height      int
}

type progressTickMsg time.Time

type sessionEventMsg session.Event

// sessionClosedMsg means the event channel closed without a terminal event.
type sessionClosedMsg struct{}

// NavigateToResults signals transition to the results view.
type NavigateToResults struct{}

func NewProgressModel(params ProgressParams) ProgressModel {
	return ProgressModel{
		params: params,
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(50),
		),
		startTime: time.Now(),
		status:    model.StatusRunning,
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.params.Events), tickCmd())
}

func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg(e)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

// Done reports whether the session has settled.
func (m ProgressModel) Done() bool { return m.done }

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.params.Stopper.Stop()
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, tea.Quit
			}
			if m.confirmStop {
				m.confirmStop = false
				m.params.Stopper.Stop()
				return m, nil
			}
			m.confirmStop = true
			return m, nil
		case "enter":
			if m.done {
				return m, func() tea.Msg { return NavigateToResults{} }
			}
		}
		m.confirmStop = false
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case sessionEventMsg:
		e := session.Event(msg)
		m.count = e.Count
		m.status = e.Status
		switch e.Kind {
		case session.EventDone:
			m.count = e.Total
		case session.EventError:
			m.message = e.Message
		}
		if e.Terminal() {
			m.done = true
			m.confirmStop = false
			return m, nil
		}
		return m, waitForEvent(m.params.Events)
	case sessionClosedMsg:
		m.done = true
		return m, nil
	}

	pModel, cmd := m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Scraping %s (%s)", m.params.Target, m.params.Profile)))
	b.WriteString("\n\n")
	b.WriteString(styles.Box.Width(34).Render(m.renderStats()))
	b.WriteString("\n\n")

	var pct float64
	if m.params.MaxResults > 0 {
		pct = float64(m.count) / float64(m.params.MaxResults)
	}
	if pct > 1 {
		pct = 1
	}
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString("\n\n")

	switch {
	case m.done && m.status == model.StatusError:
		b.WriteString(styles.ErrorText.Render("Error: " + m.message))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc quit"))
	case m.done:
		line := fmt.Sprintf("Complete! %d businesses saved", m.count)
		if m.status == model.StatusStopped {
			line = fmt.Sprintf("Stopped. %d businesses saved", m.count)
		}
		b.WriteString(styles.SuccessText.Render(line))
		if m.params.DBPath != "" {
			b.WriteString("\n")
			b.WriteString(styles.StatusBar.UnsetMarginTop().Render("Database: " + m.params.DBPath))
		}
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter view results • esc quit"))
	case m.confirmStop:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop scraping"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	case m.status == model.StatusRunning:
		b.WriteString(styles.StatusBar.Render("esc stop • ctrl+c quit"))
	}

	return b.String()
}

func (m ProgressModel) renderStats() string {
	var sb strings.Builder
	row := func(label, value string) {
		sb.WriteString(styles.StatLabel.Render(label))
		sb.WriteString(styles.StatValue.Render(value))
		sb.WriteString("\n")
	}

	row("Status:", string(m.status))
	row("Scraped:", fmt.Sprintf("%d/%d", m.count, m.params.MaxResults))
	row("Elapsed:", time.Since(m.startTime).Truncate(time.Second).String())

	if m.count > 0 && !m.done {
		elapsed := time.Since(m.startTime)
		rate := float64(m.count) / elapsed.Seconds()
		remaining := float64(m.params.MaxResults-m.count) / rate
		eta := time.Duration(remaining * float64(time.Second)).Truncate(time.Second)
		row("ETA:", "~"+eta.String())
	}
	return strings.TrimRight(sb.String(), "\n")
}
