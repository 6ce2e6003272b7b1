// Package tui renders a running scrape session and its results in the terminal.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/leadtap/internal/engine/session"
	"github.com/rendis/leadtap/internal/model"
	"github.com/rendis/leadtap/internal/tui/views"
)

type viewID int

const (
	viewProgress viewID = iota
	viewResults
)

// Session is what the TUI needs from the coordinator.
type Session interface {
	Stop()
	Records() []model.BusinessRecord
}

// Feed hands session events to the TUI. Listen never blocks once Close ran,
// so the session can settle after the TUI quit.
type Feed struct {
	ch   chan session.Event
	done chan struct{}
	once sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		ch:   make(chan session.Event, 64),
		done: make(chan struct{}),
	}
}

// Listen is a session.Listener.
func (f *Feed) Listen(e session.Event) {
	select {
	case f.ch <- e:
	case <-f.done:
	}
}

func (f *Feed) Close() { f.once.Do(func() { close(f.done) }) }

// Params configures one TUI run.
type Params struct {
	Target     string
	Profile    model.Profile
	MaxResults int
	DBPath     string
}

// App is the root bubbletea model.
type App struct {
	currentView viewID
	width       int
	height      int
	session     Session
	progress    views.ProgressModel
	results     views.ResultsModel
}

func NewApp(s Session, feed *Feed, p Params) App {
	return App{
		currentView: viewProgress,
		session:     s,
		progress: views.NewProgressModel(views.ProgressParams{
			Target:     p.Target,
			Profile:    p.Profile,
			MaxResults: p.MaxResults,
			DBPath:     p.DBPath,
			Events:     feed.ch,
			Stopper:    s,
		}),
	}
}

func (a App) Init() tea.Cmd {
	return a.progress.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToResults:
		a.currentView = viewResults
		a.results = views.NewResultsModel(a.session.Records())
		return a, tea.Batch(a.results.Init(), a.sizeCmd())
	}

	var cmd tea.Cmd
	switch a.currentView {
	case viewProgress:
		var m tea.Model
		m, cmd = a.progress.Update(msg)
		a.progress = m.(views.ProgressModel)
	case viewResults:
		var m tea.Model
		m, cmd = a.results.Update(msg)
		a.results = m.(views.ResultsModel)
	}
	return a, cmd
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewProgress:
		content = a.progress.View()
	case viewResults:
		content = a.results.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run shows the session until the user quits. The feed is closed on return.
func Run(s Session, feed *Feed, p Params) error {
	defer feed.Close()
	prog := tea.NewProgram(NewApp(s, feed, p), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
