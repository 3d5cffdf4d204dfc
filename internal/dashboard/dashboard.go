// Package dashboard renders a live/paper status view for the Runner's
// control loop (spec §4.11's CLI surface), optional behind the --tui flag.
// Grounded on the teacher's cmd/data Model/streamMarketData pattern: a
// background goroutine (here, the Runner's own event loop) pushes updates
// into the Bubble Tea program via p.Send rather than the model ever
// blocking on or calling back into the loop it observes.
package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kisquant/daytrader/internal/runner"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	helpStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// statusMsg carries a runner.Status snapshot into the Bubble Tea event loop.
type statusMsg runner.Status

// loopDoneMsg carries the Runner.Run return value once the loop exits.
type loopDoneMsg struct{ err error }

// Dashboard owns the Bubble Tea program and bridges Runner status updates
// into it without the Runner ever depending on this package.
type Dashboard struct {
	program *tea.Program
}

// New constructs an unstarted Dashboard.
func New() *Dashboard {
	return &Dashboard{}
}

// OnStatus is a runner.StatusListener: it forwards snapshots to the
// running Bubble Tea program, or drops them silently before Run starts.
func (d *Dashboard) OnStatus(s runner.Status) {
	if d.program != nil {
		d.program.Send(statusMsg(s))
	}
}

// Run starts the Bubble Tea program and concurrently drives loop (the
// Runner's own Run method) in a goroutine. It returns when the program
// exits: with loop's error if the loop finished first, or with nil if the
// user quit while the loop was still running.
func (d *Dashboard) Run(ctx context.Context, loop func() error) error {
	m := newModel()
	d.program = tea.NewProgram(m, tea.WithContext(ctx))

	go func() {
		err := loop()
		d.program.Send(loopDoneMsg{err: err})
	}()

	finalModel, err := d.program.Run()
	if err != nil {
		return err
	}

	return finalModel.(model).loopErr
}

type model struct {
	last       runner.Status
	haveStatus bool
	loopErr    error
	done       bool
	spin       spinner.Model
}

func newModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = helpStyle

	return model{spin: s}
}

func (m model) Init() tea.Cmd { return m.spin.Tick }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case statusMsg:
		m.last = runner.Status(msg)
		m.haveStatus = true
	case loopDoneMsg:
		m.done = true
		m.loopErr = msg.err

		return m, tea.Quit
	case spinner.TickMsg:
		if m.haveStatus || m.done {
			return m, nil
		}

		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("daytrader"))
	b.WriteString("\n\n")

	if !m.haveStatus {
		fmt.Fprintf(&b, "%s waiting for first tick...\n", m.spin.View())
	} else {
		s := m.last
		fmt.Fprintf(&b, "date:        %s\n", s.Event.Date)
		fmt.Fprintf(&b, "event:       %s at %s\n", s.Event.Tag, s.Event.At.Format("15:04:05"))
		fmt.Fprintf(&b, "state:       %s\n", s.StrategyState)
		fmt.Fprintf(&b, "symbol:      %s\n", s.Symbol)
		fmt.Fprintf(&b, "pending:     %d\n", s.PendingOrders)
		fmt.Fprintf(&b, "total_assets: %s\n", s.TotalAssets.StringFixed(2))
	}

	b.WriteString("\n")

	if m.done && m.loopErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("runner exited: %v", m.loopErr)))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("press q to quit"))

	return b.String()
}
