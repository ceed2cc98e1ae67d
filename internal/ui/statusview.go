package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// StatusMsg moves the status view to a new step. The previous step is kept
// above it as completed.
type StatusMsg struct {
	Label  string
	Detail string
	// Started and Deadline, when both set, draw a bar that fills as the
	// deadline approaches.
	Started  time.Time
	Deadline time.Time
}

// DoneMsg ends the status view.
type DoneMsg struct {
	Label string
	Err   error
}

type statusKeyMap struct {
	Quit key.Binding
}

func (k statusKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k statusKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Quit}} }

// StatusModel is a Bubble Tea model showing the step a long-running command
// is on. It is driven entirely by StatusMsg and DoneMsg sent from outside.
type StatusModel struct {
	Title   string
	Spinner spinner.Model
	Bar     progress.Model
	Help    help.Model
	Keys    statusKeyMap

	current     StatusMsg
	history     []string
	done        *DoneMsg
	interrupted bool
	onInterrupt func()
	now         func() time.Time
}

// NewStatusModel creates a status model. onInterrupt is called when the
// user presses ctrl+c, since the terminal is in raw mode and no SIGINT is
// delivered while the view runs.
func NewStatusModel(title string, onInterrupt func()) StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return StatusModel{
		Title:   title,
		Spinner: s,
		Bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		Help: help.New(),
		Keys: statusKeyMap{
			Quit: key.NewBinding(
				key.WithKeys("ctrl+c", "q"),
				key.WithHelp("ctrl+c", "stop"),
			),
		},
		onInterrupt: onInterrupt,
		now:         time.Now,
	}
}

// Interrupted reports whether the view was closed from the keyboard.
func (m StatusModel) Interrupted() bool {
	return m.interrupted
}

// Init implements tea.Model
func (m StatusModel) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Update implements tea.Model
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.Keys.Quit) {
			m.interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Bar.Width = min(max(msg.Width-20, 20), 50)

	case StatusMsg:
		if m.current.Label != "" && m.current.Label != msg.Label {
			m.history = append(m.history, m.current.Label)
		}
		m.current = msg

	case DoneMsg:
		m.done = &msg
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m StatusModel) View() string {
	var b strings.Builder

	if m.Title != "" {
		b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(m.Title)))
		b.WriteString("\n\n")
	}

	for _, label := range m.history {
		fmt.Fprintf(&b, "  %s %s\n", StepCompleteStyle.Render(StepMarkerComplete), StepPendingStyle.Render(label))
	}

	if m.done != nil {
		label := m.done.Label
		if label == "" {
			label = m.current.Label
		}
		if m.done.Err != nil {
			fmt.Fprintf(&b, "  %s %s\n", ErrorTitleStyle.Render(FailureMarker), StatusLabelStyle.Render(label))
		} else if label != "" {
			fmt.Fprintf(&b, "  %s %s\n", StepCompleteStyle.Render(StepMarkerComplete), StatusLabelStyle.Render(label))
		}
		return b.String()
	}

	if m.current.Label != "" {
		fmt.Fprintf(&b, "  %s %s", m.Spinner.View(), StatusLabelStyle.Render(m.current.Label))
		if m.current.Detail != "" {
			b.WriteString("  ")
			b.WriteString(StatusDetailStyle.Render("(" + m.current.Detail + ")"))
		}
		b.WriteString("\n")

		if frac, ok := m.elapsedFraction(); ok {
			fmt.Fprintf(&b, "    %s\n", m.Bar.ViewAs(frac))
		}
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	b.WriteString("\n")
	return b.String()
}

func (m StatusModel) elapsedFraction() (float64, bool) {
	if m.current.Started.IsZero() || m.current.Deadline.IsZero() {
		return 0, false
	}
	total := m.current.Deadline.Sub(m.current.Started)
	if total <= 0 {
		return 1, true
	}
	frac := float64(m.now().Sub(m.current.Started)) / float64(total)
	return min(max(frac, 0), 1), true
}

// StatusView runs a StatusModel in its own Bubble Tea program.
type StatusView struct {
	program *tea.Program
	done    chan struct{}
	final   tea.Model
	err     error
}

// StartStatusView starts the program in the background.
func StartStatusView(model StatusModel, opts ...tea.ProgramOption) *StatusView {
	v := &StatusView{
		program: tea.NewProgram(model, opts...),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(v.done)
		v.final, v.err = v.program.Run()
	}()
	return v
}

// Update moves the view to a new step. It is a no-op once the view has
// exited.
func (v *StatusView) Update(msg StatusMsg) {
	v.program.Send(msg)
}

// Finish renders the final line and waits for the program to exit. It
// reports whether the user interrupted the view.
func (v *StatusView) Finish(label string, err error) (interrupted bool, runErr error) {
	v.program.Send(DoneMsg{Label: label, Err: err})
	<-v.done
	if m, ok := v.final.(StatusModel); ok {
		interrupted = m.Interrupted()
	}
	return interrupted, v.err
}
