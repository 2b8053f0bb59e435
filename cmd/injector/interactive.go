package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/bootstrap"
	"github.com/hexpatch/lua-injector/engine"
	"github.com/hexpatch/lua-injector/inject"
	"github.com/hexpatch/lua-injector/testbed"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLimit = 20

type entry struct {
	in      string
	results []string
	logs    []string
	err     string
}

type interactiveModel struct {
	err     error
	sources inject.SliceSources
	strict  bool

	eng  *testbed.Engine
	lib  *engine.Lib
	l    luainject.State
	logs *observer.ObservedLogs

	input   textinput.Model
	history []entry
	ready   bool
}

type readyMsg struct {
	err  error
	eng  *testbed.Engine
	lib  *engine.Lib
	l    luainject.State
	logs *observer.ObservedLogs
}

type evalResultMsg struct {
	e entry
}

func newInteractiveModel(sources inject.SliceSources, strict bool) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "lua chunk"
	ti.Prompt = promptStyle.Render("> ")
	ti.Width = 72
	ti.Focus()
	return &interactiveModel{sources: sources, strict: strict, input: ti}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.install
}

// install hooks the testbed engine and opens the state the REPL runs in.
// Script print output lands in an observed log core so it can be shown
// alongside each chunk's results.
func (m *interactiveModel) install() tea.Msg {
	core, logs := observer.New(zap.InfoLevel)

	eng := testbed.New()
	rt, err := bootstrap.Init(bootstrap.Options{
		Library:    eng,
		Installer:  eng.Installer(),
		Sources:    m.sources,
		Logger:     zap.New(core),
		StrictMode: m.strict,
	})
	if err != nil {
		return readyMsg{err: err}
	}

	return readyMsg{eng: eng, lib: rt.Lib(), l: eng.NewState(), logs: logs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.eng != nil {
				m.eng.CloseState(m.l)
			}
			return m, tea.Quit

		case "enter":
			if !m.ready {
				return m, nil
			}
			src := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if src == "" {
				return m, nil
			}
			return m, func() tea.Msg { return m.eval(src) }
		}

	case readyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.lib = msg.lib
		m.l = msg.l
		m.logs = msg.logs
		m.ready = true

	case evalResultMsg:
		m.history = append(m.history, msg.e)
		if len(m.history) > historyLimit {
			m.history = m.history[len(m.history)-historyLimit:]
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// eval compiles src through the hooked entry point and runs it, collecting
// returned values and any log lines the chunk produced.
func (m *interactiveModel) eval(src string) tea.Msg {
	e := entry{in: src}

	if src == ":mods" {
		e.results = m.eng.PreloadNames(m.l)
		if len(e.results) == 0 {
			e.results = []string{"(no modules registered)"}
		}
		return evalResultMsg{e: e}
	}

	f := m.lib.Begin(m.l)
	defer f.Restore()

	if st := m.eng.HostCompile(m.l, []byte(src), "@repl", ""); st != luainject.OK {
		e.err = m.lib.ToString(m.l, -1)
		e.logs = m.takeLogs()
		return evalResultMsg{e: e}
	}
	if st := m.lib.PCall(m.l, 0, -1, 0); st != luainject.OK {
		e.err = m.lib.ToString(m.l, -1)
		e.logs = m.takeLogs()
		return evalResultMsg{e: e}
	}

	for i := f.Depth() + 1; i <= m.lib.GetTop(m.l); i++ {
		e.results = append(e.results, renderValue(m.eng.LState(m.l).Get(int(i))))
	}
	e.logs = m.takeLogs()
	return evalResultMsg{e: e}
}

func (m *interactiveModel) takeLogs() []string {
	var out []string
	for _, rec := range m.logs.TakeAll() {
		if rec.LoggerName == "script" {
			out = append(out, rec.Message)
		}
	}
	return out
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if !m.ready {
		return "Installing hook..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Lua Injector"))
	b.WriteString(fmt.Sprintf(" %d module(s) pending\n\n", len(m.sources)))

	for _, e := range m.history {
		b.WriteString(promptStyle.Render("> "))
		b.WriteString(e.in)
		b.WriteString("\n")
		for _, line := range e.logs {
			b.WriteString(logStyle.Render("  " + line))
			b.WriteString("\n")
		}
		if e.err != "" {
			b.WriteString(errorStyle.Render("  " + e.err))
			b.WriteString("\n")
		}
		for _, r := range e.results {
			b.WriteString(resultStyle.Render("  " + r))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter run • :mods list modules • esc quit"))

	return b.String()
}

func runInteractive(sources inject.SliceSources, strict bool) error {
	p := tea.NewProgram(newInteractiveModel(sources, strict), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
