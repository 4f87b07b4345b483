package cli

import (
	"context"
	"errors"
	"flag"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sltk-monitor/internal/controller"
)

type monitorMode int

const (
	monitorModeMain monitorMode = iota
	monitorModeFileInput
	monitorModeGroupInput
	monitorModeLoadInput
)

// monitorDriver is the part of the controller the UI talks to.
type monitorDriver interface {
	SelectFile(path string)
	ClearFile()
	Upload(loadID string)
	Monitor(groupID string)
	StopMonitor()
	FetchErrors()
	DismissErrors()
	Updates() <-chan controller.State
}

type monitorModel struct {
	ctrl    monitorDriver
	apiURL  string
	state   controller.State
	mode    monitorMode
	input   textinput.Model
	spin    spinner.Model
	bar     progress.Model
	loadID  string
	dropDir string
	width   int
	height  int

	errCursor     int
	statusMessage string
}

type monitorStateMsg struct {
	state controller.State
	ok    bool
}

var (
	monitorTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	monitorMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	monitorErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	monitorWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	monitorOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	monitorPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	monitorSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func runMonitor(args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	common := addCommonFlags(fs)
	file := fs.String("file", "", "preselect this workbook")
	group := fs.String("group", "", "start monitoring this group id")
	loadID := fs.String("load-id", "", "load id sent with uploads")
	dropDir := fs.String("drop-dir", "", "select workbooks saved into this folder (default $SLTK_DROP_DIR)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("monitor requires an interactive terminal (TTY); use upload/watch for scripts")
	}

	settings, err := common.load()
	if err != nil {
		return err
	}
	closeLog, err := configureLogging(settings, true)
	if err != nil {
		return err
	}
	defer closeLog()

	ms := newMonitorSession(settings, nil)
	ms.dropDir = strings.TrimSpace(defaultIfEmpty(*dropDir, settings.DropDir))
	stop := ms.start(context.Background(), true)
	defer func() { _ = stop() }()

	if f := strings.TrimSpace(*file); f != "" {
		ms.ctrl.SelectFile(f)
	}
	if g := strings.TrimSpace(*group); g != "" {
		ms.ctrl.Monitor(g)
	}

	m := newMonitorModel(ms.ctrl, settings.APIURL, strings.TrimSpace(*loadID))
	m.dropDir = ms.dropDir
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("monitor requires an interactive terminal (TTY)")
		}
		return err
	}
	return nil
}

func newMonitorModel(ctrl monitorDriver, apiURL, loadID string) monitorModel {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Width = 60

	spin := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(monitorTitleStyle))
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	return monitorModel{
		ctrl:   ctrl,
		apiURL: apiURL,
		mode:   monitorModeMain,
		input:  input,
		spin:   spin,
		bar:    bar,
		loadID: loadID,
	}
}

func waitForStateCmd(ch <-chan controller.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		return monitorStateMsg{state: s, ok: ok}
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(waitForStateCmd(m.ctrl.Updates()), m.spin.Tick)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = clampInt(m.width-8, 20, 120)
		m.bar.Width = clampInt(m.width-16, 20, 80)
		return m, nil
	case monitorStateMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		m.state = msg.state
		m.errCursor = clampInt(m.errCursor, 0, maxInt(len(m.state.Errors)-1, 0))
		return m, waitForStateCmd(m.ctrl.Updates())
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if keyMsg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch {
	case m.mode != monitorModeMain:
		return m.updateInput(keyMsg)
	case m.state.ShowErrors:
		return m.updateErrors(keyMsg)
	default:
		return m.updateMain(keyMsg)
	}
}

func (m monitorModel) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// a file dropped onto the terminal arrives as a bracketed paste
	if msg.Paste {
		m.statusMessage = ""
		m.ctrl.SelectFile(string(msg.Runes))
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "f", "o":
		if m.state.Busy {
			m.statusMessage = "busy: wait for the current operation to finish"
			return m, nil
		}
		path := ""
		if m.state.File != nil {
			path = m.state.File.Path
		}
		return m.openInput(monitorModeFileInput, path, "/path/to/workbook.xlsx")
	case "x":
		if m.state.File != nil && !m.state.Busy {
			m.ctrl.ClearFile()
		}
		return m, nil
	case "u", "enter":
		if !m.state.CanUpload() {
			if m.state.File == nil {
				m.statusMessage = "select an Excel file first (f)"
			}
			return m, nil
		}
		m.statusMessage = ""
		m.ctrl.Upload(m.loadID)
		return m, nil
	case "l":
		return m.openInput(monitorModeLoadInput, m.loadID, "load id (optional)")
	case "g", "m":
		prefill := m.state.Watching
		if prefill == "" && m.state.Status != nil {
			prefill = m.state.Status.GroupID
		}
		return m.openInput(monitorModeGroupInput, prefill, "group id")
	case "s":
		if m.state.Watching != "" {
			m.ctrl.StopMonitor()
		}
		return m, nil
	case "e":
		if !m.state.CanFetchErrors() {
			m.statusMessage = "no error details for the current job"
			return m, nil
		}
		m.statusMessage = ""
		m.errCursor = 0
		m.ctrl.FetchErrors()
		return m, nil
	}
	return m, nil
}

func (m monitorModel) openInput(mode monitorMode, value, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.statusMessage = ""
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m monitorModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = monitorModeMain
		m.input.Blur()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = monitorModeMain
		m.input.Blur()
		switch mode {
		case monitorModeFileInput:
			if value != "" {
				m.ctrl.SelectFile(value)
			}
		case monitorModeGroupInput:
			if value == "" {
				m.statusMessage = "group id is required"
				return m, nil
			}
			m.ctrl.Monitor(value)
		case monitorModeLoadInput:
			m.loadID = value
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m monitorModel) updateErrors(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "q", "e":
		m.ctrl.DismissErrors()
		return m, nil
	case "up", "k":
		if m.errCursor > 0 {
			m.errCursor--
		}
	case "down", "j":
		if m.errCursor < len(m.state.Errors)-1 {
			m.errCursor++
		}
	case "home", "g":
		m.errCursor = 0
	case "end", "G":
		m.errCursor = maxInt(len(m.state.Errors)-1, 0)
	}
	return m, nil
}
