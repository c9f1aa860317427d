package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sbustui/internal/config"
	"sbustui/internal/link"
	"sbustui/internal/replay"
	"sbustui/internal/sbuslog"
)

// ------------------------------ App model --------------------------------------

type appConfig struct {
	LogPath  string
	Port     string
	Baud     int
	Skip     []string
	Interval time.Duration
	Pulse    time.Duration
}

// portLink is the part of link.Link the UI drives.
type portLink interface {
	replay.Transmitter
	Open(name string, baud int) error
	Close() error
	IsOpen() bool
	Port() (string, int)
}

const (
	consoleKeep = 200
	consoleShow = 6
)

type appModel struct {
	cfg       appConfig
	link      portLink
	listPorts func() ([]string, error)
	engine    *replay.Engine
	logger    *slog.Logger

	logPath string
	ports   []string
	portIdx int
	baud    int

	table   table.Model
	console []string
	err     error

	entering bool
	prompt   string
	input    textinput.Model
	action   string // "load", "baud"

	txLit     bool
	txGen     int
	txPending bool
}

type logLoadedMsg struct {
	path string
	res  sbuslog.Result
	err  error
}

type portsMsg struct {
	ports []string
	err   error
}

type portOpenedMsg struct {
	name string
	baud int
	err  error
}

type pulseDoneMsg struct{ gen int }

func newApp(cfg appConfig, lk portLink, sched replay.Scheduler, listPorts func() ([]string, error), logger *slog.Logger) *appModel {
	if cfg.Baud == 0 {
		cfg.Baud = link.DefaultBaud
	}
	if cfg.Pulse <= 0 {
		cfg.Pulse = replay.DefaultPulse
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Prompt = "> "

	columns := []table.Column{
		{Title: "#", Width: 5},
		{Title: "", Width: 2},
		{Title: "Label", Width: 36},
		{Title: "SBUS", Width: 48},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(14), table.WithFocused(true))
	t.SetStyles(defaultTableStyles())

	m := &appModel{
		cfg:       cfg,
		link:      lk,
		listPorts: listPorts,
		logger:    logger.With("component", "ui"),
		baud:      cfg.Baud,
		table:     t,
		input:     ti,
	}
	if cfg.Port != "" {
		m.ports = []string{cfg.Port}
	}
	m.engine = replay.NewEngine(lk, sched, replay.Options{Interval: cfg.Interval, Logger: logger})
	m.engine.Subscribe(m.onEvent)
	return m
}

func (m *appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.rescanPorts()}
	if m.cfg.LogPath != "" {
		cmds = append(cmds, loadLog(m.cfg.LogPath))
	}
	if m.cfg.Port != "" {
		cmds = append(cmds, openPort(m.link, m.cfg.Port, m.baud))
	}
	return tea.Batch(cmds...)
}

func loadLog(path string) tea.Cmd {
	return func() tea.Msg {
		res, err := sbuslog.ReadFile(path)
		return logLoadedMsg{path: path, res: res, err: err}
	}
}

func openPort(lk portLink, name string, baud int) tea.Cmd {
	return func() tea.Msg {
		err := lk.Open(name, baud)
		return portOpenedMsg{name: name, baud: baud, err: err}
	}
}

func (m *appModel) rescanPorts() tea.Cmd {
	list := m.listPorts
	return func() tea.Msg {
		if list == nil {
			return portsMsg{}
		}
		ports, err := list()
		return portsMsg{ports: ports, err: err}
	}
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.entering {
			switch msg.Type {
			case tea.KeyEnter:
				val := strings.TrimSpace(m.input.Value())
				m.entering = false
				m.input.Blur()
				return m, m.submit(val)
			case tea.KeyEsc:
				m.entering = false
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quit()
			return m, tea.Quit
		case "enter":
			return m, m.activate()
		case "r":
			return m, m.runBlock()
		case "s":
			m.stop()
			return m, nil
		case "x":
			m.err = nil
			m.engine.ResetMarks()
			return m, m.afterEngine()
		case "o":
			return m, m.beginInput("load", "log file: ", m.logPath)
		case "B":
			return m, m.beginInput("baud", "baud (1200-921600): ", strconv.Itoa(m.baud))
		case "c":
			return m, m.togglePort()
		case "n":
			m.nextPort()
			return m, nil
		case "p":
			return m, m.rescanPorts()
		}

	case scheduledMsg:
		msg.fn()
		return m, m.afterEngine()

	case pulseDoneMsg:
		if msg.gen == m.txGen {
			m.txLit = false
		}
		return m, nil

	case logLoadedMsg:
		m.applyLog(msg)
		return m, nil

	case portsMsg:
		m.applyPorts(msg)
		return m, nil

	case portOpenedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.logLine(fmt.Sprintf("[!] cannot open %s: %v", msg.name, msg.err))
			m.logger.Warn("port open failed", "port", msg.name, "baud", msg.baud, "error", msg.err)
			return m, nil
		}
		m.err = nil
		m.logLine(fmt.Sprintf("[+] opened %s @%d baud", msg.name, msg.baud))
		m.logger.Info("port opened", "port", msg.name, "baud", msg.baud)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *appModel) beginInput(action, prompt, value string) tea.Cmd {
	m.entering = true
	m.action = action
	m.prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *appModel) submit(val string) tea.Cmd {
	switch m.action {
	case "load":
		if val == "" {
			return nil
		}
		path, err := config.ExpandPath(val)
		if err != nil {
			m.err = err
			return nil
		}
		return loadLog(path)
	case "baud":
		n, err := strconv.Atoi(val)
		if err != nil {
			m.err = fmt.Errorf("baud: %q is not a number", val)
			return nil
		}
		if err := link.ValidateBaud(n); err != nil {
			m.err = err
			return nil
		}
		m.err = nil
		m.baud = n
		m.logLine(fmt.Sprintf("[~] baud set to %d", n))
		if name, _ := m.link.Port(); name != "" {
			return openPort(m.link, name, n)
		}
	}
	return nil
}

// activate sends the selected command, or runs the block when a header is
// selected.
func (m *appModel) activate() tea.Cmd {
	entries := m.engine.Entries()
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(entries) {
		return nil
	}
	if _, ok := entries[idx].(*sbuslog.Header); ok {
		return m.runBlock()
	}
	if err := m.engine.Send(idx); err != nil {
		m.err = err
	} else {
		m.err = nil
	}
	return m.afterEngine()
}

func (m *appModel) runBlock() tea.Cmd {
	job, err := m.engine.Select(m.table.Cursor(), m.cfg.Skip)
	if err == nil {
		err = m.engine.Start(job)
	}
	if err != nil {
		m.err = err
		m.logLine("[!] " + err.Error())
		return nil
	}
	m.err = nil
	return m.afterEngine()
}

func (m *appModel) stop() {
	if err := m.engine.Cancel(); err != nil {
		m.logLine("[!] " + err.Error())
	}
}

func (m *appModel) quit() {
	if m.engine.State() == replay.Running {
		_ = m.engine.Cancel()
	}
	_ = m.link.Close()
}

func (m *appModel) togglePort() tea.Cmd {
	if m.link.IsOpen() {
		name, _ := m.link.Port()
		if err := m.link.Close(); err != nil {
			m.err = err
		}
		m.logLine("[×] port closed " + name)
		m.logger.Info("port closed", "port", name)
		return nil
	}
	name := m.selectedPort()
	if name == "" {
		m.err = errors.New("no port selected")
		m.logLine("[!] no port selected")
		return nil
	}
	return openPort(m.link, name, m.baud)
}

func (m *appModel) selectedPort() string {
	if len(m.ports) == 0 {
		return ""
	}
	return m.ports[m.portIdx]
}

func (m *appModel) nextPort() {
	if len(m.ports) == 0 {
		return
	}
	m.portIdx = (m.portIdx + 1) % len(m.ports)
}

func (m *appModel) applyPorts(msg portsMsg) {
	if msg.err != nil {
		m.err = msg.err
		m.logLine(fmt.Sprintf("[!] port scan failed: %v", msg.err))
		return
	}
	sel := m.selectedPort()
	m.ports = append([]string(nil), msg.ports...)
	m.portIdx = 0
	for i, p := range m.ports {
		if p == sel {
			m.portIdx = i
			return
		}
	}
	if sel != "" && len(m.ports) == 0 {
		// keep a configured port visible even if enumeration missed it
		m.ports = []string{sel}
	}
}

func (m *appModel) applyLog(msg logLoadedMsg) {
	if msg.err != nil {
		m.err = msg.err
		m.logLine(fmt.Sprintf("[!] cannot read %s: %v", msg.path, msg.err))
		return
	}
	m.err = nil
	m.logPath = msg.path
	m.engine.Load(msg.res.Entries)
	for _, derr := range msg.res.Errors {
		m.logLine("[!] " + derr.Error())
		m.logger.Warn("skipped malformed command", "path", msg.path, "line", derr.Line, "label", derr.Label, "error", derr.Err)
	}
	m.logLine(fmt.Sprintf("[+] loaded %d commands from %s", m.engine.Progress().Total, filepath.Base(msg.path)))
	m.refreshRows()
	m.table.SetCursor(0)
}

// onEvent mirrors engine events into the console. It runs inside Update.
func (m *appModel) onEvent(ev replay.Event) {
	switch ev.Kind {
	case replay.EventStarted:
		m.logLine(fmt.Sprintf("[→] running block: %s (%d commands)", ev.Job.Title, ev.Job.Len()))
	case replay.EventSent:
		m.logLine(fmt.Sprintf("[→] Log HEX (%s) %s: %s", ev.Source, ev.Command.Label, ev.Command.RawHex))
		m.txPending = true
	case replay.EventFailed:
		if errors.Is(ev.Err, link.ErrPortClosed) {
			m.logLine(fmt.Sprintf("[!] port not open. %s: %s", ev.Command.Label, ev.Command.RawHex))
		} else {
			m.logLine(fmt.Sprintf("[!] write failed %s: %v", ev.Command.Label, ev.Err))
		}
	case replay.EventCompleted:
		m.logLine(fmt.Sprintf("[✓] block finished: %s (%s)", ev.Job.Title, ev.Progress))
	case replay.EventCancelled:
		m.logLine("[×] run stopped by user")
	case replay.EventReset:
		m.logLine("[~] sent marks cleared")
	}
}

// afterEngine redraws rows and lights the TX indicator if anything went out.
func (m *appModel) afterEngine() tea.Cmd {
	m.refreshRows()
	if !m.txPending {
		return nil
	}
	m.txPending = false
	m.txLit = true
	m.txGen++
	gen := m.txGen
	return tea.Tick(m.cfg.Pulse, func(time.Time) tea.Msg { return pulseDoneMsg{gen: gen} })
}

func (m *appModel) refreshRows() {
	entries := m.engine.Entries()
	snap := m.engine.Snapshot()
	next := -1
	if snap.State == replay.Running && snap.Job != nil && snap.Cursor < snap.Job.Len() {
		next = snap.Job.Items[snap.Cursor].Index
	}

	rows := make([]table.Row, 0, len(entries))
	for i, e := range entries {
		switch v := e.(type) {
		case *sbuslog.Header:
			rows = append(rows, table.Row{"", "", "--- " + v.Text + " ---", ""})
		case *sbuslog.Command:
			mark := ""
			switch {
			case m.engine.Sent(i):
				mark = "✓"
			case i == next:
				mark = "›"
			}
			rows = append(rows, table.Row{strconv.Itoa(i + 1), mark, v.Label, v.RawHex})
		}
	}
	cur := m.table.Cursor()
	m.table.SetRows(rows)
	switch {
	case len(rows) > 0 && cur >= len(rows):
		m.table.SetCursor(len(rows) - 1)
	case cur < 0:
		m.table.SetCursor(0)
	}
}

func (m *appModel) logLine(s string) {
	m.console = append(m.console, s)
	if len(m.console) > consoleKeep {
		m.console = m.console[len(m.console)-consoleKeep:]
	}
}

func (m *appModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Render("sbustui — SBUS log replay")
	help := "enter:send/run  r:run block  s:stop  x:reset marks  o:open log  c:connect  n:next port  p:rescan  B:baud  q:quit"

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(m.badges() + "\n")
	b.WriteString(m.settingsLine() + "\n")
	b.WriteString(m.table.View() + "\n")
	if m.entering {
		b.WriteString("\n" + m.prompt + m.input.View() + "\n")
	}
	start := len(m.console) - consoleShow
	if start < 0 {
		start = 0
	}
	for _, line := range m.console[start:] {
		b.WriteString(consoleStyle.Render(line) + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}
	b.WriteString(help)
	return b.String()
}

func (m *appModel) badges() string {
	port := portClosedStyle.Render(" port: closed ")
	if m.link.IsOpen() {
		name, baud := m.link.Port()
		port = portOpenStyle.Render(fmt.Sprintf(" port: %s @%d ", name, baud))
	}
	tx := txIdleStyle.Render(" TX ")
	if m.txLit {
		tx = txLitStyle.Render(" TX ")
	}
	snap := m.engine.Snapshot()
	return fmt.Sprintf("%s %s  %s  sent: %s", port, tx, snap.State, snap.Progress)
}

func (m *appModel) settingsLine() string {
	port := "no ports"
	if sel := m.selectedPort(); sel != "" {
		port = fmt.Sprintf("%s (%d/%d)", sel, m.portIdx+1, len(m.ports))
	}
	logName := "-"
	if m.logPath != "" {
		logName = m.logPath
	}
	return fmt.Sprintf("port: %s  baud: %d  log: %s", port, m.baud, logName)
}
