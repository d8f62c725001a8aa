// Package tui provides the Bubble Tea interface for live transcription.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/gemini"
	"github.com/fakeyudi/minutes/internal/hiragana"
	"github.com/fakeyudi/minutes/internal/history"
	"github.com/fakeyudi/minutes/internal/tabs"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	// Section heading inside a tab
	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	recStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	statusStyles = map[app.StatusKind]lipgloss.Style{
		app.StatusInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		app.StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
		app.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))

	// One color per timeline palette slot
	speakerColors = [...]lipgloss.Color{"205", "39", "82", "214", "141", "45", "226", "203"}

	barFull  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	barWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	barAlert = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// ── Tab definitions ─────────────────

var tabNames = map[tabs.Tab]string{
	tabs.Main:    "Live",
	tabs.History: "History",
	tabs.Limits:  "Limits",
}

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputKey
)

// ── Messages ────────────────────

type appEventMsg struct{ ev app.Event }

type tickMsg time.Time

type geminiDoneMsg struct {
	title string
	text  string
	err   error
}

type verifyDoneMsg gemini.VerifyResult

// ── Model ────────────────────

// Options configures Run.
type Options struct {
	// Dictionary loads the hiragana tokenizer; nil skips loading.
	Dictionary hiragana.Loader
	// Watch calls fn whenever key changes on disk; nil disables reloads.
	Watch func(ctx context.Context, key string, fn func()) error
	// ExportDir receives saved and exported files.
	ExportDir string
	Logger    *zap.Logger
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	ctx  context.Context
	app  *app.App
	opts Options

	viewports map[tabs.Tab]*viewport.Model
	width     int
	height    int
	ready     bool

	mode  inputMode
	input textinput.Model

	final, interim, reading string
	listening               bool
	dict                    string
	status                  string
	statusKind              app.StatusKind
	busy                    string
	output                  string
	outputTitle             string

	cursor int // position in the filtered history list
}

// New creates the TUI model for a.
func New(ctx context.Context, a *app.App, opts Options) Model {
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	in := textinput.New()
	in.CharLimit = 256
	m := Model{
		ctx:       ctx,
		app:       a,
		opts:      opts,
		viewports: make(map[tabs.Tab]*viewport.Model),
		input:     in,
		dict:      string(hiragana.StateUninitialized),
	}
	m.final, m.reading = a.Transcript()
	if c := a.Converter(); c != nil {
		state, _ := c.State()
		m.dict = string(state)
	}
	return m
}

// Run starts the program and the background work feeding it: recognition
// events, dictionary loading and history reloads.
func Run(ctx context.Context, a *app.App, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, a, opts), tea.WithAltScreen(), tea.WithContext(ctx))

	// Events raised inside Update must not block on Send.
	events := make(chan app.Event, 1024)
	a.Subscribe(func(ev app.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	go func() {
		for {
			select {
			case ev := <-events:
				p.Send(appEventMsg{ev})
			case <-ctx.Done():
				return
			}
		}
	}()

	go a.Run(ctx)
	if opts.Dictionary != nil {
		go a.InitDictionary(ctx, opts.Dictionary)
	}
	if opts.Watch != nil {
		go func() {
			err := opts.Watch(ctx, history.Key, func() {
				if err := a.ReloadHistory(); err != nil && opts.Logger != nil {
					opts.Logger.Warn("reloading history failed", zap.Error(err))
				}
			})
			if err != nil && ctx.Err() == nil && opts.Logger != nil {
				opts.Logger.Warn("history watch stopped", zap.Error(err))
			}
		}()
	}

	_, err := p.Run()
	return err
}

// ── Bubble Tea interface ───────────────

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil

	case appEventMsg:
		m.handleEvent(msg.ev)
		return m, nil

	case geminiDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.setStatus(app.StatusError, gemini.Describe(msg.err))
		} else {
			m.outputTitle, m.output = msg.title, msg.text
			m.setStatus(app.StatusSuccess, msg.title+" ready")
		}
		m.refresh(tabs.Main)
		return m, nil

	case verifyDoneMsg:
		m.busy = ""
		if msg.OK {
			m.setStatus(app.StatusSuccess, msg.Message)
		} else {
			m.setStatus(app.StatusError, msg.Message)
		}
		return m, nil

	case tickMsg:
		if m.app.Tabs().Current() == tabs.Limits {
			m.refresh(tabs.Limits)
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	current := m.app.Tabs().Current()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "right":
		m.switchTab(tabs.Order[(indexOf(current)+1)%len(tabs.Order)])
		return m, nil
	case "shift+tab", "left":
		m.switchTab(tabs.Order[(indexOf(current)-1+len(tabs.Order))%len(tabs.Order)])
		return m, nil
	case "1", "2", "3":
		m.switchTab(tabs.Order[msg.String()[0]-'1'])
		return m, nil
	case "k":
		m.beginInput(inputKey, "Gemini API key", "")
		return m, textinput.Blink
	}

	if current == tabs.History {
		return m.updateHistoryKey(msg)
	}

	switch msg.String() {
	case " ":
		if err := m.app.ToggleListening(); err != nil {
			m.setStatus(app.StatusError, err.Error())
		}
		return m, nil
	case "c":
		m.app.Clear()
		m.output, m.outputTitle = "", ""
		return m, nil
	case "s":
		if _, err := m.app.SaveToHistory(); err != nil {
			m.setStatus(app.StatusError, err.Error())
		}
		return m, nil
	case "t":
		if _, err := m.app.SaveTxt(m.opts.ExportDir); err != nil {
			m.setStatus(app.StatusError, err.Error())
		}
		return m, nil
	case "r":
		m.reportErr(m.app.SpeakAll())
		return m, nil
	case "R":
		m.reportErr(m.app.SpeakNew())
		return m, nil
	case "n":
		if msg := m.app.ToggleRecorder(); msg != "" {
			m.setStatus(app.StatusInfo, msg)
		}
		return m, nil
	case "e":
		m.exportTimeline()
		return m, nil
	case "S":
		return m.startGemini("Summary", func(ctx context.Context) (string, error) {
			return m.app.Summarize(ctx)
		})
	case "P":
		return m.startGemini("Speakers", func(ctx context.Context) (string, error) {
			res, err := m.app.IdentifySpeakers(ctx)
			if err != nil {
				return "", err
			}
			if res.Document == nil {
				return res.Raw, nil
			}
			return fmt.Sprintf("%d utterances identified", len(res.Document.Utterances)), nil
		})
	case "M":
		return m.startGemini("Speaker summary", func(ctx context.Context) (string, error) {
			return m.app.SummarizeSpeakers(ctx)
		})
	}

	vp := m.viewports[current]
	if vp == nil {
		return m, nil
	}
	var cmd tea.Cmd
	*vp, cmd = vp.Update(msg)
	return m, cmd
}

func (m Model) updateHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.app.History().Display(m.app.Tabs().Query())
	switch msg.String() {
	case "/":
		m.beginInput(inputSearch, "search", m.app.Tabs().Query())
		return m, textinput.Blink
	case "up":
		if m.cursor > 0 {
			m.cursor--
			m.refresh(tabs.History)
		}
		return m, nil
	case "down":
		if m.cursor < len(rows)-1 {
			m.cursor++
			m.refresh(tabs.History)
		}
		return m, nil
	case "enter":
		if m.cursor < len(rows) {
			m.reportErr(m.app.OutputHistory(rows[m.cursor].Index))
			m.refresh(tabs.Main)
		}
		return m, nil
	case "d":
		if m.cursor < len(rows) {
			m.reportErr(m.app.DeleteHistory(rows[m.cursor].Index))
		}
		return m, nil
	case "e":
		m.exportHistory()
		return m, nil
	}
	vp := m.viewports[tabs.History]
	if vp == nil {
		return m, nil
	}
	var cmd tea.Cmd
	*vp, cmd = vp.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.endInput()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.endInput()
		if mode == inputKey && value != "" {
			return m.startVerify(value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == inputSearch {
		m.cursor = 0
		m.app.Tabs().SetQuery(m.input.Value())
		m.refresh(tabs.History)
	}
	return m, cmd
}

func (m *Model) beginInput(mode inputMode, placeholder, value string) {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.EchoMode = textinput.EchoNormal
	if mode == inputKey {
		m.input.EchoMode = textinput.EchoPassword
	}
	m.input.Focus()
	m.refresh(tabs.History)
}

func (m *Model) endInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.SetValue("")
	m.refresh(tabs.History)
}

func (m *Model) startGemini(title string, fn func(ctx context.Context) (string, error)) (tea.Model, tea.Cmd) {
	if m.busy != "" {
		return *m, nil
	}
	m.busy = title + "…"
	ctx := m.ctx
	return *m, func() tea.Msg {
		text, err := fn(ctx)
		return geminiDoneMsg{title: title, text: text, err: err}
	}
}

func (m *Model) startVerify(key string) (tea.Model, tea.Cmd) {
	s := m.app.Summarizer()
	if s == nil {
		m.setStatus(app.StatusError, app.ErrSummarizerUnavailable.Error())
		return *m, nil
	}
	m.busy = "Verifying key…"
	ctx := m.ctx
	return *m, func() tea.Msg { return verifyDoneMsg(s.Verify(ctx, key)) }
}

func (m *Model) switchTab(t tabs.Tab) {
	if m.app.Tabs().Switch(t) {
		m.refresh(t)
	}
}

func (m *Model) setStatus(kind app.StatusKind, text string) {
	m.statusKind, m.status = kind, text
}

func (m *Model) reportErr(err error) {
	if err != nil {
		m.setStatus(app.StatusError, err.Error())
	}
}

func (m *Model) handleEvent(ev app.Event) {
	switch ev := ev.(type) {
	case app.TranscriptEvent:
		m.final, m.interim, m.reading = ev.Final, ev.Interim, ev.Hiragana
		m.refresh(tabs.Main)
		if vp := m.viewports[tabs.Main]; vp != nil {
			vp.GotoBottom()
		}
	case app.ListeningEvent:
		m.listening = ev.Listening
	case app.StatusEvent:
		m.setStatus(ev.Kind, ev.Text)
	case app.DictionaryEvent:
		m.dict = string(ev.State)
		if ev.State == hiragana.StateInitializing && ev.Elapsed > 0 {
			m.dict = fmt.Sprintf("loading %ds", int(ev.Elapsed.Seconds()))
		}
	case app.HistoryEvent:
		if n := len(m.app.History().Display(m.app.Tabs().Query())); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		m.refresh(tabs.History)
	case app.TimelineEvent:
		m.refresh(tabs.Main)
	}
}

func (m *Model) exportHistory() {
	data, err := m.app.History().Export("json")
	if err != nil {
		m.reportErr(err)
		return
	}
	name := "speech-history-" + time.Now().Format("2006-01-02") + ".json"
	m.writeExport(name, data)
}

func (m *Model) exportTimeline() {
	if m.app.Timeline().Len() == 0 {
		m.setStatus(app.StatusError, "the timeline is empty")
		return
	}
	data, err := m.app.Timeline().ExportJSON()
	if err != nil {
		m.reportErr(err)
		return
	}
	m.writeExport("timeline-"+time.Now().Format("2006-01-02-15-04-05")+".json", data)
}

func (m *Model) writeExport(name string, data []byte) {
	path := filepath.Join(m.opts.ExportDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.reportErr(err)
		return
	}
	m.setStatus(app.StatusSuccess, "Exported "+path)
}

func indexOf(t tabs.Tab) int {
	for i, o := range tabs.Order {
		if o == t {
			return i
		}
	}
	return 0
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	// ── Row 1: title bar ──────────────────────────────────────────────────────
	name := "  minutes"
	if s := m.app.Summarizer(); s != nil {
		name += "  " + s.Model()
	}
	title := titleStyle.Width(m.width).Render(name)

	// ── Row 2: tab bar ────────────────────────────────────────────────────────
	current := m.app.Tabs().Current()
	var tabParts []string
	for i, t := range tabs.Order {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[t])
		if t == current {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < len(tabs.Order)-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	// ── Row 3…N-2: scrollable content ────────────────────────────────────────
	content := ""
	if vp := m.viewports[current]; vp != nil {
		content = vp.View()
	}

	// ── Row N-1: input or status message ─────────────────────────────────────
	line := ""
	switch {
	case m.mode != inputNone:
		line = " " + m.input.View()
	case m.busy != "":
		line = " " + dimStyle.Render(m.busy)
	case m.status != "":
		line = " " + statusStyles[m.statusKind].Render(m.status)
	}

	// ── Row N: status / hint bar ──────────────────────────────────────────────
	rec := dimStyle.Render("○ idle")
	if m.listening {
		rec = recStyle.Render("● REC")
	}
	if !m.app.Session().Available() {
		rec = dimStyle.Render("✕ no recognizer")
	}
	left := rec + "  " + labelStyle.Render("dict") + " " + m.dict
	hint := hintFor(current)
	pad := m.width - lipgloss.Width(left) - lipgloss.Width(hint) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", pad) + hintStyle.Render(hint))

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, line, statusBar)
}

func hintFor(t tabs.Tab) string {
	switch t {
	case tabs.History:
		return "/ search  ↑/↓ select  enter output  d delete  e export  q quit"
	case tabs.Limits:
		return "tab switch  k key  q quit"
	}
	return "space rec  c clear  s save  t txt  S summary  P speakers  M per-speaker  r/R read  n record  q quit"
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title, tab row, message line and status bar
	vpHeight := m.height - 4
	if vpHeight < 1 {
		vpHeight = 1
	}
	for _, t := range tabs.Order {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(t))
		m.viewports[t] = &vp
	}
}

func (m *Model) refresh(t tabs.Tab) {
	if vp := m.viewports[t]; vp != nil {
		vp.SetContent(m.renderTab(t))
	}
}
