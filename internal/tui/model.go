// Package tui is the interactive terminal chat over one thread.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

// Turner runs one user turn
type Turner interface {
	RunTurn(ctx context.Context, c council.Compose) (*council.TurnResult, error)
}

// Options configures a chat session
type Options struct {
	Store    *db.Store
	Turns    Turner
	ThreadID string
	Level    llm.Level
	UserName string
	// Style is a glamour style name; empty picks one from the terminal background
	Style    string
	Logger   *zap.Logger
	Location *time.Location
}

// Messages delivered to Update
type (
	progressMsg council.Event
	turnDoneMsg struct {
		result *council.TurnResult
		err    error
	}
)

// chrome is the number of rows around the transcript: header, chips,
// status, composer (3 rows + border) and the help line
const chrome = 9

// Model is the bubbletea model of the chat screen
type Model struct {
	store    *db.Store
	turns    Turner
	logger   *zap.Logger
	userName string
	style    string
	loc      *time.Location

	ctx    context.Context
	cancel context.CancelFunc

	thread   db.Thread
	messages []db.Message
	targets  map[string]bool
	level    llm.Level

	viewport viewport.Model
	composer textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	browsing bool // keys go to the transcript instead of the composer
	busy     bool
	activity *council.Event
	notice   string
	err      error

	width, height int
	ready         bool
}

// New loads the thread and builds the initial screen state
func New(opts Options) (Model, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Level == "" {
		opts.Level = llm.LevelDireto
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	thread, err := opts.Store.GetThread(opts.ThreadID)
	if err != nil {
		return Model{}, fmt.Errorf("loading thread: %w", err)
	}

	var projectAgents []string
	inProject := false
	if thread.ProjectID != "" {
		if p, err := opts.Store.GetProject(thread.ProjectID); err == nil {
			projectAgents, inProject = p.DefaultAgents, true
		}
	}
	targets := map[string]bool{}
	for _, id := range persona.DefaultTargets(thread.ContactID, projectAgents, inProject) {
		targets[id] = true
	}

	ta := textarea.New()
	ta.Placeholder = "Escreva para o conselho... (enter envia, alt+enter quebra linha)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	m := Model{
		store:    opts.Store,
		turns:    opts.Turns,
		logger:   opts.Logger,
		userName: opts.UserName,
		style:    opts.Style,
		loc:      opts.Location,
		ctx:      context.Background(),
		thread:   *thread,
		targets:  targets,
		level:    opts.Level,
		viewport: viewport.New(80, 20),
		composer: ta,
		spinner:  sp,
	}
	if err := m.reload(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Selected returns the chosen personas in canonical order
func (m Model) Selected() []string {
	var out []string
	for _, id := range persona.CanonicalOrder {
		if m.targets[id] {
			out = append(out, id)
		}
	}
	return out
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		e := council.Event(msg)
		if e.ThreadID != m.thread.ID {
			return m, nil
		}
		switch e.State {
		case council.StateAnalyzing, council.StateTyping:
			m.activity = &e
		default:
			m.activity = nil
		}
		if e.State == council.StateAnalyzing || e.Message != nil {
			m.refresh()
		}
		return m, nil

	case turnDoneMsg:
		m.busy = false
		m.activity = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.err = nil
		m.notice = ""
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
			m.logger.Error("turn failed", zap.String("thread", m.thread.ID), zap.Error(msg.err))
		}
		if r := msg.result; r != nil && r.Fallbacks > 0 {
			m.notice = fmt.Sprintf("%d resposta(s) falharam; rode `qg retry %s` para tentar de novo", r.Fallbacks, m.thread.ID)
		}
		m.refresh()
		if !m.browsing {
			m.composer.Focus()
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.browsing {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.composer, cmd = m.composer.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch k {
	case "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case "esc":
		m.browsing = !m.browsing
		if m.browsing || m.busy {
			m.composer.Blur()
		} else {
			m.composer.Focus()
		}
		return m, nil

	case "tab":
		m.level = m.level.Next()
		return m, nil

	case "enter":
		if !m.browsing {
			return m.submit()
		}
	}

	if i, ok := targetKey(k, m.browsing); ok {
		id := persona.CanonicalOrder[i]
		m.targets[id] = !m.targets[id]
		return m, nil
	}

	var cmd tea.Cmd
	if m.browsing {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.composer, cmd = m.composer.Update(msg)
	}
	return m, cmd
}

// targetKey maps alt+1..alt+5 (or bare digits while browsing) to a persona index
func targetKey(k string, browsing bool) (int, bool) {
	digit := strings.TrimPrefix(k, "alt+")
	if digit == k && !browsing {
		return 0, false
	}
	if len(digit) != 1 || digit[0] < '1' || int(digit[0]-'1') >= len(persona.CanonicalOrder) {
		return 0, false
	}
	return int(digit[0] - '1'), true
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	text := strings.TrimSpace(m.composer.Value())
	if text == "" {
		return m, nil
	}
	if m.turns == nil {
		m.err = errors.New("geração desativada: configure GEMINI_API_KEY")
		return m, nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.busy = true
	m.err, m.notice = nil, ""
	m.composer.Reset()
	m.composer.Blur()

	c := council.Compose{
		ThreadID: m.thread.ID,
		Text:     text,
		Targets:  m.Selected(),
		Level:    m.level,
	}
	m.logger.Debug("submitting turn", zap.String("thread", c.ThreadID), zap.Strings("targets", c.Targets))
	return m, tea.Batch(m.spinner.Tick, runTurn(ctx, m.turns, c))
}

func runTurn(ctx context.Context, turns Turner, c council.Compose) tea.Cmd {
	return func() tea.Msg {
		result, err := turns.RunTurn(ctx, c)
		return turnDoneMsg{result: result, err: err}
	}
}

func (m *Model) reload() error {
	msgs, err := m.store.MessagesByThread(m.thread.ID)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	m.messages = msgs
	if t, err := m.store.GetThread(m.thread.ID); err == nil {
		m.thread = *t
	}
	return nil
}

// refresh reloads the thread and scrolls to the newest message
func (m *Model) refresh() {
	if err := m.reload(); err != nil {
		m.err = err
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) layout() {
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 3)
	m.composer.SetWidth(max(m.width-2, 10))

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(max(m.width-4, 20))}
	if m.style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(m.style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
		r = nil
	}
	m.renderer = r

	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) author(msg db.Message) string {
	if msg.Role == db.RoleUser {
		name := m.userName
		if name == "" {
			name = "Você"
		}
		return userStyle.Render(name)
	}
	return personaStyle(msg.AgentID).Render(persona.Name(msg.AgentID))
}

func (m Model) renderTranscript() string {
	if len(m.messages) == 0 {
		return dimStyle.Render("Nenhuma mensagem ainda. Escolha os conselheiros (alt+1..5) e escreva.")
	}
	width := max(m.width-2, 20)
	var b strings.Builder
	for _, msg := range m.messages {
		at := time.UnixMilli(msg.CreatedAt).In(m.loc).Format("15:04")
		header := m.author(msg) + " " + dimStyle.Render(at)
		if msg.Mode == db.ModeNote {
			header += dimStyle.Render(" (nota)")
		}
		b.WriteString(header)
		b.WriteString("\n")

		body := msg.Content
		if msg.Role == db.RoleAgent && m.renderer != nil {
			if out, err := m.renderer.Render(msg.Content); err == nil {
				body = strings.Trim(out, "\n")
			}
		} else {
			body = lipgloss.NewStyle().Width(width).Render(body)
		}
		b.WriteString(body)
		b.WriteString("\n")
		for _, a := range msg.Attachments {
			b.WriteString(dimStyle.Render("  📎 " + a.Filename))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) statusLine() string {
	switch {
	case m.busy && m.activity != nil && m.activity.PersonaID != "":
		verb := "está analisando..."
		if m.activity.State == council.StateTyping {
			verb = "está digitando..."
		}
		return m.spinner.View() + " " + statusStyle.Render(fmt.Sprintf("%s %s (%d/%d)",
			persona.Name(m.activity.PersonaID), verb, m.activity.Index+1, m.activity.Total))
	case m.busy:
		return m.spinner.View() + " " + statusStyle.Render("aguardando o conselho...")
	case m.err != nil:
		return errorStyle.Render(m.err.Error())
	case m.notice != "":
		return statusStyle.Render(m.notice)
	}
	return dimStyle.Render(fmt.Sprintf("%d mensagens", len(m.messages)))
}

func (m Model) View() string {
	if !m.ready {
		return "Carregando o QG..."
	}

	header := titleStyle.Render("QG ESTRATÉGICO") + "  " + m.thread.Title +
		dimStyle.Render("  "+persona.ContactName(m.thread.ContactID))

	chips := make([]string, 0, len(persona.CanonicalOrder)+1)
	for i, id := range persona.CanonicalOrder {
		chips = append(chips, dimStyle.Render(fmt.Sprintf("%d", i+1))+chip(id, m.targets[id]))
	}
	chips = append(chips, dimStyle.Render("  nível: ")+string(m.level))
	targets := lipgloss.JoinHorizontal(lipgloss.Center, chips...)

	box := composerBox
	if m.busy || m.browsing {
		box = lockedBox
	}
	composer := box.Width(max(m.width-2, 10)).Render(m.composer.View())

	help := dimStyle.Render("enter enviar • alt+1..5 conselheiros • tab nível • esc rolar histórico • ctrl+c sair")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		targets,
		m.statusLine(),
		composer,
		help,
	)
}
