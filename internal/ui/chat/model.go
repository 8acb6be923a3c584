// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/nexuschat/internal/api"
	convo "github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/commands"
	"github.com/jeranaias/nexuschat/internal/config"
	"github.com/jeranaias/nexuschat/internal/render"
	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
)

// noticeTTL is how long an info notice stays in the status bar.
const noticeTTL = 6 * time.Second

// focus is the pane receiving keys in the chat view.
type focus int

const (
	focusInput focus = iota
	focusSidebar
	focusSearch
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the model.
type Options struct {
	Controller *convo.Controller
	Config     *config.Config
	Logger     *zap.Logger
	// Context bounds every controller call. Defaults to context.Background.
	Context context.Context
	// Now defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the whole application.
type Model struct {
	ctx    context.Context
	ctrl   *convo.Controller
	store  *state.Store
	logger *zap.Logger
	cfg    *config.Config
	now    func() time.Time

	// changes signals store updates; unsubscribe detaches the listener.
	changes     <-chan struct{}
	unsubscribe func()
	// last is the state the view currently shows.
	last state.State

	registry  *commands.Registry
	completer *commands.Completer
	env       *commands.Env

	theme      *styles.Theme
	keys       KeyMap
	help       help.Model
	transcript *render.Transcript
	viewport   viewport.Model
	input      textarea.Model
	spinner    spinner.Model
	login      loginForm
	search     searchPanel

	width, height int
	focus         focus
	showSidebar   bool
	showHelp      bool
	cursor        int
	// confirmDelete is the session awaiting a y/n answer, 0 for none.
	confirmDelete int64

	completions []string
	compIndex   int
}

// New creates the model. The store subscription is made here so no
// transition between New and Init is missed.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store := opts.Controller.Store()
	changes, unsubscribe := subscribe(store)
	theme := styles.NewTheme(cfg.UI.Theme)

	ta := textarea.New()
	ta.Placeholder = "Type a message or /help"
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 8,
	}

	registry := commands.NewRegistry()
	completer := commands.NewCompleter(registry)
	completer.IndexFn = func() []string {
		n := len(store.State().Sessions)
		out := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, strconv.Itoa(i))
		}
		return out
	}

	env := &commands.Env{
		Chat: opts.Controller,
		// Command output lands in the transcript as a system note.
		Out: commands.PrinterFunc(func(text string) {
			store.Dispatch(state.SystemNote{Text: text})
		}),
		ExportFormat: cfg.Export.Format,
		ExportDir:    cfg.Export.OutputDir,
		Now:          now,
	}

	m := Model{
		ctx:         ctx,
		ctrl:        opts.Controller,
		store:       store,
		logger:      logger.Named("tui"),
		cfg:         cfg,
		now:         now,
		changes:     changes,
		unsubscribe: unsubscribe,
		registry:    registry,
		completer:   completer,
		env:         env,
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		transcript:  render.NewTranscript(theme, 80),
		viewport:    viewport.New(80, 20),
		input:       ta,
		spinner:     sp,
		login:       newLoginForm(),
		search:      newSearchPanel(cfg.Search.RatePerSecond, cfg.Search.Burst),
		showSidebar: true,
	}
	m.last = store.State()
	render.Replay(m.transcript, m.last)
	if m.last.View == state.ViewChat {
		m.input.Focus()
	}
	return m
}

// Close detaches the model from the store.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init checks the stored login and starts listening to the store.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.changes),
		m.run(m.ctrl.Bootstrap),
		textarea.Blink,
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case stateChangedMsg:
		cmd := m.applyState(m.store.State())
		return m, tea.Batch(waitForChange(m.changes), cmd)

	case opDoneMsg:
		return m.handleOpDone(msg)

	case noticeExpiredMsg:
		if m.last.Notice.Text == msg.text {
			m.dispatch(state.SetNotice{})
		}
		return m, nil

	case spinner.TickMsg:
		if !m.last.Typing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.transcript.SetTypingFrame(m.spinner.View())
		m.refreshViewport(true)
		return m, cmd

	case searchFireMsg:
		return m, m.search.fire(m.ctx, msg.seq, m.now(), m.ctrl.Search)

	case searchResultMsg:
		m.search.apply(msg)
		return m, nil

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.last.View == state.ViewLogin {
			return m.handleLoginKey(msg)
		}
		return m.handleChatKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// STATE PROJECTION
// =============================================================================

// applyState projects the transition m.last -> next onto the view.
func (m *Model) applyState(next state.State) tea.Cmd {
	prev := m.last
	m.last = next

	render.Sync(m.transcript, prev, next)
	m.refreshViewport(true)

	var cmds []tea.Cmd
	if next.Typing && !prev.Typing {
		m.transcript.SetTypingFrame(m.spinner.View())
		cmds = append(cmds, m.spinner.Tick)
	}

	if prev.View != next.View {
		switch next.View {
		case state.ViewChat:
			m.login = newLoginForm()
			m.login.inputs[fieldUsername].Blur()
			m.focus = focusInput
			cmds = append(cmds, m.input.Focus())
		case state.ViewLogin:
			m.input.Blur()
			m.input.Reset()
			m.search.reset()
			m.focus = focusInput
			m.confirmDelete = 0
			m.login.submitting = false
			m.login.resetPassword()
			cmds = append(cmds, m.login.focus(fieldUsername))
		}
	}

	if n := len(next.Sessions); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}

	if next.Notice != prev.Notice && next.Notice.Level == state.NoticeInfo && next.Notice.Text != "" {
		text := next.Notice.Text
		cmds = append(cmds, tea.Tick(noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{text: text} }))
	}
	return tea.Batch(cmds...)
}

// refreshViewport copies the transcript into the viewport. Following keeps
// the bottom in view when the user had not scrolled up.
func (m *Model) refreshViewport(follow bool) {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcript.View())
	if follow && atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// run executes a controller call off the update loop.
func (m Model) run(op func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: op(ctx)}
	}
}

// dispatch changes the store from inside Update. The listener only signals,
// so this cannot block on the program loop.
func (m Model) dispatch(a state.Action) {
	m.store.Dispatch(a)
}

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.login.submitting = false
	err := msg.err
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, commands.ErrQuit):
		return m, tea.Quit
	case errors.Is(err, commands.ErrUsage):
		m.dispatch(state.SetNotice{Notice: state.Notice{Level: state.NoticeError, Text: err.Error()}})
	case m.last.View == state.ViewLogin:
		m.login.resetPassword()
	}
	// Everything else was already surfaced through the store.
	m.logger.Debug("operation finished with error", zap.Error(err))
	return m, nil
}

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.logger.Warn("config reload failed", zap.Error(msg.Err))
		m.dispatch(state.SetNotice{Notice: state.Notice{Level: state.NoticeError, Text: "Config reload failed: " + msg.Err.Error()}})
		return m, nil
	}
	cfg := msg.Config
	m.cfg = cfg
	m.env.ExportFormat = cfg.Export.Format
	m.env.ExportDir = cfg.Export.OutputDir
	m.search.limiter.SetLimit(rateLimit(cfg.Search.RatePerSecond))
	m.search.limiter.SetBurst(max(cfg.Search.Burst, 1))

	if !strings.EqualFold(cfg.UI.Theme, m.theme.Mode) {
		m.theme = styles.NewTheme(cfg.UI.Theme)
		m.transcript.SetTheme(m.theme)
		m.logger.Info("theme reloaded", zap.String("theme", m.theme.Mode))
		m.dispatch(state.SetNotice{Notice: state.Notice{Level: state.NoticeInfo, Text: "Theme changed to " + m.theme.Mode}})
	}
	m.layout()
	return m, nil
}

// =============================================================================
// LOGIN KEYS
// =============================================================================

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.submitting {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+t":
		return m, m.login.toggle()
	case "tab", "down":
		return m, m.login.move(1)
	case "shift+tab", "up":
		return m, m.login.move(-1)
	case "enter":
		if !m.login.isLast() {
			return m, m.login.move(1)
		}
		return m.submitLogin()
	}
	m.login.problem = ""
	return m, m.login.update(msg)
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	if problem := m.login.validate(); problem != "" {
		m.login.problem = problem
		return m, nil
	}
	m.login.problem = ""
	m.login.submitting = true

	if m.login.signup {
		req := m.login.signupRequest()
		return m, m.run(func(ctx context.Context) error { return m.ctrl.Signup(ctx, req) })
	}
	username, password := m.login.username(), m.login.password()
	return m, m.run(func(ctx context.Context) error { return m.ctrl.Login(ctx, username, password) })
}

// =============================================================================
// CHAT KEYS
// =============================================================================

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete != 0 {
		return m.handleConfirmDelete(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		if !m.showSidebar && m.focus == focusSidebar {
			m.focus = focusInput
			m.input.Focus()
		}
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.NewChat):
		m.ctrl.NewConversation()
		return m.focusInput()
	case key.Matches(msg, m.keys.Search):
		m.focus = focusSearch
		m.input.Blur()
		m.search.reset()
		return m, m.search.input.Focus()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	switch m.focus {
	case focusSidebar:
		return m.handleSidebarKey(msg)
	case focusSearch:
		return m.handleSearchKey(msg)
	default:
		return m.handleInputKey(msg)
	}
}

func (m Model) focusInput() (tea.Model, tea.Cmd) {
	m.focus = focusInput
	m.search.input.Blur()
	return m, m.input.Focus()
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	value := m.input.Value()

	switch {
	case key.Matches(msg, m.keys.Complete) && commands.IsCommand(value) && !strings.Contains(value, "\n"):
		m.complete()
		return m, nil
	case key.Matches(msg, m.keys.SwitchFocus) && m.showSidebar:
		m.focus = focusSidebar
		m.input.Blur()
		m.completions = nil
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.completions = nil
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	m.completions = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.layout()
	return m, cmd
}

// complete cycles through whole-line completions of the input.
func (m *Model) complete() {
	if len(m.completions) == 0 {
		m.completions = m.completer.Lines(m.input.Value())
		m.compIndex = 0
		if len(m.completions) == 0 {
			return
		}
	} else {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
	}
	m.input.SetValue(m.completions[m.compIndex])
	m.input.CursorEnd()
	if len(m.completions) == 1 {
		m.completions = nil
	}
	m.layout()
}

// submit sends the input as a message or runs it as a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.completions = nil
	if text == "" {
		return m, nil
	}

	if commands.IsCommand(text) {
		m.input.Reset()
		m.layout()
		registry, env := m.registry, m.env
		return m, m.run(func(ctx context.Context) error { return registry.Execute(ctx, env, text) })
	}

	if m.last.Sending {
		// Keep the draft; the controller reports that a reply is pending.
		return m, m.run(func(ctx context.Context) error { return m.ctrl.SendMessage(ctx, text) })
	}
	m.input.Reset()
	m.layout()
	return m, m.run(func(ctx context.Context) error { return m.ctrl.SendMessage(ctx, text) })
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := m.visibleSessions()

	switch {
	case key.Matches(msg, m.keys.SwitchFocus), key.Matches(msg, m.keys.Cancel):
		return m.focusInput()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(sessions)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if m.cursor < len(sessions) {
			id := sessions[m.cursor].ID
			m.focus = focusInput
			return m, tea.Batch(m.input.Focus(), m.run(func(ctx context.Context) error {
				return m.ctrl.LoadConversation(ctx, id)
			}))
		}
	case key.Matches(msg, m.keys.Delete):
		if m.cursor < len(sessions) {
			m.confirmDelete = sessions[m.cursor].ID
		}
	case msg.String() == "n":
		m.ctrl.NewConversation()
		return m.focusInput()
	}
	return m, nil
}

func (m Model) handleConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.confirmDelete
	m.confirmDelete = 0
	if msg.String() != "y" && msg.String() != "Y" {
		return m, nil
	}
	return m, m.run(func(ctx context.Context) error { return m.ctrl.DeleteConversation(ctx, id) })
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.search.reset()
		return m.focusInput()
	case msg.Type == tea.KeyUp:
		m.search.move(-1)
		return m, nil
	case msg.Type == tea.KeyDown:
		m.search.move(1)
		return m, nil
	case key.Matches(msg, m.keys.Open):
		r, ok := m.search.selected()
		if !ok {
			return m, nil
		}
		m.search.reset()
		next, cmd := m.focusInput()
		id := r.SessionID
		return next, tea.Batch(cmd, m.run(func(ctx context.Context) error {
			return m.ctrl.LoadConversation(ctx, id)
		}))
	}

	before := m.search.input.Value()
	var cmd tea.Cmd
	m.search.input, cmd = m.search.input.Update(msg)
	if m.search.input.Value() != before {
		cmd = tea.Batch(cmd, m.search.edited())
	}
	return m, cmd
}

// visibleSessions returns sessions in sidebar order.
func (m Model) visibleSessions() []api.Session {
	return m.ctrl.History(m.now()).Flatten()
}
