package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nathoo/pactcore/engine"
	"github.com/nathoo/pactcore/engine/save"
	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// mode tracks what the input line currently means.
type mode int

const (
	modeOverworld mode = iota // approach/list/meta commands
	modeQuestion              // answering a negotiation prompt
	modeConfirm               // y/n decision for a demand
	modeBusy                  // a turn is resolving in the background
)

// rawLine stores an unstyled output line with its classification, so we can
// re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool
	isSystem bool
	tone     types.Tone
	hasTone  bool
}

// outputMsg carries plain output lines into the Update loop.
type outputMsg struct {
	input  string // echoed player input, empty for none
	lines  []string
	system bool
}

// decisionMsg is emitted mid-turn when a demand needs a y/n answer. The
// resolving goroutine blocks on resp until the player decides.
type decisionMsg struct {
	prompt string
	resp   chan bool
}

// turnDoneMsg reports a finished turn back from the resolving goroutine.
type turnDoneMsg struct {
	toneLine string
	tone     types.Tone
	hasTone  bool
	lines    []string
	err      error
}

// roundReadyMsg opens a round after the demon's whim has resolved.
type roundReadyMsg struct {
	notes []string
}

// resumeMsg kicks off a session restored from a save.
type resumeMsg struct{}

// Model is the Bubble Tea model for the PactCore TUI.
type Model struct {
	catalog *state.Catalog
	player  *types.Player
	rng     *engine.RNG
	store   *save.Store
	logger  *zap.Logger

	session  *engine.Session
	question types.Question
	mode     mode
	status   statusSnapshot
	resp     chan bool    // pending decision, modeConfirm only
	events   chan tea.Msg // decisions surfacing from resolving goroutines

	viewport viewport.Model
	input    textinput.Model
	history  *History
	rawLines []rawLine

	width    int
	height   int
	ready    bool
	quitting bool
	resumed  bool
}

// New creates a TUI model wired to the given world. A non-nil resumed
// session is continued before the overworld opens.
func New(cat *state.Catalog, player *types.Player, rng *engine.RNG, store *save.Store, resumed *engine.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	m := Model{
		catalog: cat,
		player:  player,
		rng:     rng,
		store:   store,
		logger:  zap.NewNop(),
		session: resumed,
		resumed: resumed != nil,
		input:   ti,
		history: NewHistory(100),
		events:  make(chan tea.Msg),
	}
	m.snapshotStatus()
	return m
}

// Run starts the Bubble Tea program.
func Run(cat *state.Catalog, player *types.Player, rng *engine.RNG, store *save.Store, logger *zap.Logger, resumed *engine.Session) error {
	m := New(cat, player, rng, store, resumed)
	if logger != nil {
		m.logger = logger
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init emits the intro and starts listening for mid-turn decisions.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.listen(), m.introCmd()}
	if m.resumed {
		cmds = append(cmds, func() tea.Msg { return resumeMsg{} })
	}
	return tea.Batch(cmds...)
}

// listen waits for the next event from a resolving goroutine. Re-armed
// after every receive.
func (m Model) listen() tea.Cmd {
	ev := m.events
	return func() tea.Msg { return <-ev }
}

func (m Model) introCmd() tea.Cmd {
	cat := m.catalog
	return func() tea.Msg {
		var lines []string
		title := cat.Game.Title
		if cat.Game.Version != "" {
			title += " v" + cat.Game.Version
		}
		if cat.Game.Author != "" {
			title += " by " + cat.Game.Author
		}
		lines = append(lines, title, "")
		if cat.Game.Intro != "" {
			lines = append(lines, cat.Game.Intro, "")
		}
		lines = append(lines, demonList(cat)...)
		return outputMsg{lines: lines}
	}
}

// Update handles messages (key presses, window resize, turn results).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.handleEnter()
		case "up":
			if prev, ok := m.history.Older(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil
		case "down":
			if next, ok := m.history.Newer(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
			}
			return m, nil
		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case outputMsg:
		m = m.appendOutput(msg)

	case resumeMsg:
		m.append(rawLine{text: fmt.Sprintf("Resuming your negotiation with %s.", m.session.Demon().Name)})
		m.refreshViewport()
		m.snapshotStatus()
		m.mode = modeBusy
		cmds = append(cmds, m.beginRound())

	case roundReadyMsg:
		m.snapshotStatus()
		for _, line := range msg.notes {
			m.append(rawLine{text: line, kind: classifyLine(line)})
		}
		if m.session.Outcome().Terminal() {
			m = m.closeEncounter()
		} else {
			m = m.showQuestion()
		}

	case decisionMsg:
		// The resolving goroutine is parked on resp, so the session is
		// safe to read here.
		m.snapshotStatus()
		m.resp = msg.resp
		m.mode = modeConfirm
		m.append(rawLine{text: msg.prompt + " (y/n)"})
		m.refreshViewport()
		cmds = append(cmds, m.listen())

	case turnDoneMsg:
		var turnCmd tea.Cmd
		m, turnCmd = m.handleTurnDone(msg)
		cmds = append(cmds, turnCmd)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)
	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line according to the mode.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" || m.mode == modeBusy {
		return m, nil
	}
	m.history.Add(input)

	switch m.mode {
	case modeConfirm:
		return m.handleConfirm(input)
	case modeQuestion:
		return m.handleQuestionInput(input)
	default:
		return m.handleOverworld(input)
	}
}

func (m Model) handleConfirm(input string) (tea.Model, tea.Cmd) {
	var val bool
	switch strings.ToLower(input) {
	case "y", "yes":
		val = true
	case "n", "no":
		val = false
	default:
		m.append(rawLine{text: "Answer y or n.", kind: kindError})
		m.refreshViewport()
		return m, nil
	}
	m = m.appendOutput(outputMsg{input: input})
	m.mode = modeBusy
	resp := m.resp
	m.resp = nil
	return m, func() tea.Msg {
		resp <- val
		return nil
	}
}

func (m Model) handleQuestionInput(input string) (tea.Model, tea.Cmd) {
	m = m.appendOutput(outputMsg{input: input})
	fields := strings.Fields(input)
	s := m.session

	switch strings.ToLower(fields[0]) {
	case "b", "bribe":
		m.mode = modeBusy
		return m, m.actionCmd(s.AttemptBribe)
	case "f", "flee":
		m.mode = modeBusy
		return m, m.actionCmd(s.AttemptFlee)
	case "u", "use":
		if len(fields) < 2 {
			m.append(rawLine{text: "Use what? Try: u tonic", kind: kindError})
			m.refreshViewport()
			return m, nil
		}
		msg, err := s.UseItem(fields[1])
		if err != nil {
			msg = err.Error()
		}
		m.snapshotStatus()
		m.append(rawLine{text: msg})
		m.refreshViewport()
		return m, nil
	default:
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 1 || n > len(m.question.Choices) {
			m.append(rawLine{text: fmt.Sprintf("Pick 1-%d, b, u, or f.", len(m.question.Choices)), kind: kindError})
			m.refreshViewport()
			return m, nil
		}
		m.mode = modeBusy
		return m, m.answerCmd(n - 1)
	}
}

func (m Model) handleOverworld(input string) (tea.Model, tea.Cmd) {
	m = m.appendOutput(outputMsg{input: input})

	if strings.HasPrefix(input, "/") {
		lines, quit := m.handleMeta(input)
		m = m.appendOutput(outputMsg{lines: lines, system: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "approach", "a":
		if len(fields) < 2 {
			m.append(rawLine{text: "Approach whom? Try: approach imp", kind: kindError})
			m.refreshViewport()
			return m, nil
		}
		opts := []engine.Option{engine.WithLogger(m.logger)}
		if m.store != nil {
			opts = append(opts, engine.WithCheckpointer(m.store))
		}
		s, err := engine.NewSession(m.catalog, m.player, fields[1], m.rng, opts...)
		if err != nil {
			m.append(rawLine{text: err.Error(), kind: kindError})
			m.refreshViewport()
			return m, nil
		}
		m.session = s
		m.snapshotStatus()
		d := s.Demon()
		m.append(rawLine{text: fmt.Sprintf("%s (%s, %s) regards you warily.", d.Name, d.Personality, d.Rarity)})
		m.refreshViewport()
		m.mode = modeBusy
		return m, m.beginRound()
	case "list", "l":
		m = m.appendOutput(outputMsg{lines: demonList(m.catalog)})
		return m, nil
	default:
		m.append(rawLine{text: "Unknown command. /help lists commands.", kind: kindError})
		m.refreshViewport()
		return m, nil
	}
}

// showQuestion draws the next prompt and its choices.
func (m Model) showQuestion() Model {
	q, err := m.session.PickQuestion()
	if err != nil {
		m.append(rawLine{text: err.Error(), kind: kindError})
		m.session = nil
		m.mode = modeOverworld
		m.snapshotStatus()
		m.refreshViewport()
		return m
	}
	m.question = q
	m.append(rawLine{})
	m.append(rawLine{text: q.Text})
	for i, c := range q.Choices {
		m.append(rawLine{text: fmt.Sprintf("%d) %s", i+1, c.Label), kind: kindChoice})
	}
	m.append(rawLine{text: "b) bribe   u <item>) use item   f) flee", kind: kindSystem, isSystem: true})
	m.mode = modeQuestion
	m.refreshViewport()
	return m
}

// beginRound rolls the demon's whim off the Update loop before the prompt
// is shown; whim demands surface as decisionMsgs like any other.
func (m Model) beginRound() tea.Cmd {
	s, ev := m.session, m.events
	return func() tea.Msg {
		cb := channelCallbacks(ev)
		var msg roundReadyMsg
		if _, notes, ok := s.MaybeWhim(cb); ok {
			msg.notes = append(msg.notes, notes...)
			msg.notes = append(msg.notes, "")
		}
		if s.Outcome().Terminal() {
			msg.notes = append(msg.notes, outcomeBanner(s))
		}
		return msg
	}
}

// answerCmd resolves one answer off the Update loop, so demand decisions
// can surface as decisionMsgs without freezing the UI.
func (m Model) answerCmd(choice int) tea.Cmd {
	s, q, ev := m.session, m.question, m.events
	return func() tea.Msg {
		cb := channelCallbacks(ev)
		fb, err := s.Answer(q, choice, cb)
		if err != nil {
			return turnDoneMsg{err: err}
		}
		msg := turnDoneMsg{
			toneLine: fmt.Sprintf("%s %s [%s, rapport %+d]", s.Demon().Name, fb.Cue, fb.Tone, fb.DeltaRapport),
			tone:     fb.Tone,
			hasTone:  true,
		}
		if len(fb.LikedTags) > 0 {
			msg.lines = append(msg.lines, fmt.Sprintf("(it warms to talk of %s)", strings.Join(fb.LikedTags, ", ")))
		}
		if len(fb.DislikedTags) > 0 {
			msg.lines = append(msg.lines, fmt.Sprintf("(it bristles at %s)", strings.Join(fb.DislikedTags, ", ")))
		}
		msg.lines = append(msg.lines, fb.Notes...)
		msg.lines = append(msg.lines, finishRound(s)...)
		return msg
	}
}

// actionCmd resolves a bribe or flee attempt off the Update loop.
func (m Model) actionCmd(action func() ([]string, error)) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		notes, err := action()
		if err != nil {
			return turnDoneMsg{err: err}
		}
		return turnDoneMsg{lines: append(notes, finishRound(s)...)}
	}
}

// finishRound closes the round and reports the outcome banner once the
// session ends.
func finishRound(s *engine.Session) []string {
	s.EndRound()
	if s.Outcome().Terminal() {
		return []string{"", outcomeBanner(s)}
	}
	return nil
}

func outcomeBanner(s *engine.Session) string {
	switch s.Outcome() {
	case types.Recruited:
		return fmt.Sprintf("=== %s recruited ===", s.Demon().Name)
	case types.Exhausted:
		return fmt.Sprintf("=== %s refuses to hear another word ===", s.Demon().Name)
	default:
		return fmt.Sprintf("=== %s is gone ===", s.Demon().Name)
	}
}

// channelCallbacks surfaces demand decisions through the event channel and
// blocks the resolving goroutine until the player answers.
func channelCallbacks(ev chan tea.Msg) types.Callbacks {
	ask := func(prompt string) bool {
		resp := make(chan bool)
		ev <- decisionMsg{prompt: prompt, resp: resp}
		return <-resp
	}
	return types.Callbacks{
		AskYesNo: ask,
		AskPay: func(amount, gold int) bool {
			return ask(fmt.Sprintf("Pay %d gold? (you have %d)", amount, gold))
		},
		AskGiveItem: func(itemID string, amount, have int) bool {
			return ask(fmt.Sprintf("Hand over %s x%d? (you have %d)", itemID, amount, have))
		},
	}
}

// handleTurnDone renders a finished turn and advances the flow.
func (m Model) handleTurnDone(msg turnDoneMsg) (Model, tea.Cmd) {
	m.snapshotStatus()
	if msg.err != nil {
		m.append(rawLine{text: msg.err.Error(), kind: kindError})
		m.mode = modeQuestion
		m.refreshViewport()
		return m, nil
	}
	if msg.hasTone {
		m.append(rawLine{text: msg.toneLine, tone: msg.tone, hasTone: true})
	}
	for _, line := range msg.lines {
		m.append(rawLine{text: line, kind: classifyLine(line)})
	}
	if m.session.Outcome().Terminal() {
		return m.closeEncounter(), nil
	}
	m.refreshViewport()
	m.mode = modeBusy
	return m, m.beginRound()
}

// closeEncounter drops back to the overworld after a terminal outcome.
func (m Model) closeEncounter() Model {
	m.session = nil
	m.mode = modeOverworld
	m.snapshotStatus()
	m.append(rawLine{})
	for _, line := range demonList(m.catalog) {
		m.append(rawLine{text: line})
	}
	m.refreshViewport()
	return m
}

// handleMeta dispatches meta-commands. Returns output and whether to quit.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true
	case "/save":
		if m.store == nil {
			return []string{"Saving is disabled."}, false
		}
		var d *save.Data
		if m.session != nil {
			d = save.Capture(m.session)
		} else {
			d = save.CaptureWorld(m.catalog, m.player, m.rng)
		}
		if err := m.store.Save(d); err != nil {
			return []string{fmt.Sprintf("Save failed: %v", err)}, false
		}
		return []string{fmt.Sprintf("Saved to %s.", m.store.Path())}, false
	case "/roster":
		if len(m.player.Roster) == 0 {
			return []string{"No pacts yet."}, false
		}
		lines := []string{"Roster:"}
		for _, id := range m.player.Roster {
			if d, ok := m.catalog.DemonByID(id); ok {
				lines = append(lines, fmt.Sprintf("  %s (%s, %s)", d.Name, d.Personality, d.Rarity))
			}
		}
		return lines, false
	case "/dex":
		lines := []string{fmt.Sprintf("Compendium: %d/%d seen", len(m.player.DexSeen), len(m.catalog.Demons))}
		for _, id := range m.player.DexSeen {
			if d, ok := m.catalog.DemonByID(id); ok {
				mark := " "
				if state.InRoster(m.player, id) {
					mark = "*"
				}
				lines = append(lines, fmt.Sprintf("  %s %s (%s)", mark, d.Name, d.Rarity))
			}
		}
		return lines, false
	case "/bag", "/inventory":
		if len(m.player.Inventory) == 0 {
			return []string{"Your bag is empty."}, false
		}
		lines := []string{"Bag:"}
		for id, qty := range m.player.Inventory {
			name := id
			if def, ok := m.catalog.ItemByID(id); ok {
				name = def.DisplayName
			}
			lines = append(lines, fmt.Sprintf("  %s x%d", name, qty))
		}
		return lines, false
	case "/help":
		return []string{
			"Commands:",
			"  approach <id>  open negotiations with a demon",
			"  list           list demons still at large",
			"In negotiation: answer by number, b to bribe, u <item> to use an item, f to flee.",
			"Meta: /save /roster /dex /bag /help /quit",
		}, false
	default:
		return []string{fmt.Sprintf("Unknown command %s. /help lists commands.", parts[0])}, false
	}
}

func demonList(cat *state.Catalog) []string {
	demons := cat.AvailableDemons()
	if len(demons) == 0 {
		return []string{"No demons remain at large. Your work is done."}
	}
	lines := []string{"Demons at large:"}
	for _, d := range demons {
		lines = append(lines, fmt.Sprintf("  %-12s %s (%s, %s)", d.ID, d.Name, d.Personality, d.Rarity))
	}
	return lines
}

// append adds one raw line without refreshing; callers refresh when done.
func (m *Model) append(rl rawLine) {
	m.rawLines = append(m.rawLines, rl)
}

// appendOutput adds echoed input plus lines and refreshes the viewport.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.append(rawLine{text: "> " + msg.input, isInput: true})
	}
	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.system}
		if !msg.system {
			rl.kind = classifyLine(line)
		}
		m.append(rl)
	}
	m.refreshViewport()
	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}
		wrapped := wordWrap(rl.text, width)
		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		case rl.hasTone:
			styled = append(styled, renderTone(wrapped, rl.tone))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text at word boundaries to fit the given width.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	var b strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(text) {
		if lineLen > 0 && lineLen+1+len(word) > width {
			b.WriteByte('\n')
			lineLen = 0
		} else if lineLen > 0 {
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	return b.String()
}

// View renders the full terminal frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}
