package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dubedition/guidecore/internal/fragment"
	"github.com/dubedition/guidecore/internal/guide"
	"github.com/dubedition/guidecore/internal/search"
)

// flashFor matches the committed highlight's lifetime so the status note
// and the document's highlight class expire together.
const flashFor = search.DefaultHighlightFor

// TUISession runs the full-screen search UI using bubbletea.
type TUISession struct {
	cfg    Config
	engine *guide.Engine
	model  *searchModel
}

// NewTUISession creates a full-screen session.
// Returns an error if the output is not a TTY.
func NewTUISession(engine *guide.Engine, cfg Config) (*TUISession, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newSearchModel(engine)

	// Apply color settings
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUISession{
		cfg:    cfg,
		engine: engine,
		model:  model,
	}, nil
}

// Run implements Session. It blocks until the user quits or ctx is
// cancelled; cancellation counts as an orderly exit.
func (s *TUISession) Run(ctx context.Context) error {
	s.model.ctx = ctx

	var opts []tea.ProgramOption
	if f, ok := s.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	// Use alternate screen buffer for proper clearing between renders
	opts = append(opts, tea.WithAltScreen())

	p := tea.NewProgram(s.model, opts...)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Message types for bubbletea
type searchDoneMsg struct {
	outcome search.Outcome
}
type loadEventMsg fragment.Event
type loadDoneMsg fragment.BatchResult
type flashClearMsg struct {
	seq int
}

// searchModel is the bubbletea model for the search screen. It has two
// focus modes: typing in the query input, or navigating the result list.
type searchModel struct {
	engine *guide.Engine
	ctx    context.Context
	styles Styles
	title  string

	input   textinput.Model
	spinner spinner.Model
	loadBar progress.Model

	outcome    search.Outcome
	searched   bool
	selected   int
	focusInput bool

	loading bool
	tracker *LoadTracker
	sub     *fragment.Subscription

	flash    string
	flashSeq int

	width    int
	height   int
	quitting bool
}

// newSearchModel creates the search screen model.
func newSearchModel(engine *guide.Engine) *searchModel {
	ti := textinput.New()
	ti.Placeholder = "Type to search"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	// Solid lime green progress bar (asitop-inspired, not gradient)
	bar := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &searchModel{
		engine:     engine,
		ctx:        context.Background(),
		styles:     DefaultStyles(),
		title:      engine.Config().Site.Title,
		input:      ti,
		spinner:    sp,
		loadBar:    bar,
		focusInput: true,
		width:      80,
		height:     24,
	}
}

// Init implements tea.Model.
func (m *searchModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *searchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Responsive widths - scale with the terminal
		m.input.Width = msg.Width - 14
		if m.input.Width < 20 {
			m.input.Width = 20
		}
		m.loadBar.Width = msg.Width - 24
		if m.loadBar.Width < 20 {
			m.loadBar.Width = 20
		}
		return m, nil

	case searchDoneMsg:
		m.applyOutcome(msg.outcome)
		return m, nil

	case loadEventMsg:
		if m.tracker != nil {
			m.tracker.Observe(fragment.Event(msg))
		}
		if m.sub != nil {
			return m, waitLoadEvent(m.sub)
		}
		return m, nil

	case loadDoneMsg:
		return m, m.finishLoadAll(fragment.BatchResult(msg))

	case flashClearMsg:
		// A newer flash supersedes the pending clear.
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey processes keyboard input for the current focus mode.
func (m *searchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	if m.focusInput {
		switch msg.Type {
		case tea.KeyEsc:
			return m.quit()
		case tea.KeyEnter:
			// Empty queries still run: the prompt state is part of the
			// outcome, not an input error.
			return m, m.performSearch(strings.TrimSpace(m.input.Value()))
		case tea.KeyTab:
			m.focusInput = false
			m.input.Blur()
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	// Results mode
	switch msg.Type {
	case tea.KeyEsc, tea.KeyTab:
		m.focusInput = true
		return m, m.input.Focus()
	case tea.KeyEnter:
		return m, m.commitSelection()
	case tea.KeyUp:
		m.moveSelection(-1)
		return m, nil
	case tea.KeyDown:
		m.moveSelection(1)
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "k":
		m.moveSelection(-1)
	case "j":
		m.moveSelection(1)
	case "n":
		// New search: clear input and focus it
		m.focusInput = true
		m.input.SetValue("")
		return m, m.input.Focus()
	case "a":
		return m, m.startLoadAll()
	}

	return m, nil
}

// quit tears the model down and stops the program.
func (m *searchModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}
	return m, tea.Quit
}

// performSearch runs the query off the update loop and delivers the
// outcome as a message.
func (m *searchModel) performSearch(query string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return searchDoneMsg{outcome: engine.Search(query)}
	}
}

// applyOutcome installs a fresh outcome, rewinds the selection, and hands
// the result list to the document cursor.
func (m *searchModel) applyOutcome(outcome search.Outcome) {
	m.outcome = outcome
	m.searched = true
	m.selected = 0

	if cur := m.engine.Cursor(); cur != nil {
		cur.SetResults(outcome.Results)
		if len(outcome.Results) > 0 {
			// Settle the cursor on the first result so it tracks the
			// list selection from here on.
			cur.Next()
		}
	}

	// Move to results mode only when there is something to navigate.
	if len(outcome.Results) > 0 {
		m.focusInput = false
		m.input.Blur()
	}
}

// moveSelection moves the list selection and the document cursor together.
// Both wrap the same way, so they stay in step.
func (m *searchModel) moveSelection(delta int) {
	n := len(m.outcome.Results)
	if n == 0 {
		return
	}

	cur := m.engine.Cursor()
	if delta > 0 {
		if cur != nil {
			cur.Next()
		}
		m.selected = (m.selected + 1) % n
	} else {
		if cur != nil {
			cur.Prev()
		}
		m.selected = (m.selected - 1 + n) % n
	}
}

// commitSelection jumps to the selected result: the cursor applies the
// transient highlight to the target node and the status bar flashes the
// anchor for the same duration.
func (m *searchModel) commitSelection() tea.Cmd {
	cur := m.engine.Cursor()
	if cur == nil {
		return nil
	}

	target, ok := cur.Commit()
	if !ok {
		return nil
	}

	m.setFlash(fmt.Sprintf("Jumped to #%s", target.ID))
	return m.flashTick()
}

// startLoadAll kicks off a concurrent load of every unloaded fragment,
// with per-fragment progress fed back through the event bus.
func (m *searchModel) startLoadAll() tea.Cmd {
	if m.loading {
		return nil
	}

	pending := 0
	for _, rec := range m.engine.Fragments() {
		if rec.State != fragment.StateLoaded.String() {
			pending++
		}
	}
	if pending == 0 {
		m.setFlash("All fragments already loaded")
		return m.flashTick()
	}

	m.loading = true
	m.tracker = NewLoadTracker(pending)
	m.sub = m.engine.Subscribe()

	engine := m.engine
	ctx := m.ctx
	load := func() tea.Msg {
		return loadDoneMsg(engine.LoadAll(ctx))
	}

	return tea.Batch(m.spinner.Tick, waitLoadEvent(m.sub), load)
}

// finishLoadAll closes out a load pass and re-runs the current query so
// freshly loaded content can rank.
func (m *searchModel) finishLoadAll(batch fragment.BatchResult) tea.Cmd {
	m.loading = false
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}

	m.setFlash(fmt.Sprintf("Loaded %d fragments, %d failed", batch.Loaded, batch.Failed))
	cmds := []tea.Cmd{m.flashTick()}
	if query := strings.TrimSpace(m.input.Value()); query != "" {
		cmds = append(cmds, m.performSearch(query))
	}
	return tea.Batch(cmds...)
}

// waitLoadEvent blocks on the next fragment event and feeds it back into
// the update loop. Re-issued after every event while a load is running.
func waitLoadEvent(sub *fragment.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Events()
		if !ok {
			return nil
		}
		return loadEventMsg(ev)
	}
}

// setFlash replaces the status flash and invalidates pending clears.
func (m *searchModel) setFlash(text string) {
	m.flash = text
	m.flashSeq++
}

// flashTick schedules the flash to clear after the highlight duration.
func (m *searchModel) flashTick() tea.Cmd {
	seq := m.flashSeq
	return tea.Tick(flashFor, func(time.Time) tea.Msg {
		return flashClearMsg{seq: seq}
	})
}

// View implements tea.Model.
func (m *searchModel) View() string {
	if m.quitting {
		return ""
	}

	// Calculate content width for panels - full terminal width minus borders
	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderInput())

	if m.loading {
		sections = append(sections, m.renderLoading())
	}

	sections = append(sections, m.renderDivider(contentWidth))
	sections = append(sections, m.renderResults(contentWidth))

	content := strings.Join(sections, "\n")

	title := "GuideCore"
	if m.title != "" {
		title = fmt.Sprintf("GuideCore • %s", m.title)
	}
	panel := m.wrapInPanel(title, content, contentWidth)

	return panel + "\n" + m.renderStatusBar()
}

// renderInput renders the query line.
func (m *searchModel) renderInput() string {
	label := m.styles.Label.Render("Search: ")
	return lipgloss.JoinHorizontal(lipgloss.Center, label, m.input.View())
}

// renderLoading renders the fragment load progress.
func (m *searchModel) renderLoading() string {
	stats := m.tracker.Stats()

	head := fmt.Sprintf("%s Loading fragments", m.spinner.View())
	if stats.LastID != "" {
		head += m.styles.Dim.Render(" · " + stats.LastID)
	}

	bar := m.loadBar.ViewAs(stats.Fraction())
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d fragments", stats.Done(), stats.Total))

	return head + "\n" + bar + "  " + count
}

// renderResults renders the outcome: a ranked list, or the state message
// when there is nothing to rank.
func (m *searchModel) renderResults(width int) string {
	if !m.searched {
		return m.styles.Dim.Render("Type a query and press enter.")
	}
	if msg := m.outcome.Message(); msg != "" {
		return m.styles.Dim.Render(msg)
	}

	var lines []string

	header := fmt.Sprintf("%d results for %q", m.outcome.Total, m.outcome.Query)
	if m.outcome.Total > len(m.outcome.Results) {
		header += fmt.Sprintf(" (showing %d)", len(m.outcome.Results))
	}
	lines = append(lines, m.styles.Label.Render(header), "")

	scores := make([]int, len(m.outcome.Results))
	for i, r := range m.outcome.Results {
		scores[i] = r.Score
	}

	for i, r := range m.outcome.Results {
		lines = append(lines, m.renderResult(i, r, width))
	}

	lines = append(lines, "",
		m.styles.ScoreBar.Render(ScoreBar(scores, width-12))+" "+m.styles.Dim.Render("relevance"))

	return strings.Join(lines, "\n")
}

// renderResult renders one result entry: title line plus optional snippet.
func (m *searchModel) renderResult(i int, r search.Result, width int) string {
	marker := "  "
	style := m.styles.Normal
	if i == m.selected && !m.focusInput {
		marker = "> "
		style = m.styles.Selected
	}

	title := r.Unit.Title
	if title == "" {
		title = r.Unit.ID
	}

	head := style.Render(marker + truncate(title, width-24))
	if r.Unit.Kind == search.KindHeading {
		head += " " + m.styles.Kind.Render("jump-to")
	}
	head += "  " + m.styles.Score.Render(fmt.Sprintf("#%s · %d", r.Unit.ID, r.Score))

	if r.Snippet == "" {
		return head
	}
	return head + "\n" + m.styles.Snippet.Render("    "+truncate(r.Snippet, width-6))
}

// renderDivider renders a horizontal divider line.
func (m *searchModel) renderDivider(width int) string {
	line := strings.Repeat("─", width)
	return m.styles.Border.Render(line)
}

// wrapInPanel wraps content in a box border with title.
func (m *searchModel) wrapInPanel(title, content string, width int) string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	titleStyled := m.styles.Header.Render(title)

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyled,
		panel.Render(content),
	)
}

// renderStatusBar renders the bottom line: the transient flash when one is
// active, key hints otherwise.
func (m *searchModel) renderStatusBar() string {
	if m.flash != "" {
		return m.styles.Success.Render(m.flash)
	}
	if m.focusInput {
		return m.styles.Dim.Render("enter search  │  tab results  │  esc quit")
	}
	return m.styles.Dim.Render("j/k move  │  enter jump  │  a load all  │  n new search  │  q quit")
}

// truncate clamps s to max runes, ending with an ellipsis when cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// Ensure TUISession implements Session
var _ Session = (*TUISession)(nil)
