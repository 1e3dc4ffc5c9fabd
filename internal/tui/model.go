package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mcdonaldj/projpack/internal/adapters/tuisvc"
	"github.com/mcdonaldj/projpack/internal/backup"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/session"
)

// View represents the current view state
type View int

const (
	ChangesView  View = iota
	FileDiffView      // Showing one file's line diff
	HistoryView       // Showing recorded compress runs
)

// Model is the main TUI model
type Model struct {
	svc      ports.TUIService
	config   *config.Config
	root     string
	view     View
	width    int
	height   int
	quitting bool

	// Changes view
	archive      ports.TUIArchiveInfo
	changes      []ports.TUIChange
	changeCursor int
	loadErr      string

	// File diff view
	fileDiff       *ports.TUIFileDiff
	fileDiffScroll int
	diffSwapped    bool // Whether sides are swapped (working tree on left)

	// History view
	history       []ports.TUIHistoryEntry
	historyCursor int

	// Status message
	statusMsg string
	statusErr bool
}

// Key bindings
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Back     key.Binding
	Compress key.Binding
	Verify   key.Binding
	History  key.Binding
	Refresh  key.Binding
	Swap     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "diff"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Compress: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "compress"),
	),
	Verify: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "verify"),
	),
	History: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "history"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Swap: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "swap"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NewModel creates a TUI model for the project at root with production services.
func NewModel(root string) (*Model, error) {
	return NewModelWithService(tuisvc.New(session.DefaultDeps(nil)), root)
}

// NewModelWithService creates a model, loading config and archive state from svc.
func NewModelWithService(svc ports.TUIService, root string) (*Model, error) {
	cfg, err := svc.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	m := NewModelWithConfig(cfg, svc, root)
	if err := m.loadArchive(); err != nil {
		return nil, err
	}
	m.loadChanges()
	return m, nil
}

// NewModelWithConfig creates a model without loading any data.
func NewModelWithConfig(cfg *config.Config, svc ports.TUIService, root string) *Model {
	return &Model{
		svc:    svc,
		config: cfg,
		root:   root,
		view:   ChangesView,
	}
}

func (m *Model) loadArchive() error {
	info, err := m.svc.Archive(m.config, m.root)
	if err != nil {
		return err
	}
	m.archive = info
	return nil
}

// loadChanges refreshes the change list. Failures are shown, not returned,
// so a damaged archive can still be inspected and recompressed.
func (m *Model) loadChanges() {
	m.loadErr = ""
	m.changes = nil
	if !m.archive.Present {
		return
	}
	changes, err := m.svc.Changes(m.config, m.root)
	if err != nil {
		m.loadErr = err.Error()
		return
	}
	m.changes = changes
	if m.changeCursor >= len(m.changes) {
		m.changeCursor = 0
	}
}

func (m *Model) loadHistory() error {
	entries, err := m.svc.History(m.config, m.root)
	if err != nil {
		return err
	}
	m.history = entries
	m.historyCursor = 0
	return nil
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case statusMsg:
		m.handleStatusMsg(msg)
		return m, nil

	case fileDiffMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Diff failed: %v", msg.err)
			m.statusErr = true
		} else {
			m.fileDiff = msg.result
			m.fileDiffScroll = 0
			m.view = FileDiffView
			m.statusMsg = ""
		}
		return m, nil

	case tea.KeyMsg:
		// Clear status on any key
		m.statusMsg = ""
		m.statusErr = false

		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			m.moveCursor(-1)

		case key.Matches(msg, keys.Down):
			m.moveCursor(1)

		case key.Matches(msg, keys.Enter):
			if m.view == ChangesView && len(m.changes) > 0 {
				return m, m.computeFileDiff(m.changes[m.changeCursor])
			}

		case key.Matches(msg, keys.Back):
			switch m.view {
			case FileDiffView:
				m.view = ChangesView
				m.fileDiff = nil
				m.fileDiffScroll = 0
			case HistoryView:
				m.view = ChangesView
				m.history = nil
			}

		case key.Matches(msg, keys.History):
			if m.view == ChangesView {
				if err := m.loadHistory(); err != nil {
					m.statusMsg = fmt.Sprintf("Error: %v", err)
					m.statusErr = true
				} else {
					m.view = HistoryView
				}
			}

		case key.Matches(msg, keys.Compress):
			return m, m.runCompress()

		case key.Matches(msg, keys.Verify):
			return m, m.runVerify()

		case key.Matches(msg, keys.Refresh):
			m.reload()

		case key.Matches(msg, keys.Swap):
			if m.view == FileDiffView && m.fileDiff != nil {
				m.diffSwapped = !m.diffSwapped
			}
		}
	}

	return m, nil
}

func (m *Model) moveCursor(delta int) {
	switch m.view {
	case ChangesView:
		m.changeCursor = clamp(m.changeCursor+delta, len(m.changes)-1)
	case HistoryView:
		m.historyCursor = clamp(m.historyCursor+delta, len(m.history)-1)
	case FileDiffView:
		if m.fileDiff != nil {
			maxScroll := len(m.fileDiff.Lines) - (m.height - 10)
			m.fileDiffScroll = clamp(m.fileDiffScroll+delta, maxScroll)
		}
	}
}

// clamp limits v to [0, max], with a negative max meaning 0.
func clamp(v, max int) int {
	if v > max {
		v = max
	}
	if v < 0 {
		v = 0
	}
	return v
}

func (m *Model) runCompress() tea.Cmd {
	return func() tea.Msg {
		result := m.svc.Compress(m.config, m.root)
		if result.Error != nil {
			return statusMsg{err: true, msg: fmt.Sprintf("Compress failed: %v", result.Error)}
		}
		return statusMsg{msg: fmt.Sprintf("✓ Compressed %d files (%s)", result.FileCount, backup.FormatSize(result.Size))}
	}
}

func (m *Model) runVerify() tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.Verify(m.config, m.root); err != nil {
			return statusMsg{err: true, msg: fmt.Sprintf("✗ %v", err)}
		}
		return statusMsg{msg: "✓ Archive verified"}
	}
}

type statusMsg struct {
	msg string
	err bool
}

type fileDiffMsg struct {
	result *ports.TUIFileDiff
	err    error
}

func (m *Model) computeFileDiff(change ports.TUIChange) tea.Cmd {
	return func() tea.Msg {
		result, err := m.svc.FileDiff(m.config, m.root, change)
		return fileDiffMsg{result: result, err: err}
	}
}

// handleStatusMsg shows the message and reloads data to reflect changes.
func (m *Model) handleStatusMsg(msg statusMsg) {
	m.reload()
	m.statusMsg = msg.msg
	m.statusErr = msg.err
}

func (m *Model) reload() {
	if err := m.loadArchive(); err != nil {
		m.statusMsg = fmt.Sprintf("Error: %v", err)
		m.statusErr = true
		return
	}
	m.loadChanges()
	if m.view == HistoryView {
		_ = m.loadHistory()
	}
}

// View renders the UI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.view {
	case ChangesView:
		content = m.renderChangesView()
	case FileDiffView:
		content = m.renderFileDiffView()
	case HistoryView:
		content = m.renderHistoryView()
	}

	return appStyle.Render(content)
}

func (m *Model) renderChangesView() string {
	var b strings.Builder

	// Title
	title := titleStyle.Render(fmt.Sprintf(" 📦 %s ", m.config.Archive))
	b.WriteString(title)
	b.WriteString("\n\n")

	if !m.archive.Present {
		b.WriteString(dimStyle.Render("  No archive yet - press c to compress the project"))
		b.WriteString("\n")
	} else {
		summary := fmt.Sprintf("  %s · %s · %d members", m.archive.Backend, backup.FormatSize(m.archive.Size), m.archive.Members)
		b.WriteString(dimStyle.Render(summary))
		b.WriteString("\n\n")

		switch {
		case m.loadErr != "":
			b.WriteString(errorBadge.Render("  " + m.loadErr))
			b.WriteString("\n")
		case len(m.changes) == 0:
			b.WriteString(successBadge.Render("  Working tree matches the archive"))
			b.WriteString("\n")
		default:
			m.renderChangeList(&b)
		}
	}

	m.renderStatus(&b)

	help := "[↑/↓] navigate  [enter] diff  [c] compress  [v] verify  [h] history  [r] refresh  [q] quit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m *Model) renderChangeList(b *strings.Builder) {
	header := fmt.Sprintf("  %-2s %-44s %10s %10s", "", "PATH", "ARCHIVE", "WORKING")
	b.WriteString(dimStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", 72)))
	b.WriteString("\n")

	visibleHeight := m.height - 12
	if visibleHeight < 5 {
		visibleHeight = 5
	}
	start := 0
	if m.changeCursor >= visibleHeight {
		start = m.changeCursor - visibleHeight + 1
	}

	for i := start; i < len(m.changes) && i < start+visibleHeight; i++ {
		c := m.changes[i]
		cursor := "  "
		style := normalStyle
		if i == m.changeCursor {
			cursor = "▸ "
			style = selectedStyle
		}

		archiveSize, workingSize := "-", "-"
		if c.Status != 'A' {
			archiveSize = backup.FormatSize(c.ArchiveSize)
		}
		if c.Status != 'D' {
			workingSize = backup.FormatSize(c.WorkingSize)
		}

		mark := string(c.Status)
		switch c.Status {
		case 'M':
			mark = modifiedStyle.Render(mark)
		case 'A':
			mark = addedStyle.Render(mark)
		case 'D':
			mark = deletedStyle.Render(mark)
		}

		line := fmt.Sprintf("%-44s %10s %10s", truncate(c.Path, 44), archiveSize, workingSize)
		b.WriteString(cursor + mark + " " + style.Render(line))
		b.WriteString("\n")
	}
}

func (m *Model) renderHistoryView() string {
	var b strings.Builder

	title := titleStyle.Render(fmt.Sprintf(" 🕘 %s history ", m.config.Archive))
	b.WriteString(title)
	b.WriteString("\n\n")

	if len(m.history) == 0 {
		b.WriteString(dimStyle.Render("  No compress runs recorded"))
		b.WriteString("\n")
	} else {
		header := fmt.Sprintf("  %-14s %-8s %10s %6s %s", "WHEN", "BACKEND", "SIZE", "FILES", "GIT")
		b.WriteString(dimStyle.Render(header))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(strings.Repeat("─", 60)))
		b.WriteString("\n")

		for i, e := range m.history {
			cursor := "  "
			style := normalStyle
			if i == m.historyCursor {
				cursor = "▸ "
				style = selectedStyle
			}
			gitHead := e.GitHead
			if len(gitHead) > 7 {
				gitHead = gitHead[:7]
			}
			if gitHead == "" {
				gitHead = "-"
			}
			line := fmt.Sprintf("%s%-14s %-8s %10s %6d %s",
				cursor, relativeTime(e.CreatedAt), e.Backend, backup.FormatSize(e.Size), e.FileCount, gitHead)
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}

	m.renderStatus(&b)
	b.WriteString(helpStyle.Render("[↑/↓] navigate  [esc] back  [q] quit"))
	return b.String()
}

func (m *Model) renderFileDiffView() string {
	var b strings.Builder

	if m.fileDiff == nil {
		return "Loading..."
	}

	left, right := "archive", "working tree"
	if m.diffSwapped {
		left, right = right, left
	}
	title := titleStyle.Render(fmt.Sprintf(" 📄 %s ", m.fileDiff.Path))
	b.WriteString(title)
	b.WriteString("\n")

	header := fmt.Sprintf("  %-35s │ %-35s", left, right)
	b.WriteString(dimStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", 75)))
	b.WriteString("\n")

	switch {
	case m.fileDiff.IsBinary:
		b.WriteString(dimStyle.Render("  Binary file - content diff not available"))
		b.WriteString("\n")
	case len(m.fileDiff.Lines) == 0:
		b.WriteString(dimStyle.Render("  No differences"))
		b.WriteString("\n")
	default:
		visibleHeight := m.height - 12
		if visibleHeight < 5 {
			visibleHeight = 5
		}
		endIdx := m.fileDiffScroll + visibleHeight
		if endIdx > len(m.fileDiff.Lines) {
			endIdx = len(m.fileDiff.Lines)
		}

		for i := m.fileDiffScroll; i < endIdx; i++ {
			line := m.fileDiff.Lines[i]

			ln1, ln2 := "   ", "   "
			if line.LineNum1 > 0 {
				ln1 = fmt.Sprintf("%3d", line.LineNum1)
			}
			if line.LineNum2 > 0 {
				ln2 = fmt.Sprintf("%3d", line.LineNum2)
			}
			lineType := line.Type
			if m.diffSwapped {
				ln1, ln2 = ln2, ln1
				switch lineType {
				case '+':
					lineType = '-'
				case '-':
					lineType = '+'
				}
			}

			content := truncate(line.Content, 60)
			switch lineType {
			case '+':
				b.WriteString(addedStyle.Render(fmt.Sprintf("%s  + │ %s  + %s", ln1, ln2, content)))
			case '-':
				b.WriteString(deletedStyle.Render(fmt.Sprintf("%s  - │ %s  - %s", ln1, ln2, content)))
			default:
				b.WriteString(dimStyle.Render(fmt.Sprintf("%s    │ %s    %s", ln1, ln2, content)))
			}
			b.WriteString("\n")
		}

		if len(m.fileDiff.Lines) > visibleHeight {
			scrollInfo := fmt.Sprintf("  Lines %d-%d of %d",
				m.fileDiffScroll+1, endIdx, len(m.fileDiff.Lines))
			b.WriteString(dimStyle.Render(scrollInfo))
			b.WriteString("\n")
		}
	}

	m.renderStatus(&b)
	b.WriteString(helpStyle.Render("[↑/↓] scroll  [s] swap sides  [esc] back  [q] quit"))
	return b.String()
}

func (m *Model) renderStatus(b *strings.Builder) {
	b.WriteString("\n")
	if m.statusMsg != "" {
		if m.statusErr {
			b.WriteString(errorBadge.Render(m.statusMsg))
		} else {
			b.WriteString(successBadge.Render(m.statusMsg))
		}
	}
	b.WriteString("\n")
}

// Run starts the TUI for the project at root
func Run(root string) error {
	m, err := NewModel(root)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// Helper functions
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func relativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
