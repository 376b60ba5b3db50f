package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"inkpress/internal/client"
	"inkpress/internal/editor"
	"inkpress/internal/typeahead"
)

// editorFocus tracks which widget receives keystrokes.
type editorFocus int

const (
	focusTitle editorFocus = iota
	focusBody
	focusSearch
)

// Messages pushed into the program from outside goroutines.
type snapshotMsg struct{ snap editor.Snapshot }

type searchResultsMsg struct {
	query   string
	results []client.SearchResult
	err     error
}

type saveDoneMsg struct{ err error }

type publishDoneMsg struct {
	article *client.Article
	err     error
}

// resultItem adapts a search match to the bubbles list.
type resultItem struct{ result client.SearchResult }

func (i resultItem) Title() string       { return i.result.Title }
func (i resultItem) Description() string { return typeahead.ArticleURL(i.result.Slug) }
func (i resultItem) FilterValue() string { return i.result.Title }

// Config carries the tunables the editor passes down to its controllers.
type Config struct {
	AutosaveDelay time.Duration
	SearchDelay   time.Duration
	ExcerptLength int
}

// Editor is the terminal editing surface for one article. It drives a
// headless editor session and a typeahead controller; both report back
// through program messages.
type Editor struct {
	session   *editor.Session
	typeahead *typeahead.Controller

	mu      sync.Mutex
	program *tea.Program

	title       textinput.Model
	body        textarea.Model
	searchInput textinput.Model
	results     list.Model

	focus     editorFocus
	snap      editor.Snapshot
	statusMsg string
	slug      string
	width     int
	height    int
}

// NewEditor builds the editor over a loaded article.
func NewEditor(saver editor.Saver, rewriter editor.Rewriter, searcher typeahead.Searcher, article *client.Article, cfg Config) *Editor {
	title := textinput.New()
	title.Placeholder = "Untitled"
	title.SetValue(article.Title)
	title.Prompt = ""
	title.Focus()

	body := textarea.New()
	body.Placeholder = "Write something..."
	body.SetValue(article.Content)
	body.CharLimit = 0

	searchInput := textinput.New()
	searchInput.Placeholder = "Search published articles"
	searchInput.Prompt = "/ "

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	results.Title = "Results"
	results.SetShowStatusBar(false)
	results.SetFilteringEnabled(false)
	results.SetShowHelp(false)

	e := &Editor{
		title:       title,
		body:        body,
		searchInput: searchInput,
		results:     results,
		focus:       focusTitle,
		slug:        article.Slug,
	}

	sessionOpts := []editor.Option{
		editor.WithNotify(func(snap editor.Snapshot) {
			e.send(snapshotMsg{snap: snap})
		}),
	}
	if cfg.AutosaveDelay > 0 {
		sessionOpts = append(sessionOpts, editor.WithDebounce(cfg.AutosaveDelay))
	}
	if cfg.ExcerptLength > 0 {
		sessionOpts = append(sessionOpts, editor.WithExcerptLength(cfg.ExcerptLength))
	}
	e.session = editor.NewSession(saver, rewriter, article, sessionOpts...)

	searchDelay := cfg.SearchDelay
	if searchDelay <= 0 {
		searchDelay = 250 * time.Millisecond
	}
	e.typeahead = typeahead.New(searcher, searchDelay, func(query string, results []client.SearchResult, err error) {
		e.send(searchResultsMsg{query: query, results: results, err: err})
	})

	return e
}

// Run starts the program and blocks until the user quits.
func (e *Editor) Run() error {
	p := tea.NewProgram(e, tea.WithAltScreen())
	e.mu.Lock()
	e.program = p
	e.mu.Unlock()

	defer e.typeahead.Close()
	defer e.session.Close()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running editor: %w", err)
	}
	return nil
}

// send delivers a message to the running program, if any.
func (e *Editor) send(msg tea.Msg) {
	e.mu.Lock()
	p := e.program
	e.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Init is called once when the program starts.
func (e *Editor) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (e *Editor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		e.width = msg.Width
		e.height = msg.Height
		e.title.Width = max(20, msg.Width-4)
		e.body.SetWidth(max(20, msg.Width-4))
		e.body.SetHeight(max(5, msg.Height-8))
		e.results.SetSize(max(20, msg.Width-8), max(5, msg.Height-10))
		return e, nil

	case snapshotMsg:
		e.snap = msg.snap
		return e, nil

	case searchResultsMsg:
		if msg.err != nil {
			e.statusMsg = fmt.Sprintf("search failed: %v", msg.err)
			return e, nil
		}
		items := make([]list.Item, len(msg.results))
		for i, r := range msg.results {
			items[i] = resultItem{result: r}
		}
		return e, e.results.SetItems(items)

	case saveDoneMsg:
		if msg.err != nil {
			e.statusMsg = fmt.Sprintf("save failed: %v", msg.err)
		} else {
			e.statusMsg = "saved"
		}
		return e, nil

	case publishDoneMsg:
		if msg.err != nil {
			e.statusMsg = fmt.Sprintf("publish failed: %v", msg.err)
		} else {
			e.slug = msg.article.Slug
			e.statusMsg = fmt.Sprintf("published at %s", typeahead.ArticleURL(msg.article.Slug))
		}
		return e, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return e, tea.Quit
		case "ctrl+s":
			e.statusMsg = "saving..."
			return e, func() tea.Msg {
				return saveDoneMsg{err: e.session.SaveNow(context.Background())}
			}
		case "ctrl+p":
			e.statusMsg = "publishing..."
			return e, func() tea.Msg {
				article, err := e.session.Publish(context.Background(), editor.PublishOptions{})
				return publishDoneMsg{article: article, err: err}
			}
		case "ctrl+f":
			return e.openSearch()
		case "esc":
			if e.focus == focusSearch {
				return e.closeSearch()
			}
		case "tab":
			if e.focus == focusTitle {
				return e.focusOn(focusBody)
			}
			if e.focus == focusBody {
				return e.focusOn(focusTitle)
			}
		case "enter":
			if e.focus == focusSearch {
				return e.openSelectedResult()
			}
			if e.focus == focusTitle {
				return e.focusOn(focusBody)
			}
		}
	}

	return e.updateFocused(msg)
}

// updateFocused routes remaining messages to the focused widget and
// pushes the resulting edits into the controllers.
func (e *Editor) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch e.focus {
	case focusTitle:
		before := e.title.Value()
		var cmd tea.Cmd
		e.title, cmd = e.title.Update(msg)
		cmds = append(cmds, cmd)
		if e.title.Value() != before {
			e.session.SetTitle(e.title.Value())
		}
	case focusBody:
		before := e.body.Value()
		var cmd tea.Cmd
		e.body, cmd = e.body.Update(msg)
		cmds = append(cmds, cmd)
		if e.body.Value() != before {
			e.session.SetContent(e.body.Value())
		}
	case focusSearch:
		before := e.searchInput.Value()
		var inputCmd tea.Cmd
		e.searchInput, inputCmd = e.searchInput.Update(msg)
		cmds = append(cmds, inputCmd)
		if e.searchInput.Value() != before {
			e.typeahead.SetQuery(e.searchInput.Value())
		}
		var listCmd tea.Cmd
		e.results, listCmd = e.results.Update(msg)
		cmds = append(cmds, listCmd)
	}
	return e, tea.Batch(cmds...)
}

func (e *Editor) focusOn(target editorFocus) (tea.Model, tea.Cmd) {
	e.focus = target
	e.title.Blur()
	e.body.Blur()
	e.searchInput.Blur()
	switch target {
	case focusTitle:
		return e, e.title.Focus()
	case focusBody:
		return e, e.body.Focus()
	case focusSearch:
		return e, e.searchInput.Focus()
	}
	return e, nil
}

func (e *Editor) openSearch() (tea.Model, tea.Cmd) {
	e.searchInput.SetValue("")
	model, cmd := e.focusOn(focusSearch)
	return model, tea.Batch(cmd, e.results.SetItems(nil))
}

func (e *Editor) closeSearch() (tea.Model, tea.Cmd) {
	e.typeahead.Reset()
	return e.focusOn(focusBody)
}

func (e *Editor) openSelectedResult() (tea.Model, tea.Cmd) {
	item, ok := e.results.SelectedItem().(resultItem)
	if !ok {
		e.statusMsg = "no result selected"
		return e, nil
	}
	e.statusMsg = fmt.Sprintf("open %s", typeahead.ArticleURL(item.result.Slug))
	return e.closeSearch()
}

// View renders the current state to a string.
func (e *Editor) View() string {
	if e.focus == focusSearch {
		return lipgloss.JoinVertical(lipgloss.Left,
			e.searchInput.View(),
			e.results.View(),
			e.renderHint("Enter → open article    Esc → back to editing"),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render(e.title.View()),
		"",
		e.body.View(),
		e.renderStatusBar(),
		e.renderHint("Tab → switch field    Ctrl+S save    Ctrl+P publish    Ctrl+F search    Ctrl+C quit"),
	)
}

func (e *Editor) renderStatusBar() string {
	var parts []string
	switch e.snap.State {
	case editor.StateClean:
		parts = append(parts, "saved")
	case editor.StateDirty:
		parts = append(parts, "unsaved changes")
	case editor.StateSaving:
		parts = append(parts, "saving...")
	case editor.StateError:
		parts = append(parts, fmt.Sprintf("⚠ %s", e.snap.Err))
	}
	if !e.snap.LastSaved.IsZero() {
		parts = append(parts, fmt.Sprintf("last saved %s", e.snap.LastSaved.Format("15:04:05")))
	}
	if e.statusMsg != "" {
		parts = append(parts, e.statusMsg)
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	if e.snap.State == editor.StateError {
		style = style.Foreground(lipgloss.Color("#FF6B6B"))
	}
	return style.Render(strings.Join(parts, " · "))
}

func (e *Editor) renderHint(hint string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render(hint)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
