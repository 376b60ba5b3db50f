package editor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"inkpress/internal/client"
	"inkpress/internal/offload"
)

// State is the save state of an editing session.
type State int

const (
	// StateClean means the document matches what the server has.
	StateClean State = iota
	// StateDirty means there are unsaved edits.
	StateDirty
	// StateSaving means a save is in flight.
	StateSaving
	// StateError means the last save failed; the document is intact.
	StateError
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Saver is the slice of the API client the session needs.
type Saver interface {
	AutosaveArticle(ctx context.Context, draft *client.ArticleDraft) (*client.AutosaveResult, error)
	PublishArticle(ctx context.Context, sub client.ArticleSubmission) (*client.Article, error)
}

// Rewriter offloads inline images out of article content.
type Rewriter interface {
	Rewrite(ctx context.Context, html string, articleID int64) (*offload.Result, error)
}

// Snapshot is what observers see after every state transition.
type Snapshot struct {
	State     State
	Err       string
	LastSaved time.Time
}

// PublishOptions carries the optional parts of a publish.
type PublishOptions struct {
	TopicID     *int64
	PublishedAt *time.Time
}

// Session is a headless editing session for one article. Edits re-arm a
// per-session debounce timer; when it fires the document is offloaded,
// serialized and autosaved. At most one save is in flight; a save
// requested meanwhile runs once the current one settles.
type Session struct {
	saver      Saver
	rewriter   Rewriter
	articleID  int64
	debounce   time.Duration
	excerptLen int
	notify     func(Snapshot)

	mu        sync.Mutex
	cond      *sync.Cond // signaled when saving clears
	title     string
	content   string
	gen       uint64 // bumped on every edit
	state     State
	errMsg    string
	lastSaved time.Time
	timer     *time.Timer
	saving    bool
	pending   bool
	closed    bool
}

// Option customizes a Session.
type Option func(*Session)

// WithDebounce overrides the autosave delay.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = d }
}

// WithExcerptLength overrides the excerpt rune limit.
func WithExcerptLength(n int) Option {
	return func(s *Session) { s.excerptLen = n }
}

// WithNotify registers an observer called after every state transition.
func WithNotify(fn func(Snapshot)) Option {
	return func(s *Session) { s.notify = fn }
}

// NewSession starts a session over an already-loaded article.
func NewSession(saver Saver, rewriter Rewriter, article *client.Article, opts ...Option) *Session {
	s := &Session{
		saver:      saver,
		rewriter:   rewriter,
		articleID:  article.ID,
		title:      article.Title,
		content:    article.Content,
		debounce:   2 * time.Second,
		excerptLen: 194,
		state:      StateClean,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Title returns the current document title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Content returns the current document content.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// State returns the current save state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetTitle replaces the title, marks the session dirty and re-arms the
// autosave timer.
func (s *Session) SetTitle(title string) {
	s.edit(func() { s.title = title })
}

// SetContent replaces the content, marks the session dirty and re-arms
// the autosave timer.
func (s *Session) SetContent(content string) {
	s.edit(func() { s.content = content })
}

func (s *Session) edit(apply func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	apply()
	s.gen++
	s.state = StateDirty
	s.errMsg = ""
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.save(context.Background())
	})
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
}

// SaveNow cancels any pending timer and saves immediately. If a save is
// already in flight the request coalesces into one follow-up save.
func (s *Session) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.save(ctx)
}

// Close stops the timer. In-flight saves finish; no further ones start.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// save runs one save pass, honoring single-flight.
func (s *Session) save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.saving {
		s.pending = true
		s.mu.Unlock()
		return nil
	}
	s.saving = true
	s.state = StateSaving
	title, content, gen := s.title, s.content, s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)

	err := s.saveSnapshot(ctx, title, content, gen)

	if rerun := s.releaseSaving(); rerun {
		return s.save(ctx)
	}
	return err
}

// releaseSaving frees the single-flight slot and reports whether a save
// was requested while it was held.
func (s *Session) releaseSaving() bool {
	s.mu.Lock()
	s.saving = false
	rerun := s.pending
	s.pending = false
	s.cond.Broadcast()
	s.mu.Unlock()
	return rerun
}

// saveSnapshot offloads and persists one snapshot of the document.
func (s *Session) saveSnapshot(ctx context.Context, title, content string, gen uint64) error {
	result, err := s.rewriter.Rewrite(ctx, content, s.articleID)
	if err != nil {
		s.fail(fmt.Sprintf("offloading images: %v", err))
		return fmt.Errorf("offloading images: %w", err)
	}

	// Merge the rewritten content back unless an edit landed mid-save;
	// a stale merge would clobber the newer document.
	s.mu.Lock()
	if s.gen == gen {
		s.content = result.HTML
	}
	s.mu.Unlock()

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d image(s) failed to upload", result.Failed)
		s.fail(msg)
		return fmt.Errorf("saving article %d: %s", s.articleID, msg)
	}

	draft := &client.ArticleDraft{
		ID:      s.articleID,
		Title:   title,
		Content: result.HTML,
		Excerpt: Excerpt(result.HTML, s.excerptLen),
	}
	saved, err := s.saver.AutosaveArticle(ctx, draft)
	if err != nil {
		s.fail(err.Error())
		return fmt.Errorf("saving article %d: %w", s.articleID, err)
	}
	if saved.Error != "" {
		s.fail(saved.Error)
		return fmt.Errorf("saving article %d: %s", s.articleID, saved.Error)
	}

	s.mu.Lock()
	s.lastSaved = time.Now()
	s.errMsg = ""
	if s.gen == gen {
		s.state = StateClean
	} else {
		s.state = StateDirty
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return nil
}

// Publish offloads and serializes like a save, then submits the article
// for publication with the set of stored images still referenced by the
// content; the server prunes the rest. It shares the single-flight slot
// with autosaves: an in-flight save settles before the publish starts,
// and saves requested during the publish run once it finishes.
func (s *Session) Publish(ctx context.Context, opts PublishOptions) (*client.Article, error) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	for s.saving {
		s.cond.Wait()
	}
	s.saving = true
	title, content := s.title, s.content
	gen := s.gen
	s.mu.Unlock()
	defer func() {
		if s.releaseSaving() {
			go s.save(context.Background())
		}
	}()

	result, err := s.rewriter.Rewrite(ctx, content, s.articleID)
	if err != nil {
		s.fail(fmt.Sprintf("offloading images: %v", err))
		return nil, fmt.Errorf("offloading images: %w", err)
	}
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d image(s) failed to upload", result.Failed)
		s.fail(msg)
		return nil, fmt.Errorf("publishing article %d: %s", s.articleID, msg)
	}

	s.mu.Lock()
	if s.gen == gen {
		s.content = result.HTML
	}
	s.mu.Unlock()

	article, err := s.saver.PublishArticle(ctx, client.ArticleSubmission{
		ID:          s.articleID,
		Title:       title,
		Content:     result.HTML,
		Excerpt:     Excerpt(result.HTML, s.excerptLen),
		ImageIDs:    referencedImageIDs(result.HTML),
		TopicID:     opts.TopicID,
		PublishedAt: opts.PublishedAt,
	})
	if err != nil {
		s.fail(err.Error())
		return nil, fmt.Errorf("publishing article %d: %w", s.articleID, err)
	}

	s.mu.Lock()
	s.lastSaved = time.Now()
	s.errMsg = ""
	if s.gen == gen {
		s.state = StateClean
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
	return article, nil
}

func (s *Session) fail(msg string) {
	s.mu.Lock()
	s.state = StateError
	s.errMsg = msg
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, Err: s.errMsg, LastSaved: s.lastSaved}
}

func (s *Session) emit(snap Snapshot) {
	if s.notify != nil {
		s.notify(snap)
	}
}

// referencedImageIDs lists the stored-image ids the content still uses.
func referencedImageIDs(htmlContent string) []int64 {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return []int64{}
	}

	seen := make(map[int64]bool)
	doc.Find("img[data-image-id]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("data-image-id")
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			seen[id] = true
		}
	})

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
