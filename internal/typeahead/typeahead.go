package typeahead

import (
	"context"
	"strings"
	"sync"
	"time"

	"inkpress/internal/client"
)

// Searcher is the slice of the API client the controller needs.
type Searcher interface {
	SearchArticles(ctx context.Context, query string) ([]client.SearchResult, error)
}

// Controller turns a stream of keystrokes into debounced title searches.
// Each query update re-arms the timer; when it fires, the search runs and
// the outcome is delivered to the callback. Results for a query that has
// since been superseded are dropped, so the callback only ever sees the
// latest query's outcome.
type Controller struct {
	searcher Searcher
	debounce time.Duration
	deliver  func(query string, results []client.SearchResult, err error)

	mu     sync.Mutex
	timer  *time.Timer
	seq    uint64 // bumped on every SetQuery/Reset
	closed bool
}

// New creates a controller delivering outcomes to deliver. A debounce
// below zero is treated as zero (fire on the next tick).
func New(searcher Searcher, debounce time.Duration, deliver func(string, []client.SearchResult, error)) *Controller {
	if debounce < 0 {
		debounce = 0
	}
	return &Controller{searcher: searcher, debounce: debounce, deliver: deliver}
}

// SetQuery records the latest query text and re-arms the debounce timer.
// Queries that are empty after trimming deliver empty results right away
// without touching the network.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	if c.timer != nil {
		c.timer.Stop()
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		c.mu.Unlock()
		c.deliver(query, nil, nil)
		return
	}

	c.timer = time.AfterFunc(c.debounce, func() {
		c.run(seq, trimmed)
	})
	c.mu.Unlock()
}

// Reset drops any pending search; stale responses stay dropped.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Close stops the controller; no further deliveries happen.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Controller) run(seq uint64, query string) {
	c.mu.Lock()
	stale := c.closed || seq != c.seq
	c.mu.Unlock()
	if stale {
		return
	}

	results, err := c.searcher.SearchArticles(context.Background(), query)

	// The query may have moved on while the request was in flight.
	c.mu.Lock()
	stale = c.closed || seq != c.seq
	c.mu.Unlock()
	if stale {
		return
	}
	c.deliver(query, results, err)
}

// ArticleURL builds the reader-facing path for a selected result.
func ArticleURL(slug string) string {
	return "/articles/" + slug + "/"
}
