package listing

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"casaflow/server/internal/models"
)

var ErrControllerClosed = errors.New("list controller is closed")

// DefaultDebounce is the quiet period after the last search edit before a
// request fires.
const DefaultDebounce = 300 * time.Millisecond

// Page is one response of the collection endpoint: the rows plus pagination
// metadata, replacing the displayed set wholesale.
type Page struct {
	Data []json.RawMessage `json:"data"`
	Meta models.PageMeta   `json:"meta"`
}

// Fetch issues one collection request for the given query snapshot.
type Fetch func(q models.ListQuery) (Page, error)

// State is a consistent snapshot of a controller.
type State struct {
	Query        models.ListQuery
	Data         []json.RawMessage
	Meta         models.PageMeta
	ScrollOffset int
	LastErr      error
}

// Controller drives one paginated, searchable, sortable collection view.
// Search input is debounced; each dispatched request is bound to a sequence
// number so a stale response can never overwrite a more recent one.
type Controller struct {
	fetch    Fetch
	logger   *logrus.Logger
	debounce time.Duration

	mu           sync.Mutex
	query        models.ListQuery
	data         []json.RawMessage
	meta         models.PageMeta
	scrollOffset int
	lastErr      error
	timer        *time.Timer
	timerGen     uint64
	seq          uint64
	closed       bool

	// wg tracks in-flight fetches so tests can drain them.
	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the search debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithInitialQuery seeds the starting query (e.g. a default sort).
func WithInitialQuery(q models.ListQuery) Option {
	return func(c *Controller) { c.query = q }
}

// NewController creates a controller for one collection view.
func NewController(fetch Fetch, logger *logrus.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Controller{
		fetch:    fetch,
		logger:   logger,
		debounce: DefaultDebounce,
		query:    models.ListQuery{Page: 1, SortDirection: "asc"},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.query.Page == 0 {
		c.query.Page = 1
	}
	return c
}

// Refresh fetches the current query immediately.
func (c *Controller) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	c.dispatchLocked()
	return nil
}

// SetSearchText buffers a search edit. The request fires only after the
// debounce window passes with no further edits; each edit restarts the timer
// and invalidates any pending one.
func (c *Controller) SetSearchText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}

	c.query.SearchText = s
	c.query.Page = 1

	// Stop is best-effort: a timer that already fired may have a callback
	// blocked on mu. The generation check below keeps it from dispatching
	// on top of its replacement.
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.timerGen {
			return
		}
		c.dispatchLocked()
	})
	return nil
}

// SetSort adopts the field with the default ascending direction, or toggles
// the direction when the field is already current. Either way the view goes
// back to the first page and fetches immediately.
func (c *Controller) SetSort(field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}

	if c.query.SortField == field {
		if c.query.SortDirection == "asc" {
			c.query.SortDirection = "desc"
		} else {
			c.query.SortDirection = "asc"
		}
	} else {
		c.query.SortField = field
		c.query.SortDirection = "asc"
	}
	c.query.Page = 1

	c.dispatchLocked()
	return nil
}

// GoToPage follows a pagination link. The current search and sort parameters
// are merged into the target so raw links never drop them, and the scroll
// offset is left untouched. Returns the merged target URL.
func (c *Controller) GoToPage(rawURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrControllerClosed
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	c.query.Page = page

	q.Set("page", strconv.Itoa(page))
	if c.query.SearchText != "" {
		q.Set("search", c.query.SearchText)
	} else {
		q.Del("search")
	}
	if c.query.SortField != "" {
		q.Set("sort_field", c.query.SortField)
		q.Set("sort_direction", c.query.SortDirection)
	} else {
		q.Del("sort_field")
		q.Del("sort_direction")
	}
	u.RawQuery = q.Encode()

	c.dispatchLocked()
	return u.String(), nil
}

// SetScrollOffset records the view's scroll position so navigation can
// restore it.
func (c *Controller) SetScrollOffset(offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scrollOffset = offset
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := make([]json.RawMessage, len(c.data))
	copy(data, c.data)
	return State{
		Query:        c.query,
		Data:         data,
		Meta:         c.meta,
		ScrollOffset: c.scrollOffset,
		LastErr:      c.lastErr,
	}
}

// Close cancels any pending debounce timer and drops responses that arrive
// afterwards. Navigating away never blocks on outstanding requests.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Wait blocks until in-flight fetches finish. Test hook.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// dispatchLocked fires a fetch for the current query. The caller holds mu.
// The response is applied only if its sequence is still the latest when it
// arrives, so out-of-order responses are discarded silently.
func (c *Controller) dispatchLocked() {
	// Any dispatch supersedes pending debounce timers: the query they were
	// scheduled for is the one going out right now.
	c.timerGen++
	c.seq++
	seq := c.seq
	query := c.query

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		page, err := c.fetch(query)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || seq != c.seq {
			c.logger.WithFields(logrus.Fields{
				"seq":    seq,
				"latest": c.seq,
				"search": query.SearchText,
			}).Debug("Discarding stale list response")
			return
		}
		if err != nil {
			c.lastErr = err
			c.logger.WithError(err).Error("List fetch failed")
			return
		}
		c.lastErr = nil
		c.data = page.Data
		c.meta = page.Meta
	}()
}
