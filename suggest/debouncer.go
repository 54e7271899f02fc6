// Package suggest debounces type-ahead input into medicine suggestion queries.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultQuietPeriod = 500 * time.Millisecond
	defaultMinLength   = 2
)

type Querier interface {
	Suggestions(ctx context.Context, query string) ([]string, error)
}

// Result is delivered for the latest input only.
type Result struct {
	Query       string
	Suggestions []string
	Err         error
}

// Debouncer waits for a quiet period after the last keystroke before querying, and
// makes sure only the answer to the most recent input is ever delivered.
//
// onResult is called with the debouncer's lock held so that a newer input cannot
// slip in between the staleness check and delivery. It must not call back into
// the Debouncer synchronously.
type Debouncer struct {
	querier   Querier
	onResult  func(Result)
	quiet     time.Duration
	minLength int
	logger    zerolog.Logger

	lock       sync.Mutex
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	closed     bool
}

// DebouncerOption defines a function type to modify the Debouncer instance.
type DebouncerOption func(*Debouncer)

func WithQuietPeriod(d time.Duration) DebouncerOption {
	return func(db *Debouncer) {
		if d > 0 {
			db.quiet = d
		}
	}
}

// WithMinLength sets how many characters (runes, after trimming) trigger a query.
func WithMinLength(n int) DebouncerOption {
	return func(db *Debouncer) {
		if n > 0 {
			db.minLength = n
		}
	}
}

func WithLogger(l zerolog.Logger) DebouncerOption {
	return func(db *Debouncer) {
		db.logger = l
	}
}

func New(querier Querier, onResult func(Result), options ...DebouncerOption) (*Debouncer, error) {
	if querier == nil {
		return nil, fmt.Errorf("[suggest.New] querier is required")
	}
	if onResult == nil {
		return nil, fmt.Errorf("[suggest.New] result callback is required")
	}

	d := &Debouncer{
		querier:   querier,
		onResult:  onResult,
		quiet:     defaultQuietPeriod,
		minLength: defaultMinLength,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// OnInput records the current text of the search field. Anything pending for an
// earlier input is abandoned.
func (d *Debouncer) OnInput(text string) {
	query := strings.TrimSpace(text)

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return
	}

	d.generation++
	gen := d.generation
	d.stopPendingLocked()

	if utf8.RuneCountInString(query) < d.minLength {
		d.onResult(Result{Query: query, Suggestions: []string{}})
		return
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen, query) })
}

// Close stops any pending timer and cancels the in-flight query. Nothing is delivered afterwards.
func (d *Debouncer) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed = true
	d.stopPendingLocked()
}

func (d *Debouncer) stopPendingLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.lock.Lock()
	if d.closed || gen != d.generation {
		d.lock.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.lock.Unlock()

	suggestions, err := d.querier.Suggestions(ctx, query)
	cancel()

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed || gen != d.generation {
		d.logger.Debug().Str("query", query).Msg("dropping stale suggestions")
		return
	}
	d.cancel = nil
	if err != nil {
		d.logger.Warn().Err(err).Str("query", query).Msg("suggestion query failed")
		d.onResult(Result{Query: query, Err: err})
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	d.onResult(Result{Query: query, Suggestions: suggestions})
}
