// Package suggest implements the search box behavior: the displayed text follows each keystroke,
// the committed search term follows after a quiet period, and a suggestion list is computed from
// a cached set of labels.
package suggest

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMinInputLength = 2
	DefaultMaxSuggestions = 10
)

// Timer is a pending debounce expiry.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn to run once after the given duration.
type AfterFunc func(duration time.Duration, fn func()) Timer

func realAfterFunc(duration time.Duration, fn func()) Timer {
	return time.AfterFunc(duration, fn)
}

type Options struct {
	Debounce       time.Duration
	MinInputLength int
	MaxSuggestions int
	// Commit receives the text once input has been quiet for Debounce, or immediately on Select.
	// Called without any engine lock held.
	Commit func(text string)
	// Defaults to time.AfterFunc.
	AfterFunc AfterFunc
}

func (options Options) withDefaults() Options {
	if options.Debounce < 0 {
		options.Debounce = 0
	}
	if options.MinInputLength <= 0 {
		options.MinInputLength = DefaultMinInputLength
	}
	if options.MaxSuggestions <= 0 {
		options.MaxSuggestions = DefaultMaxSuggestions
	}
	if options.Commit == nil {
		options.Commit = func(string) {}
	}
	if options.AfterFunc == nil {
		options.AfterFunc = realAfterFunc
	}
	return options
}

// Engine is safe for concurrent use; the commit timer fires on its own goroutine.
type Engine struct {
	options Options

	lock        sync.Mutex
	labels      []string
	text        string
	suggestions []string
	visible     bool
	timer       Timer
	// Incremented whenever a pending commit is superseded, so that a timer which fired before it
	// could be stopped does not commit stale text.
	pending uint64
}

func New(options Options) *Engine {
	return &Engine{options: options.withDefaults()}
}

// SetLabels replaces the cached label set, typically once per dataset selection. Suggestions
// are recomputed for the current text but stay hidden until the next input.
func (engine *Engine) SetLabels(labels []string) {
	engine.lock.Lock()
	defer engine.lock.Unlock()

	engine.labels = append([]string(nil), labels...)
	engine.suggestions = engine.matchLocked(engine.text)
	engine.visible = false
}

// Input handles one keystroke: the displayed text and the suggestions update immediately, while
// the commit is (re)scheduled.
func (engine *Engine) Input(text string) {
	engine.lock.Lock()
	defer engine.lock.Unlock()

	engine.text = text
	engine.suggestions = engine.matchLocked(text)
	engine.visible = len(engine.suggestions) > 0

	engine.stopTimerLocked()
	pending := engine.pending
	engine.timer = engine.options.AfterFunc(engine.options.Debounce, func() {
		engine.fire(pending)
	})
}

func (engine *Engine) fire(pending uint64) {
	engine.lock.Lock()
	if pending != engine.pending {
		engine.lock.Unlock()
		return
	}
	engine.pending++
	engine.timer = nil
	text := engine.text
	engine.lock.Unlock()

	engine.options.Commit(text)
}

// Select picks a suggestion: it becomes both the displayed and the committed text at once.
func (engine *Engine) Select(label string) {
	engine.lock.Lock()
	engine.stopTimerLocked()
	engine.text = label
	engine.visible = false
	engine.lock.Unlock()

	engine.options.Commit(label)
}

// Dismiss hides the suggestion list, as on an interaction outside the search box.
func (engine *Engine) Dismiss() {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	engine.visible = false
}

// Sync replaces the displayed text when the committed search changed elsewhere, such as when
// filters are cleared. A pending commit is dropped.
func (engine *Engine) Sync(text string) {
	engine.lock.Lock()
	defer engine.lock.Unlock()

	engine.stopTimerLocked()
	engine.text = text
	engine.suggestions = engine.matchLocked(text)
	engine.visible = false
}

// Flush commits pending input immediately, as when the user presses enter before the debounce
// expires. Reports whether anything was pending.
func (engine *Engine) Flush() bool {
	engine.lock.Lock()
	if engine.timer == nil {
		engine.lock.Unlock()
		return false
	}
	engine.stopTimerLocked()
	text := engine.text
	engine.lock.Unlock()

	engine.options.Commit(text)
	return true
}

// Close drops any pending commit.
func (engine *Engine) Close() {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	engine.stopTimerLocked()
}

func (engine *Engine) matchLocked(text string) []string {
	return Match(engine.labels, text, engine.options.MinInputLength, engine.options.MaxSuggestions)
}

func (engine *Engine) stopTimerLocked() {
	if engine.timer != nil {
		engine.timer.Stop()
		engine.timer = nil
	}
	engine.pending++
}

func (engine *Engine) Text() string {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	return engine.text
}

// Suggestions returns the current suggestions, or nil while the list is hidden.
func (engine *Engine) Suggestions() []string {
	engine.lock.Lock()
	defer engine.lock.Unlock()

	if !engine.visible {
		return nil
	}
	return append([]string(nil), engine.suggestions...)
}

func (engine *Engine) Visible() bool {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	return engine.visible
}

// Match returns up to maxMatches labels containing input, case-insensitively, in label order.
// Input shorter than minLength (in characters) and empty labels never match.
func Match(labels []string, input string, minLength int, maxMatches int) []string {
	if utf8.RuneCountInString(input) < minLength || maxMatches <= 0 {
		return nil
	}

	needle := strings.ToLower(input)
	var matches []string
	for _, label := range labels {
		if label == "" {
			continue
		}
		if strings.Contains(strings.ToLower(label), needle) {
			matches = append(matches, label)
			if len(matches) == maxMatches {
				break
			}
		}
	}
	return matches
}
