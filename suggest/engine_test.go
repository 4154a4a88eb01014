package suggest_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/mabexplorer/suggest"
)

type fakeTimer struct {
	duration time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

func (timer *fakeTimer) Stop() bool {
	wasActive := !timer.stopped && !timer.fired
	timer.stopped = true
	return wasActive
}

// fakeClock records scheduled timers so tests decide when they fire.
type fakeClock struct {
	timers []*fakeTimer
}

func (clock *fakeClock) AfterFunc(duration time.Duration, fn func()) suggest.Timer {
	timer := &fakeTimer{duration: duration, fn: fn}
	clock.timers = append(clock.timers, timer)
	return timer
}

func (clock *fakeClock) last() *fakeTimer {
	return clock.timers[len(clock.timers)-1]
}

// fire runs the timer's function even if it was stopped, like a real timer that had already
// expired when Stop was called.
func (timer *fakeTimer) fire() {
	timer.fired = true
	timer.fn()
}

type commits struct {
	lock   sync.Mutex
	values []string
}

func (commits *commits) add(text string) {
	commits.lock.Lock()
	defer commits.lock.Unlock()
	commits.values = append(commits.values, text)
}

func newTestEngine() (*suggest.Engine, *fakeClock, *commits) {
	clock := &fakeClock{}
	committed := &commits{}
	engine := suggest.New(suggest.Options{
		Debounce:  suggest.DefaultDebounce,
		Commit:    committed.add,
		AfterFunc: clock.AfterFunc,
	})
	return engine, clock, committed
}

var antibodies = func() []string {
	labels := []string{"Pembrolizumab", "Nivolumab", "Pembro-X", "Trastuzumab"}
	for i := 1; i <= 12; i++ {
		labels = append(labels, fmt.Sprintf("pembro-variant-%d", i))
	}
	return labels
}()

func TestMatch(t *testing.T) {
	matches := suggest.Match(antibodies, "pembro", 2, 10)

	require.Len(t, matches, 10)
	assert.Equal(t, "Pembrolizumab", matches[0])
	assert.Equal(t, "Pembro-X", matches[1])
	assert.Equal(t, "pembro-variant-8", matches[9])

	assert.Empty(t, suggest.Match(antibodies, "p", 2, 10))
	assert.Equal(t, []string{"Nivolumab"}, suggest.Match(antibodies, "VOLU", 2, 10))
	assert.Equal(t, []string{"Trastuzumab"}, suggest.Match([]string{"", "Trastuzumab"}, "tuz", 2, 10))
	assert.Empty(t, suggest.Match(antibodies, "xyz", 2, 10))
}

func TestMatchCountsCharacters(t *testing.T) {
	assert.Empty(t, suggest.Match([]string{"β-blocker"}, "β", 2, 10))
	assert.Equal(t, []string{"β-blocker"}, suggest.Match([]string{"β-blocker"}, "β-", 2, 10))
}

func TestInputUpdatesTextAndSuggestionsImmediately(t *testing.T) {
	engine, clock, committed := newTestEngine()
	engine.SetLabels(antibodies)

	engine.Input("pe")
	engine.Input("pembro")

	assert.Equal(t, "pembro", engine.Text())
	assert.True(t, engine.Visible())
	assert.Len(t, engine.Suggestions(), suggest.DefaultMaxSuggestions)
	assert.Empty(t, committed.values)

	require.Len(t, clock.timers, 2)
	assert.True(t, clock.timers[0].stopped)
	assert.Equal(t, suggest.DefaultDebounce, clock.last().duration)

	engine.Input("p")
	assert.False(t, engine.Visible())
	assert.Nil(t, engine.Suggestions())
}

func TestCommitAfterDebounce(t *testing.T) {
	engine, clock, committed := newTestEngine()

	engine.Input("niv")
	engine.Input("nivo")
	clock.last().fire()

	assert.Equal(t, []string{"nivo"}, committed.values)
	assert.False(t, engine.Flush(), "nothing pending after commit")
}

func TestSupersededTimerDoesNotCommit(t *testing.T) {
	engine, clock, committed := newTestEngine()

	engine.Input("niv")
	first := clock.last()
	engine.Input("nivo")

	first.fire()
	assert.Empty(t, committed.values)

	clock.last().fire()
	assert.Equal(t, []string{"nivo"}, committed.values)
}

func TestSelect(t *testing.T) {
	engine, clock, committed := newTestEngine()
	engine.SetLabels(antibodies)

	engine.Input("niv")
	require.True(t, engine.Visible())
	engine.Select("Nivolumab")

	assert.Equal(t, "Nivolumab", engine.Text())
	assert.False(t, engine.Visible())
	assert.Equal(t, []string{"Nivolumab"}, committed.values)

	clock.last().fire()
	assert.Equal(t, []string{"Nivolumab"}, committed.values, "pending input dropped by select")
}

func TestDismissAndSync(t *testing.T) {
	engine, clock, committed := newTestEngine()
	engine.SetLabels(antibodies)

	engine.Input("tras")
	engine.Dismiss()
	assert.False(t, engine.Visible())
	assert.Equal(t, "tras", engine.Text())

	engine.Sync("")
	assert.Equal(t, "", engine.Text())
	clock.last().fire()
	assert.Empty(t, committed.values)
}

func TestFlushAndClose(t *testing.T) {
	engine, clock, committed := newTestEngine()

	engine.Input("trastu")
	assert.True(t, engine.Flush())
	assert.Equal(t, []string{"trastu"}, committed.values)

	engine.Input("trastuz")
	engine.Close()
	clock.last().fire()
	assert.Equal(t, []string{"trastu"}, committed.values)
}

func TestSetLabelsHidesSuggestions(t *testing.T) {
	engine, _, _ := newTestEngine()
	engine.SetLabels(antibodies)
	engine.Input("pem")
	require.True(t, engine.Visible())

	engine.SetLabels([]string{"Adalimumab"})
	assert.False(t, engine.Visible())
}

func TestRealTimerCommits(t *testing.T) {
	done := make(chan string, 1)
	engine := suggest.New(suggest.Options{
		Debounce: time.Millisecond,
		Commit:   func(text string) { done <- text },
	})
	defer engine.Close()

	engine.Input("ritux")

	select {
	case text := <-done:
		assert.Equal(t, "ritux", text)
	case <-time.After(5 * time.Second):
		t.Fatal("debounced commit never fired")
	}
}
