// Package navigation is the client's in-process history of visited paths. Consumers observe route
// changes through Subscribe instead of wrapping the navigation calls themselves.
package navigation

import (
	"sync"

	"event-analytics/client/internal/observe"
)

// Kind identifies what triggered a navigation.
type Kind string

const (
	// KindPush is a programmatic forward navigation to a new entry.
	KindPush Kind = "push"
	// KindReplace replaces the current entry in place.
	KindReplace Kind = "replace"
	// KindPop is a back or forward traversal of existing entries.
	KindPop Kind = "pop"
)

// Event describes a completed navigation. Path is already current when the event is published.
type Event struct {
	Kind Kind
	Path string
	From string
}

// History is a linear stack of entries with a cursor, like a browser tab's session history.
type History struct {
	mu      sync.Mutex
	entries []string
	index   int
	events  observe.Subject[Event]
}

// NewHistory returns a History positioned at initial ("/" when empty).
func NewHistory(initial string) *History {
	if initial == "" {
		initial = "/"
	}
	return &History{entries: []string{initial}}
}

// Current returns the current path.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Push adds path after the current entry, dropping any forward entries, and makes it current.
func (h *History) Push(path string) {
	h.mu.Lock()
	from := h.entries[h.index]
	h.entries = append(h.entries[:h.index+1], path)
	h.index++
	h.mu.Unlock()

	h.events.Publish(Event{Kind: KindPush, Path: path, From: from})
}

// Replace swaps the current entry for path.
func (h *History) Replace(path string) {
	h.mu.Lock()
	from := h.entries[h.index]
	h.entries[h.index] = path
	h.mu.Unlock()

	h.events.Publish(Event{Kind: KindReplace, Path: path, From: from})
}

// Back moves to the previous entry. Returns false, without publishing, at the first entry.
func (h *History) Back() bool {
	return h.Go(-1)
}

// Forward moves to the next entry. Returns false, without publishing, at the last entry.
func (h *History) Forward() bool {
	return h.Go(1)
}

// Go moves the cursor by delta entries. Out-of-range and zero deltas are no-ops.
func (h *History) Go(delta int) bool {
	h.mu.Lock()
	target := h.index + delta
	if delta == 0 || target < 0 || target >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	from := h.entries[h.index]
	h.index = target
	path := h.entries[target]
	h.mu.Unlock()

	h.events.Publish(Event{Kind: KindPop, Path: path, From: from})
	return true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Subscribe registers fn for every navigation. Returns the unsubscribe function.
func (h *History) Subscribe(fn func(Event)) (unsubscribe func()) {
	return h.events.Subscribe(fn)
}
