package navigation

import "testing"

func record(h *History) *[]Event {
	var events []Event
	h.Subscribe(func(e Event) { events = append(events, e) })
	return &events
}

func TestNewHistory_DefaultsToRoot(t *testing.T) {
	h := NewHistory("")
	if h.Current() != "/" {
		t.Errorf("Current = %q, want %q", h.Current(), "/")
	}
}

func TestPush_PublishesOnePerNavigation(t *testing.T) {
	h := NewHistory("/")
	events := record(h)

	h.Push("/a")
	h.Push("/b")
	h.Push("/a")

	want := []Event{
		{Kind: KindPush, Path: "/a", From: "/"},
		{Kind: KindPush, Path: "/b", From: "/a"},
		{Kind: KindPush, Path: "/a", From: "/b"},
	}
	if len(*events) != len(want) {
		t.Fatalf("events = %v, want %v", *events, want)
	}
	for i, e := range want {
		if (*events)[i] != e {
			t.Errorf("events[%d] = %+v, want %+v", i, (*events)[i], e)
		}
	}
	if h.Current() != "/a" {
		t.Errorf("Current = %q, want %q", h.Current(), "/a")
	}
}

func TestReplace_KeepsLength(t *testing.T) {
	h := NewHistory("/")
	h.Push("/login")
	events := record(h)

	h.Replace("/admin")

	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
	if h.Current() != "/admin" {
		t.Errorf("Current = %q, want %q", h.Current(), "/admin")
	}
	if len(*events) != 1 || (*events)[0].Kind != KindReplace || (*events)[0].From != "/login" {
		t.Errorf("events = %+v, want one replace from /login", *events)
	}
}

func TestBackForward(t *testing.T) {
	h := NewHistory("/")
	h.Push("/a")
	h.Push("/b")
	events := record(h)

	if !h.Back() {
		t.Fatal("Back should succeed")
	}
	if h.Current() != "/a" {
		t.Errorf("Current after Back = %q, want /a", h.Current())
	}
	if !h.Forward() {
		t.Fatal("Forward should succeed")
	}
	if h.Current() != "/b" {
		t.Errorf("Current after Forward = %q, want /b", h.Current())
	}
	if h.Forward() {
		t.Error("Forward at last entry should fail")
	}
	if len(*events) != 2 {
		t.Fatalf("events = %d, want 2", len(*events))
	}
	for _, e := range *events {
		if e.Kind != KindPop {
			t.Errorf("event kind = %q, want %q", e.Kind, KindPop)
		}
	}
}

func TestBack_AtStartIsNoop(t *testing.T) {
	h := NewHistory("/")
	events := record(h)
	if h.Back() {
		t.Error("Back at first entry should return false")
	}
	if h.Go(0) {
		t.Error("Go(0) should return false")
	}
	if len(*events) != 0 {
		t.Errorf("events = %d, want 0", len(*events))
	}
}

func TestPush_TruncatesForwardEntries(t *testing.T) {
	h := NewHistory("/")
	h.Push("/a")
	h.Push("/b")
	h.Back()
	h.Push("/c")

	if h.Len() != 3 {
		t.Errorf("Len = %d, want 3", h.Len())
	}
	if h.Forward() {
		t.Error("Forward after push should have nothing to go to")
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	h := NewHistory("/")
	calls := 0
	unsub := h.Subscribe(func(Event) { calls++ })
	h.Push("/a")
	unsub()
	h.Push("/b")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
