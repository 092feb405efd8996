package telemetry

import (
	"context"
	"net/http"
	"testing"
	"time"

	"event-analytics/client/internal/authapi/authapitest"
	"event-analytics/client/internal/identity"
	"event-analytics/client/internal/navigation"
	"event-analytics/client/internal/storage"
)

func TestTrackPageViews_OnePerNavigation(t *testing.T) {
	srv := authapitest.NewServer()
	defer srv.Close()

	ctx := context.Background()
	ids := identity.NewStore(storage.NewMemoryStore(), nil)
	history := navigation.NewHistory("/")
	d := NewDispatcher(Options{
		Identity: ids,
		Location: history,
		Sender:   NewHTTPSender(srv.URL, srv.Client()),
	})

	stop := d.TrackPageViews(ctx, history)
	defer stop()
	srv.WaitForEvents(1, 2*time.Second)

	for i, path := range []string{"/a", "/b", "/a"} {
		history.Push(path)
		if got := len(srv.WaitForEvents(i+2, 2*time.Second)); got != i+2 {
			t.Fatalf("after push %q: %d events, want %d", path, got, i+2)
		}
	}
	waitDrained(t, d)

	events := srv.Events()
	wantURLs := []string{"/", "/a", "/b", "/a"}
	wantReferrers := []string{"", "/", "/a", "/b"}
	if len(events) != len(wantURLs) {
		t.Fatalf("got %d events, want %d", len(events), len(wantURLs))
	}
	visitor := ids.VisitorID(ctx)
	for i, ev := range events {
		if ev["event_type"] != EventPageView {
			t.Errorf("event %d type = %v, want page_view", i, ev["event_type"])
		}
		if ev["url"] != wantURLs[i] || ev["page"] != wantURLs[i] {
			t.Errorf("event %d url/page = %v/%v, want %q", i, ev["url"], ev["page"], wantURLs[i])
		}
		if ev["referrer"] != wantReferrers[i] {
			t.Errorf("event %d referrer = %v, want %q", i, ev["referrer"], wantReferrers[i])
		}
		if ev["user_id"] != visitor {
			t.Errorf("event %d user_id = %v, want %q", i, ev["user_id"], visitor)
		}
	}
}

func TestTrackPageViews_ReplaceAndTraversal(t *testing.T) {
	sender := &mockSender{}
	history := navigation.NewHistory("/")
	d := NewDispatcher(Options{Location: history, Sender: sender})

	stop := d.TrackPageViews(context.Background(), history)
	history.Push("/docs")
	history.Replace("/docs/intro")
	history.Back()
	history.Forward()
	history.Forward() // past the end: no navigation
	waitDrained(t, d)

	if got := len(sender.getEvents()); got != 5 {
		t.Errorf("page views = %d, want 5 (initial, push, replace, back, forward)", got)
	}

	stop()
	history.Push("/after-stop")
	waitDrained(t, d)
	if got := len(sender.getEvents()); got != 5 {
		t.Errorf("page views after stop = %d, want 5", got)
	}
}

func TestDispatch_IngestionFailureDoesNotAlterState(t *testing.T) {
	srv := authapitest.NewServer()
	defer srv.Close()
	srv.SetEventStatus(http.StatusInternalServerError)

	ctx := context.Background()
	ids := identity.NewStore(storage.NewMemoryStore(), nil)
	before := ids.VisitorID(ctx)
	metrics := &countingMetrics{}
	d := NewDispatcher(Options{Identity: ids, Sender: NewHTTPSender(srv.URL, nil), Metrics: metrics})

	d.Dispatch(ctx, "button_click", Attributes{"button_type": "primary"})
	waitDrained(t, d)

	if got := len(srv.Events()); got != 1 {
		t.Errorf("server received %d events, want 1", got)
	}
	if _, accepted, dropped := metrics.snapshot(); accepted != 0 || dropped != 1 {
		t.Errorf("accepted/dropped = %d/%d, want 0/1", accepted, dropped)
	}
	if after := ids.VisitorID(ctx); after != before {
		t.Errorf("visitor id changed from %q to %q", before, after)
	}
}
