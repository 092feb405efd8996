package telemetry

import (
	"context"

	"event-analytics/client/internal/navigation"
)

// NavigationSource is what TrackPageViews observes. *navigation.History implements it.
type NavigationSource interface {
	Current() string
	Subscribe(fn func(navigation.Event)) (unsubscribe func())
}

// TrackPageViews emits a page_view for the current path, then exactly one per navigation
// (push, replace, back or forward) until the returned function is called.
func (d *Dispatcher) TrackPageViews(ctx context.Context, nav NavigationSource) (stop func()) {
	d.TrackPageView(ctx, nav.Current(), "")
	return nav.Subscribe(func(ev navigation.Event) {
		d.TrackPageView(context.WithoutCancel(ctx), ev.Path, ev.From)
	})
}
