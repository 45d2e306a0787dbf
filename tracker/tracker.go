// Package tracker turns live browser signals into watch marks. It consumes
// tab navigation and playback progress events, remembers which video each
// tab is showing, caches the freshest document title per tab, and records
// a confirmed view through the watch service. The mark cooldown keeps
// rapid playback signals from inflating view counts.
package tracker

import (
	"context"

	"go.uber.org/zap"

	"ytwatch/history"
	"ytwatch/metrics"
	"ytwatch/title"
	"ytwatch/watch"
)

// EventKind distinguishes the browser signals the tracker understands.
type EventKind int

const (
	// EventNavigation reports a tab committing a new URL.
	EventNavigation EventKind = iota
	// EventPlayback reports playback progress in a tab.
	EventPlayback
)

// Event is one browser signal. Title carries the raw document title,
// site suffix and all; early events often carry placeholders, so the
// tracker keeps the freshest meaningful title it has seen for the tab.
// At is an epoch-millisecond timestamp, zero meaning "now".
type Event struct {
	Kind  EventKind
	TabID int
	URL   string
	Title string
	At    int64
}

// tabState is what the tracker knows about one tab: the video it is
// showing and the best title seen for it so far.
type tabState struct {
	videoID string
	title   string
}

// Tracker is a long-lived observer feeding live signals into the watch
// service. State is owned by the Run goroutine; a Tracker must not be
// shared between concurrent Run calls.
type Tracker struct {
	svc    *watch.Service
	logger *zap.Logger
	tabs   map[int]*tabState
}

// NewTracker returns a Tracker marking views through svc.
func NewTracker(svc *watch.Service, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		svc:    svc,
		logger: logger,
		tabs:   make(map[int]*tabState),
	}
}

// Run consumes events until ctx is canceled or the channel closes. A
// closed channel is a clean shutdown; cancellation returns ctx.Err().
func (t *Tracker) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			t.handle(ctx, ev)
		}
	}
}

func (t *Tracker) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventNavigation:
		t.handleNavigation(ctx, ev)
	case EventPlayback:
		t.handlePlayback(ctx, ev)
	default:
		t.logger.Debug("unknown event kind dropped",
			zap.Int("kind", int(ev.Kind)),
			zap.Int("tab_id", ev.TabID))
	}
}

// handleNavigation marks a view once per navigation to a video URL.
// Navigating anywhere else ends the tab's video association, so later
// playback signals for the tab are dropped.
func (t *Tracker) handleNavigation(ctx context.Context, ev Event) {
	id, ok := history.VideoIDFromURL(ev.URL)
	if !ok {
		delete(t.tabs, ev.TabID)
		t.logger.Debug("tab left video playback",
			zap.Int("tab_id", ev.TabID),
			zap.String("url", ev.URL))
		return
	}
	best := t.observe(ev.TabID, id, ev.Title)
	t.mark(ctx, id, best, ev.At)
}

// handlePlayback marks the tab's current video. Playback events often
// carry the settled document title, so they refresh the cache too.
func (t *Tracker) handlePlayback(ctx context.Context, ev Event) {
	st := t.tabs[ev.TabID]
	if st == nil {
		t.logger.Debug("playback for untracked tab dropped",
			zap.Int("tab_id", ev.TabID))
		return
	}
	if cleaned := title.FromPageTitle(ev.Title); title.IsMeaningful(cleaned) {
		st.title = cleaned
	}
	t.mark(ctx, st.videoID, st.title, ev.At)
}

// observe points the tab at id and returns the freshest title known for
// it. Switching videos resets the cached title; an empty or chrome-only
// incoming title leaves the cache alone.
func (t *Tracker) observe(tabID int, id, rawTitle string) string {
	st := t.tabs[tabID]
	if st == nil || st.videoID != id {
		st = &tabState{videoID: id}
		t.tabs[tabID] = st
	}
	if cleaned := title.FromPageTitle(rawTitle); title.IsMeaningful(cleaned) {
		st.title = cleaned
	}
	return st.title
}

func (t *Tracker) mark(ctx context.Context, id, videoTitle string, at int64) {
	outcome, err := t.svc.Mark(ctx, watch.MarkRequest{
		VideoID:   id,
		Title:     videoTitle,
		WatchedAt: at,
	})
	if err != nil {
		t.logger.Warn("marking view failed",
			zap.String("video_id", id),
			zap.Error(err))
		return
	}
	switch {
	case outcome.Created:
		metrics.RecordsCreated.WithLabelValues("tracker").Inc()
	case outcome.Updated:
		metrics.RecordsUpdated.WithLabelValues("tracker").Inc()
	}
}
