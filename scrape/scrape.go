// Package scrape extracts watched-video candidates from YouTube watch-history
// pages. A page is tried against three extraction strategies in a fixed
// order, and the first strategy that produces at least one candidate wins for
// that page. The continuation token that drives pagination is only ever
// carried by the structured data blob, so it is captured independently of
// which strategy wins.
package scrape

import "errors"

var (
	// ErrNoCandidates is returned when every strategy comes up empty and
	// the page carries no continuation token either.
	ErrNoCandidates = errors.New("scrape: no candidates found")
	// ErrNoInitialData is returned by the structured-data strategy when the
	// page has no embedded data blob.
	ErrNoInitialData = errors.New("scrape: initial data blob not found")
)

// Candidate is one video sighting on a history page. It carries no watch
// time and no view count; the merge stage assigns those when the candidate
// lands in the store.
type Candidate struct {
	VideoID string
	Title   string
}

// PageResult is what parsing a single page yields: the candidates found on
// it and the continuation token for the next page, empty when the history
// is exhausted.
type PageResult struct {
	Candidates   []Candidate
	Continuation string
}
