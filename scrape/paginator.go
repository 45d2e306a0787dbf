package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	ythttp "ytwatch/http"
	"ytwatch/metrics"
)

// browseEndpoint serves continuation pages for the history feed.
const browseEndpoint = "https://www.youtube.com/youtubei/v1/browse"

const (
	// DefaultMaxPages caps how many continuation fetches follow the
	// initial page.
	DefaultMaxPages = 10
	// DefaultPageDelay is the pause between successive fetches.
	DefaultPageDelay = 500 * time.Millisecond
)

// Fetcher is the transport the paginator drives. Implementations return the
// response body on success and an error otherwise.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error)
}

// ClientFetcher adapts the resilient HTTP client to the Fetcher interface.
type ClientFetcher struct {
	Client *ythttp.Client
}

func (f ClientFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.Client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (f ClientFetcher) Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	resp, err := f.Client.Post(ctx, url, contentType, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// browseRequest is the payload for one continuation fetch.
type browseRequest struct {
	Context      browseContext `json:"context"`
	Continuation string        `json:"continuation"`
}

type browseContext struct {
	Client browseClient `json:"client"`
}

type browseClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	HL            string `json:"hl"`
	GL            string `json:"gl"`
}

func newBrowseRequest(token string) browseRequest {
	return browseRequest{
		Context: browseContext{
			Client: browseClient{
				ClientName:    "WEB",
				ClientVersion: "2.20240101.00.00",
				HL:            "en",
				GL:            "US",
			},
		},
		Continuation: token,
	}
}

// PageStats summarizes one pagination run.
type PageStats struct {
	// PagesFetched counts pages retrieved, the initial page included.
	PagesFetched int
	// Candidates is the number of candidates accumulated across pages.
	Candidates int
	// Truncated is set when a failure cut the run short, making the
	// candidates a prefix of what the full history holds.
	Truncated bool
}

// Paginator walks a history page and its continuations, accumulating
// candidates until the history is exhausted, the page cap is reached, or a
// fetch fails. A failed fetch ends the run with whatever was collected so
// far; partial results are not an error.
type Paginator struct {
	fetcher  Fetcher
	parser   *Parser
	maxPages int
	delay    time.Duration
	logger   *zap.Logger
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithMaxPages caps continuation fetches at n.
func WithMaxPages(n int) Option {
	return func(p *Paginator) { p.maxPages = n }
}

// WithPageDelay sets the pause between successive fetches.
func WithPageDelay(d time.Duration) Option {
	return func(p *Paginator) { p.delay = d }
}

// WithLogger sets the paginator's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Paginator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPaginator returns a paginator over fetcher and parser with the default
// page cap and inter-request delay.
func NewPaginator(fetcher Fetcher, parser *Parser, opts ...Option) *Paginator {
	p := &Paginator{
		fetcher:  fetcher,
		parser:   parser,
		maxPages: DefaultMaxPages,
		delay:    DefaultPageDelay,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// FetchAll retrieves pageURL and follows its continuation tokens. Candidates
// are deduplicated across pages, first sighting wins. Context cancellation
// is the only error FetchAll returns; every other failure degrades to a
// truncated result.
func (p *Paginator) FetchAll(ctx context.Context, pageURL string) ([]Candidate, PageStats, error) {
	var (
		all   []Candidate
		seen  = make(map[string]bool)
		stats PageStats
	)
	appendNew := func(cands []Candidate) {
		for _, c := range cands {
			if seen[c.VideoID] {
				continue
			}
			seen[c.VideoID] = true
			all = append(all, c)
		}
	}

	body, err := p.fetcher.Get(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, stats, ctx.Err()
		}
		p.logger.Warn("initial page fetch failed",
			zap.String("url", pageURL),
			zap.Error(err))
		metrics.PaginationTruncated.Inc()
		stats.Truncated = true
		return nil, stats, nil
	}
	stats.PagesFetched++
	metrics.PagesFetched.Inc()

	token := ""
	res, err := p.parser.Parse(string(body))
	if err != nil {
		p.logger.Info("initial page yielded no candidates", zap.Error(err))
	} else {
		appendNew(res.Candidates)
		token = res.Continuation
	}

	for continuations := 0; token != "" && continuations < p.maxPages; continuations++ {
		if err := sleepCtx(ctx, p.delay); err != nil {
			stats.Candidates = len(all)
			return all, stats, err
		}
		payload, err := json.Marshal(newBrowseRequest(token))
		if err != nil {
			stats.Candidates = len(all)
			return all, stats, fmt.Errorf("scrape: encoding browse request: %w", err)
		}
		body, err := p.fetcher.Post(ctx, browseEndpoint, "application/json", payload)
		if err != nil {
			if ctx.Err() != nil {
				stats.Candidates = len(all)
				return all, stats, ctx.Err()
			}
			p.logger.Warn("continuation fetch failed",
				zap.Int("page", stats.PagesFetched+1),
				zap.Error(err))
			metrics.PaginationTruncated.Inc()
			stats.Truncated = true
			break
		}
		stats.PagesFetched++
		metrics.PagesFetched.Inc()

		res, err := ParseContinuation(body)
		if err != nil {
			p.logger.Warn("continuation parse failed",
				zap.Int("page", stats.PagesFetched),
				zap.Error(err))
			metrics.PaginationTruncated.Inc()
			stats.Truncated = true
			break
		}
		appendNew(res.Candidates)
		token = res.Continuation
	}

	stats.Candidates = len(all)
	return all, stats, nil
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
