package scrape

import (
	"go.uber.org/zap"

	"ytwatch/metrics"
	"ytwatch/storage"
	"ytwatch/title"
)

// strategy is one way of pulling candidates out of a raw page. Strategies
// also report a continuation token when their source material carries one.
type strategy interface {
	name() string
	extract(raw string) ([]Candidate, string, error)
}

// Parser runs the extraction strategies against a page in priority order:
// structured data blob, then DOM markup, then legacy regex scan.
type Parser struct {
	strategies []strategy
	logger     *zap.Logger
}

// NewParser returns a parser with the full strategy chain. A nil logger
// disables logging.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		strategies: []strategy{
			initialDataStrategy{},
			markupStrategy{},
			legacyStrategy{},
		},
		logger: logger,
	}
}

// Parse extracts candidates from one page. The first strategy that yields at
// least one valid candidate wins; later strategies are not consulted for that
// page. Only the structured blob carries a continuation token, so the token
// from the first strategy is kept even when its candidates lose or come up
// empty. A page with a token but no candidates parses successfully as an
// empty page; ErrNoCandidates is returned only when both are absent.
func (p *Parser) Parse(raw string) (PageResult, error) {
	var token string
	for i, s := range p.strategies {
		cands, tok, err := s.extract(raw)
		if i == 0 {
			token = tok
		}
		if err != nil {
			p.logger.Debug("extraction strategy failed",
				zap.String("strategy", s.name()),
				zap.Error(err))
			continue
		}
		cands = sanitize(cands)
		if len(cands) == 0 {
			continue
		}
		metrics.ParseStrategyHits.WithLabelValues(s.name()).Inc()
		metrics.CandidatesExtracted.Add(float64(len(cands)))
		p.logger.Debug("page parsed",
			zap.String("strategy", s.name()),
			zap.Int("candidates", len(cands)),
			zap.Bool("has_continuation", token != ""))
		return PageResult{Candidates: cands, Continuation: token}, nil
	}
	if token != "" {
		return PageResult{Continuation: token}, nil
	}
	return PageResult{}, ErrNoCandidates
}

// sanitize validates and dedups raw candidates. Malformed IDs are dropped,
// titles are normalized, candidates whose normalized title is empty are
// dropped, and only the first sighting of each ID on the page is kept.
func sanitize(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if !storage.ValidID(c.VideoID) {
			continue
		}
		c.Title = title.Normalize(c.Title)
		if c.Title == "" {
			continue
		}
		if seen[c.VideoID] {
			continue
		}
		seen[c.VideoID] = true
		out = append(out, c)
	}
	return out
}
