package scrape

import (
	"encoding/json"
	"fmt"
	"strings"

	"ytwatch/metrics"
)

// initialDataStrategy pulls candidates from the ytInitialData JSON blob that
// history pages embed in a script tag. It is the primary strategy and the
// only one with access to the continuation token.
type initialDataStrategy struct{}

func (initialDataStrategy) name() string { return "initial_data" }

func (initialDataStrategy) extract(raw string) ([]Candidate, string, error) {
	blob, err := extractInitialData(raw)
	if err != nil {
		return nil, "", err
	}
	var data initialData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, "", fmt.Errorf("scrape: decoding initial data: %w", err)
	}
	cands, token := collectItems(data.contentItems())
	return cands, token, nil
}

// extractInitialData locates the ytInitialData assignment in the page and
// returns the JSON object assigned to it. Both the bare `var ytInitialData =`
// form and the `window["ytInitialData"] =` form occur in the wild, and the
// identifier can appear in unrelated places first, so every occurrence is
// tried until one is followed by an assignment.
func extractInitialData(page string) (string, error) {
	const marker = "ytInitialData"
	for start := 0; ; {
		idx := strings.Index(page[start:], marker)
		if idx < 0 {
			return "", ErrNoInitialData
		}
		pos := start + idx + len(marker)
		start = pos
		for pos < len(page) && (page[pos] == '"' || page[pos] == ']' || page[pos] == ' ') {
			pos++
		}
		if pos >= len(page) || page[pos] != '=' {
			continue
		}
		pos++
		for pos < len(page) && page[pos] == ' ' {
			pos++
		}
		if pos >= len(page) || page[pos] != '{' {
			continue
		}
		if obj, ok := balancedObject(page[pos:]); ok {
			return obj, nil
		}
	}
}

// balancedObject returns the JSON object opening at s[0], scanned to its
// matching close brace. Braces inside string literals do not count, so
// titles containing them cannot unbalance the scan.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// The structures below mirror only the slices of the blob that carry history
// items. Everything else is ignored by the decoder.

type initialData struct {
	Contents                  *pageContents    `json:"contents"`
	OnResponseReceivedActions []responseAction `json:"onResponseReceivedActions"`
}

type pageContents struct {
	TwoColumnBrowseResultsRenderer *browseResults `json:"twoColumnBrowseResultsRenderer"`
}

type browseResults struct {
	Tabs []tab `json:"tabs"`
}

type tab struct {
	TabRenderer *tabRenderer `json:"tabRenderer"`
}

type tabRenderer struct {
	Selected bool        `json:"selected"`
	Content  *tabContent `json:"content"`
}

type tabContent struct {
	SectionListRenderer *sectionList `json:"sectionListRenderer"`
	RichGridRenderer    *richGrid    `json:"richGridRenderer"`
}

type sectionList struct {
	Contents []sectionContent `json:"contents"`
}

type sectionContent struct {
	ItemSectionRenderer      *itemSection      `json:"itemSectionRenderer"`
	ContinuationItemRenderer *continuationItem `json:"continuationItemRenderer"`
}

type itemSection struct {
	Contents []pageItem `json:"contents"`
}

type richGrid struct {
	Contents []pageItem `json:"contents"`
}

// pageItem is one entry in a history listing. Exactly one of the renderer
// fields is set; which one depends on the page layout YouTube served.
type pageItem struct {
	VideoRenderer            *videoRenderer    `json:"videoRenderer"`
	GridVideoRenderer        *videoRenderer    `json:"gridVideoRenderer"`
	LockupViewModel          *lockupViewModel  `json:"lockupViewModel"`
	RichItemRenderer         *richItem         `json:"richItemRenderer"`
	ContinuationItemRenderer *continuationItem `json:"continuationItemRenderer"`
}

type richItem struct {
	Content *pageItem `json:"content"`
}

type videoRenderer struct {
	VideoID  string    `json:"videoId"`
	Title    *textRuns `json:"title"`
	Headline *textRuns `json:"headline"`
}

type lockupViewModel struct {
	ContentID string          `json:"contentId"`
	Metadata  *lockupMetadata `json:"metadata"`
}

type lockupMetadata struct {
	LockupMetadataViewModel *lockupMetadataViewModel `json:"lockupMetadataViewModel"`
}

type lockupMetadataViewModel struct {
	Title *contentText `json:"title"`
}

type contentText struct {
	Content string `json:"content"`
}

type textRuns struct {
	Runs       []textRun `json:"runs"`
	SimpleText string    `json:"simpleText"`
}

type textRun struct {
	Text string `json:"text"`
}

// text joins the runs when present, falling back to the simple form.
func (t *textRuns) text() string {
	if t == nil {
		return ""
	}
	if len(t.Runs) > 0 {
		var b strings.Builder
		for _, r := range t.Runs {
			b.WriteString(r.Text)
		}
		return b.String()
	}
	return t.SimpleText
}

type continuationItem struct {
	ContinuationEndpoint *continuationEndpoint `json:"continuationEndpoint"`
}

type continuationEndpoint struct {
	ContinuationCommand *continuationCommand `json:"continuationCommand"`
}

type continuationCommand struct {
	Token string `json:"token"`
}

func (c *continuationItem) token() string {
	if c == nil || c.ContinuationEndpoint == nil || c.ContinuationEndpoint.ContinuationCommand == nil {
		return ""
	}
	return c.ContinuationEndpoint.ContinuationCommand.Token
}

type responseAction struct {
	AppendContinuationItemsAction  *appendItemsAction `json:"appendContinuationItemsAction"`
	ReloadContinuationItemsCommand *appendItemsAction `json:"reloadContinuationItemsCommand"`
}

type appendItemsAction struct {
	ContinuationItems []pageItem `json:"continuationItems"`
}

// contentItems flattens the history items out of whichever layout the page
// used. Both the section-list and rich-grid layouts appear in the wild.
func (d *initialData) contentItems() []pageItem {
	if d.Contents == nil || d.Contents.TwoColumnBrowseResultsRenderer == nil {
		return nil
	}
	var items []pageItem
	for _, t := range d.Contents.TwoColumnBrowseResultsRenderer.Tabs {
		if t.TabRenderer == nil || t.TabRenderer.Content == nil {
			continue
		}
		content := t.TabRenderer.Content
		if sl := content.SectionListRenderer; sl != nil {
			for _, sc := range sl.Contents {
				if sc.ItemSectionRenderer != nil {
					items = append(items, sc.ItemSectionRenderer.Contents...)
				}
				if sc.ContinuationItemRenderer != nil {
					items = append(items, pageItem{ContinuationItemRenderer: sc.ContinuationItemRenderer})
				}
			}
		}
		if rg := content.RichGridRenderer; rg != nil {
			items = append(items, rg.Contents...)
		}
	}
	return items
}

// collectItems walks flattened page items, producing raw candidates and the
// continuation token when one is present.
func collectItems(items []pageItem) ([]Candidate, string) {
	var cands []Candidate
	var token string
	for _, it := range items {
		if it.RichItemRenderer != nil && it.RichItemRenderer.Content != nil {
			inner, tok := collectItems([]pageItem{*it.RichItemRenderer.Content})
			cands = append(cands, inner...)
			if token == "" {
				token = tok
			}
			continue
		}
		if it.ContinuationItemRenderer != nil {
			if token == "" {
				token = it.ContinuationItemRenderer.token()
			}
			continue
		}
		if c, ok := itemCandidate(it); ok {
			cands = append(cands, c)
		}
	}
	return cands, token
}

// itemCandidate extracts whichever renderer variant the item carries.
// Candidates with empty titles are still returned here; sanitize drops them.
func itemCandidate(it pageItem) (Candidate, bool) {
	if lv := it.LockupViewModel; lv != nil && lv.ContentID != "" {
		c := Candidate{VideoID: lv.ContentID}
		if lv.Metadata != nil && lv.Metadata.LockupMetadataViewModel != nil && lv.Metadata.LockupMetadataViewModel.Title != nil {
			c.Title = lv.Metadata.LockupMetadataViewModel.Title.Content
		}
		return c, true
	}
	if vr := it.VideoRenderer; vr != nil && vr.VideoID != "" {
		return Candidate{VideoID: vr.VideoID, Title: rendererTitle(vr)}, true
	}
	if vr := it.GridVideoRenderer; vr != nil && vr.VideoID != "" {
		return Candidate{VideoID: vr.VideoID, Title: rendererTitle(vr)}, true
	}
	return Candidate{}, false
}

func rendererTitle(vr *videoRenderer) string {
	if s := vr.Title.text(); s != "" {
		return s
	}
	return vr.Headline.text()
}

// ParseContinuation decodes a browse-endpoint response, which delivers new
// items through onResponseReceivedActions rather than the page layout.
func ParseContinuation(raw []byte) (PageResult, error) {
	var data initialData
	if err := json.Unmarshal(raw, &data); err != nil {
		return PageResult{}, fmt.Errorf("scrape: decoding continuation response: %w", err)
	}
	var items []pageItem
	for _, a := range data.OnResponseReceivedActions {
		if a.AppendContinuationItemsAction != nil {
			items = append(items, a.AppendContinuationItemsAction.ContinuationItems...)
		}
		if a.ReloadContinuationItemsCommand != nil {
			items = append(items, a.ReloadContinuationItemsCommand.ContinuationItems...)
		}
	}
	items = append(items, data.contentItems()...)
	cands, token := collectItems(items)
	res := PageResult{Candidates: sanitize(cands), Continuation: token}
	if len(res.Candidates) > 0 {
		metrics.ParseStrategyHits.WithLabelValues("initial_data").Inc()
		metrics.CandidatesExtracted.Add(float64(len(res.Candidates)))
	}
	return res, nil
}
