package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// markupStrategy extracts candidates from rendered DOM markup. It keys on
// the content-id attributes that history item components carry, which makes
// it the fallback when the structured blob is missing or reshaped.
type markupStrategy struct{}

func (markupStrategy) name() string { return "markup" }

func (markupStrategy) extract(raw string) ([]Candidate, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("scrape: parsing markup: %w", err)
	}
	var cands []Candidate
	doc.Find("[data-video-id], [video-id]").Each(func(_ int, sel *goquery.Selection) {
		id := contentID(sel)
		if len(id) != 11 {
			return
		}
		cands = append(cands, Candidate{VideoID: id, Title: blockTitle(sel)})
	})
	return cands, "", nil
}

// contentID returns the element's video id attribute in either spelling.
func contentID(sel *goquery.Selection) string {
	for _, name := range []string{"data-video-id", "video-id"} {
		if v, ok := sel.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}

// blockTitle resolves a title for one item block: the title text span first,
// then the block's own title attribute, then any titled anchor inside it.
func blockTitle(sel *goquery.Selection) string {
	if t := strings.TrimSpace(sel.Find("#video-title, .video-title").First().Text()); t != "" {
		return t
	}
	if t, ok := sel.Attr("title"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	if t, ok := sel.Find("a[title]").First().Attr("title"); ok {
		return strings.TrimSpace(t)
	}
	return ""
}
