package scrape

import "testing"

func TestMarkupExtract(t *testing.T) {
	page := `<html><body>
		<div data-video-id="dQw4w9WgXcQ"><span id="video-title">  Span Title  </span></div>
		<div video-id="abcdefghijk" title="Attr Title"></div>
		<div data-video-id="bbbbbbbbbbb"><a title="Anchor Title" href="/watch?v=bbbbbbbbbbb">link</a></div>
		<div data-video-id="ccccccccccc"><span class="video-title">Class Title</span></div>
		<div data-video-id="short"></div>
	</body></html>`

	cands, token, err := markupStrategy{}.extract(page)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token != "" {
		t.Errorf("expected no token from markup, got %q", token)
	}
	want := []Candidate{
		{VideoID: "dQw4w9WgXcQ", Title: "Span Title"},
		{VideoID: "abcdefghijk", Title: "Attr Title"},
		{VideoID: "bbbbbbbbbbb", Title: "Anchor Title"},
		{VideoID: "ccccccccccc", Title: "Class Title"},
	}
	if len(cands) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(cands), cands)
	}
	for i, w := range want {
		if cands[i] != w {
			t.Errorf("candidate %d: expected %+v, got %+v", i, w, cands[i])
		}
	}
}

func TestMarkupTitleSpanBeatsAttr(t *testing.T) {
	page := `<div data-video-id="dQw4w9WgXcQ" title="Attr Title"><span id="video-title">Span Title</span></div>`

	cands, _, err := markupStrategy{}.extract(page)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cands) != 1 || cands[0].Title != "Span Title" {
		t.Errorf("expected the span title to win, got %+v", cands)
	}
}

func TestMarkupMissingTitleKept(t *testing.T) {
	// Blocks without any resolvable title still produce a candidate here;
	// sanitize drops them at the parser level.
	page := `<div data-video-id="dQw4w9WgXcQ"></div>`

	cands, _, err := markupStrategy{}.extract(page)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cands) != 1 || cands[0].Title != "" {
		t.Errorf("expected one untitled candidate, got %+v", cands)
	}
}

func TestMarkupNoMatches(t *testing.T) {
	cands, _, err := markupStrategy{}.extract(`<html><body><p>plain page</p></body></html>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("expected no candidates, got %+v", cands)
	}
}
