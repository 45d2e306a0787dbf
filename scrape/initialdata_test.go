package scrape

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractInitialData(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		want    string
		wantErr error
	}{
		{
			name: "var assignment",
			page: `<script>var ytInitialData = {"a":1};</script>`,
			want: `{"a":1}`,
		},
		{
			name: "window assignment",
			page: `<script>window["ytInitialData"] = {"a":1};</script>`,
			want: `{"a":1}`,
		},
		{
			name: "marker mentioned before assignment",
			page: `<script>/* ytInitialData carries page state */ var ytInitialData = {"a":1};</script>`,
			want: `{"a":1}`,
		},
		{
			name: "braces inside strings",
			page: `var ytInitialData = {"t":"a } b { c"};`,
			want: `{"t":"a } b { c"}`,
		},
		{
			name: "escaped quotes inside strings",
			page: `var ytInitialData = {"t":"say \"hi\" }"};`,
			want: `{"t":"say \"hi\" }"}`,
		},
		{
			name: "nested objects",
			page: `var ytInitialData = {"a":{"b":{"c":1}},"d":2};`,
			want: `{"a":{"b":{"c":1}},"d":2}`,
		},
		{
			name:    "missing",
			page:    `<html><body>no blob</body></html>`,
			wantErr: ErrNoInitialData,
		},
		{
			name:    "unbalanced object",
			page:    `var ytInitialData = {"a":1`,
			wantErr: ErrNoInitialData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractInitialData(tt.page)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTextRunsPreference(t *testing.T) {
	runs := &textRuns{
		Runs:       []textRun{{Text: "Part One"}, {Text: " and Two"}},
		SimpleText: "Simple Form",
	}
	if got := runs.text(); got != "Part One and Two" {
		t.Errorf("expected joined runs, got %q", got)
	}

	simple := &textRuns{SimpleText: "Simple Form"}
	if got := simple.text(); got != "Simple Form" {
		t.Errorf("expected simple text, got %q", got)
	}

	var nilRuns *textRuns
	if got := nilRuns.text(); got != "" {
		t.Errorf("expected empty text from nil, got %q", got)
	}
}

func TestExtractRichGridLayout(t *testing.T) {
	page := `<html><body><script>var ytInitialData = {"contents":{"twoColumnBrowseResultsRenderer":{"tabs":[{"tabRenderer":{"selected":true,"content":{"richGridRenderer":{"contents":[` +
		`{"richItemRenderer":{"content":{"lockupViewModel":{"contentId":"AAAAAAAAAAA","metadata":{"lockupMetadataViewModel":{"title":{"content":"Lockup Title"}}}}}}},` +
		`{"richItemRenderer":{"content":{"videoRenderer":{"videoId":"dQw4w9WgXcQ","title":{"simpleText":"Renderer Title"}}}}},` +
		continuationItemJSON("tok-grid") +
		`]}}}}]}}};</script></body></html>`

	cands, token, err := initialDataStrategy{}.extract(page)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(cands), cands)
	}
	if cands[0].VideoID != "AAAAAAAAAAA" || cands[0].Title != "Lockup Title" {
		t.Errorf("expected lockup candidate, got %+v", cands[0])
	}
	if cands[1].VideoID != "dQw4w9WgXcQ" || cands[1].Title != "Renderer Title" {
		t.Errorf("expected renderer candidate, got %+v", cands[1])
	}
	if token != "tok-grid" {
		t.Errorf("expected token tok-grid, got %q", token)
	}
}

func TestExtractGridVideoRenderer(t *testing.T) {
	page := historyPage(`{"gridVideoRenderer":{"videoId":"bbbbbbbbbbb","title":{"runs":[{"text":"Grid Title"}]}}}`)

	cands, _, err := initialDataStrategy{}.extract(page)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cands) != 1 || cands[0].VideoID != "bbbbbbbbbbb" || cands[0].Title != "Grid Title" {
		t.Errorf("expected grid renderer candidate, got %+v", cands)
	}
}

func TestExtractHeadlineFallback(t *testing.T) {
	page := historyPage(`{"videoRenderer":{"videoId":"ccccccccccc","headline":{"simpleText":"Headline Title"}}}`)

	cands, _, err := initialDataStrategy{}.extract(page)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cands) != 1 || cands[0].Title != "Headline Title" {
		t.Errorf("expected headline title, got %+v", cands)
	}
}

func TestExtractContinuationAsSectionSibling(t *testing.T) {
	// The continuation renderer appears both inside item sections and as a
	// sibling entry in the section list; both positions must be seen.
	page := `<html><body><script>var ytInitialData = {"contents":{"twoColumnBrowseResultsRenderer":{"tabs":[{"tabRenderer":{"selected":true,"content":{"sectionListRenderer":{"contents":[` +
		`{"itemSectionRenderer":{"contents":[` + videoItemJSON("dQw4w9WgXcQ", "A Video") + `]}},` +
		continuationItemJSON("tok-sibling") +
		`]}}}}]}}};</script></body></html>`

	cands, token, err := initialDataStrategy{}.extract(page)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cands) != 1 {
		t.Errorf("expected 1 candidate, got %d", len(cands))
	}
	if token != "tok-sibling" {
		t.Errorf("expected token tok-sibling, got %q", token)
	}
}

func TestParseContinuationAppend(t *testing.T) {
	raw := []byte(`{"onResponseReceivedActions":[{"appendContinuationItemsAction":{"continuationItems":[` +
		videoItemJSON("dQw4w9WgXcQ", "Appended Video") + `,` + continuationItemJSON("tok-2") +
		`]}}]}`)

	res, err := ParseContinuation(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Title != "Appended Video" {
		t.Errorf("expected appended candidate, got %+v", res.Candidates)
	}
	if res.Continuation != "tok-2" {
		t.Errorf("expected token tok-2, got %q", res.Continuation)
	}
}

func TestParseContinuationReload(t *testing.T) {
	raw := []byte(`{"onResponseReceivedActions":[{"reloadContinuationItemsCommand":{"continuationItems":[` +
		videoItemJSON("abcdefghijk", "Reloaded Video") +
		`]}}]}`)

	res, err := ParseContinuation(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].VideoID != "abcdefghijk" {
		t.Errorf("expected reloaded candidate, got %+v", res.Candidates)
	}
	if res.Continuation != "" {
		t.Errorf("expected pagination end, got token %q", res.Continuation)
	}
}

func TestParseContinuationBadJSON(t *testing.T) {
	if _, err := ParseContinuation([]byte("<html>not json</html>")); err == nil {
		t.Error("expected decode error, got nil")
	}
}

func TestParseContinuationSanitizes(t *testing.T) {
	raw := []byte(`{"onResponseReceivedActions":[{"appendContinuationItemsAction":{"continuationItems":[` +
		strings.Join([]string{
			videoItemJSON("dQw4w9WgXcQ", "Tom &amp; Jerry"),
			videoItemJSON("bad", "Short ID"),
		}, ",") +
		`]}}]}`)

	res, err := ParseContinuation(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(res.Candidates))
	}
	if res.Candidates[0].Title != "Tom & Jerry" {
		t.Errorf("expected normalized title, got %q", res.Candidates[0].Title)
	}
}
