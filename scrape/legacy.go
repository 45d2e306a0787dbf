package scrape

import (
	"encoding/json"
	"regexp"
)

// legacyStrategy is the last-resort flat scan over raw page text. It knows
// nothing about document structure beyond the key patterns themselves, so it
// survives markup reshuffles that break the other strategies.
type legacyStrategy struct{}

func (legacyStrategy) name() string { return "legacy" }

var legacyVideoIDPattern = regexp.MustCompile(`"videoId"\s*:\s*"([A-Za-z0-9_-]{11})"`)

// legacyTitlePatterns are tried in order against the text following a
// videoId match: structured runs first, then simpleText, then a bare title
// key.
var legacyTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"title"\s*:\s*\{\s*"runs"\s*:\s*\[\s*\{\s*"text"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`"title"\s*:\s*\{\s*"simpleText"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`"title"\s*:\s*"((?:[^"\\]|\\.)*)"`),
}

// legacyTitleWindow bounds how far past a videoId match a title may sit and
// still be attributed to the same item.
const legacyTitleWindow = 2000

func (legacyStrategy) extract(raw string) ([]Candidate, string, error) {
	matches := legacyVideoIDPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return nil, "", nil
	}
	cands := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		id := raw[m[2]:m[3]]
		window := raw[m[1]:min(m[1]+legacyTitleWindow, len(raw))]
		cands = append(cands, Candidate{VideoID: id, Title: legacyTitle(window)})
	}
	return cands, "", nil
}

func legacyTitle(window string) string {
	for _, pat := range legacyTitlePatterns {
		if m := pat.FindStringSubmatch(window); m != nil {
			return unescapeJSON(m[1])
		}
	}
	return ""
}

// unescapeJSON decodes JSON string escapes in s, returning s unchanged when
// it is not a valid JSON string body.
func unescapeJSON(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
