// Package title cleans and classifies display titles scraped from watch
// pages, browser history, and tab events. Scraped titles arrive with HTML
// entities, broken encodings, and placeholder text; everything downstream
// depends on the two functions here agreeing on what a usable title is.
package title

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	// bracketedOnly matches titles that are nothing but one bracketed or
	// parenthesized token, e.g. "[Deleted]" or "(Private)".
	bracketedOnly = regexp.MustCompile(`^(\[[^\]]*\]|\([^)]*\))$`)
	// numberedPlaceholder matches generated names like "Video 42".
	numberedPlaceholder = regexp.MustCompile(`(?i)^video\s*#?\d+$`)
)

// isPlaceholder reports whether a trimmed title is one of the exact
// placeholder strings served for pages without a real video title.
func isPlaceholder(t string) bool {
	switch strings.ToLower(t) {
	case "youtube", "www.youtube.com", "m.youtube.com", "youtube music",
		"untitled", "loading", "loading...", "loading…",
		"private video", "deleted video", "video unavailable", "error":
		return true
	}
	return false
}

// IsMeaningful reports whether a title says anything about the video.
// Empty strings, placeholders served for private or removed videos, and
// structural junk all fail.
func IsMeaningful(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	if utf8.RuneCountInString(t) < 2 {
		return false
	}
	if isPlaceholder(t) {
		return false
	}
	if bracketedOnly.MatchString(t) || numberedPlaceholder.MatchString(t) {
		return false
	}
	if !hasLetterOrDigit(t) {
		return false
	}
	return true
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// FromPageTitle extracts a video title from a browser document title by
// stripping the site suffix, then normalizing. Tab and page titles arrive
// as "Video Title - YouTube"; the longer suffix is tried first so music
// pages do not keep a dangling " - YouTube".
func FromPageTitle(pageTitle string) string {
	s := pageTitle
	for _, suf := range []string{" - YouTube Music", " - YouTube"} {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	return Normalize(s)
}

// Normalize repairs a scraped title for storage: mojibake repair first,
// then HTML entity decoding, then whitespace collapse. It never invents
// text; a title that normalizes to "" is empty.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := repairMojibake(raw)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// mojibakeSignatures are sequences that appear when UTF-8 text is decoded
// as Windows-1252: "â€™" for a curly quote, "Ã©" for é, and so on.
var mojibakeSignatures = []string{"â€", "Ã", "Â", "ðŸ"}

func mojibakeScore(s string) int {
	n := strings.Count(s, "�")
	for _, sig := range mojibakeSignatures {
		n += strings.Count(s, sig)
	}
	return n
}

// repairMojibake reverses a single round of UTF-8 bytes mis-decoded as
// Windows-1252. The repair is kept only when it verifiably helps: the
// re-encoded bytes must be valid UTF-8 and must score fewer mojibake
// signatures (or replacement chars) than the input. Legitimate text that
// merely looks suspicious round-trips to invalid UTF-8 and is left alone.
func repairMojibake(s string) string {
	score := mojibakeScore(s)
	if score == 0 {
		return s
	}
	repaired, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(repaired) {
		return s
	}
	if mojibakeScore(repaired) < score {
		return repaired
	}
	return s
}
