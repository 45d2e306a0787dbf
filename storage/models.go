package storage

import "regexp"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidID reports whether id is a well-formed YouTube video ID: exactly
// eleven characters from the URL-safe base64 alphabet.
func ValidID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// VideoRecord is one watched video and the facts reconciled about it.
// The zero LastWatchedAt means the watch time is unknown.
type VideoRecord struct {
	// ID is the 11-character YouTube video ID. It is the store key and
	// never changes once the record exists.
	ID string `json:"id"`
	// Title is the best display title seen so far. May be empty when no
	// source has produced a usable title yet.
	Title string `json:"title"`
	// LastWatchedAt is the most recent watch time in epoch milliseconds.
	LastWatchedAt int64 `json:"last_watched_at"`
	// ViewCount is how many distinct watches have been recorded. At least 1
	// for any existing record, and it never decreases.
	ViewCount int `json:"view_count"`
}
