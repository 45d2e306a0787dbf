package ytwatch

import (
	"ytwatch/history"
	"ytwatch/http"
	"ytwatch/retry"
	"ytwatch/scrape"
	"ytwatch/storage"
	"ytwatch/watch"
)

// Error handling types exported for library users.
//
// All error types support the standard error handling patterns:
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, ytwatch.ErrNotFound) {
//		fmt.Println("never watched")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var storeErr *ytwatch.StorageError
//	if errors.As(err, &storeErr) {
//		fmt.Printf("store %s failed: %v\n", storeErr.Op, storeErr.Err)
//	}

// StorageError wraps errors during store operations.
type StorageError = storage.StorageError

// Sentinel errors exported from sub-packages.
var (
	// ErrNotFound indicates no record exists for the video id.
	ErrNotFound = storage.ErrNotFound
	// ErrInvalidRecord indicates a record failed validation on write.
	ErrInvalidRecord = storage.ErrInvalidRecord
	// ErrClosed indicates an operation on a closed store.
	ErrClosed = storage.ErrClosed
	// ErrSnapshotCorrupt indicates a snapshot file could not be decoded.
	ErrSnapshotCorrupt = storage.ErrSnapshotCorrupt

	// ErrInvalidVideoID indicates a malformed video id on a direct call.
	ErrInvalidVideoID = watch.ErrInvalidVideoID
	// ErrInvalidTimestamp indicates a negative watch timestamp.
	ErrInvalidTimestamp = watch.ErrInvalidTimestamp
	// ErrInvalidViewCount indicates a negative view count.
	ErrInvalidViewCount = watch.ErrInvalidViewCount

	// ErrNoCandidates indicates a page yielded neither candidates nor a
	// continuation token.
	ErrNoCandidates = scrape.ErrNoCandidates

	// ErrHistoryReadOnly indicates an attempted write to browser history.
	ErrHistoryReadOnly = history.ErrReadOnly

	// ErrAuthRequired indicates the session is logged out; fetches will
	// keep failing until the user refreshes cookies.
	ErrAuthRequired = retry.ErrAuthRequired

	// ErrCircuitOpen indicates the fetch client has tripped its circuit
	// breaker for the target domain.
	ErrCircuitOpen = http.ErrCircuitOpen
)

// IsRetryable reports whether an error is worth retrying. Permanent
// conditions such as ErrAuthRequired and context cancellation are not.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
