// Package watch holds the record merge policies. Every mutation of the
// store funnels through the three operations here: Lookup reads, Ensure
// merges metadata without asserting a view, Mark asserts a confirmed view.
// The bulk importer is the single exception; it upserts trusted data
// directly.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ytwatch/metrics"
	"ytwatch/storage"
	"ytwatch/title"
)

// Validation sentinels. These are caller contract violations and fail fast,
// unlike environmental failures which degrade.
var (
	ErrInvalidVideoID   = errors.New("watch: invalid video id")
	ErrInvalidTimestamp = errors.New("watch: timestamp must not be negative")
	ErrInvalidViewCount = errors.New("watch: view count must not be negative")
)

// DefaultCooldown is the minimum gap between view-count increments for the
// same record. Marks inside the window advance the timestamp only, so rapid
// navigation and playback signals for one viewing session count once.
const DefaultCooldown = 30 * time.Second

// Config controls merge behavior.
type Config struct {
	// Cooldown overrides DefaultCooldown.
	Cooldown time.Duration
	// Now supplies the current time. Tests substitute a fixed clock.
	Now    func() time.Time
	Logger *zap.Logger
}

// DefaultConfig returns the production configuration.
func DefaultConfig() *Config {
	return &Config{
		Cooldown: DefaultCooldown,
		Now:      time.Now,
		Logger:   zap.NewNop(),
	}
}

// Service applies the merge policies against a store.
type Service struct {
	store    storage.Store
	cooldown time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewService returns a merge service over store. A nil cfg means defaults.
func NewService(store storage.Store, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Service{
		store:    store,
		cooldown: cfg.Cooldown,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
	if s.cooldown <= 0 {
		s.cooldown = DefaultCooldown
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// LookupRequest asks for one record by video ID.
type LookupRequest struct {
	VideoID string
}

// EnsureRequest merges observed metadata without asserting a view happened.
// Zero WatchedAt and ViewCount mean "not observed" and only influence the
// created record's initial values.
type EnsureRequest struct {
	VideoID   string
	Title     string
	WatchedAt int64
	ViewCount int
}

// MarkRequest asserts a confirmed viewing event. Zero WatchedAt means now.
type MarkRequest struct {
	VideoID   string
	Title     string
	WatchedAt int64
}

// MergeOutcome reports what a merge operation did.
type MergeOutcome struct {
	Record storage.VideoRecord
	// Created is set when the record did not exist before the call.
	Created bool
	// Updated is set when an existing record was changed and persisted.
	Updated bool
}

// ValidateVideoID checks the 11-character ID shape every operation
// requires. Invalid IDs are rejected before the store is touched.
func ValidateVideoID(id string) error {
	if !storage.ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidVideoID, id)
	}
	return nil
}

// Lookup returns the stored record for req.VideoID, or storage.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (*storage.VideoRecord, error) {
	if err := ValidateVideoID(req.VideoID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, req.VideoID)
}

// Ensure gets or creates the record for req.VideoID. An existing record
// keeps its timestamp and count; only the title can improve. A meaningful
// observed title always replaces a different stored one, and a non-empty
// observed title replaces a stored title that is itself not meaningful.
// The record is persisted only when the title actually changed.
func (s *Service) Ensure(ctx context.Context, req EnsureRequest) (*MergeOutcome, error) {
	if err := validateObservation(req.VideoID, req.WatchedAt, req.ViewCount); err != nil {
		return nil, err
	}
	observed := title.Normalize(req.Title)

	rec, err := s.store.Get(ctx, req.VideoID)
	if errors.Is(err, storage.ErrNotFound) {
		created := s.newRecord(req.VideoID, observed, req.WatchedAt, req.ViewCount)
		if err := s.store.Put(ctx, created); err != nil {
			return nil, err
		}
		s.logger.Debug("record created",
			zap.String("video_id", created.ID),
			zap.Bool("titled", created.Title != ""))
		return &MergeOutcome{Record: created, Created: true}, nil
	}
	if err != nil {
		return nil, err
	}

	next, changed := preferTitle(rec.Title, observed)
	if !changed {
		return &MergeOutcome{Record: *rec}, nil
	}
	rec.Title = next
	if err := s.store.Put(ctx, *rec); err != nil {
		return nil, err
	}
	s.logger.Debug("record title updated", zap.String("video_id", rec.ID))
	return &MergeOutcome{Record: *rec, Updated: true}, nil
}

// Mark records a confirmed view. The timestamp always advances to
// req.WatchedAt or now. The view count increments only when the previous
// watch lies at least one cooldown in the past.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (*MergeOutcome, error) {
	if err := validateObservation(req.VideoID, req.WatchedAt, 0); err != nil {
		return nil, err
	}
	observed := title.Normalize(req.Title)
	now := s.now().UnixMilli()
	watchedAt := req.WatchedAt
	if watchedAt == 0 {
		watchedAt = now
	}

	rec, err := s.store.Get(ctx, req.VideoID)
	if errors.Is(err, storage.ErrNotFound) {
		created := s.newRecord(req.VideoID, observed, watchedAt, 0)
		if err := s.store.Put(ctx, created); err != nil {
			return nil, err
		}
		s.logger.Debug("record created",
			zap.String("video_id", created.ID),
			zap.Bool("titled", created.Title != ""))
		return &MergeOutcome{Record: created, Created: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if next, changed := preferTitle(rec.Title, observed); changed {
		rec.Title = next
	}
	if now-rec.LastWatchedAt >= s.cooldown.Milliseconds() {
		rec.ViewCount++
	} else {
		metrics.MarksCooldownSkipped.Inc()
		s.logger.Debug("view inside cooldown window, count unchanged",
			zap.String("video_id", rec.ID))
	}
	rec.LastWatchedAt = watchedAt
	if err := s.store.Put(ctx, *rec); err != nil {
		return nil, err
	}
	return &MergeOutcome{Record: *rec, Updated: true}, nil
}

// newRecord builds the create-form of a record: title kept only when
// meaningful, timestamp defaulting to now, count defaulting to one.
func (s *Service) newRecord(id, observedTitle string, watchedAt int64, viewCount int) storage.VideoRecord {
	rec := storage.VideoRecord{ID: id, LastWatchedAt: watchedAt, ViewCount: viewCount}
	if title.IsMeaningful(observedTitle) {
		rec.Title = observedTitle
	}
	if rec.LastWatchedAt == 0 {
		rec.LastWatchedAt = s.now().UnixMilli()
	}
	if rec.ViewCount == 0 {
		rec.ViewCount = 1
	}
	return rec
}

// preferTitle decides which title to keep. A meaningful observation wins; a
// non-meaningful stored title yields to any non-empty observation, which
// deliberately lets one placeholder replace another rather than leaving a
// known-bad title in place.
func preferTitle(stored, observed string) (string, bool) {
	if observed == stored {
		return stored, false
	}
	if title.IsMeaningful(observed) {
		return observed, true
	}
	if !title.IsMeaningful(stored) && observed != "" {
		return observed, true
	}
	return stored, false
}

func validateObservation(id string, watchedAt int64, viewCount int) error {
	if err := ValidateVideoID(id); err != nil {
		return err
	}
	if watchedAt < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimestamp, watchedAt)
	}
	if viewCount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidViewCount, viewCount)
	}
	return nil
}
