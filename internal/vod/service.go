package vod

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vod-scheduler/internal/platform/metrics"
)

// Default background loop intervals.
const (
	DefaultSourceRefreshInterval   = 10 * time.Second
	DefaultPositionRefreshInterval = time.Minute
)

// SourceCache resolves an upstream source URL to a local file path once a
// cached copy exists. A miss may trigger an asynchronous download; the next
// refresh picks the file up.
type SourceCache interface {
	Resolve(url string) (path string, ok bool)
}

// Service ties the state store, metadata provider, file cache and scheduler
// together, and runs the periodic refresh jobs.
type Service struct {
	store    *Store
	provider MetadataProvider
	cache    SourceCache
	prefixes PathPrefixes
	log      *slog.Logger
	metrics  *metrics.Metrics

	// now is swappable for tests.
	now func() time.Time
}

// NewService wires a Service. cache may be nil to disable local source
// backfill (sources then always serve from upstream); m may be nil to
// disable metric recording.
func NewService(store *Store, provider MetadataProvider, cache SourceCache, prefixes PathPrefixes, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		provider: provider,
		cache:    cache,
		prefixes: prefixes,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Manifest schedules the playlist stored under slug and returns its bounded
// manifest. The advanced continuity anchor is committed back to the store;
// a failed commit is logged but never fails the request, since the manifest
// itself is already correct for this instant.
func (s *Service) Manifest(slug Slug) (Set, bool, error) {
	p, ok := s.store.Playlist(slug)
	if !ok {
		return Set{}, false, nil
	}

	set, anchor, err := Schedule(p, s.now(), s.prefixes)
	if err != nil {
		return Set{}, true, err
	}

	if anchor != nil {
		if err := s.store.SetInitialPosition(slug, anchor); err != nil {
			s.log.Warn("anchor commit failed",
				slog.String("slug", string(slug)),
				slog.String("error", err.Error()))
		}
	}
	return set, true, nil
}

// Upsert ingests a playlist specification and replaces whatever is stored
// under slug. Ingestion failure leaves the prior stored playlist untouched.
func (s *Service) Upsert(ctx context.Context, slug Slug, req PlaylistRequest) (Playlist, error) {
	p, err := IngestPlaylist(ctx, s.provider, slug, req)
	if err != nil {
		return Playlist{}, err
	}
	if err := s.store.ReplacePlaylist(p); err != nil {
		return Playlist{}, err
	}
	return p, nil
}

// Delete removes the playlist stored under slug; idempotent.
func (s *Service) Delete(slug Slug) error {
	return s.store.DeletePlaylist(slug)
}

// Playlist returns the stored playlist under slug.
func (s *Service) Playlist(slug Slug) (Playlist, bool) {
	return s.store.Playlist(slug)
}

// Playlists returns the whole stored collection.
func (s *Service) Playlists() map[Slug]Playlist {
	return s.store.Playlists()
}

// RefreshSources re-resolves every clip source's local-cache URL against the
// file cache and commits the result with a full-collection replace.
func (s *Service) RefreshSources(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	collection := s.store.Playlists()
	changed := false
	for _, p := range collection {
		for _, clips := range p.Clips {
			for i := range clips {
				for res, src := range clips[i].Sources {
					path, ok := s.cache.Resolve(src.URL)
					if !ok {
						continue
					}
					local := "file://" + path
					if src.LocalURL != local {
						src.LocalURL = local
						clips[i].Sources[res] = src
						changed = true
					}
				}
			}
		}
	}
	if !changed {
		return nil
	}
	return s.store.ReplaceAll(collection)
}

// RefreshPositions re-runs the scheduler for every playlist so continuity
// anchors keep advancing and get persisted even absent requests. A single
// playlist's failure is logged and skipped, never aborting the sweep.
func (s *Service) RefreshPositions(ctx context.Context) error {
	now := s.now()
	var firstErr error
	for slug, p := range s.store.Playlists() {
		_, anchor, err := Schedule(p, now, s.prefixes)
		if err != nil {
			s.log.Warn("position refresh failed",
				slog.String("slug", string(slug)),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if anchor == nil {
			continue
		}
		if err := s.store.SetInitialPosition(slug, anchor); err != nil {
			s.log.Warn("position refresh commit failed",
				slog.String("slug", string(slug)),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RunSourceRefresh runs the cache backfill loop until ctx is cancelled.
func (s *Service) RunSourceRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSourceRefreshInterval
	}
	s.runEvery(ctx, interval, "source_refresh", s.RefreshSources)
}

// RunPositionRefresh runs the anchor advancement loop until ctx is
// cancelled.
func (s *Service) RunPositionRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPositionRefreshInterval
	}
	s.runEvery(ctx, interval, "position_refresh", s.RefreshPositions)
}

// runEvery drives one background job. Each iteration runs under a recover
// so an unexpected fault is an iteration failure, not a process failure.
func (s *Service) runEvery(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runIteration(ctx, fn); err != nil {
				s.log.Error("background job iteration failed",
					slog.String("job", name),
					slog.String("error", err.Error()))
				if s.metrics != nil {
					s.metrics.IncRefreshFailures()
				}
			}
		}
	}
}

func (s *Service) runIteration(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
