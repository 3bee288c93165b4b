package vod

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Store holds the authoritative in-memory collection of playlists, guarded
// for read-heavy/write-light access, with whole-file JSON persistence.
// Every mutating operation persists the full collection before committing
// the in-memory swap, so a crash mid-persist never leaves memory and disk
// disagreeing in a way that resurrects a stale schedule after restart.
type Store struct {
	mu        sync.RWMutex
	path      string
	playlists map[Slug]Playlist
}

// Open loads the persisted collection from path. A missing or empty file is
// an empty collection; present-but-malformed contents fail with
// ErrCorruptState (the process must not proceed with a silently-empty state
// when corruption, not absence, is the cause).
func Open(path string) (*Store, error) {
	s := &Store{path: path, playlists: make(map[Slug]Playlist)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.playlists); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	for slug, p := range s.playlists {
		if p.SegmentDuration < 5 || p.SegmentDuration > 30 {
			return nil, fmt.Errorf("%w: %s: playlist %s has segment duration %d",
				ErrCorruptState, path, slug, p.SegmentDuration)
		}
	}
	return s, nil
}

// Playlist returns a deep copy of the playlist stored under slug.
func (s *Store) Playlist(slug Slug) (Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.playlists[slug]
	if !ok {
		return Playlist{}, false
	}
	return p.Clone(), true
}

// Playlists returns a deep copy of the whole collection.
func (s *Store) Playlists() map[Slug]Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneCollection(s.playlists)
}

// Len returns the number of stored playlists. Used for metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.playlists)
}

// ReplacePlaylist upserts p by slug, persisting synchronously before the
// in-memory swap. On ErrPersistFailed the in-memory state is unchanged.
func (s *Store) ReplacePlaylist(p Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneCollection(s.playlists)
	next[p.Slug] = p.Clone()
	return s.commitLocked(next)
}

// SetInitialPosition updates the continuity anchor of the playlist stored
// under slug, persisting as ReplacePlaylist does. A missing slug is a no-op
// so an in-flight scheduling pass never resurrects a concurrently deleted
// playlist.
func (s *Store) SetInitialPosition(slug Slug, pos *InitialPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.playlists[slug]; !ok {
		return nil
	}
	next := cloneCollection(s.playlists)
	p := next[slug]
	if pos != nil {
		cp := *pos
		p.Initial = &cp
	} else {
		p.Initial = nil
	}
	next[slug] = p
	return s.commitLocked(next)
}

// DeletePlaylist removes slug if present (no-op otherwise), persisting as
// ReplacePlaylist does.
func (s *Store) DeletePlaylist(slug Slug) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.playlists[slug]; !ok {
		return nil
	}
	next := cloneCollection(s.playlists)
	delete(next, slug)
	return s.commitLocked(next)
}

// ReplaceAll swaps in a whole new collection with the same persistence
// discipline. Used by the bulk background refresh jobs; last successful
// commit wins.
func (s *Store) ReplaceAll(collection map[Slug]Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commitLocked(cloneCollection(collection))
}

// commitLocked persists next and, only on success, makes it the in-memory
// collection. Caller must hold mu in write mode.
func (s *Store) commitLocked(next map[Slug]Playlist) error {
	if err := persist(s.path, next); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	s.playlists = next
	return nil
}

// persist writes the whole collection with write-then-rename discipline so a
// reader never observes a torn file.
func persist(path string, collection map[Slug]Playlist) error {
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func cloneCollection(in map[Slug]Playlist) map[Slug]Playlist {
	out := make(map[Slug]Playlist, len(in))
	for slug, p := range in {
		out[slug] = p.Clone()
	}
	return out
}
