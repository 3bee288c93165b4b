package vod

import (
	"fmt"
	"net/url"
)

// Manifest types matching the JSON consumed by the streaming-media server
// (nginx-vod-module mapped mode). Output-only; never persisted.

// Set is the bounded manifest for one playlist: parallel durations/clipTimes
// arrays plus one equal-length Sequence per mutual resolution.
type Set struct {
	ID                  string     `json:"id"`
	PlaylistType        string     `json:"playlistType"`
	Discontinuity       bool       `json:"discontinuity"`
	SegmentDuration     int64      `json:"segmentDuration"` // ms
	InitialClipIndex    *uint64    `json:"initialClipIndex,omitempty"`
	InitialSegmentIndex *uint64    `json:"initialSegmentIndex,omitempty"`
	Durations           []int64    `json:"durations"` // ms, at most ManifestClipBound entries
	ClipTimes           []int64    `json:"clipTimes"` // unix ms, same length as Durations
	Sequences           []Sequence `json:"sequences"`
}

// Sequence is one resolution's run of clips.
type Sequence struct {
	ID       string       `json:"id"`
	Language string       `json:"language"`
	Label    string       `json:"label"`
	Clips    []SourceClip `json:"clips"`
}

// SourceClip points the media server at one trimmed source file.
type SourceClip struct {
	Type     string `json:"type"` // always "source"
	Path     string `json:"path"`
	ClipFrom *int64 `json:"clipFrom,omitempty"` // ms
	ClipTo   *int64 `json:"clipTo,omitempty"`   // ms
}

// PathPrefixes configures how source URLs are rewritten into media-server
// paths: Local fronts files the cache has materialized, Remote fronts the
// reverse proxy for upstream sources.
type PathPrefixes struct {
	Local  string
	Remote string
}

// rewriteSourcePath maps a source URL to the path the media server should
// request. file:// sources serve from the local prefix, http(s):// sources
// from the remote-proxying prefix. Any other scheme is a configuration
// error.
func (p PathPrefixes) rewriteSourcePath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("source url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		return p.Local + u.Path, nil
	case "http", "https":
		path := p.Remote + "/" + u.Host + u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		return path, nil
	default:
		return "", fmt.Errorf("source url %q: unsupported scheme %q", raw, u.Scheme)
	}
}

// newSet returns a manifest shell for a playlist with no clips scheduled yet.
func newSet(p Playlist) Set {
	return Set{
		ID:              string(p.Slug),
		PlaylistType:    "live",
		Discontinuity:   true,
		SegmentDuration: p.SegmentDuration.Duration().Milliseconds(),
		Durations:       []int64{},
		ClipTimes:       []int64{},
		Sequences:       []Sequence{},
	}
}
