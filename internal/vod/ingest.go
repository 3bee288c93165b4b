package vod

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// ingestConcurrency caps concurrent metadata lookups during one playlist
// ingestion, bounding load on the external provider. Local to the call, not
// global.
const ingestConcurrency = 10

// SourceInfo is one resolution-specific file reported by the metadata
// provider.
type SourceInfo struct {
	Resolution Resolution
	MimeType   string
	URL        string
}

// VideoMetadata is the provider's description of one upstream video.
type VideoMetadata struct {
	Duration time.Duration
	Sources  []SourceInfo
}

// MetadataProvider resolves a video id to its full metadata. Implementations
// perform network I/O and must honor ctx.
type MetadataProvider interface {
	Video(ctx context.Context, id string) (VideoMetadata, error)
}

// ClipRequest is the client-submitted shape for one clip: a watch URL plus
// H:MM:SS trim points.
type ClipRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// PlaylistRequest is the client-submitted playlist specification. Slug is
// only consulted when the request path carries none.
type PlaylistRequest struct {
	Slug            string                   `json:"slug,omitempty"`
	Title           string                   `json:"title"`
	Lang            string                   `json:"lang"`
	TZ              string                   `json:"tz"`
	SegmentDuration string                   `json:"segmentDuration,omitempty"`
	Clips           map[string][]ClipRequest `json:"clips"`
}

// parseWatchID extracts the video id from a canonical watch URL, rejecting
// anything that is not an http(s) youtube.com/watch?v=... link.
func parseWatchID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: url %q: %v", ErrInvalidSpec, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: url %q: scheme must be http or https", ErrInvalidSpec, raw)
	}
	switch u.Host {
	case "youtube.com", "www.youtube.com", "m.youtube.com":
	default:
		return "", fmt.Errorf("%w: url %q: unexpected host %q", ErrInvalidSpec, raw, u.Host)
	}
	if u.Path != "/watch" {
		return "", fmt.Errorf("%w: url %q: expected /watch path", ErrInvalidSpec, raw)
	}
	id := u.Query().Get("v")
	if id == "" {
		return "", fmt.Errorf("%w: url %q: missing v query parameter", ErrInvalidSpec, raw)
	}
	return id, nil
}

// IngestClip resolves a clip request into a fully-described Clip, validating
// its timing against the provider-reported duration and the playlist's
// segment duration.
func IngestClip(ctx context.Context, provider MetadataProvider, sd SegmentDuration, req ClipRequest) (Clip, error) {
	if req.Title == "" {
		return Clip{}, fmt.Errorf("%w: clip title must not be empty", ErrInvalidSpec)
	}
	id, err := parseWatchID(req.URL)
	if err != nil {
		return Clip{}, err
	}
	from, err := ParseClock(req.From)
	if err != nil {
		return Clip{}, fmt.Errorf("clip %q from: %w", req.Title, err)
	}
	to, err := ParseClock(req.To)
	if err != nil {
		return Clip{}, fmt.Errorf("clip %q to: %w", req.Title, err)
	}

	meta, err := provider.Video(ctx, id)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: video %s: %v", ErrUpstreamUnavailable, id, err)
	}

	switch {
	case from >= meta.Duration:
		return Clip{}, fmt.Errorf("%w: clip %q: from %s is beyond video duration %s", ErrInvalidSpec, req.Title, from, meta.Duration)
	case to > meta.Duration:
		return Clip{}, fmt.Errorf("%w: clip %q: to %s is beyond video duration %s", ErrInvalidSpec, req.Title, to, meta.Duration)
	case to-from < time.Second:
		return Clip{}, fmt.Errorf("%w: clip %q: view must be at least 1s", ErrInvalidSpec, req.Title)
	case (to-from)%sd.Duration() != 0:
		return Clip{}, fmt.Errorf("%w: clip %q: view length %s not divisible by segment duration %s", ErrInvalidSpec, req.Title, to-from, sd.Duration())
	}

	sources := make(map[Resolution]Src, len(meta.Sources))
	for _, s := range meta.Sources {
		sources[s.Resolution] = Src{MimeType: s.MimeType, URL: s.URL}
	}
	return Clip{
		YouTubeID: id,
		Title:     req.Title,
		View:      ClipView{From: from, To: to},
		Sources:   sources,
	}, nil
}

// IngestPlaylist resolves a playlist specification into a Playlist, fanning
// clip metadata lookups out with bounded concurrency. Any single clip
// failure aborts the whole ingestion with that clip's error. The returned
// playlist has no continuity anchor; the first scheduling call establishes
// one.
func IngestPlaylist(ctx context.Context, provider MetadataProvider, slug Slug, req PlaylistRequest) (Playlist, error) {
	if req.Title == "" {
		return Playlist{}, fmt.Errorf("%w: playlist title must not be empty", ErrInvalidSpec)
	}
	tz, err := ParseUTCOffset(req.TZ)
	if err != nil {
		return Playlist{}, err
	}
	sd, err := ParseSegmentDuration(req.SegmentDuration)
	if err != nil {
		return Playlist{}, err
	}

	type slot struct {
		day Weekday
		idx int
	}
	var (
		slots    []slot
		requests []ClipRequest
	)
	clips := make(map[Weekday][]Clip)
	for rawDay, dayReqs := range req.Clips {
		weekday, err := ParseWeekday(rawDay)
		if err != nil {
			return Playlist{}, err
		}
		clips[weekday] = make([]Clip, len(dayReqs))
		for i, r := range dayReqs {
			slots = append(slots, slot{day: weekday, idx: i})
			requests = append(requests, r)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for i := range requests {
		i := i
		g.Go(func() error {
			clip, err := IngestClip(gctx, provider, sd, requests[i])
			if err != nil {
				return err
			}
			clips[slots[i].day][slots[i].idx] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Playlist{}, err
	}

	for weekday, dayClips := range clips {
		if len(dayClips) == 0 {
			continue
		}
		total := totalDuration(dayClips)
		if total > day {
			return Playlist{}, fmt.Errorf("%w: %s clips total %s exceeds 24h", ErrInvalidSpec, weekday, total)
		}
		if day%total != 0 {
			return Playlist{}, fmt.Errorf("%w: %s clips total %s does not divide 24h evenly", ErrInvalidSpec, weekday, total)
		}
	}

	return Playlist{
		Slug:            slug,
		Title:           req.Title,
		Lang:            req.Lang,
		TZ:              tz,
		SegmentDuration: sd,
		Clips:           clips,
	}, nil
}
