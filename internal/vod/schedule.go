package vod

import (
	"sort"
	"time"
)

const (
	// ManifestClipBound is the hard ceiling on manifest entries, independent
	// of playlist size. Callers needing a longer look-ahead poll again after
	// the anchor has advanced.
	ManifestClipBound = 128

	// includeGrace absorbs request/propagation latency: a clip instance is
	// still written to the manifest for one minute after it ends, so a
	// client requesting "now" never misses the currently-playing boundary.
	includeGrace = time.Minute

	day = 24 * time.Hour

	// emptyDayScanLimit bounds the walk across clipless days so a playlist
	// whose persisted clip lists violate the day-fill invariant can never
	// spin the walker forever.
	emptyDayScanLimit = 1000
)

// clipInstance is one occurrence of a clip in the infinite schedule.
type clipInstance struct {
	clip  Clip
	start time.Time
}

// scheduleWalker lazily produces the infinite sequence of clip instances for
// a playlist, day by day in the playlist's timezone. Each weekday's clip
// list repeats back-to-back from local midnight as many whole times as fit
// in 24h (exactly filling the day under the ingestion invariants).
type scheduleWalker struct {
	playlist *Playlist
	midnight time.Time // local midnight of the day being walked
	rep      int
	idx      int
	offset   time.Duration
}

// newScheduleWalker starts the walk at local midnight of the day containing
// from.
func newScheduleWalker(p *Playlist, from time.Time) *scheduleWalker {
	local := from.In(p.TZ.Location())
	y, m, d := local.Date()
	return &scheduleWalker{
		playlist: p,
		midnight: time.Date(y, m, d, 0, 0, 0, 0, local.Location()),
	}
}

func (w *scheduleWalker) nextDay() {
	w.midnight = w.midnight.AddDate(0, 0, 1)
	w.rep = 0
	w.idx = 0
	w.offset = 0
}

// next returns the next clip instance. ok is false only when no weekday can
// produce instances within the scan limit.
func (w *scheduleWalker) next() (clipInstance, bool) {
	emptyDays := 0
	for {
		clips := w.playlist.Clips[WeekdayOf(w.midnight)]
		total := totalDuration(clips)
		if len(clips) == 0 || total <= 0 || total > day {
			w.nextDay()
			if emptyDays++; emptyDays >= emptyDayScanLimit {
				return clipInstance{}, false
			}
			continue
		}
		if w.rep >= int(day/total) {
			w.nextDay()
			continue
		}
		inst := clipInstance{clip: clips[w.idx], start: w.midnight.Add(w.offset)}
		w.offset += clips[w.idx].View.Len()
		if w.idx++; w.idx == len(clips) {
			w.idx = 0
			w.rep++
		}
		return inst, true
	}
}

func totalDuration(clips []Clip) time.Duration {
	var total time.Duration
	for _, c := range clips {
		total += c.View.Len()
	}
	return total
}

// mutualResolutions returns the set of resolutions present on every clip.
// Heterogeneous playlists degrade to this lowest common denominator so all
// output sequences keep equal length.
func mutualResolutions(clips []Clip) []Resolution {
	if len(clips) == 0 {
		return nil
	}
	counts := make(map[Resolution]int)
	for _, c := range clips {
		for r := range c.Sources {
			counts[r]++
		}
	}
	var mutual []Resolution
	for r, n := range counts {
		if n == len(clips) {
			mutual = append(mutual, r)
		}
	}
	sort.Slice(mutual, func(i, j int) bool { return mutual[i] < mutual[j] })
	return mutual
}

// Schedule materializes the bounded manifest for p as of now, walking the
// infinite schedule from the continuity anchor (or from local midnight today
// when the playlist has never been scheduled).
//
// Schedule is pure: the advanced anchor is returned, not written back, and
// the caller is responsible for persisting it. A nil anchor means nothing
// was included and the stored anchor should be left as is. The scheduling
// walk itself cannot fail; the only error path is a source URL that is
// neither file:// nor http(s):// (a deployment configuration error).
func Schedule(p Playlist, now time.Time, prefixes PathPrefixes) (Set, *InitialPosition, error) {
	set := newSet(p)

	// Persisted state predating validation may carry a zero segment
	// duration; segment indices divide by it, so such a playlist schedules
	// nothing (same treatment as an over-full weekday).
	if p.SegmentDuration.Duration() <= 0 {
		return set, nil, nil
	}

	clips := p.allClips()
	mutual := mutualResolutions(clips)
	if len(mutual) == 0 {
		return set, nil, nil
	}

	sequences := make(map[Resolution]*Sequence, len(mutual))
	for _, r := range mutual {
		sequences[r] = &Sequence{
			ID:       r.Label(),
			Language: p.Lang,
			Label:    r.Label(),
			Clips:    []SourceClip{},
		}
	}

	anchorRef := now
	if p.Initial != nil {
		anchorRef = p.Initial.At
	}

	var (
		walker    = newScheduleWalker(&p, anchorRef)
		clipIdx   uint64
		segIdx    uint64
		newAnchor *InitialPosition
	)
	if p.Initial != nil {
		clipIdx = p.Initial.ClipIndex
		segIdx = p.Initial.SegmentIndex
	}

	for len(set.Durations) < ManifestClipBound {
		inst, ok := walker.next()
		if !ok {
			break
		}
		length := inst.clip.View.Len()

		// Skip-but-count: instances entirely in the past still advance the
		// counters (once the walk has reached the anchor) but are not
		// written out, so indices stay absolute across calls.
		if inst.start.Add(length + includeGrace).After(now) {
			if newAnchor == nil {
				ci, si := clipIdx, segIdx
				set.InitialClipIndex = &ci
				set.InitialSegmentIndex = &si
				newAnchor = &InitialPosition{ClipIndex: ci, SegmentIndex: si, At: inst.start}
			}
			set.ClipTimes = append(set.ClipTimes, inst.start.UnixMilli())
			set.Durations = append(set.Durations, length.Milliseconds())
			for _, r := range mutual {
				src := inst.clip.Sources[r]
				entry, err := sourceClip(src, inst.clip.View, prefixes)
				if err != nil {
					return Set{}, nil, err
				}
				sequences[r].Clips = append(sequences[r].Clips, entry)
			}
		}

		if p.Initial == nil || !inst.start.Before(p.Initial.At) {
			clipIdx++
			segIdx += uint64(length / p.SegmentDuration.Duration())
		}
	}

	for _, r := range mutual {
		set.Sequences = append(set.Sequences, *sequences[r])
	}
	return set, newAnchor, nil
}

// sourceClip builds the per-sequence manifest entry for one source file,
// preferring the local cache copy over the upstream URL.
func sourceClip(src Src, view ClipView, prefixes PathPrefixes) (SourceClip, error) {
	raw := src.URL
	if src.LocalURL != "" {
		raw = src.LocalURL
	}
	path, err := prefixes.rewriteSourcePath(raw)
	if err != nil {
		return SourceClip{}, err
	}
	entry := SourceClip{Type: "source", Path: path}
	if view.From > 0 {
		from := view.From.Milliseconds()
		entry.ClipFrom = &from
	}
	if view.To > 0 {
		to := view.To.Milliseconds()
		entry.ClipTo = &to
	}
	return entry, nil
}
