package vod

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Slug uniquely identifies a playlist. It is URL-safe by construction:
// lowercase alphanumeric runs separated by single hyphens.
type Slug string

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ParseSlug validates s and returns it as a Slug.
func ParseSlug(s string) (Slug, error) {
	if !slugPattern.MatchString(s) {
		return "", fmt.Errorf("%w: slug %q must match %s", ErrInvalidSpec, s, slugPattern)
	}
	return Slug(s), nil
}

// SegmentDuration is the mandatory cut granularity of every clip in a
// playlist, in whole seconds. Valid range is [5,30].
type SegmentDuration int

// DefaultSegmentDuration is used when a playlist specification omits the
// segment duration.
const DefaultSegmentDuration = SegmentDuration(10)

// ParseSegmentDuration parses a human duration string (e.g. "10s").
// An empty string yields DefaultSegmentDuration.
func ParseSegmentDuration(s string) (SegmentDuration, error) {
	if s == "" {
		return DefaultSegmentDuration, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: segment duration %q: %v", ErrInvalidSpec, s, err)
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("%w: segment duration %q must be whole seconds", ErrInvalidSpec, s)
	}
	sd := SegmentDuration(d / time.Second)
	if sd < 5 || sd > 30 {
		return 0, fmt.Errorf("%w: segment duration %q outside [5s,30s]", ErrInvalidSpec, s)
	}
	return sd, nil
}

// Duration returns the segment duration as a time.Duration.
func (d SegmentDuration) Duration() time.Duration { return time.Duration(d) * time.Second }

// UTCOffset is a fixed UTC offset in seconds. Playlists compute weekday
// boundaries and wall-clock scheduling in this offset; there is no DST.
type UTCOffset int

// ParseUTCOffset parses an RFC3339 numeric offset ("+03:00", "-05:30", "Z").
func ParseUTCOffset(s string) (UTCOffset, error) {
	if s == "Z" || s == "z" {
		return 0, nil
	}
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return 0, fmt.Errorf("%w: tz %q is not an RFC3339 offset", ErrInvalidSpec, s)
	}
	hh, err1 := strconv.Atoi(s[1:3])
	mm, err2 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || hh > 23 || mm > 59 {
		return 0, fmt.Errorf("%w: tz %q is not an RFC3339 offset", ErrInvalidSpec, s)
	}
	off := hh*3600 + mm*60
	if s[0] == '-' {
		off = -off
	}
	return UTCOffset(off), nil
}

// String renders the offset back to RFC3339 form.
func (o UTCOffset) String() string {
	sign := "+"
	v := int(o)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%02d:%02d", sign, v/3600, v%3600/60)
}

// Location returns a fixed time.Location for calendar arithmetic.
func (o UTCOffset) Location() *time.Location {
	return time.FixedZone("UTC"+o.String(), int(o))
}

// MarshalJSON implements json.Marshaler.
func (o UTCOffset) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(o.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *UTCOffset) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	parsed, err := ParseUTCOffset(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Weekday is the three-letter lowercase key used in playlist specifications
// and persisted state.
type Weekday string

const (
	Mon Weekday = "mon"
	Tue Weekday = "tue"
	Wed Weekday = "wed"
	Thu Weekday = "thu"
	Fri Weekday = "fri"
	Sat Weekday = "sat"
	Sun Weekday = "sun"
)

var weekdayByTime = map[time.Weekday]Weekday{
	time.Monday:    Mon,
	time.Tuesday:   Tue,
	time.Wednesday: Wed,
	time.Thursday:  Thu,
	time.Friday:    Fri,
	time.Saturday:  Sat,
	time.Sunday:    Sun,
}

// ParseWeekday validates a three-letter weekday key.
func ParseWeekday(s string) (Weekday, error) {
	switch w := Weekday(strings.ToLower(s)); w {
	case Mon, Tue, Wed, Thu, Fri, Sat, Sun:
		return w, nil
	default:
		return "", fmt.Errorf("%w: unknown weekday %q", ErrInvalidSpec, s)
	}
}

// WeekdayOf returns the Weekday key for an absolute time.
func WeekdayOf(t time.Time) Weekday { return weekdayByTime[t.Weekday()] }

// ParseClock parses a wall-clock offset of the form H:MM:SS (hours may
// exceed one digit). Used for clip from/to trim points.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q is not H:MM:SS", ErrInvalidSpec, s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil ||
		h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return 0, fmt.Errorf("%w: %q is not H:MM:SS", ErrInvalidSpec, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// Resolution is a video resolution in vertical pixels (e.g. 720).
type Resolution int

// Label renders the conventional resolution label ("720p").
func (r Resolution) Label() string { return strconv.Itoa(int(r)) + "p" }

// Src is one resolution-specific source file for a clip. URL is the
// authoritative upstream location; LocalURL is filled in asynchronously once
// the file cache holds a local copy (empty means "serve from upstream").
type Src struct {
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
	LocalURL string `json:"local_url,omitempty"`
}

// ClipView is the [From,To) time window into the source video.
type ClipView struct {
	From time.Duration
	To   time.Duration
}

// Len returns the playable length of the view.
func (v ClipView) Len() time.Duration { return v.To - v.From }

type clipViewJSON struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// MarshalJSON encodes the view as whole seconds.
func (v ClipView) MarshalJSON() ([]byte, error) {
	return json.Marshal(clipViewJSON{
		From: int64(v.From / time.Second),
		To:   int64(v.To / time.Second),
	})
}

// UnmarshalJSON decodes whole seconds.
func (v *ClipView) UnmarshalJSON(b []byte) error {
	var raw clipViewJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v.From = time.Duration(raw.From) * time.Second
	v.To = time.Duration(raw.To) * time.Second
	return nil
}

// Clip is one playable unit: a bounded excerpt of an upstream video with
// per-resolution source files.
type Clip struct {
	YouTubeID string             `json:"youtube_id"`
	Title     string             `json:"title"`
	View      ClipView           `json:"view"`
	Sources   map[Resolution]Src `json:"sources"`
}

func (c Clip) clone() Clip {
	out := c
	out.Sources = make(map[Resolution]Src, len(c.Sources))
	for r, s := range c.Sources {
		out.Sources[r] = s
	}
	return out
}

// InitialPosition is the continuity anchor: the clip and segment index that
// must be assigned to whatever plays at time At. Produced and advanced only
// by the scheduler; it is the sole mutable state that must survive restarts
// so already-playing clients are never renumbered.
type InitialPosition struct {
	ClipIndex    uint64    `json:"clip_index"`
	SegmentIndex uint64    `json:"segment_index"`
	At           time.Time `json:"at"`
}

// Playlist is one schedule for one audience: an ordered, looping clip list
// per weekday, played back-to-back with no gaps in the playlist's timezone.
type Playlist struct {
	Slug            Slug               `json:"slug"`
	Title           string             `json:"title"`
	Lang            string             `json:"lang"`
	TZ              UTCOffset          `json:"tz"`
	SegmentDuration SegmentDuration    `json:"segment_duration"`
	Initial         *InitialPosition   `json:"initial,omitempty"`
	Clips           map[Weekday][]Clip `json:"clips"`
}

// Clone returns a deep copy, safe to hand out or mutate independently.
func (p Playlist) Clone() Playlist {
	out := p
	if p.Initial != nil {
		initial := *p.Initial
		out.Initial = &initial
	}
	out.Clips = make(map[Weekday][]Clip, len(p.Clips))
	for day, clips := range p.Clips {
		copied := make([]Clip, len(clips))
		for i, c := range clips {
			copied[i] = c.clone()
		}
		out.Clips[day] = copied
	}
	return out
}

// allClips returns every clip across all weekdays, in no particular order.
func (p Playlist) allClips() []Clip {
	var out []Clip
	for _, clips := range p.Clips {
		out = append(out, clips...)
	}
	return out
}
