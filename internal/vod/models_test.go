package vod

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseSlug(t *testing.T) {
	for _, valid := range []string{"a", "late-night", "mix-24-7", "x9"} {
		if _, err := ParseSlug(valid); err != nil {
			t.Errorf("ParseSlug(%q): unexpected error %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "-lead", "trail-", "double--dash", "UPPER", "under_score", "sp ace"} {
		_, err := ParseSlug(invalid)
		if !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("ParseSlug(%q): expected ErrInvalidSpec, got %v", invalid, err)
		}
	}
}

func TestParseSegmentDuration(t *testing.T) {
	t.Run("default_when_empty", func(t *testing.T) {
		sd, err := ParseSegmentDuration("")
		if err != nil || sd != DefaultSegmentDuration {
			t.Errorf("got %v, %v; want 10s default", sd, err)
		}
	})

	t.Run("valid_range", func(t *testing.T) {
		for in, want := range map[string]SegmentDuration{"5s": 5, "10s": 10, "30s": 30} {
			sd, err := ParseSegmentDuration(in)
			if err != nil || sd != want {
				t.Errorf("ParseSegmentDuration(%q) = %v, %v; want %v", in, sd, err, want)
			}
		}
	})

	t.Run("rejects_out_of_range_and_fractional", func(t *testing.T) {
		for _, in := range []string{"4s", "31s", "2m", "1500ms", "bogus"} {
			_, err := ParseSegmentDuration(in)
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("ParseSegmentDuration(%q): expected ErrInvalidSpec, got %v", in, err)
			}
		}
	})
}

func TestParseUTCOffset(t *testing.T) {
	cases := map[string]UTCOffset{
		"Z":      0,
		"+00:00": 0,
		"+03:00": 3 * 3600,
		"-05:30": -(5*3600 + 30*60),
	}
	for in, want := range cases {
		got, err := ParseUTCOffset(in)
		if err != nil || got != want {
			t.Errorf("ParseUTCOffset(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "03:00", "+3:00", "+25:00", "UTC"} {
		if _, err := ParseUTCOffset(in); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("ParseUTCOffset(%q): expected ErrInvalidSpec, got %v", in, err)
		}
	}
}

func TestUTCOffset_json_roundtrip(t *testing.T) {
	off, _ := ParseUTCOffset("-05:30")
	b, err := json.Marshal(off)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"-05:30"` {
		t.Errorf("marshal: got %s", b)
	}
	var back UTCOffset
	if err := json.Unmarshal(b, &back); err != nil || back != off {
		t.Errorf("unmarshal: got %v, %v", back, err)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"0:00:00":  0,
		"0:30:00":  30 * time.Minute,
		"1:05:09":  time.Hour + 5*time.Minute + 9*time.Second,
		"26:00:00": 26 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Errorf("ParseClock(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "90", "1:2:3", "0:61:00", "0:00:99", "a:bb:cc"} {
		if _, err := ParseClock(in); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("ParseClock(%q): expected ErrInvalidSpec, got %v", in, err)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	if d, err := ParseWeekday("MON"); err != nil || d != Mon {
		t.Errorf("ParseWeekday(MON) = %v, %v", d, err)
	}
	if _, err := ParseWeekday("monday"); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("expected ErrInvalidSpec, got %v", err)
	}
}

func TestWeekdayOf(t *testing.T) {
	// 2024-01-01 was a Monday.
	if d := WeekdayOf(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)); d != Mon {
		t.Errorf("WeekdayOf: got %v, want mon", d)
	}
	if d := WeekdayOf(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)); d != Sun {
		t.Errorf("WeekdayOf: got %v, want sun", d)
	}
}

func TestPlaylist_Clone_is_deep(t *testing.T) {
	p := Playlist{
		Slug:            "demo",
		Title:           "Demo",
		SegmentDuration: 10,
		Initial:         &InitialPosition{ClipIndex: 7},
		Clips: map[Weekday][]Clip{
			Mon: {{
				YouTubeID: "abc",
				View:      ClipView{From: 0, To: time.Minute},
				Sources:   map[Resolution]Src{720: {URL: "http://u/x.mp4"}},
			}},
		},
	}
	c := p.Clone()
	c.Initial.ClipIndex = 99
	c.Clips[Mon][0].Sources[720] = Src{URL: "mutated"}

	if p.Initial.ClipIndex != 7 {
		t.Error("Clone shared the initial position")
	}
	if p.Clips[Mon][0].Sources[720].URL != "http://u/x.mp4" {
		t.Error("Clone shared the sources map")
	}
}

func TestClipView_json_as_seconds(t *testing.T) {
	v := ClipView{From: 90 * time.Second, To: 30 * time.Minute}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"from":90,"to":1800}` {
		t.Errorf("marshal: got %s", b)
	}
	var back ClipView
	if err := json.Unmarshal(b, &back); err != nil || back != v {
		t.Errorf("unmarshal: got %+v, %v", back, err)
	}
}
