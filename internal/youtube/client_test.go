package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vod-scheduler/internal/vod"
)

func playerStub(t *testing.T, status string, lengthSeconds string, formats []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request body: %v", err)
		}
		if id, _ := req["videoId"].(string); id == "" {
			t.Error("missing videoId in request")
		}
		resp := map[string]any{
			"playabilityStatus": map[string]any{"status": status, "reason": ""},
			"videoDetails": map[string]any{
				"videoId":       req["videoId"],
				"title":         "Stub Video",
				"lengthSeconds": lengthSeconds,
			},
			"streamingData": map[string]any{"formats": formats},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_Video(t *testing.T) {
	srv := playerStub(t, "OK", "7200", []map[string]any{
		{"itag": 18, "url": "https://r3.example.com/videoplayback?id=1", "mimeType": `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, "width": 640, "height": 360},
		{"itag": 22, "url": "https://r3.example.com/videoplayback?id=2", "mimeType": "video/mp4", "width": 1280, "height": 720},
		{"itag": 0, "url": "", "mimeType": "video/mp4", "width": 1920, "height": 1080}, // no URL: skipped
	})
	defer srv.Close()

	c := NewClient().WithEndpoint(srv.URL)
	meta, err := c.Video(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Video: %v", err)
	}

	if meta.Duration != 2*time.Hour {
		t.Errorf("duration: got %v, want 2h", meta.Duration)
	}
	if len(meta.Sources) != 2 {
		t.Fatalf("sources: got %d, want 2 (urlless format skipped)", len(meta.Sources))
	}

	byRes := make(map[vod.Resolution]vod.SourceInfo)
	for _, s := range meta.Sources {
		byRes[s.Resolution] = s
	}
	if s := byRes[360]; s.MimeType != "video/mp4" {
		t.Errorf("codec parameters not stripped: %q", s.MimeType)
	}
	if s := byRes[720]; s.URL != "https://r3.example.com/videoplayback?id=2" {
		t.Errorf("720p url: %q", s.URL)
	}
}

func TestClient_Video_not_playable(t *testing.T) {
	srv := playerStub(t, "UNPLAYABLE", "0", nil)
	defer srv.Close()

	_, err := NewClient().WithEndpoint(srv.URL).Video(context.Background(), "gone")
	if err == nil {
		t.Fatal("expected error for unplayable video")
	}
}

func TestClient_Video_http_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient().WithEndpoint(srv.URL).Video(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClient_Video_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := NewClient().WithEndpoint(srv.URL).Video(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected transport error")
	}
}

func TestClient_WithEndpoint_blank_keeps_default(t *testing.T) {
	c := NewClient().WithEndpoint("  ")
	if c.endpoint != defaultEndpoint {
		t.Errorf("blank endpoint should keep default, got %q", c.endpoint)
	}
}

func TestBaseMimeType(t *testing.T) {
	if got := baseMimeType(`video/webm; codecs="vp9"`); got != "video/webm" {
		t.Errorf("got %q", got)
	}
	if got := baseMimeType("video/mp4"); got != "video/mp4" {
		t.Errorf("got %q", got)
	}
}
