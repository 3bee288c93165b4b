package vod

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T, provider MetadataProvider) (*chi.Mux, *Service) {
	t.Helper()
	svc, _ := newTestService(t, provider, nil)
	h := NewHandler(svc, testLogger(), nil)
	r := chi.NewRouter()
	h.Routes(r, "mapping")
	return r, svc
}

func playlistBody(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(PlaylistRequest{
		Title: "Demo", Lang: "en", TZ: "Z",
		Clips: map[string][]ClipRequest{
			"mon": {
				{URL: watchURL("a"), Title: "A", From: "0:00:00", To: "0:30:00"},
				{URL: watchURL("b"), Title: "B", From: "0:00:00", To: "1:30:00"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandler_UpsertPlaylist(t *testing.T) {
	r, _ := newTestRouter(t, newFakeProvider(3*time.Hour, "a", "b"))

	req := httptest.NewRequest(http.MethodPut, "/playlists/demo", bytes.NewReader(playlistBody(t)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("response: %v", err)
	}
	if p.Slug != "demo" || len(p.Clips[Mon]) != 2 {
		t.Errorf("stored playlist: %+v", p)
	}
}

func TestHandler_UpsertPlaylist_slug_from_body(t *testing.T) {
	r, _ := newTestRouter(t, newFakeProvider(3*time.Hour, "a", "b"))

	var req PlaylistRequest
	if err := json.Unmarshal(playlistBody(t), &req); err != nil {
		t.Fatal(err)
	}
	req.Slug = "from-body"
	b, _ := json.Marshal(req)

	httpReq := httptest.NewRequest(http.MethodPut, "/playlists/", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httpReq)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/playlists/from-body", nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Errorf("expected stored playlist, got %d", getRec.Code)
	}
}

func TestHandler_UpsertPlaylist_bad_requests(t *testing.T) {
	r, _ := newTestRouter(t, newFakeProvider(3*time.Hour, "a", "b"))

	t.Run("malformed_body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/playlists/demo", bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid_slug", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/playlists/Bad_Slug", bytes.NewReader(playlistBody(t)))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid_spec", func(t *testing.T) {
		b, _ := json.Marshal(PlaylistRequest{Title: "", TZ: "Z"})
		req := httptest.NewRequest(http.MethodPut, "/playlists/demo", bytes.NewReader(b))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for empty title, got %d", rec.Code)
		}
	})
}

func TestHandler_UpsertPlaylist_upstream_unavailable(t *testing.T) {
	r, _ := newTestRouter(t, &fakeProvider{err: http.ErrHandlerTimeout})

	req := httptest.NewRequest(http.MethodPut, "/playlists/demo", bytes.NewReader(playlistBody(t)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestHandler_GetManifest(t *testing.T) {
	r, svc := newTestRouter(t, newFakeProvider(3*time.Hour, "a", "b"))
	svc.now = frozen(monMidnight)

	put := httptest.NewRequest(http.MethodPut, "/playlists/demo", bytes.NewReader(playlistBody(t)))
	putRec := httptest.NewRecorder()
	r.ServeHTTP(putRec, put)
	if putRec.Code != http.StatusOK {
		t.Fatalf("setup: expected 200, got %d", putRec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/mapping/demo/master.json", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %s", ct)
	}

	var set Set
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if set.ID != "demo" || set.PlaylistType != "live" || !set.Discontinuity {
		t.Errorf("manifest header: %+v", set)
	}
	if len(set.Durations) == 0 || len(set.Durations) > ManifestClipBound {
		t.Errorf("durations: %d", len(set.Durations))
	}
	if len(set.Sequences) != 2 {
		t.Errorf("sequences: %d", len(set.Sequences))
	}
}

func TestHandler_GetManifest_not_found(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/mapping/missing/master.json", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_DeletePlaylist_idempotent(t *testing.T) {
	r, _ := newTestRouter(t, newFakeProvider(3*time.Hour, "a", "b"))

	put := httptest.NewRequest(http.MethodPut, "/playlists/demo", bytes.NewReader(playlistBody(t)))
	putRec := httptest.NewRecorder()
	r.ServeHTTP(putRec, put)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/playlists/demo", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("delete #%d: expected 204, got %d", i+1, rec.Code)
		}
	}
}

func TestHandler_GetPlaylists(t *testing.T) {
	r, _ := newTestRouter(t, newFakeProvider(3*time.Hour, "a", "b"))

	put := httptest.NewRequest(http.MethodPut, "/playlists/demo", bytes.NewReader(playlistBody(t)))
	putRec := httptest.NewRecorder()
	r.ServeHTTP(putRec, put)

	req := httptest.NewRequest(http.MethodGet, "/playlists/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var all map[Slug]Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 playlist, got %d", len(all))
	}

	t.Run("unknown_single", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/playlists/missing", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
