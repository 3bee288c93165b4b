package vod

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vod-scheduler/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const jsonContentType = "application/json"

// Handler exposes the manifest and playlist-administration endpoints using
// go-chi. Bearer-token authorization is handled by an external collaborator
// in front of this service.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and
// optional Metrics. Metrics may be nil to disable metric recording (e.g. in
// tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// GetManifest handles GET /{location}/{slug}/{filename}: the live manifest
// for the streaming-media server. The filename is opaque to us.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	slug := Slug(chi.URLParam(r, "slug"))
	if slug == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	set, ok, err := h.svc.Manifest(slug)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("manifest build failed",
			slog.String("slug", string(slug)),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Debug("manifest served",
		slog.String("slug", string(slug)),
		slog.Int("clips", len(set.Durations)))
	if h.metrics != nil {
		h.metrics.IncManifestsBuilt()
	}
	h.writeJSON(w, http.StatusOK, set)
}

// UpsertPlaylist handles PUT /playlists/ and PUT /playlists/{slug}.
// Body: the client-facing playlist specification; when the path carries no
// slug, the body's slug field is used.
func (h *Handler) UpsertPlaylist(w http.ResponseWriter, r *http.Request) {
	var req PlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid playlist body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	raw := chi.URLParam(r, "slug")
	if raw == "" {
		raw = req.Slug
	}
	slug, err := ParseSlug(raw)
	if err != nil {
		h.fail(w, slug, err)
		return
	}

	p, err := h.svc.Upsert(r.Context(), slug, req)
	if err != nil {
		h.fail(w, slug, err)
		return
	}

	h.log.Info("playlist replaced",
		slog.String("slug", string(slug)),
		slog.Int("weekdays", len(p.Clips)))
	h.writeJSON(w, http.StatusOK, p)
}

// DeletePlaylist handles DELETE /playlists/{slug}; idempotent.
func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	slug := Slug(chi.URLParam(r, "slug"))
	if slug == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(slug); err != nil {
		h.fail(w, slug, err)
		return
	}

	h.log.Info("playlist deleted", slog.String("slug", string(slug)))
	w.WriteHeader(http.StatusNoContent)
}

// GetPlaylists handles GET /playlists/: the whole stored collection.
func (h *Handler) GetPlaylists(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Playlists())
}

// GetPlaylist handles GET /playlists/{slug}.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	slug := Slug(chi.URLParam(r, "slug"))
	p, ok := h.svc.Playlist(slug)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// fail maps the error taxonomy onto status codes.
func (h *Handler) fail(w http.ResponseWriter, slug Slug, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidSpec):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, ErrPersistFailed):
		status = http.StatusInternalServerError
	}

	h.log.Info("playlist request rejected",
		slog.String("slug", string(slug)),
		slog.Int("status", status),
		slog.String("error", err.Error()))
	if h.metrics != nil && status != http.StatusInternalServerError {
		h.metrics.IncIngestFailures()
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("response encoding failed", slog.String("error", err.Error()))
	}
}

// Routes mounts all endpoints on a chi router. location is the manifest
// path segment the media server is configured to request.
func (h *Handler) Routes(r chi.Router, location string) {
	r.Get("/"+location+"/{slug}/{filename}", h.GetManifest)
	r.Route("/playlists", func(r chi.Router) {
		r.Get("/", h.GetPlaylists)
		r.Put("/", h.UpsertPlaylist)
		r.Get("/{slug}", h.GetPlaylist)
		r.Put("/{slug}", h.UpsertPlaylist)
		r.Delete("/{slug}", h.DeletePlaylist)
	})
}
