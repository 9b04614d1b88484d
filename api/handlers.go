package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/herewego/transfer-admin/internal/auth"
	"github.com/herewego/transfer-admin/internal/config"
	"github.com/herewego/transfer-admin/internal/images"
	"github.com/herewego/transfer-admin/internal/models"
	"github.com/herewego/transfer-admin/internal/newsadmin"
	"github.com/herewego/transfer-admin/internal/store"
)

type newsService interface {
	Get(ctx context.Context, id string) (*models.NewsItem, error)
	List(ctx context.Context, params store.ListParams) (*store.ListResult, error)
	Analytics(ctx context.Context) (*store.Analytics, error)
	Create(ctx context.Context, in newsadmin.Input) (*models.NewsItem, error)
	Update(ctx context.Context, id string, in newsadmin.Input) (*models.NewsItem, error)
	Delete(ctx context.Context, id string) error
	AttachImage(ctx context.Context, id, contentType string, body io.Reader, size int64) (*models.NewsItem, error)
}

type server struct {
	log    *slog.Logger
	cfg    *config.API
	news   newsService
	health func(ctx context.Context) error
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes(v *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(v.RequireAdmin)
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))

		r.Get("/analytics", s.handleAnalytics)
		r.Route("/news", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
			r.Post("/{id}/image", s.handleImage)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.ListParams{
		Query: strings.TrimSpace(q.Get("q")),
		Stage: parseStage(q.Get("stage")),
		From:  clampInt(q.Get("from"), 0, 10_000),
		Size:  clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
	}
	if raw := q.Get("breaking"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			params.Breaking = &b
		}
	}

	result, err := s.news.List(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := s.news.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	item, err := s.news.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.Info("news item created",
		slog.String("news_id", item.ID),
		slog.String("admin", auth.Subject(r.Context())),
	)
	writeJSON(w, http.StatusCreated, item)
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	item, err := s.news.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.Info("news item updated",
		slog.String("news_id", item.ID),
		slog.String("admin", auth.Subject(r.Context())),
	)
	writeJSON(w, http.StatusOK, item)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.news.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.Info("news item deleted",
		slog.String("news_id", id),
		slog.String("admin", auth.Subject(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Images.MaxBytes+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "image too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field \"image\" is required"})
		return
	}
	defer file.Close()

	if header.Size > s.cfg.Images.MaxBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "image too large"})
		return
	}

	item, err := s.news.AttachImage(r.Context(), chi.URLParam(r, "id"), header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	result, err := s.news.Analytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, newsadmin.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, images.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, newsadmin.ErrImagesDisabled):
		status = http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("err", err),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeInput(w http.ResponseWriter, r *http.Request) (newsadmin.Input, bool) {
	var in newsadmin.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return in, false
	}
	return in, true
}

// parseStage returns 0 (no filter) for anything outside 1..5.
func parseStage(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < models.MilestoneRumor || value > models.MilestoneOfficial {
		return 0
	}
	return value
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
