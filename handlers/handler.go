// Package handlers serves the JSON API over the store, the submission
// pipeline and the read-side aggregations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/export"
	"p9e.in/siteprogress/pkg/extractor"
	"p9e.in/siteprogress/pkg/metrics"
	"p9e.in/siteprogress/pkg/store"
	"p9e.in/siteprogress/pkg/submission"
)

// DefaultMaxUploadBytes bounds multipart bodies when no limit is configured.
const DefaultMaxUploadBytes = 50 << 20

// Deps are the collaborators a Handler serves.
type Deps struct {
	Store          *store.Store
	Pipeline       *submission.Pipeline
	Drafts         *submission.Registry
	Metrics        *metrics.Metrics
	Log            *zap.Logger
	MaxUploadBytes int64
}

// Handler holds every endpoint of the API.
type Handler struct {
	store     *store.Store
	pipeline  *submission.Pipeline
	drafts    *submission.Registry
	extractor *extractor.Extractor
	exports   *export.Builder
	log       *zap.Logger
	maxUpload int64
}

// New wires a Handler.
func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		store:     d.Store,
		pipeline:  d.Pipeline,
		drafts:    d.Drafts,
		extractor: extractor.New(d.Store, log, d.Metrics),
		exports:   export.NewBuilder(d.Store, log),
		log:       log,
		maxUpload: maxUpload,
	}
}

type errorResponse struct {
	Error     string                    `json:"error"`
	Fields    []*models.ValidationError `json:"fields,omitempty"`
	Retryable bool                      `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		many      models.ValidationErrors
		one       *models.ValidationError
		integrity *models.StorageIntegrityError
	)
	switch {
	case errors.As(err, &many):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: many})
	case errors.As(err, &one):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: []*models.ValidationError{one}})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrDuplicate), errors.Is(err, submission.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &integrity):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "update could not be saved, nothing was written", Retryable: true})
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

// pathID parses the named mux variable as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, models.NewValidationError(name, "invalid id %q", raw)
	}
	return id, nil
}
