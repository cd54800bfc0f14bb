package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"p9e.in/siteprogress/middleware"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/extractor"
	"p9e.in/siteprogress/pkg/submission"
)

// progressView is a stored record with the facts derived from it.
type progressView struct {
	models.ProgressBundle
	Facts extractor.RecordFacts `json:"facts"`
}

func progressResponse(b models.ProgressBundle) progressView {
	return progressView{ProgressBundle: b, Facts: extractor.FromBundle(b)}
}

// ListProgress returns a site's records newest first, without image data.
func (h *Handler) ListProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.store.GetSite(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			h.writeError(w, r, models.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
	}
	records, err := h.store.ListProgress(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetProgress returns one record with its floor rows and the floor facts
// the read side derives from it.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bundle, err := h.store.GetBundle(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse(*bundle))
}

// GetProgressImage streams the n-th photo of a record, counting from 0.
func (h *Handler) GetProgressImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil || n < 0 {
		h.writeError(w, r, models.NewValidationError("n", "must be a non-negative integer"))
		return
	}
	rec, err := h.store.GetProgress(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rec.ImageEncoding != models.ImageEncodingGob {
		http.Error(w, fmt.Sprintf("images stored as %q cannot be served", rec.ImageEncoding), http.StatusUnprocessableEntity)
		return
	}
	images, err := submission.DecodeImages(rec.ImageBlob)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if n >= len(images) {
		h.writeError(w, r, fmt.Errorf("image %d of record %s: %w", n, id, models.ErrNotFound))
		return
	}
	img := images[n]
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

// SubmitProgress accepts a complete update as one multipart form, runs the
// analysis and saves the record. Form fields: category, description,
// progressPercentage, latitude, longitude, floors (JSON list) and one or
// more images files.
func (h *Handler) SubmitProgress(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user := middleware.GetUser(r)

	form, err := h.parseMultipart(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer form.RemoveAll()

	d := submission.NewDraft(siteID, user.ID)
	if err := fillDraft(d, form); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.pipeline.Submit(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bundle, err := h.store.GetBundle(r.Context(), rec.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, progressResponse(*bundle))
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, models.NewValidationError("body", "upload exceeds %d bytes", h.maxUpload)
		}
		return nil, models.NewValidationError("body", "invalid multipart form: %v", err)
	}
	return r.MultipartForm, nil
}

// fillDraft copies the multipart fields and files into d.
func fillDraft(d *submission.Draft, form *multipart.Form) error {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	var errs models.ValidationErrors
	det := submission.Details{Category: value("category"), Description: value("description")}
	if raw := value("progressPercentage"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs.Add("progressPercentage", "must be an integer")
		}
		det.ProgressPercentage = n
	}
	coords := []struct {
		key string
		dst **float64
	}{{"latitude", &det.Latitude}, {"longitude", &det.Longitude}}
	for _, c := range coords {
		if raw := value(c.key); raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errs.Add(c.key, "must be a number")
				continue
			}
			*c.dst = &f
		}
	}

	var floors []submission.FloorInput
	if raw := value("floors"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &floors); err != nil {
			errs.Add("floors", "invalid JSON: %v", err)
		}
	}
	if err := errs.Err(); err != nil {
		return err
	}

	if err := d.SetDetails(det); err != nil {
		return err
	}
	for _, f := range floors {
		if err := d.PutFloor(f); err != nil {
			return err
		}
	}
	return addImages(d, form.File["images"])
}

func addImages(d *submission.Draft, files []*multipart.FileHeader) error {
	var errs models.ValidationErrors
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			return err
		}
		if _, err := d.AddImage(fh.Filename, data); err != nil {
			if models.IsValidation(err) {
				errs.Add(fmt.Sprintf("images[%d]", i), "%v", err)
				continue
			}
			return err
		}
	}
	return errs.Err()
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
