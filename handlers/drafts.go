package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"p9e.in/siteprogress/middleware"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/submission"
)

// loadDraft returns the draft named in the path. Only its author and
// admins may touch it.
func (h *Handler) loadDraft(w http.ResponseWriter, r *http.Request) (*submission.Draft, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	d, err := h.drafts.Get(id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	user := middleware.GetUser(r)
	if d.AuthorID() != user.ID && user.Role != models.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "draft belongs to another user"})
		return nil, false
	}
	return d, true
}

// CreateDraft opens an empty draft for a site. The body may carry the
// record-level details.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	siteID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.store.GetSite(r.Context(), siteID); err != nil {
		h.writeError(w, r, err)
		return
	}

	d := submission.NewDraft(siteID, middleware.GetUser(r).ID)
	if r.ContentLength != 0 {
		var det submission.Details
		if err := decodeJSON(r, &det); err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := d.SetDetails(det); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.drafts.Put(d)
	h.log.Debug("draft opened", zap.String("draft_id", d.ID().String()), zap.String("site_id", siteID.String()))
	writeJSON(w, http.StatusCreated, d.View())
}

// GetDraft returns the draft.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// UpdateDraft replaces the record-level details.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	var det submission.Details
	if err := decodeJSON(r, &det); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := d.SetDetails(det); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// PutDraftFloor adds a floor or replaces the one with the same label.
func (h *Handler) PutDraftFloor(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	var f submission.FloorInput
	if err := decodeJSON(r, &f); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := d.PutFloor(f); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// RemoveDraftFloor drops a floor by label.
func (h *Handler) RemoveDraftFloor(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	label, err := url.PathUnescape(mux.Vars(r)["label"])
	if err != nil {
		h.writeError(w, r, models.NewValidationError("label", "invalid label"))
		return
	}
	if err := d.RemoveFloor(label); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// AddDraftImages attaches the images files of a multipart form.
func (h *Handler) AddDraftImages(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	form, err := h.parseMultipart(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer form.RemoveAll()
	files := form.File["images"]
	if len(files) == 0 {
		h.writeError(w, r, models.NewValidationError("images", "no files in field %q", "images"))
		return
	}
	if err := addImages(d, files); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// AnalyzeDraft validates the draft and runs the analysis. An analysis
// failure still answers 200 with an Error status report.
func (h *Handler) AnalyzeDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	if _, err := h.pipeline.Analyze(r.Context(), d); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// ConfirmDraft saves the reviewed draft.
func (h *Handler) ConfirmDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	rec, err := h.pipeline.Confirm(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.drafts.Delete(d.ID())
	bundle, err := h.store.GetBundle(r.Context(), rec.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/progress/%s", rec.ID))
	writeJSON(w, http.StatusCreated, progressResponse(*bundle))
}

// ModifyDraft returns a reviewed draft to editing.
func (h *Handler) ModifyDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	if err := d.Modify(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// CancelDraft abandons the draft.
func (h *Handler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	if err := h.pipeline.Cancel(d); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.drafts.Delete(d.ID())
	writeJSON(w, http.StatusOK, d.View())
}
