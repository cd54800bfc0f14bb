package handlers

import (
	"encoding/json"
	"net/http"

	"p9e.in/siteprogress/models"
)

// CreateSiteRequest is the body of POST /sites. Omitted shape fields take
// the defaults.
type CreateSiteRequest struct {
	Name         string           `json:"name"`
	Location     string           `json:"location"`
	Description  string           `json:"description"`
	StartDate    *models.JSONTime `json:"startDate"`
	Status       string           `json:"status"`
	NumBasements *int             `json:"numBasements"`
	NumFloors    *int             `json:"numFloors"`
	HasRoof      *bool            `json:"hasRoof"`
	Geofence     json.RawMessage  `json:"geofence"`
}

func (req CreateSiteRequest) site() *models.Site {
	site := &models.Site{
		Name:         req.Name,
		Location:     req.Location,
		Description:  req.Description,
		Status:       models.SiteActive,
		NumBasements: models.DefaultBasements,
		NumFloors:    models.DefaultFloors,
		HasRoof:      models.DefaultHasRoof,
	}
	if req.Status != "" {
		site.Status = models.SiteStatus(req.Status)
		if st, ok := models.ParseSiteStatus(req.Status); ok {
			site.Status = st
		}
	}
	if req.StartDate != nil {
		t := req.StartDate.Time()
		site.StartDate = &t
	}
	if req.NumBasements != nil {
		site.NumBasements = *req.NumBasements
	}
	if req.NumFloors != nil {
		site.NumFloors = *req.NumFloors
	}
	if req.HasRoof != nil {
		site.HasRoof = *req.HasRoof
	}
	if len(req.Geofence) > 0 && string(req.Geofence) != "null" {
		site.Geofence = []byte(req.Geofence)
	}
	return site
}

// ListSites returns every site, newest first.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.store.ListSites(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

// CreateSite registers a site with its building shape.
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	site := req.site()
	if err := h.store.CreateSite(r.Context(), site); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

// GetSite returns one site.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	site, err := h.store.GetSite(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// UpdateSiteStatus changes the administrative status of a site.
func (h *Handler) UpdateSiteStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	site, err := h.store.UpdateSiteStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// SiteFloors returns the ordered floor labels of a site.
func (h *Handler) SiteFloors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	site, err := h.store.GetSite(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"siteId": site.ID, "floors": site.FloorLabels()})
}

// SiteStats returns the per-site counters.
func (h *Handler) SiteStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.store.GetSite(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.store.SiteStatistics(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Catalog returns the fixed choice lists a form needs.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"workTypes":     models.WorkTypeCatalog,
		"workStatuses":  models.WorkStatuses,
		"workPhases":    models.WorkPhases,
		"categories":    models.WorkCategories,
		"siteStatuses":  models.SiteStatuses,
		"verifications": models.VerificationStatuses,
	})
}

// GlobalStats returns the dashboard counters.
func (h *Handler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GlobalStatistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
