package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/analytics"
	"p9e.in/siteprogress/pkg/export"
)

// analyticsViews maps the {view} path segment onto a part of the report.
var analyticsViews = map[string]func(*analytics.Report) any{
	"overview":      func(r *analytics.Report) any { return r.Overview },
	"timeline":      func(r *analytics.Report) any { return r.Timeline },
	"categories":    func(r *analytics.Report) any { return r.Categories },
	"verification":  func(r *analytics.Report) any { return r.Verification },
	"monthly":       func(r *analytics.Report) any { return r.Monthly },
	"floors":        func(r *analytics.Report) any { return r.Floors },
	"work-types":    func(r *analytics.Report) any { return r.WorkTypes },
	"matrix":        func(r *analytics.Report) any { return r.Matrix },
	"completion":    func(r *analytics.Report) any { return r.Completion },
	"floor-details": func(r *analytics.Report) any { return r.FloorDetails },
	"all":           func(r *analytics.Report) any { return r },
}

// SiteAnalytics serves one analytics view. The floors query parameter,
// a comma separated list, narrows the floor-related views.
func (h *Handler) SiteAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, ok := analyticsViews[mux.Vars(r)["view"]]
	if !ok {
		h.writeError(w, r, fmt.Errorf("analytics view %q: %w", mux.Vars(r)["view"], models.ErrNotFound))
		return
	}
	facts, err := h.extractor.SiteFacts(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var floors []string
	for _, f := range strings.Split(r.URL.Query().Get("floors"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			floors = append(floors, f)
		}
	}
	writeJSON(w, http.StatusOK, view(analytics.Build(facts, floors...)))
}

// ExportCSV downloads the updates table.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv", export.WriteCSV)
}

// ExportWorkbook downloads the XLSX workbook.
func (h *Handler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", export.ContentTypeXLSX, export.WriteWorkbook)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string,
	write func(io.Writer, *export.Report) error) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.exports.Build(r.Context(), id, r.URL.Query().Get("month"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := write(&buf, rep); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(rep.Site, ext, time.Now())))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
