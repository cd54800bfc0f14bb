package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"p9e.in/siteprogress/handlers"
	"p9e.in/siteprogress/middleware"
	"p9e.in/siteprogress/pkg/metrics"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(h *handlers.Handler, users middleware.UserLookup, m *metrics.Metrics, log *zap.Logger) http.Handler {
	// Floor labels such as "Roof/Terrace" travel percent-encoded in paths.
	r := mux.NewRouter().UseEncodedPath()
	r.Use(middleware.Recover(log))
	r.Use(middleware.RequestLogger(log, m))

	// =====================================================
	// Public Routes
	// =====================================================
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	// =====================================================
	// API Routes (acting user from the trusted header)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ActingUser(users, log))

	registerSiteRoutes(api, h)
	registerProgressRoutes(api, h)
	registerDraftRoutes(api, h)
	registerReadRoutes(api, h)

	return middleware.EnableCORS(r)
}

func allow(permission string, fn http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(permission)(fn)
}

func registerSiteRoutes(api *mux.Router, h *handlers.Handler) {
	api.Handle("/sites", allow("site:read", h.ListSites)).Methods("GET")
	api.Handle("/sites", allow("site:create", h.CreateSite)).Methods("POST")
	api.Handle("/sites/{id}", allow("site:read", h.GetSite)).Methods("GET")
	api.Handle("/sites/{id}/status", allow("site:update", h.UpdateSiteStatus)).Methods("PATCH")
	api.Handle("/sites/{id}/floors", allow("site:read", h.SiteFloors)).Methods("GET")
	api.Handle("/catalog", allow("catalog:read", h.Catalog)).Methods("GET")
}

func registerProgressRoutes(api *mux.Router, h *handlers.Handler) {
	api.Handle("/sites/{id}/progress", allow("progress:read", h.ListProgress)).Methods("GET")
	api.Handle("/sites/{id}/progress", allow("progress:create", h.SubmitProgress)).Methods("POST")
	api.Handle("/progress/{id}", allow("progress:read", h.GetProgress)).Methods("GET")
	api.Handle("/progress/{id}/images/{n:[0-9]+}", allow("progress:read", h.GetProgressImage)).Methods("GET")
}

func registerDraftRoutes(api *mux.Router, h *handlers.Handler) {
	api.Handle("/sites/{id}/drafts", allow("draft:create", h.CreateDraft)).Methods("POST")

	drafts := api.PathPrefix("/drafts/{id}").Subrouter()
	drafts.Handle("", allow("draft:read", h.GetDraft)).Methods("GET")
	drafts.Handle("", allow("draft:update", h.UpdateDraft)).Methods("PUT")
	drafts.Handle("/floors", allow("draft:update", h.PutDraftFloor)).Methods("PUT")
	drafts.Handle("/floors/{label}", allow("draft:update", h.RemoveDraftFloor)).Methods("DELETE")
	drafts.Handle("/images", allow("draft:update", h.AddDraftImages)).Methods("POST")
	drafts.Handle("/analyze", allow("draft:update", h.AnalyzeDraft)).Methods("POST")
	drafts.Handle("/confirm", allow("progress:create", h.ConfirmDraft)).Methods("POST")
	drafts.Handle("/modify", allow("draft:update", h.ModifyDraft)).Methods("POST")
	drafts.Handle("/cancel", allow("draft:update", h.CancelDraft)).Methods("POST")
}

func registerReadRoutes(api *mux.Router, h *handlers.Handler) {
	api.Handle("/sites/{id}/analytics/{view}", allow("analytics:read", h.SiteAnalytics)).Methods("GET")
	api.Handle("/sites/{id}/stats", allow("analytics:read", h.SiteStats)).Methods("GET")
	api.Handle("/sites/{id}/export.csv", allow("export:read", h.ExportCSV)).Methods("GET")
	api.Handle("/sites/{id}/export.xlsx", allow("export:read", h.ExportWorkbook)).Methods("GET")
	api.Handle("/stats", allow("stats:read", h.GlobalStats)).Methods("GET")
}
