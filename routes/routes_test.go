package routes

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"p9e.in/siteprogress/handlers"
	"p9e.in/siteprogress/middleware"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/metrics"
	"p9e.in/siteprogress/pkg/store"
	"p9e.in/siteprogress/pkg/submission"
	"p9e.in/siteprogress/pkg/vision"
	"p9e.in/siteprogress/testutil"
)

type api struct {
	t        *testing.T
	server   *httptest.Server
	admin    *models.User
	engineer *models.User
	viewer   *models.User
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.NewTestDB(t)
	st := store.New(db, zap.NewNop())
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	h := handlers.New(handlers.Deps{
		Store:    st,
		Pipeline: submission.NewPipeline(st, vision.OfflineAnalyzer{}, time.Second, m, zap.NewNop()),
		Drafts:   submission.NewRegistry(time.Hour),
		Metrics:  m,
		Log:      zap.NewNop(),
	})
	srv := httptest.NewServer(RegisterRoutes(h, st, m, zap.NewNop()))
	t.Cleanup(srv.Close)

	return &api{
		t:        t,
		server:   srv,
		admin:    testutil.CreateUser(t, db, "root", models.RoleAdmin),
		engineer: testutil.CreateUser(t, db, "asha", models.RoleEngineer),
		viewer:   testutil.CreateUser(t, db, "guest", models.RoleViewer),
	}
}

func (a *api) do(user *models.User, method, path string, body io.Reader, contentType string) *http.Response {
	a.t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(a.t, err)
	if user != nil {
		req.Header.Set(middleware.UserHeader, user.ID.String())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *api) json(user *models.User, method, path string, in any) *http.Response {
	a.t.Helper()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		require.NoError(a.t, err)
		body = bytes.NewReader(b)
	}
	return a.do(user, method, path, body, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (a *api) createSite(name string) models.Site {
	a.t.Helper()
	resp := a.json(a.admin, "POST", "/api/v1/sites", map[string]any{
		"name": name, "location": "Pune", "numBasements": 1, "numFloors": 3, "hasRoof": true,
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)
	return decode[models.Site](a.t, resp)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))
	return buf.Bytes()
}

func imageForm(t *testing.T, fields map[string]string, images ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, img := range images {
		fw, err := mw.CreateFormFile("images", "site.png")
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestActingUserAndPermissions(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusUnauthorized, a.do(nil, "GET", "/api/v1/sites", nil, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, a.do(&models.User{}, "GET", "/api/v1/sites", nil, "").StatusCode)

	resp := a.json(a.viewer, "POST", "/api/v1/sites", map[string]any{"name": "X", "location": "Y"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, http.StatusOK, a.do(a.viewer, "GET", "/api/v1/sites", nil, "").StatusCode)
	assert.Equal(t, http.StatusOK, a.do(nil, "GET", "/healthz", nil, "").StatusCode)

	preflight := a.do(nil, "OPTIONS", "/api/v1/sites", nil, "")
	assert.Equal(t, http.StatusOK, preflight.StatusCode)
	assert.Contains(t, preflight.Header.Get("Access-Control-Allow-Headers"), middleware.UserHeader)
}

func TestSiteEndpoints(t *testing.T) {
	a := newAPI(t)
	site := a.createSite("Tower A")
	assert.Equal(t, models.SiteActive, site.Status)

	dup := a.json(a.admin, "POST", "/api/v1/sites", map[string]any{"name": "Tower A", "location": "Pune"})
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	bad := a.json(a.admin, "POST", "/api/v1/sites", map[string]any{"name": "", "location": "", "numFloors": 0})
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
	body := decode[struct {
		Fields []models.ValidationError `json:"fields"`
	}](t, bad)
	assert.Len(t, body.Fields, 3)

	floors := decode[struct {
		Floors []string `json:"floors"`
	}](t, a.do(a.engineer, "GET", "/api/v1/sites/"+site.ID.String()+"/floors", nil, ""))
	assert.Equal(t, []string{"Basement 1", "Ground Floor", "1st Floor", "2nd Floor", "3rd Floor", "Roof/Terrace"}, floors.Floors)

	resp := a.json(a.admin, "PATCH", "/api/v1/sites/"+site.ID.String()+"/status", map[string]string{"status": "on hold"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.SiteOnHold, decode[models.Site](t, resp).Status)

	resp = a.json(a.admin, "PATCH", "/api/v1/sites/"+site.ID.String()+"/status", map[string]string{"status": "Paused"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, a.do(a.viewer, "GET", "/api/v1/sites/00000000-0000-0000-0000-000000000001", nil, "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, a.do(a.viewer, "GET", "/api/v1/sites/not-a-uuid", nil, "").StatusCode)
}

func TestDraftFlow(t *testing.T) {
	a := newAPI(t)
	site := a.createSite("Tower B")

	resp := a.json(a.engineer, "POST", "/api/v1/sites/"+site.ID.String()+"/drafts", submission.Details{
		Category: "Finishing Work", Description: "Plastering on the second floor", ProgressPercentage: 40,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	draft := decode[submission.View](t, resp)
	base := "/api/v1/drafts/" + draft.ID.String()

	// confirming before analysis is a conflict
	assert.Equal(t, http.StatusConflict, a.do(a.engineer, "POST", base+"/confirm", nil, "").StatusCode)
	// other engineers cannot see it
	assert.Equal(t, http.StatusForbidden, a.do(a.viewer, "GET", base, nil, "").StatusCode)

	resp = a.json(a.engineer, "PUT", base+"/floors", submission.FloorInput{
		Label: "2nd Floor", WorkPhase: "In Progress", Progress: 60,
		WorkTypes: []submission.WorkTypeInput{
			{Name: "Plastering", Status: "Completed", Progress: 100},
			{Name: "Electrical Work", Status: "Started", Progress: 20},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.json(a.engineer, "PUT", base+"/floors", submission.FloorInput{
		Label: "Roof/Terrace", WorkPhase: "Not Started",
		WorkTypes: []submission.WorkTypeInput{{Name: "Waterproofing", Status: "Not Started"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[submission.View](t, resp).FloorCount)
	resp = a.do(a.engineer, "DELETE", base+"/floors/Roof%2FTerrace", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[submission.View](t, resp).FloorCount)

	// analysis without an image reports the missing field
	resp = a.do(a.engineer, "POST", base+"/analyze", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	form, ct := imageForm(t, nil, pngBytes(t))
	resp = a.do(a.engineer, "POST", base+"/images", form, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[submission.View](t, resp).Images, 1)

	resp = a.do(a.engineer, "POST", base+"/analyze", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[submission.View](t, resp)
	assert.Equal(t, submission.StateReviewPending, view.State)
	require.NotNil(t, view.Analysis)
	assert.Equal(t, models.StatusNeedsReview, view.Analysis.Status)

	resp = a.do(a.engineer, "POST", base+"/confirm", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saved := decode[struct {
		Record models.ProgressRecord `json:"record"`
		Floors []models.FloorEntry   `json:"floors"`
	}](t, resp)
	assert.Len(t, saved.Floors, 1)
	assert.Equal(t, 1, saved.Record.ImageCount)

	// the draft is gone once saved
	assert.Equal(t, http.StatusNotFound, a.do(a.engineer, "GET", base, nil, "").StatusCode)

	img := a.do(a.viewer, "GET", "/api/v1/progress/"+saved.Record.ID.String()+"/images/0", nil, "")
	require.Equal(t, http.StatusOK, img.StatusCode)
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))
	assert.Equal(t, http.StatusNotFound, a.do(a.viewer, "GET", "/api/v1/progress/"+saved.Record.ID.String()+"/images/3", nil, "").StatusCode)

	floors := decode[[]struct {
		FloorLabel            string `json:"floorLabel"`
		UpdateCount           int    `json:"updateCount"`
		DistinctWorkTypeCount int    `json:"distinctWorkTypeCount"`
	}](t, a.do(a.viewer, "GET", "/api/v1/sites/"+site.ID.String()+"/analytics/floors", nil, ""))
	require.Len(t, floors, 1)
	assert.Equal(t, "2nd Floor", floors[0].FloorLabel)
	assert.Equal(t, 2, floors[0].DistinctWorkTypeCount)

	assert.Equal(t, http.StatusNotFound, a.do(a.viewer, "GET", "/api/v1/sites/"+site.ID.String()+"/analytics/bogus", nil, "").StatusCode)

	export := a.do(a.viewer, "GET", "/api/v1/sites/"+site.ID.String()+"/export.csv", nil, "")
	require.Equal(t, http.StatusOK, export.StatusCode)
	assert.Contains(t, export.Header.Get("Content-Disposition"), "monthly_progress_report_Tower_B_")
	rows, err := csv.NewReader(export.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSubmitProgressMultipart(t *testing.T) {
	a := newAPI(t)
	site := a.createSite("Tower C")
	path := "/api/v1/sites/" + site.ID.String() + "/progress"

	floors := `[{"label":"Roof/Terrace","workPhase":"Completed","progress":100,"workTypes":[{"name":"Waterproofing","status":"Completed","progress":100}]}]`
	form, ct := imageForm(t, map[string]string{
		"category": "Finishing Work", "description": "Roof sealed", "progressPercentage": "90", "floors": floors,
	}, pngBytes(t))
	resp := a.do(a.engineer, "POST", path, form, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// a floor outside the building is rejected and nothing is written
	bad := strings.Replace(floors, "Roof/Terrace", "9th Floor", 1)
	form, ct = imageForm(t, map[string]string{"category": "Finishing Work", "description": "x", "floors": bad}, pngBytes(t))
	resp = a.do(a.engineer, "POST", path, form, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	form, ct = imageForm(t, map[string]string{"category": "Finishing Work", "description": "x", "floors": floors}, []byte("not an image"))
	resp = a.do(a.engineer, "POST", path, form, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	list := decode[[]models.ProgressRecord](t, a.do(a.viewer, "GET", path, nil, ""))
	assert.Len(t, list, 1)

	stats := decode[store.GlobalStatistics](t, a.do(a.viewer, "GET", "/api/v1/stats", nil, ""))
	assert.EqualValues(t, 1, stats.TotalUpdates)
	assert.EqualValues(t, 3, stats.TotalUsers)

	metricsResp := a.do(nil, "GET", "/metrics", nil, "")
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `siteprogress_submissions_total{outcome="saved"} 1`)
	assert.Contains(t, string(body), `route="/api/v1/sites/{id}/progress"`)
}
