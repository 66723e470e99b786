package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casaflow/server/config"
	"casaflow/server/internal/client"
	"casaflow/server/internal/store"
)

// fakeMarketplace is an httptest-backed stand-in for the marketplace core API.
func fakeMarketplace(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/reference/municipalities", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": 1, "name": "Gombe", "country": "CD", "city": "Kinshasa"},
				{"id": 2, "name": "Kampemba", "country": "CD", "city": "Lubumbashi"},
			},
		})
	})
	mux.HandleFunc("/api/reference/amenities", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": 4, "name": "Air conditioning"},
			},
		})
	})
	mux.HandleFunc("/api/properties/42", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"id": 42, "title": "Hydrated House", "slug": "hydrated-house",
					"price": 90000.0, "country": "CD", "city": "Kinshasa",
					"municipality_id": 1, "sale_type": "sale", "property_type": "house",
					"surface": 120.0, "bedrooms": 3, "is_approved": true,
					"images": []map[string]interface{}{
						{"id": 9, "url": "https://cdn.example.com/9.jpg", "original_name": "old.jpg"},
					},
				},
			})
		case http.MethodPut:
			require.NoError(t, r.ParseMultipartForm(10<<20))
			json.NewEncoder(w).Encode(map[string]interface{}{})
		}
	})
	mux.HandleFunc("/api/properties", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"id": 1, "title": "Listed", "search": r.URL.Query().Get("search")},
				},
				"meta": map[string]interface{}{"current_page": 1, "total": 1},
			})
			return
		}
		require.NoError(t, r.ParseMultipartForm(10<<20))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": 77, "title": "Created"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()

	drafts, err := store.Open(filepath.Join(t.TempDir(), "drafts.db"), logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { drafts.Close() })

	return newTestRouterWithStore(t, drafts)
}

// newTestRouterWithStore builds a router around an existing draft store, so
// tests can run two handler generations over the same autosave database.
func newTestRouterWithStore(t *testing.T, drafts *store.Store) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := fakeMarketplace(t)

	cfg := &config.Config{}
	cfg.Listing.DebounceMillis = 20

	marketplace := client.NewClient(upstream.URL, 5*time.Second, logrus.New())
	handler := NewHandler(marketplace, drafts, cfg, logrus.New())

	router := gin.New()
	SetupRoutes(router, handler)
	return router, handler
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestCreateDraftCreationMode(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.NotEmpty(t, body["session_id"])
	draft := body["draft"].(map[string]interface{})
	assert.Contains(t, draft["reference_number"], "REF-")
	assert.Equal(t, "0", draft["bedrooms"])
	assert.Empty(t, body["previews"])
}

func TestCreateDraftEditModeHydrates(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{"property_id": 42})
	require.Equal(t, http.StatusCreated, w.Code)

	draft := body["draft"].(map[string]interface{})
	assert.Equal(t, "Hydrated House", draft["title"])
	assert.Equal(t, true, draft["is_edit_mode"])
	assert.Equal(t, "Kinshasa", draft["city"])

	previews := body["previews"].([]interface{})
	require.Len(t, previews, 1)
	assert.Equal(t, "old.jpg", previews[0].(map[string]interface{})["display_name"])
}

func TestUpdateLocationCascades(t *testing.T) {
	router, _ := newTestRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{"property_id": 42})
	sid := body["session_id"].(string)

	// Switching city invalidates the Kinshasa municipality.
	w, body := doJSON(t, router, http.MethodPut, "/api/drafts/"+sid+"/location",
		map[string]interface{}{"city": "Lubumbashi"})
	require.Equal(t, http.StatusOK, w.Code)

	draft := body["draft"].(map[string]interface{})
	assert.Equal(t, "Lubumbashi", draft["city"])
	assert.Nil(t, draft["municipality_id"])

	munis := body["available_municipalities"].([]interface{})
	require.Len(t, munis, 1)
	assert.Equal(t, "Kampemba", munis[0].(map[string]interface{})["name"])
}

func TestTitleEditKeepsSlugInEditMode(t *testing.T) {
	router, _ := newTestRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{"property_id": 42})
	sid := body["session_id"].(string)

	w, body := doJSON(t, router, http.MethodPut, "/api/drafts/"+sid+"/fields",
		map[string]interface{}{"title": "Renamed House"})
	require.Equal(t, http.StatusOK, w.Code)

	draft := body["draft"].(map[string]interface{})
	assert.Equal(t, "Renamed House", draft["title"])
	assert.Equal(t, "hydrated-house", draft["slug"])
}

func addImage(t *testing.T, router *gin.Engine, sid, name, contentType string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	part.Write([]byte("data"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/"+sid+"/images", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	return w, parsed
}

func TestAddAndRemoveImages(t *testing.T) {
	router, _ := newTestRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{"property_id": 42})
	sid := body["session_id"].(string)

	w, body := addImage(t, router, sid, "new.jpg", "image/jpeg")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["rejected"])
	assert.Len(t, body["previews"].([]interface{}), 2)

	w, body = addImage(t, router, sid, "contract.pdf", "application/pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["rejected"])
	assert.Len(t, body["previews"].([]interface{}), 2)

	// Removing the existing preview marks it for deletion.
	req := httptest.NewRequest(http.MethodDelete, "/api/drafts/"+sid+"/images/0", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	_, body = doJSON(t, router, http.MethodGet, "/api/drafts/"+sid, nil)
	draft := body["draft"].(map[string]interface{})
	deletions := draft["images_to_delete"].(map[string]interface{})
	assert.Contains(t, deletions, "9")
}

func TestResumeAutosavedDraftAfterRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "drafts.db")

	drafts, err := store.Open(dbPath, logrus.New())
	require.NoError(t, err)
	router, _ := newTestRouterWithStore(t, drafts)

	_, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{})
	sid := body["session_id"].(string)
	refNumber := body["draft"].(map[string]interface{})["reference_number"].(string)

	w, _ := doJSON(t, router, http.MethodPut, "/api/drafts/"+sid+"/fields",
		map[string]interface{}{"title": "Half-finished Villa", "price": "125000"})
	require.Equal(t, http.StatusOK, w.Code)

	// A restart drops every in-memory session; only the autosave rows remain.
	require.NoError(t, drafts.Close())
	drafts2, err := store.Open(dbPath, logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { drafts2.Close() })
	router2, handler2 := newTestRouterWithStore(t, drafts2)

	w, _ = doJSON(t, router2, http.MethodGet, "/api/drafts/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = doJSON(t, router2, http.MethodGet, "/api/drafts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	saved := body["data"].([]interface{})
	require.Len(t, saved, 1)
	summary := saved[0].(map[string]interface{})
	assert.Equal(t, sid, summary["session_id"])
	assert.Equal(t, "Half-finished Villa", summary["title"])

	w, body = doJSON(t, router2, http.MethodPost, "/api/drafts", map[string]interface{}{"resume_id": sid})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, sid, body["session_id"])

	draft := body["draft"].(map[string]interface{})
	assert.Equal(t, "Half-finished Villa", draft["title"])
	assert.Equal(t, "125000", draft["price"])
	assert.Equal(t, refNumber, draft["reference_number"])

	// The resumed session autosaves under its original key.
	_, err = handler2.sessions.get(sid)
	require.NoError(t, err)
	w, _ = doJSON(t, router2, http.MethodPut, "/api/drafts/"+sid+"/fields",
		map[string]interface{}{"price": "130000"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResumeDraftBadRequests(t *testing.T) {
	router, _ := newTestRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/drafts",
		map[string]interface{}{"resume_id": "no-such-session"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/drafts",
		map[string]interface{}{"resume_id": "x", "property_id": 42})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAbandonDraftDropsSessionAndAutosave(t *testing.T) {
	router, handler := newTestRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{"property_id": 42})
	sid := body["session_id"].(string)
	_, body = addImage(t, router, sid, "new.jpg", "image/jpeg")
	require.Len(t, body["previews"].([]interface{}), 2)

	w, _ := doJSON(t, router, http.MethodDelete, "/api/drafts/"+sid, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := handler.sessions.get(sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	w, body = doJSON(t, router, http.MethodGet, "/api/drafts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])

	w, _ = doJSON(t, router, http.MethodGet, "/api/drafts/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitBlockedLocally(t *testing.T) {
	router, _ := newTestRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{})
	sid := body["session_id"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/drafts/"+sid+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "blocked", body["status"])
	errs := body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "price")
}

func TestSubmitEditModeSucceeds(t *testing.T) {
	router, _ := newTestRouter(t)

	_, body := doJSON(t, router, http.MethodPost, "/api/drafts", map[string]interface{}{"property_id": 42})
	sid := body["session_id"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/drafts/"+sid+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "succeeded", body["status"])

	// Edit mode keeps the draft populated after success.
	draft := body["draft"].(map[string]interface{})
	assert.Equal(t, "Hydrated House", draft["title"])
}

func TestListViewLifecycle(t *testing.T) {
	router, handler := newTestRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/views/properties", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	vid := body["view_id"].(string)

	w, _ = doJSON(t, router, http.MethodPost, "/api/views/properties/"+vid+"/search",
		map[string]interface{}{"text": "villa"})
	assert.Equal(t, http.StatusAccepted, w.Code)

	// Wait out the debounce window, then drain the fetch.
	time.Sleep(60 * time.Millisecond)
	v, err := handler.views.get(vid)
	require.NoError(t, err)
	v.controller.Wait()

	w, body = doJSON(t, router, http.MethodGet, "/api/views/properties/"+vid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	query := body["query"].(map[string]interface{})
	assert.Equal(t, "villa", query["search"])
	assert.NotEmpty(t, body["data"])

	w, _ = doJSON(t, router, http.MethodDelete, "/api/views/properties/"+vid, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/views/properties/"+vid+"/sort",
		map[string]interface{}{"field": "price"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownCollection(t *testing.T) {
	router, _ := newTestRouter(t)
	w, _ := doJSON(t, router, http.MethodPost, "/api/views/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
