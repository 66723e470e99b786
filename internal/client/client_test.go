package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casaflow/server/internal/models"
	"casaflow/server/internal/preview"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, 5*time.Second, logrus.New()), srv
}

func TestGetProperty(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/properties/42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":          42,
				"title":       "Sea View Apartment",
				"price":       125000.5,
				"is_approved": "1",
				"images": []map[string]interface{}{
					{"id": 7, "url": "https://cdn.example.com/7.jpg", "original_name": "front.jpg"},
				},
			},
		})
	}))
	defer srv.Close()

	rec, err := c.GetProperty(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "Sea View Apartment", rec.Title)
	assert.Equal(t, models.StatusApproved, rec.Approval())
	require.Len(t, rec.Images, 1)
	assert.Equal(t, "front.jpg", rec.Images[0].OriginalName)
}

func TestCreatePropertySendsMultipart(t *testing.T) {
	var gotPayload models.SubmissionPayload
	var gotImageNames []string

	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))

		require.NoError(t, json.Unmarshal([]byte(r.FormValue("payload")), &gotPayload))
		for _, files := range r.MultipartForm.File {
			for _, fh := range files {
				gotImageNames = append(gotImageNames, fh.Filename)
			}
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": 99, "title": gotPayload.Title},
		})
	}))
	defer srv.Close()

	payload := models.SubmissionPayload{Title: "New Villa", Price: 300000}
	images := []models.FileHandle{
		preview.NewMemoryFile("a.jpg", "image/jpeg", []byte("aaa")),
		preview.NewMemoryFile("b.jpg", "image/jpeg", []byte("bbb")),
	}

	result, err := c.CreateProperty(context.Background(), payload, images)
	require.NoError(t, err)
	require.NotNil(t, result.Record)
	assert.Equal(t, int64(99), result.Record.ID)
	assert.Equal(t, "New Villa", gotPayload.Title)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, gotImageNames)
}

func TestUpdatePropertyWithoutImagesStillMultipart(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/properties/7", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := c.UpdateProperty(context.Background(), 7, models.SubmissionPayload{Title: "t"}, nil)
	assert.NoError(t, err)
}

func TestSubmitValidationErrors(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": map[string]string{
				"price":   "must be greater than zero",
				"surface": "is required",
			},
		})
	}))
	defer srv.Close()

	_, err := c.CreateProperty(context.Background(), models.SubmissionPayload{}, nil)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "must be greater than zero", verrs["price"])
	assert.Equal(t, "is required", verrs["surface"])
}

func TestFetchCollectionCarriesQuery(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/favorites", r.URL.Path)
		assert.Equal(t, "villa", r.URL.Query().Get("search"))
		assert.Equal(t, "price", r.URL.Query().Get("sort_field"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort_direction"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"id": 1}, {"id": 2}},
			"meta": map[string]interface{}{"current_page": 2, "total": 12},
		})
	}))
	defer srv.Close()

	page, err := c.FetchCollection(context.Background(), "/api/favorites", models.ListQuery{
		SearchText:    "villa",
		SortField:     "price",
		SortDirection: "desc",
		Page:          2,
	})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Meta.CurrentPage)
	assert.Equal(t, 12, page.Meta.Total)
}

func TestMunicipalitiesCachedPerSession(t *testing.T) {
	var hits int32
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": 1, "name": "Gombe", "country": "CD", "city": "Kinshasa"},
			},
		})
	}))
	defer srv.Close()

	first, err := c.Municipalities(context.Background())
	require.NoError(t, err)
	second, err := c.Municipalities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGenerateDescription(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req DescriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "apartment", req.PropertyType)
		json.NewEncoder(w).Encode(map[string]string{"description": "A bright apartment."})
	}))
	defer srv.Close()

	text, err := c.GenerateDescription(context.Background(), DescriptionRequest{PropertyType: "apartment"})
	require.NoError(t, err)
	assert.Equal(t, "A bright apartment.", text)
}

func TestSingleIDActions(t *testing.T) {
	var paths []string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	assert.NoError(t, c.DeleteProperty(ctx, 5))
	assert.NoError(t, c.ApproveProperty(ctx, 5))
	assert.NoError(t, c.ToggleFavorite(ctx, 5))

	assert.Equal(t, []string{
		"DELETE /api/properties/5",
		"POST /api/properties/5/approve",
		"POST /api/properties/5/favorite",
	}, paths)
}

func TestActionErrorStatus(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := c.DeleteProperty(context.Background(), 1)
	assert.ErrorContains(t, err, "403")
}
