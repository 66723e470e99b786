package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"casaflow/server/config"
	"casaflow/server/internal/client"
	"casaflow/server/internal/form"
	"casaflow/server/internal/images"
	"casaflow/server/internal/listing"
	"casaflow/server/internal/location"
	"casaflow/server/internal/models"
	"casaflow/server/internal/preview"
	"casaflow/server/internal/store"
	"casaflow/server/internal/submit"
)

type Handler struct {
	api      *client.Client
	drafts   *store.Store
	logger   *logrus.Logger
	debounce time.Duration

	sessions *sessionRegistry
	views    *viewRegistry

	resolverOnce func() (*location.Resolver, error)
}

func NewHandler(api *client.Client, drafts *store.Store, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	h := &Handler{
		api:      api,
		drafts:   drafts,
		logger:   logger,
		debounce: time.Duration(cfg.Listing.DebounceMillis) * time.Millisecond,
		sessions: newSessionRegistry(),
		views:    newViewRegistry(),
	}
	h.resolverOnce = memoizeResolver(api, logger)
	return h
}

// memoizeResolver builds the location resolver from the municipality feed on
// first use. The reference set is static for the session, so one build is
// enough.
func memoizeResolver(api *client.Client, logger *logrus.Logger) func() (*location.Resolver, error) {
	var mu sync.Mutex
	var resolver *location.Resolver
	return func() (*location.Resolver, error) {
		mu.Lock()
		defer mu.Unlock()
		if resolver != nil {
			return resolver, nil
		}
		municipalities, err := api.Municipalities(context.Background())
		if err != nil {
			return nil, err
		}
		resolver = location.NewResolver(municipalities)
		logger.WithField("count", len(municipalities)).Info("Location resolver ready")
		return resolver, nil
	}
}

type createDraftRequest struct {
	PropertyID *int64  `json:"property_id"`
	ResumeID   *string `json:"resume_id"`
}

type draftResponse struct {
	SessionID string                `json:"session_id"`
	Draft     *models.PropertyDraft `json:"draft"`
	Previews  []models.ImagePreview `json:"previews"`
}

func (h *Handler) sessionBody(s *editSession) draftResponse {
	return draftResponse{
		SessionID: s.id,
		Draft:     s.draft,
		Previews:  s.reconciler.Previews(),
	}
}

// CreateDraft opens an editing session: empty for creation, hydrated from
// the marketplace record for edit mode, or rebuilt from an autosave when a
// resume id names one.
func (h *Handler) CreateDraft(c *gin.Context) {
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.ResumeID != nil && req.PropertyID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resume_id and property_id are mutually exclusive"})
		return
	}

	if req.ResumeID != nil {
		h.resumeDraft(c, *req.ResumeID)
		return
	}

	var draft *models.PropertyDraft
	if req.PropertyID != nil {
		rec, err := h.api.GetProperty(c.Request.Context(), *req.PropertyID)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load property for editing")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load property"})
			return
		}
		draft = models.HydrateDraft(rec)
	} else {
		draft = models.NewDraft()
		form.EnsureReferenceNumber(draft)
	}

	s := h.sessions.create(h.api, draft, h.logger, "")
	h.autosave(s)
	c.JSON(http.StatusCreated, h.sessionBody(s))
}

// resumeDraft rebuilds a session from its autosave row. The session keeps
// its original id so further autosaves update the same row. Locally-added
// image bytes do not survive a restart; the draft's existing images are
// re-seeded from the autosave.
func (h *Handler) resumeDraft(c *gin.Context, sessionID string) {
	draft, ok, err := h.drafts.LoadDraft(sessionID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load draft autosave")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load autosave"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No autosave for that id"})
		return
	}

	s := h.sessions.create(h.api, draft, h.logger, sessionID)
	h.logger.WithField("session_id", sessionID).Info("Resumed draft from autosave")
	c.JSON(http.StatusCreated, h.sessionBody(s))
}

// ListAutosaves enumerates recoverable autosaves, newest first.
func (h *Handler) ListAutosaves(c *gin.Context) {
	summaries, err := h.drafts.ListDrafts()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list draft autosaves")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list autosaves"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// GetDraft returns the session's current draft and preview list.
func (h *Handler) GetDraft(c *gin.Context) {
	s, err := h.sessions.get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, h.sessionBody(s))
}

// AbandonDraft tears the session down and drops its autosave.
func (h *Handler) AbandonDraft(c *gin.Context) {
	sid := c.Param("sid")
	h.sessions.drop(sid)
	if err := h.drafts.DeleteDraft(sid); err != nil {
		h.logger.WithError(err).Error("Failed to delete draft autosave")
	}
	c.JSON(http.StatusOK, gin.H{"status": "abandoned"})
}

type updateFieldsRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	PropertyType   *string `json:"property_type"`
	SaleType       *string `json:"sale_type"`
	Address        *string `json:"address"`
	AddressDetails *string `json:"address_details"`

	Price            *string `json:"price"`
	Surface          *string `json:"surface"`
	Bedrooms         *string `json:"bedrooms"`
	Bathrooms        *string `json:"bathrooms"`
	Kitchens         *string `json:"kitchens"`
	Rooms            *string `json:"rooms"`
	Balconies        *string `json:"balconies"`
	Terraces         *string `json:"terraces"`
	Garages          *string `json:"garages"`
	Floors           *string `json:"floors"`
	ConstructionYear *string `json:"construction_year"`
	RenovationYear   *string `json:"renovation_year"`
	RentalGuarantee  *string `json:"rental_guarantee"`

	Coordinates *string `json:"coordinates"`

	Furnished *bool `json:"furnished"`
	Elevator  *bool `json:"elevator"`
	Parking   *bool `json:"parking"`
	Garden    *bool `json:"garden"`
	Pool      *bool `json:"pool"`
	Cellar    *bool `json:"cellar"`
	Attic     *bool `json:"attic"`

	Amenities *[]int `json:"amenities"`

	IsPublished *bool `json:"is_published"`
	IsFeatured  *bool `json:"is_featured"`
}

// UpdateFields applies a partial field update to the draft. Title edits go
// through the normalizer so slug rules hold.
func (h *Handler) UpdateFields(c *gin.Context) {
	s, err := h.sessions.get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req updateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft

	if req.Title != nil {
		form.ApplyTitle(d, *req.Title)
	}
	setString(&d.Description, req.Description)
	setString(&d.PropertyType, req.PropertyType)
	setString(&d.SaleType, req.SaleType)
	setString(&d.Address, req.Address)
	setString(&d.AddressDetails, req.AddressDetails)
	setString(&d.Price, req.Price)
	setString(&d.Surface, req.Surface)
	setString(&d.Bedrooms, req.Bedrooms)
	setString(&d.Bathrooms, req.Bathrooms)
	setString(&d.Kitchens, req.Kitchens)
	setString(&d.Rooms, req.Rooms)
	setString(&d.Balconies, req.Balconies)
	setString(&d.Terraces, req.Terraces)
	setString(&d.Garages, req.Garages)
	setString(&d.Floors, req.Floors)
	setString(&d.ConstructionYear, req.ConstructionYear)
	setString(&d.RenovationYear, req.RenovationYear)
	setString(&d.RentalGuarantee, req.RentalGuarantee)
	setString(&d.Coordinates, req.Coordinates)
	setBool(&d.Furnished, req.Furnished)
	setBool(&d.Elevator, req.Elevator)
	setBool(&d.Parking, req.Parking)
	setBool(&d.Garden, req.Garden)
	setBool(&d.Pool, req.Pool)
	setBool(&d.Cellar, req.Cellar)
	setBool(&d.Attic, req.Attic)
	setBool(&d.IsPublished, req.IsPublished)
	setBool(&d.IsFeatured, req.IsFeatured)

	if req.Amenities != nil {
		d.Amenities = make(map[int]bool, len(*req.Amenities))
		for _, id := range *req.Amenities {
			d.Amenities[id] = true
		}
	}

	h.autosave(s)
	c.JSON(http.StatusOK, h.sessionBody(s))
}

type updateLocationRequest struct {
	Country        *string `json:"country"`
	City           *string `json:"city"`
	MunicipalityID *int64  `json:"municipality_id"`
}

// UpdateLocation routes location edits through the hierarchy resolver so the
// cascade invariant holds after every change.
func (h *Handler) UpdateLocation(c *gin.Context) {
	s, err := h.sessions.get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resolver, err := h.resolverOnce()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load municipality reference data")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Reference data unavailable"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft

	if req.Country != nil {
		resolver.ApplyCountryChange(d, *req.Country)
	}
	if req.City != nil {
		resolver.ApplyCityChange(d, *req.City)
	}
	if req.MunicipalityID != nil {
		resolver.ApplyMunicipalityChange(d, *req.MunicipalityID)
	}

	h.autosave(s)
	c.JSON(http.StatusOK, gin.H{
		"draft":                    d,
		"available_cities":         resolver.AvailableCities(d.Country),
		"available_municipalities": resolver.AvailableMunicipalities(d.Country, d.City),
	})
}

// AddImages buffers the uploaded files and runs them through the reconciler.
// Non-image files are dropped; the response reports how many.
func (h *Handler) AddImages(c *gin.Context) {
	s, err := h.sessions.get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	mpForm, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	var files []models.FileHandle
	for _, fh := range mpForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable upload"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable upload"})
			return
		}
		files = append(files, preview.NewMemoryFile(fh.Filename, fh.Header.Get("Content-Type"), data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rejected := s.reconciler.AddFiles(s.draft, files)
	h.autosave(s)

	c.JSON(http.StatusOK, gin.H{
		"previews": s.reconciler.Previews(),
		"rejected": rejected,
	})
}

// RemoveImage drops the preview at the given index.
func (h *Handler) RemoveImage(c *gin.Context) {
	s, err := h.sessions.get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image index"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reconciler.Remove(s.draft, index); err != nil {
		if errors.Is(err, images.ErrIndexOutOfRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove image"})
		return
	}

	h.autosave(s)
	c.JSON(http.StatusOK, gin.H{"previews": s.reconciler.Previews()})
}

// SubmitDraft runs the submission orchestrator and maps its outcome onto
// HTTP statuses.
func (h *Handler) SubmitDraft(c *gin.Context) {
	s, err := h.sessions.get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wasEdit := s.draft.IsEditMode

	outcome := s.orchestrator.Submit(c.Request.Context(), s.draft)
	switch outcome.Status {
	case submit.StatusBlocked:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status": "blocked",
			"errors": outcome.FieldErrors,
		})
	case submit.StatusFailed:
		if len(outcome.FieldErrors) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"status": "failed",
				"errors": outcome.FieldErrors,
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "failed",
			"message": outcome.Message,
		})
	case submit.StatusSucceeded:
		if wasEdit {
			h.autosave(s)
		} else if err := h.drafts.DeleteDraft(s.id); err != nil {
			h.logger.WithError(err).Error("Failed to clear draft autosave")
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "succeeded",
			"draft":  s.draft,
			"record": outcome.Record,
		})
	}
}

// GenerateDescription asks the marketplace AI for descriptive text based on
// the draft's current state. Advisory only: failures are dismissible.
func (h *Handler) GenerateDescription(c *gin.Context) {
	s, err := h.sessions.get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	req := h.descriptionRequest(c.Request.Context(), s.draft)
	s.mu.Unlock()

	text, err := h.api.GenerateDescription(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("Description generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Description generation failed, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"description": text})
}

// descriptionRequest assembles the structured summary the AI endpoint wants,
// resolving amenity and municipality ids into names.
func (h *Handler) descriptionRequest(ctx context.Context, d *models.PropertyDraft) client.DescriptionRequest {
	payload := form.BuildPayload(d)
	req := client.DescriptionRequest{
		PropertyType: payload.PropertyType,
		SaleType:     payload.SaleType,
		Country:      payload.Country,
		City:         payload.City,
		Price:        payload.Price,
		Surface:      payload.Surface,
		Bedrooms:     payload.Bedrooms,
		Bathrooms:    payload.Bathrooms,
		Rooms:        payload.Rooms,
	}

	if amenities, err := h.api.Amenities(ctx); err == nil {
		byID := make(map[int]string, len(amenities))
		for _, a := range amenities {
			byID[a.ID] = a.Name
		}
		for _, id := range payload.Amenities {
			if name, ok := byID[id]; ok {
				req.Amenities = append(req.Amenities, name)
			}
		}
	}
	if d.MunicipalityID != nil {
		if resolver, err := h.resolverOnce(); err == nil {
			for _, m := range resolver.AvailableMunicipalities(d.Country, d.City) {
				if m.ID == *d.MunicipalityID {
					req.Municipality = m.Name
				}
			}
		}
	}
	return req
}

// Municipalities serves the cached municipality reference feed.
func (h *Handler) Municipalities(c *gin.Context) {
	municipalities, err := h.api.Municipalities(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch municipalities")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Reference data unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": municipalities})
}

// Amenities serves the cached amenity reference feed.
func (h *Handler) Amenities(c *gin.Context) {
	amenities, err := h.api.Amenities(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch amenities")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Reference data unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": amenities})
}

// CreateView instantiates a list controller for one collection.
func (h *Handler) CreateView(c *gin.Context) {
	collection := c.Param("collection")
	path, ok := collectionPaths[collection]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown collection"})
		return
	}

	fetch := func(q models.ListQuery) (listing.Page, error) {
		return h.api.FetchCollection(context.Background(), path, q)
	}
	controller := listing.NewController(fetch, h.logger, listing.WithDebounce(h.debounce))
	v := h.views.create(collection, controller)

	if err := controller.Refresh(); err != nil {
		h.logger.WithError(err).Error("Initial list fetch failed")
	}
	c.JSON(http.StatusCreated, gin.H{"view_id": v.id, "collection": collection})
}

type searchRequest struct {
	Text string `json:"text"`
}

// SearchView buffers a search edit; the request fires after the debounce
// window.
func (h *Handler) SearchView(c *gin.Context) {
	v, err := h.views.get(c.Param("vid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := v.controller.SetSearchText(req.Text); err != nil {
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "debouncing"})
}

type sortRequest struct {
	Field string `json:"field" binding:"required"`
}

// SortView adopts or toggles the sort field and fetches immediately.
func (h *Handler) SortView(c *gin.Context) {
	v, err := h.views.get(c.Param("vid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req sortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := v.controller.SetSort(req.Field); err != nil {
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": v.controller.Snapshot().Query})
}

type pageRequest struct {
	URL          string `json:"url" binding:"required"`
	ScrollOffset *int   `json:"scroll_offset"`
}

// PageView follows a pagination link, carrying the current search/sort along
// and preserving the caller's scroll position.
func (h *Handler) PageView(c *gin.Context) {
	v, err := h.views.get(c.Param("vid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.ScrollOffset != nil {
		v.controller.SetScrollOffset(*req.ScrollOffset)
	}
	merged, err := v.controller.GoToPage(req.URL)
	if err != nil {
		if errors.Is(err, listing.ErrControllerClosed) {
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": merged})
}

// GetView returns the view's current state.
func (h *Handler) GetView(c *gin.Context) {
	v, err := h.views.get(c.Param("vid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	st := v.controller.Snapshot()
	body := gin.H{
		"collection":    v.collection,
		"query":         st.Query,
		"data":          st.Data,
		"meta":          st.Meta,
		"scroll_offset": st.ScrollOffset,
	}
	if st.LastErr != nil {
		body["error"] = st.LastErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

// CloseView tears the view down; late responses become no-ops.
func (h *Handler) CloseView(c *gin.Context) {
	h.views.drop(c.Param("vid"))
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// DeleteProperty proxies the single-id delete action.
func (h *Handler) DeleteProperty(c *gin.Context) {
	h.singleIDAction(c, h.api.DeleteProperty)
}

// ApproveProperty proxies the single-id approve action.
func (h *Handler) ApproveProperty(c *gin.Context) {
	h.singleIDAction(c, h.api.ApproveProperty)
}

// ToggleFavorite proxies the single-id favorite toggle.
func (h *Handler) ToggleFavorite(c *gin.Context) {
	h.singleIDAction(c, h.api.ToggleFavorite)
}

func (h *Handler) singleIDAction(c *gin.Context, action func(context.Context, int64) error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property id"})
		return
	}
	if err := action(c.Request.Context(), id); err != nil {
		h.logger.WithError(err).WithField("property_id", id).Error("Property action failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Action failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// autosave persists the session's draft; callers hold the session lock.
func (h *Handler) autosave(s *editSession) {
	if h.drafts == nil {
		return
	}
	if err := h.drafts.SaveDraft(s.id, s.draft); err != nil {
		h.logger.WithError(err).Error("Draft autosave failed")
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
