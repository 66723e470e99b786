package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"casaflow/server/internal/listing"
	"casaflow/server/internal/models"
)

// ValidationErrors is the structured field-error map the marketplace returns
// when a submission fails validation. It is surfaced verbatim, field by
// field, never reinterpreted.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(v))
}

// SubmitResult is the acknowledgment of a successful create/update, possibly
// carrying the canonical persisted record.
type SubmitResult struct {
	Record *models.PropertyRecord `json:"data"`
}

// DescriptionRequest is the structured summary sent to the description
// generation endpoint. Purely advisory; never required for submission.
type DescriptionRequest struct {
	PropertyType string   `json:"property_type"`
	SaleType     string   `json:"sale_type"`
	Country      string   `json:"country"`
	City         string   `json:"city"`
	Municipality string   `json:"municipality"`
	Price        float64  `json:"price"`
	Surface      *float64 `json:"surface"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Rooms        int      `json:"rooms"`
	Amenities    []string `json:"amenities"`
}

// Client talks to the marketplace core API. Reference data is fetched once
// and cached for the session.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger

	refLock        sync.Mutex
	municipalities []models.Municipality
	amenities      []models.Amenity
}

// NewClient creates a marketplace API client.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// GetProperty fetches the full record of one property.
func (c *Client) GetProperty(ctx context.Context, id int64) (models.PropertyRecord, error) {
	var wrapper struct {
		Data models.PropertyRecord `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/properties/%d", id), nil, &wrapper); err != nil {
		return models.PropertyRecord{}, err
	}
	return wrapper.Data, nil
}

// CreateProperty submits a new property as a multipart request: the payload
// as a JSON part plus one part per new image.
func (c *Client) CreateProperty(ctx context.Context, payload models.SubmissionPayload, images []models.FileHandle) (SubmitResult, error) {
	return c.submit(ctx, http.MethodPost, "/api/properties", payload, images)
}

// UpdateProperty submits changes to an existing property. Multipart is used
// whether or not new images are attached, keeping a single code path.
func (c *Client) UpdateProperty(ctx context.Context, id int64, payload models.SubmissionPayload, images []models.FileHandle) (SubmitResult, error) {
	return c.submit(ctx, http.MethodPut, fmt.Sprintf("/api/properties/%d", id), payload, images)
}

func (c *Client) submit(ctx context.Context, method, path string, payload models.SubmissionPayload, images []models.FileHandle) (SubmitResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := writer.WriteField("payload", string(payloadJSON)); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to write payload part: %w", err)
	}

	for i, img := range images {
		part, err := writer.CreateFormFile(fmt.Sprintf("images[%d]", i), img.Name())
		if err != nil {
			return SubmitResult{}, fmt.Errorf("failed to create image part: %w", err)
		}
		rc, err := img.Open()
		if err != nil {
			return SubmitResult{}, fmt.Errorf("failed to open image %q: %w", img.Name(), err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return SubmitResult{}, fmt.Errorf("failed to copy image %q: %w", img.Name(), err)
		}
	}

	if err := writer.Close(); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return SubmitResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"images": len(images),
	}).Info("Submitting property")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to read submission response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var errBody struct {
			Errors ValidationErrors `json:"errors"`
		}
		if err := json.Unmarshal(raw, &errBody); err != nil || len(errBody.Errors) == 0 {
			return SubmitResult{}, fmt.Errorf("submission rejected with unreadable error body")
		}
		return SubmitResult{}, errBody.Errors
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SubmitResult{}, fmt.Errorf("submission failed with status %d", resp.StatusCode)
	}

	var result SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// An empty acknowledgment body is acceptable.
		c.logger.WithError(err).Debug("Submission response body not parseable as record")
	}
	return result, nil
}

// FetchCollection queries one collection endpoint (properties, favorites,
// plans) with the full current list query.
func (c *Client) FetchCollection(ctx context.Context, path string, q models.ListQuery) (listing.Page, error) {
	params := url.Values{}
	if q.SearchText != "" {
		params.Set("search", q.SearchText)
	}
	if q.SortField != "" {
		params.Set("sort_field", q.SortField)
		params.Set("sort_direction", q.SortDirection)
	}
	params.Set("page", strconv.Itoa(q.Page))

	var page listing.Page
	if err := c.getJSON(ctx, path, params, &page); err != nil {
		return listing.Page{}, err
	}
	return page, nil
}

// Municipalities returns the municipality reference set, fetched once per
// session.
func (c *Client) Municipalities(ctx context.Context) ([]models.Municipality, error) {
	c.refLock.Lock()
	defer c.refLock.Unlock()

	if c.municipalities != nil {
		return c.municipalities, nil
	}

	var wrapper struct {
		Data []models.Municipality `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/reference/municipalities", nil, &wrapper); err != nil {
		return nil, err
	}
	c.municipalities = wrapper.Data
	c.logger.WithField("count", len(wrapper.Data)).Info("Loaded municipality reference data")
	return c.municipalities, nil
}

// Amenities returns the amenity reference set, fetched once per session.
func (c *Client) Amenities(ctx context.Context) ([]models.Amenity, error) {
	c.refLock.Lock()
	defer c.refLock.Unlock()

	if c.amenities != nil {
		return c.amenities, nil
	}

	var wrapper struct {
		Data []models.Amenity `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/reference/amenities", nil, &wrapper); err != nil {
		return nil, err
	}
	c.amenities = wrapper.Data
	return c.amenities, nil
}

// GenerateDescription asks the marketplace's AI endpoint for descriptive
// text. Failures are transient: the caller may retry or just move on.
func (c *Client) GenerateDescription(ctx context.Context, req DescriptionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/descriptions/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("description request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("description generation failed with status %d", resp.StatusCode)
	}

	var result struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse description response: %w", err)
	}
	return result.Description, nil
}

// DeleteProperty removes a property. Fire-and-acknowledge.
func (c *Client) DeleteProperty(ctx context.Context, id int64) error {
	return c.action(ctx, http.MethodDelete, fmt.Sprintf("/api/properties/%d", id))
}

// ApproveProperty approves a pending property. Fire-and-acknowledge.
func (c *Client) ApproveProperty(ctx context.Context, id int64) error {
	return c.action(ctx, http.MethodPost, fmt.Sprintf("/api/properties/%d/approve", id))
}

// ToggleFavorite flips the favorite flag on a property. Fire-and-acknowledge.
func (c *Client) ToggleFavorite(ctx context.Context, id int64) error {
	return c.action(ctx, http.MethodPost, fmt.Sprintf("/api/properties/%d/favorite", id))
}

func (c *Client) action(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s failed with status %d", method, path, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s failed with status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}
