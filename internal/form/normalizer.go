package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"casaflow/server/internal/models"
)

var (
	nonWordChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Slugify converts a title into a URL-safe slug: lowercase, non-word and
// non-space characters stripped, whitespace collapsed to hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// EnsureReferenceNumber synthesizes an opaque reference token for new drafts.
// It is generated once and never regenerated; edit-mode drafts keep whatever
// the server assigned.
func EnsureReferenceNumber(d *models.PropertyDraft) {
	if d.IsEditMode || d.ReferenceNumber != "" {
		return
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	d.ReferenceNumber = fmt.Sprintf("REF-%d-%s", time.Now().UnixMilli(), strings.ToUpper(suffix))
}

// ApplyTitle sets the title and recomputes the slug, except in edit mode with
// an already-set slug: title edits alone must never silently change a
// published property's slug.
func ApplyTitle(d *models.PropertyDraft, title string) {
	d.Title = title
	if d.IsEditMode && d.Slug != "" {
		return
	}
	d.Slug = Slugify(title)
}

// requiredFields maps payload field names to their presence check.
var requiredFields = []struct {
	name    string
	present func(*models.PropertyDraft) bool
}{
	{"title", func(d *models.PropertyDraft) bool { return strings.TrimSpace(d.Title) != "" }},
	{"property_type", func(d *models.PropertyDraft) bool { return d.PropertyType != "" }},
	{"sale_type", func(d *models.PropertyDraft) bool { return d.SaleType != "" }},
	{"municipality_id", func(d *models.PropertyDraft) bool { return d.MunicipalityID != nil }},
	{"price", func(d *models.PropertyDraft) bool { return strings.TrimSpace(d.Price) != "" }},
	{"surface", func(d *models.PropertyDraft) bool { return strings.TrimSpace(d.Surface) != "" }},
	{"bedrooms", func(d *models.PropertyDraft) bool { return strings.TrimSpace(d.Bedrooms) != "" }},
}

// MissingRequired returns the required fields the draft does not fill yet.
// Building a payload for an incomplete draft is allowed; submitting one is
// the orchestrator's call to block.
func MissingRequired(d *models.PropertyDraft) []string {
	var missing []string
	for _, f := range requiredFields {
		if !f.present(d) {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// BuildPayload converts the string-typed draft into the typed submission
// payload. Blank or unparseable optional numerics become nil; count fields
// fall back to 0; price always carries a number.
func BuildPayload(d *models.PropertyDraft) models.SubmissionPayload {
	p := models.SubmissionPayload{
		Title:          d.Title,
		Description:    d.Description,
		PropertyType:   d.PropertyType,
		SaleType:       d.SaleType,
		Address:        d.Address,
		AddressDetails: d.AddressDetails,

		Price:            moneyOrZero(d.Price),
		Surface:          moneyPtr(d.Surface),
		Bedrooms:         countOrZero(d.Bedrooms),
		Bathrooms:        countOrZero(d.Bathrooms),
		Kitchens:         countOrZero(d.Kitchens),
		Rooms:            countOrZero(d.Rooms),
		Balconies:        countOrZero(d.Balconies),
		Terraces:         countOrZero(d.Terraces),
		Garages:          countOrZero(d.Garages),
		Floors:           intPtr(d.Floors),
		ConstructionYear: intPtr(d.ConstructionYear),
		RenovationYear:   intPtr(d.RenovationYear),

		Country:        d.Country,
		City:           d.City,
		MunicipalityID: d.MunicipalityID,
		Coordinates:    ParseCoordinates(d.Coordinates),

		Furnished: d.Furnished,
		Elevator:  d.Elevator,
		Parking:   d.Parking,
		Garden:    d.Garden,
		Pool:      d.Pool,
		Cellar:    d.Cellar,
		Attic:     d.Attic,

		Amenities: d.AmenityIDs(),

		Slug:            d.Slug,
		ReferenceNumber: d.ReferenceNumber,
		IsPublished:     d.IsPublished,
		IsFeatured:      d.IsFeatured,
	}

	// The guarantee only makes sense for rentals; whatever the field holds,
	// sales submit nil.
	if d.SaleType == "rent" {
		p.RentalGuarantee = moneyPtr(d.RentalGuarantee)
	}

	// An empty deletion set must be omitted, not sent as [].
	if ids := d.ImagesToDeleteIDs(); len(ids) > 0 {
		p.ImagesToDelete = ids
	}

	return p
}

// ParseCoordinates parses the free-text "lat,lng" field into a point.
// Returns nil for blank or malformed input.
func ParseCoordinates(s string) *orb.Point {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	pt := orb.Point{lng, lat}
	return &pt
}

func moneyOrZero(s string) float64 {
	dec, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || dec.IsNegative() {
		return 0
	}
	return dec.InexactFloat64()
}

func moneyPtr(s string) *float64 {
	dec, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || dec.IsNegative() {
		return nil
	}
	f := dec.InexactFloat64()
	return &f
}

func countOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func intPtr(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
