package models

import (
	"io"
	"sort"
	"strconv"
)

// FileHandle is a locally-held binary image that has not been persisted yet.
// The preview manager mints display URLs for handles; the client streams them
// into multipart submissions.
type FileHandle interface {
	Name() string
	ContentType() string
	Open() (io.ReadCloser, error)
}

// ExistingImage is image metadata the marketplace already knows about.
type ExistingImage struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
}

// PropertyDraft is the in-progress representation of a property being created
// or edited. Numeric fields stay input-friendly strings while editing; blank
// means unset, except count fields which default to "0".
type PropertyDraft struct {
	ID *int64 `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`
	// PropertyType is an externally-defined type identifier (house, apartment, ...).
	PropertyType string `json:"property_type"`
	// SaleType is the transaction kind: "sale" or "rent".
	SaleType string `json:"sale_type"`

	Address        string `json:"address"`
	AddressDetails string `json:"address_details"`

	Price            string `json:"price"`
	Surface          string `json:"surface"`
	Bedrooms         string `json:"bedrooms"`
	Bathrooms        string `json:"bathrooms"`
	Kitchens         string `json:"kitchens"`
	Rooms            string `json:"rooms"`
	Balconies        string `json:"balconies"`
	Terraces         string `json:"terraces"`
	Garages          string `json:"garages"`
	Floors           string `json:"floors"`
	ConstructionYear string `json:"construction_year"`
	RenovationYear   string `json:"renovation_year"`
	RentalGuarantee  string `json:"rental_guarantee"`

	Country        string `json:"country"`
	City           string `json:"city"`
	MunicipalityID *int64 `json:"municipality_id"`
	// Coordinates is optional free text, nominally "lat,lng".
	Coordinates string `json:"coordinates"`

	Furnished bool `json:"furnished"`
	Elevator  bool `json:"elevator"`
	Parking   bool `json:"parking"`
	Garden    bool `json:"garden"`
	Pool      bool `json:"pool"`
	Cellar    bool `json:"cellar"`
	Attic     bool `json:"attic"`

	Amenities map[int]bool `json:"amenities"`

	// Images holds new, not-yet-uploaded binary handles in display order.
	Images []FileHandle `json:"-"`
	// ExistingImages are server-known images in display order.
	ExistingImages []ExistingImage `json:"existing_images"`
	// ImagesToDelete marks existing-image ids for removal on the next submit.
	ImagesToDelete map[int64]bool `json:"images_to_delete"`

	Slug            string `json:"slug"`
	ReferenceNumber string `json:"reference_number"`

	IsPublished bool `json:"is_published"`
	IsFeatured  bool `json:"is_featured"`

	IsEditMode bool `json:"is_edit_mode"`
}

// NewDraft returns an empty creation-mode draft with count fields zeroed.
func NewDraft() *PropertyDraft {
	return &PropertyDraft{
		Bedrooms:       "0",
		Bathrooms:      "0",
		Kitchens:       "0",
		Rooms:          "0",
		Balconies:      "0",
		Terraces:       "0",
		Garages:        "0",
		Amenities:      make(map[int]bool),
		ImagesToDelete: make(map[int64]bool),
	}
}

// HydrateDraft builds an edit-mode draft from a server-provided record.
// Hydration fills the location fields directly and never triggers the
// cascade clearing that user-driven changes do.
func HydrateDraft(rec PropertyRecord) *PropertyDraft {
	d := NewDraft()
	id := rec.ID
	d.ID = &id
	d.IsEditMode = true

	d.Title = rec.Title
	d.Description = rec.Description
	d.PropertyType = rec.PropertyType
	d.SaleType = rec.SaleType
	d.Address = rec.Address
	d.AddressDetails = rec.AddressDetails

	d.Price = formatFloat(rec.Price)
	d.Surface = formatFloatPtr(rec.Surface)
	d.Bedrooms = formatIntOrZero(rec.Bedrooms)
	d.Bathrooms = formatIntOrZero(rec.Bathrooms)
	d.Kitchens = formatIntOrZero(rec.Kitchens)
	d.Rooms = formatIntOrZero(rec.Rooms)
	d.Balconies = formatIntOrZero(rec.Balconies)
	d.Terraces = formatIntOrZero(rec.Terraces)
	d.Garages = formatIntOrZero(rec.Garages)
	d.Floors = formatIntPtr(rec.Floors)
	d.ConstructionYear = formatIntPtr(rec.ConstructionYear)
	d.RenovationYear = formatIntPtr(rec.RenovationYear)
	d.RentalGuarantee = formatFloatPtr(rec.RentalGuarantee)

	d.Country = rec.Country
	d.City = rec.City
	d.MunicipalityID = rec.MunicipalityID
	d.Coordinates = rec.Coordinates

	d.Furnished = rec.Furnished
	d.Elevator = rec.Elevator
	d.Parking = rec.Parking
	d.Garden = rec.Garden
	d.Pool = rec.Pool
	d.Cellar = rec.Cellar
	d.Attic = rec.Attic

	for _, amenityID := range rec.Amenities {
		d.Amenities[amenityID] = true
	}
	d.ExistingImages = append(d.ExistingImages, rec.Images...)

	d.Slug = rec.Slug
	d.ReferenceNumber = rec.ReferenceNumber
	d.IsPublished = rec.IsPublished
	d.IsFeatured = rec.IsFeatured

	return d
}

// Reset returns the draft to the empty creation-mode state. New image handles
// are dropped here; releasing their preview URLs is the caller's job.
func (d *PropertyDraft) Reset() {
	*d = *NewDraft()
}

// AmenityIDs returns the amenity set as a sorted slice.
func (d *PropertyDraft) AmenityIDs() []int {
	ids := make([]int, 0, len(d.Amenities))
	for id := range d.Amenities {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ImagesToDeleteIDs returns the deletion set as a sorted slice.
func (d *PropertyDraft) ImagesToDeleteIDs() []int64 {
	ids := make([]int64, 0, len(d.ImagesToDelete))
	for id := range d.ImagesToDelete {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func formatIntOrZero(i *int) string {
	if i == nil {
		return "0"
	}
	return strconv.Itoa(*i)
}
