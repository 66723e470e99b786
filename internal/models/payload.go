package models

import "github.com/paulmach/orb"

// SubmissionPayload is the typed form of a draft sent to the marketplace on
// create/update. Nullable numerics stay nil when the input was blank; count
// fields fall back to 0. Existing images are never part of the payload.
type SubmissionPayload struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	PropertyType   string `json:"property_type"`
	SaleType       string `json:"sale_type"`
	Address        string `json:"address"`
	AddressDetails string `json:"address_details"`

	Price            float64  `json:"price"`
	Surface          *float64 `json:"surface"`
	Bedrooms         int      `json:"bedrooms"`
	Bathrooms        int      `json:"bathrooms"`
	Kitchens         int      `json:"kitchens"`
	Rooms            int      `json:"rooms"`
	Balconies        int      `json:"balconies"`
	Terraces         int      `json:"terraces"`
	Garages          int      `json:"garages"`
	Floors           *int     `json:"floors"`
	ConstructionYear *int     `json:"construction_year"`
	RenovationYear   *int     `json:"renovation_year"`
	// RentalGuarantee is forced to nil unless the transaction kind is "rent".
	RentalGuarantee *float64 `json:"rental_guarantee"`

	Country        string `json:"country"`
	City           string `json:"city"`
	MunicipalityID *int64 `json:"municipality_id"`
	// Coordinates is the parsed form of the free-text lat,lng field, if valid.
	Coordinates *orb.Point `json:"coordinates,omitempty"`

	Furnished bool `json:"furnished"`
	Elevator  bool `json:"elevator"`
	Parking   bool `json:"parking"`
	Garden    bool `json:"garden"`
	Pool      bool `json:"pool"`
	Cellar    bool `json:"cellar"`
	Attic     bool `json:"attic"`

	Amenities []int `json:"amenities"`

	// ImagesToDelete is omitted when empty so an empty set is never mistaken
	// for a "delete everything" instruction.
	ImagesToDelete []int64 `json:"images_to_delete,omitempty"`

	Slug            string `json:"slug"`
	ReferenceNumber string `json:"reference_number"`
	IsPublished     bool   `json:"is_published"`
	IsFeatured      bool   `json:"is_featured"`
}
