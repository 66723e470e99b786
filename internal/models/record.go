package models

// PropertyRecord is the full property as returned by the marketplace API.
// Numeric fields arrive typed; hydration converts them back into the
// input-friendly strings the draft carries while editing.
type PropertyRecord struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	PropertyType     string          `json:"property_type"`
	SaleType         string          `json:"sale_type"`
	Address          string          `json:"address"`
	AddressDetails   string          `json:"address_details"`
	Price            float64         `json:"price"`
	Surface          *float64        `json:"surface"`
	Bedrooms         *int            `json:"bedrooms"`
	Bathrooms        *int            `json:"bathrooms"`
	Kitchens         *int            `json:"kitchens"`
	Rooms            *int            `json:"rooms"`
	Balconies        *int            `json:"balconies"`
	Terraces         *int            `json:"terraces"`
	Garages          *int            `json:"garages"`
	Floors           *int            `json:"floors"`
	ConstructionYear *int            `json:"construction_year"`
	RenovationYear   *int            `json:"renovation_year"`
	RentalGuarantee  *float64        `json:"rental_guarantee"`
	Country          string          `json:"country"`
	City             string          `json:"city"`
	MunicipalityID   *int64          `json:"municipality_id"`
	Coordinates      string          `json:"coordinates"`
	Furnished        bool            `json:"furnished"`
	Elevator         bool            `json:"elevator"`
	Parking          bool            `json:"parking"`
	Garden           bool            `json:"garden"`
	Pool             bool            `json:"pool"`
	Cellar           bool            `json:"cellar"`
	Attic            bool            `json:"attic"`
	Amenities        []int           `json:"amenities"`
	Images           []ExistingImage `json:"images"`
	Slug             string          `json:"slug"`
	ReferenceNumber  string          `json:"reference_number"`
	IsPublished      bool            `json:"is_published"`
	IsFeatured       bool            `json:"is_featured"`
	// IsApproved arrives duck-typed from the server: bool, 0/1, "true"/"false"
	// or an enum string. Use Approval() instead of branching on the raw value.
	IsApproved interface{} `json:"is_approved"`
}

// Approval normalizes the raw approval value into a tagged status.
func (r PropertyRecord) Approval() ApprovalStatus {
	return ParseApprovalStatus(r.IsApproved)
}
