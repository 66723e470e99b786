package models

// Municipality is read-only reference data from the marketplace: the smallest
// administrative unit used for filtering, scoped under a city and country.
type Municipality struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// Amenity is an externally-defined amenity identifier/name pair.
type Amenity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
