package location

import (
	"sort"

	"casaflow/server/internal/models"
)

// Resolver derives the valid city and municipality sets for a draft from the
// municipality reference data. It is a pure in-memory lookup: the reference
// set is supplied once and indexed, never fetched or mutated here.
type Resolver struct {
	byCountry map[string][]models.Municipality
}

// NewResolver indexes the supplied reference set.
func NewResolver(municipalities []models.Municipality) *Resolver {
	r := &Resolver{byCountry: make(map[string][]models.Municipality)}
	for _, m := range municipalities {
		r.byCountry[m.Country] = append(r.byCountry[m.Country], m)
	}
	return r
}

// AvailableCities returns the distinct non-empty city names of the given
// country, sorted. Empty when the country is unset or unknown.
func (r *Resolver) AvailableCities(country string) []string {
	if country == "" {
		return nil
	}
	seen := make(map[string]bool)
	var cities []string
	for _, m := range r.byCountry[country] {
		if m.City == "" || seen[m.City] {
			continue
		}
		seen[m.City] = true
		cities = append(cities, m.City)
	}
	sort.Strings(cities)
	return cities
}

// AvailableMunicipalities returns the municipalities matching both country
// and city. Empty when either is unset.
func (r *Resolver) AvailableMunicipalities(country, city string) []models.Municipality {
	if country == "" || city == "" {
		return nil
	}
	var out []models.Municipality
	for _, m := range r.byCountry[country] {
		if m.City == city {
			out = append(out, m)
		}
	}
	return out
}

// ApplyCountryChange sets the draft's country. If the previously-selected
// city is not valid under the new country, city and municipality are cleared
// together in the same transition.
func (r *Resolver) ApplyCountryChange(d *models.PropertyDraft, newCountry string) {
	d.Country = newCountry
	if d.City == "" {
		return
	}
	for _, c := range r.AvailableCities(newCountry) {
		if c == d.City {
			// City survives; municipality may still be stale if it belonged
			// to the same-named city of another country.
			r.clearInvalidMunicipality(d)
			return
		}
	}
	d.City = ""
	d.MunicipalityID = nil
}

// ApplyCityChange sets the draft's city and clears the municipality when it
// is not among the new city's municipalities.
func (r *Resolver) ApplyCityChange(d *models.PropertyDraft, newCity string) {
	d.City = newCity
	r.clearInvalidMunicipality(d)
}

// ApplyMunicipalityChange sets the municipality only when it is valid for the
// draft's current (country, city); invalid selections clear the field.
func (r *Resolver) ApplyMunicipalityChange(d *models.PropertyDraft, id int64) {
	for _, m := range r.AvailableMunicipalities(d.Country, d.City) {
		if m.ID == id {
			d.MunicipalityID = &id
			return
		}
	}
	d.MunicipalityID = nil
}

func (r *Resolver) clearInvalidMunicipality(d *models.PropertyDraft) {
	if d.MunicipalityID == nil {
		return
	}
	for _, m := range r.AvailableMunicipalities(d.Country, d.City) {
		if m.ID == *d.MunicipalityID {
			return
		}
	}
	d.MunicipalityID = nil
}
