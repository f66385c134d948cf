package models

// Geometry is a GeoJSON point; coordinates are [longitude, latitude].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// LocationProperties are the non-spatial attributes of a POI.
type LocationProperties struct {
	PK          int       `json:"pk"`
	Name        string    `json:"name"`
	Address     *string   `json:"address"`
	Description *string   `json:"description"`
	Email       *string   `json:"email"`
	Website     *string   `json:"website"`
	Phone       *string   `json:"phone"`
	Category    *Category `json:"category"`
}

// Location is a GeoJSON feature describing a single POI.
// Geometry is nil for entries that have not been geocoded.
type Location struct {
	ID         *int               `json:"id,omitempty"`
	Type       string             `json:"type"`
	Geometry   *Geometry          `json:"geometry"`
	Properties LocationProperties `json:"properties"`
}

// Geocoded reports whether the feature can be placed on the map.
func (l Location) Geocoded() bool {
	return l.Geometry != nil && len(l.Geometry.Coordinates) >= 2
}

// LngLat returns longitude and latitude. ok is false for non-geocoded features.
func (l Location) LngLat() (lng, lat float64, ok bool) {
	if !l.Geocoded() {
		return 0, 0, false
	}
	return l.Geometry.Coordinates[0], l.Geometry.Coordinates[1], true
}

// CategoryPK returns the pk of the feature's category, or 0 when it has none.
func (l Location) CategoryPK() int {
	if l.Properties.Category == nil {
		return 0
	}
	return l.Properties.Category.PK
}

// FeatureCollection is the response of GET /api/locations/.
type FeatureCollection struct {
	Type     string     `json:"type"` // "FeatureCollection"
	Features []Location `json:"features"`
}

// EmptyFeatureCollection is handed to consumers while the real collection is pending or failed.
func EmptyFeatureCollection() FeatureCollection {
	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Location{},
	}
}

// FindByPK returns the feature with the given pk.
func (fc FeatureCollection) FindByPK(pk int) (*Location, bool) {
	for i := range fc.Features {
		if fc.Features[i].Properties.PK == pk {
			loc := fc.Features[i]
			return &loc, true
		}
	}
	return nil, false
}

// Contains reports whether a feature with the given pk is part of the collection.
func (fc FeatureCollection) Contains(pk int) bool {
	_, ok := fc.FindByPK(pk)
	return ok
}
