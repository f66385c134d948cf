// Package spatial computes the map camera and the extent of visible pins.
package spatial

import (
	"diaspora-map/internal/models"

	"github.com/golang/geo/s2"
)

const (
	DefaultLatitude  = 52.518008
	DefaultLongitude = 13.390954
	DefaultZoom      = 11.1

	// FocusZoom is used when flying to a selected location.
	FocusZoom = 13
	// focusLatOffset shifts the camera south so the pin sits above the detail panel.
	focusLatOffset = 0.006
)

// DefaultViewport frames central Berlin.
func DefaultViewport() models.Viewport {
	return models.Viewport{
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		Zoom:      DefaultZoom,
	}
}

// Valid reports whether lng/lat is a real position on the sphere.
func Valid(lng, lat float64) bool {
	return s2.LatLngFromDegrees(lat, lng).IsValid()
}

// FocusOn returns the camera for a selected location, or the default camera
// when the location cannot be placed.
func FocusOn(loc *models.Location) models.Viewport {
	if loc == nil {
		return DefaultViewport()
	}
	lng, lat, ok := loc.LngLat()
	if !ok || !Valid(lng, lat) {
		return DefaultViewport()
	}
	return models.Viewport{
		Latitude:  lat - focusLatOffset,
		Longitude: lng,
		Zoom:      FocusZoom,
	}
}

// BoundsOf returns the smallest lat/lng rectangle holding every pin, or nil
// when there are none.
func BoundsOf(pins []models.Pin) *models.Bounds {
	rect := s2.EmptyRect()
	for _, p := range pins {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Latitude, p.Longitude))
	}
	if rect.IsEmpty() {
		return nil
	}
	lo, hi := rect.Lo(), rect.Hi()
	return &models.Bounds{
		South: lo.Lat.Degrees(),
		West:  lo.Lng.Degrees(),
		North: hi.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
	}
}
