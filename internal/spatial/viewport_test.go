package spatial

import (
	"testing"

	"diaspora-map/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(lng, lat float64) *models.Location {
	return &models.Location{
		Type:     "Feature",
		Geometry: &models.Geometry{Type: "Point", Coordinates: []float64{lng, lat}},
	}
}

func TestFocusOn(t *testing.T) {
	t.Run("nil selection keeps the default camera", func(t *testing.T) {
		assert.Equal(t, DefaultViewport(), FocusOn(nil))
	})

	t.Run("not geocoded", func(t *testing.T) {
		assert.Equal(t, DefaultViewport(), FocusOn(&models.Location{Type: "Feature"}))
	})

	t.Run("out of range coordinates", func(t *testing.T) {
		assert.Equal(t, DefaultViewport(), FocusOn(at(13.4, 123)))
	})

	t.Run("flies to the location", func(t *testing.T) {
		v := FocusOn(at(13.4, 52.52))
		assert.InDelta(t, 52.514, v.Latitude, 1e-9)
		assert.InDelta(t, 13.4, v.Longitude, 1e-9)
		assert.Equal(t, float64(FocusZoom), v.Zoom)
	})
}

func TestBoundsOf(t *testing.T) {
	assert.Nil(t, BoundsOf(nil))

	b := BoundsOf([]models.Pin{
		{Longitude: 13.30, Latitude: 52.50},
		{Longitude: 13.45, Latitude: 52.55},
		{Longitude: 13.40, Latitude: 52.48},
	})

	require.NotNil(t, b)
	assert.InDelta(t, 52.48, b.South, 1e-9)
	assert.InDelta(t, 52.55, b.North, 1e-9)
	assert.InDelta(t, 13.30, b.West, 1e-9)
	assert.InDelta(t, 13.45, b.East, 1e-9)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(13.39, 52.51))
	assert.False(t, Valid(13.39, 91))
	assert.False(t, Valid(181, 0))
}
