package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"diaspora-map/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featureCollectionJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "id": 42,
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [13.4, 52.52]},
      "properties": {
        "pk": 42,
        "name": "Muzeul Diasporei",
        "address": "Unter den Linden 1",
        "website": "https://example.org",
        "email": null,
        "description": "Expoziție",
        "category": {"pk": 3, "name_slug": "museums", "label_singular": "Muzeu", "label_plural": "Muzee"}
      }
    },
    {
      "id": 8,
      "type": "Feature",
      "geometry": null,
      "properties": {"pk": 8, "name": "Fără adresă", "category": null}
    }
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, nil)
}

func TestFetchCategories(t *testing.T) {
	t.Run("decodes the list", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/categories/", r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`[{"pk":3,"name_slug":"museums","label_singular":"Muzeu","label_plural":"Muzee"}]`))
		})

		got, err := c.FetchCategories(context.Background())

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, models.Category{PK: 3, NameSlug: "museums", LabelSingular: "Muzeu", LabelPlural: "Muzee"}, got[0])
	})

	t.Run("null body yields an empty list", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`null`))
		})

		got, err := c.FetchCategories(context.Background())

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("non-200 is a status error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream"))
		})

		_, err := c.FetchCategories(context.Background())

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadGateway, se.StatusCode)
		assert.Equal(t, "upstream", se.Body)
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"oops"`))
		})

		_, err := c.FetchCategories(context.Background())

		assert.ErrorContains(t, err, "decode")
	})
}

func TestFetchLocations(t *testing.T) {
	t.Run("passes search and category", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/locations/", r.URL.Path)
			assert.Equal(t, "biserică", r.URL.Query().Get("search"))
			assert.Equal(t, "3", r.URL.Query().Get("category"))
			_, _ = w.Write([]byte(featureCollectionJSON))
		})

		fc, err := c.FetchLocations(context.Background(), LocationQuery{Search: "biserică", CategoryPK: 3})

		require.NoError(t, err)
		require.Len(t, fc.Features, 2)
		assert.True(t, fc.Features[0].Geocoded())
		assert.False(t, fc.Features[1].Geocoded())
		assert.Equal(t, "museums", fc.Features[0].Properties.Category.NameSlug)
		assert.Nil(t, fc.Features[0].Properties.Email)
	})

	t.Run("no filters means no query string", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.RawQuery)
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":null}`))
		})

		fc, err := c.FetchLocations(context.Background(), LocationQuery{})

		require.NoError(t, err)
		assert.NotNil(t, fc.Features)
	})

	t.Run("failure returns the empty placeholder", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		fc, err := c.FetchLocations(context.Background(), LocationQuery{})

		require.Error(t, err)
		assert.Equal(t, "FeatureCollection", fc.Type)
		assert.NotNil(t, fc.Features)
	})
}

func TestCreateProposal(t *testing.T) {
	var got models.ProposalForm
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/location-proposal/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	form := models.ProposalForm{Name: "Librărie", Address: "Kastanienallee 5", Website: "https://carti.example"}
	status, err := c.CreateProposal(context.Background(), form, "key-1")

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, form, got)
}

func TestCreateProposalTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(srv.URL, time.Second, nil)

	_, err := c.CreateProposal(context.Background(), models.ProposalForm{Name: "a", Address: "b"}, "")

	assert.Error(t, err)
}

func TestBreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil, WithBreaker(BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}))

	for i := 0; i < 2; i++ {
		_, err := c.FetchCategories(context.Background())
		require.Error(t, err)
	}
	_, err := c.FetchCategories(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, calls)
}

func TestLocationQueryValues(t *testing.T) {
	assert.Empty(t, LocationQuery{}.Values())
	assert.Equal(t, "search=a+b", LocationQuery{Search: "a b"}.Values().Encode())
	assert.Equal(t, "category=3&search=x", LocationQuery{Search: "x", CategoryPK: 3}.Values().Encode())
}
