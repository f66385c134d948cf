// Package fetcher exposes categories and locations as cached query results
// keyed by their request parameters.
package fetcher

import (
	"context"
	"time"

	"diaspora-map/internal/backend"
	"diaspora-map/internal/models"
	"diaspora-map/internal/query"

	"go.uber.org/zap"
)

const (
	CategoriesKey  = "categories"
	locationsKeyID = "locations"
)

// LocationsKey composes the cache key for a location request. Distinct search
// phrases and category filters get distinct keys.
func LocationsKey(q backend.LocationQuery) string {
	if v := q.Values(); len(v) > 0 {
		return locationsKeyID + "?" + v.Encode()
	}
	return locationsKeyID
}

// Source is the remote API.
type Source interface {
	FetchCategories(ctx context.Context) ([]models.Category, error)
	FetchLocations(ctx context.Context, q backend.LocationQuery) (models.FeatureCollection, error)
}

type Config struct {
	LocationsTTL time.Duration
	Timeout      time.Duration
	Observer     query.Observer
}

// Fetcher is shared by all sessions, the way one query client serves a whole page.
type Fetcher struct {
	source     Source
	categories *query.Cache[[]models.Category]
	locations  *query.Cache[models.FeatureCollection]
}

func New(source Source, cfg Config, logr *zap.Logger) *Fetcher {
	if logr == nil {
		logr = zap.NewNop()
	}
	common := []query.Option{query.WithLogger(logr), query.WithObserver(cfg.Observer)}
	if cfg.Timeout > 0 {
		common = append(common, query.WithTimeout(cfg.Timeout))
	}

	// categories are treated as static for the life of the process
	categories := query.NewCache("categories", func() []models.Category { return []models.Category{} }, common...)
	locations := query.NewCache("locations", models.EmptyFeatureCollection,
		append(common, query.WithTTL(cfg.LocationsTTL))...)

	return &Fetcher{
		source:     source,
		categories: categories,
		locations:  locations,
	}
}

// Categories returns the category list result, fetching it if needed. notify
// is called when an in-flight fetch settles.
func (f *Fetcher) Categories(notify func(query.Result[[]models.Category])) query.Result[[]models.Category] {
	return f.categories.Load(CategoriesKey, f.source.FetchCategories, notify)
}

// Locations returns the result for q, fetching it if needed.
func (f *Fetcher) Locations(q backend.LocationQuery, notify func(query.Result[models.FeatureCollection])) query.Result[models.FeatureCollection] {
	return f.locations.Load(LocationsKey(q), func(ctx context.Context) (models.FeatureCollection, error) {
		return f.source.FetchLocations(ctx, q)
	}, notify)
}

// Reload drops cached categories and locations so the next access fetches again.
func (f *Fetcher) Reload() {
	f.categories.Invalidate(CategoriesKey)
	f.locations.InvalidatePrefix(locationsKeyID)
}

// ClearErrors forgets failed results, as a fresh page load would.
func (f *Fetcher) ClearErrors() {
	f.categories.ClearErrors()
	f.locations.ClearErrors()
}
