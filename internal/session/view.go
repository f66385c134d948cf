package session

import (
	"diaspora-map/internal/models"
	"diaspora-map/internal/query"
	"diaspora-map/internal/spatial"
	"diaspora-map/internal/urlsync"
)

const (
	ViewLoading = "loading"
	ViewError   = "error"
	ViewReady   = "ready"
)

// render composes the view from loop-owned state.
func (s *Session) render() models.MapView {
	category := s.store.Category()
	selected := s.store.Location()

	v := models.MapView{
		Status:       ViewReady,
		Query:        s.sync.QueryString(),
		ShareQuery:   urlsync.Encode(category, selected).Encode(),
		HistoryLen:   s.sync.History().Len(),
		SearchPhrase: s.store.SearchPhrase(),
		ActiveSearch: s.activeSearch,
		Categories:   categoryOptions(s.categories.Data),
		Pins:         []models.Pin{},
		Entries:      []models.ListEntry{},
		Viewport:     spatial.FocusOn(selected),
		Proposal:     s.form.View(),
	}

	switch {
	case s.locations.Status == query.StatusError:
		v.Status = ViewError
		v.Error = s.locations.Err.Error()
	case s.categories.Status == query.StatusError:
		v.Status = ViewError
		v.Error = s.categories.Err.Error()
	case s.categories.Status == query.StatusPending || s.locations.Status == query.StatusPending:
		v.Status = ViewLoading
	}

	opt := optionFor(models.AllCategories)
	if category != nil {
		opt = optionFor(*category)
	}
	v.Selected = &opt

	for _, loc := range s.locations.Data.Features {
		if category != nil && loc.CategoryPK() != category.PK {
			continue
		}
		isSelected := selected != nil && selected.Properties.PK == loc.Properties.PK

		entry := models.ListEntry{
			PK:       loc.Properties.PK,
			Name:     loc.Properties.Name,
			Geocoded: loc.Geocoded(),
		}
		if loc.Properties.Category != nil {
			entry.Category = loc.Properties.Category.LabelSingular
		}
		v.Entries = append(v.Entries, entry)

		lng, lat, ok := loc.LngLat()
		if !ok || !spatial.Valid(lng, lat) {
			continue
		}
		v.Pins = append(v.Pins, models.Pin{
			PK:         loc.Properties.PK,
			Name:       loc.Properties.Name,
			Longitude:  lng,
			Latitude:   lat,
			CategoryPK: loc.CategoryPK(),
			Color:      models.CategoryColor(loc.CategoryPK()),
			Selected:   isSelected,
		})
	}
	v.Bounds = spatial.BoundsOf(v.Pins)

	if selected != nil {
		v.Detail = detailFor(selected)
	}
	return v
}

func categoryOptions(categories []models.Category) []models.CategoryOption {
	out := make([]models.CategoryOption, 0, len(categories)+1)
	out = append(out, optionFor(models.AllCategories))
	for _, c := range categories {
		out = append(out, optionFor(c))
	}
	return out
}

func optionFor(c models.Category) models.CategoryOption {
	return models.CategoryOption{
		PK:            c.PK,
		NameSlug:      c.NameSlug,
		LabelSingular: c.LabelSingular,
		LabelPlural:   c.LabelPlural,
		Color:         models.CategoryColor(c.PK),
	}
}

func detailFor(loc *models.Location) *models.LocationDetail {
	d := &models.LocationDetail{
		PK:          loc.Properties.PK,
		Name:        loc.Properties.Name,
		Address:     loc.Properties.Address,
		Email:       loc.Properties.Email,
		Phone:       loc.Properties.Phone,
		Website:     loc.Properties.Website,
		Description: loc.Properties.Description,
	}
	if loc.Properties.Category != nil {
		d.Category = loc.Properties.Category.LabelSingular
	}
	return d
}
