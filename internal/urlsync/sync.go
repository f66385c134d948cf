// Package urlsync keeps the shareable query string and the selection state
// equivalent in both directions.
package urlsync

import (
	"net/url"
	"strconv"

	"diaspora-map/internal/models"
	"diaspora-map/internal/selection"
	"diaspora-map/internal/utils"

	"go.uber.org/zap"
)

const (
	ParamCategory = "category"
	ParamLocation = "location"
)

// Data is the remote data the read direction resolves against. A list that
// has not arrived yet has Loaded set to false. Gen changes whenever the
// underlying result is replaced.
type Data struct {
	Categories       []models.Category
	CategoriesLoaded bool
	CategoriesGen    uint64

	Locations       models.FeatureCollection
	LocationsLoaded bool
	LocationsGen    uint64
}

// resolution remembers the last (param value, data generation) pair that was
// resolved so repeated passes are no-ops.
type resolution struct {
	value string
	gen   uint64
	done  bool
}

func (r resolution) same(value string, gen uint64) bool {
	return r.done && r.value == value && r.gen == gen
}

// Synchronizer is driven by the owning session after every event: Hydrate
// first, then Flush. It is not safe for concurrent use.
type Synchronizer struct {
	store   *selection.Store
	query   url.Values
	history *History
	logr    *zap.Logger

	// mounted is false until the first Flush, which is suppressed.
	mounted bool

	flushedCategory string
	flushedLocation int
	forceCategory   bool
	forceLocation   bool

	category resolution
	location resolution
}

// New creates a synchronizer seeded with the query string of the initial load.
func New(store *selection.Store, initial url.Values, logr *zap.Logger) *Synchronizer {
	if logr == nil {
		logr = zap.NewNop()
	}
	q := cloneValues(initial)
	return &Synchronizer{
		store:   store,
		query:   q,
		history: newHistory(q.Encode()),
		logr:    logr,
	}
}

// Query returns a copy of the current query.
func (s *Synchronizer) Query() url.Values {
	return cloneValues(s.query)
}

// QueryString returns the encoded current query.
func (s *Synchronizer) QueryString() string {
	return s.query.Encode()
}

// History returns the address-bar history written so far.
func (s *Synchronizer) History() *History {
	return s.history
}

// Navigate replaces the query after an external URL change (back/forward,
// pasted link). Parameters present in the new URL are resolved again; fields
// whose parameter is absent are written back from state on the next Flush.
func (s *Synchronizer) Navigate(q url.Values) {
	s.query = cloneValues(q)
	s.history.navigate(s.query.Encode())
	s.category = resolution{}
	s.location = resolution{}
	s.forceCategory = utils.FirstParam(s.query, ParamCategory) == ""
	s.forceLocation = utils.FirstParam(s.query, ParamLocation) == ""
}

// Hydrate is the URL → state direction. Values the synchronizer wrote itself
// are skipped: they already mirror state, and resolving them again would undo
// a change made in the same tick before Flush. It returns true if the store
// changed.
func (s *Synchronizer) Hydrate(d Data) bool {
	changed := false

	if slug := utils.FirstParam(s.query, ParamCategory); slug != "" && d.CategoriesLoaded && slug != s.flushedCategory {
		if !s.category.same(slug, d.CategoriesGen) {
			s.category = resolution{value: slug, gen: d.CategoriesGen, done: true}
			if c, ok := models.FindCategoryBySlug(d.Categories, slug); ok {
				changed = s.store.SetCategory(c) || changed
			} else {
				s.logr.Debug("category from url not found", zap.String("slug", slug))
			}
		}
	}

	if raw := utils.FirstParam(s.query, ParamLocation); raw != "" && d.LocationsLoaded && !s.ownLocation(raw) {
		if !s.location.same(raw, d.LocationsGen) {
			s.location = resolution{value: raw, gen: d.LocationsGen, done: true}
			pk, ok := utils.ParsePK(raw)
			if !ok {
				s.logr.Debug("invalid location in url", zap.String("location", raw))
			} else if loc, found := d.Locations.FindByPK(pk); found {
				changed = s.store.SetLocation(loc) || changed
			} else {
				s.logr.Debug("location from url not found", zap.Int("pk", pk))
			}
		}
	}

	return changed
}

func (s *Synchronizer) ownLocation(raw string) bool {
	return s.flushedLocation != 0 && raw == strconv.Itoa(s.flushedLocation)
}

// Reconcile clears the selected location when a freshly fetched set no longer
// contains it. Returns true if the selection was cleared.
func (s *Synchronizer) Reconcile(locations models.FeatureCollection) bool {
	loc := s.store.Location()
	if loc == nil || locations.Contains(loc.Properties.PK) {
		return false
	}
	s.logr.Debug("selected location left the result set", zap.Int("pk", loc.Properties.PK))
	return s.store.SetLocation(nil)
}

// Flush is the state → URL direction. The first call only records the
// baseline. Afterwards only keys whose field changed are rewritten, and a
// history entry is pushed only if the encoded query differs. The search
// phrase is never part of the URL.
func (s *Synchronizer) Flush() bool {
	category := categorySlug(s.store.Category())
	location := locationPK(s.store.Location())

	if !s.mounted {
		s.mounted = true
		s.flushedCategory = category
		s.flushedLocation = location
		s.forceCategory = false
		s.forceLocation = false
		return false
	}

	if category != s.flushedCategory || s.forceCategory {
		if category != "" {
			s.query.Set(ParamCategory, category)
		} else {
			s.query.Del(ParamCategory)
		}
		s.flushedCategory = category
		s.forceCategory = false
	}

	if location != s.flushedLocation || s.forceLocation {
		if location != 0 {
			s.query.Set(ParamLocation, strconv.Itoa(location))
		} else {
			s.query.Del(ParamLocation)
		}
		s.flushedLocation = location
		s.forceLocation = false
	}

	return s.history.push(s.query.Encode())
}

// Encode projects a selection onto query parameters.
func Encode(c *models.Category, l *models.Location) url.Values {
	q := url.Values{}
	if slug := categorySlug(c); slug != "" {
		q.Set(ParamCategory, slug)
	}
	if pk := locationPK(l); pk != 0 {
		q.Set(ParamLocation, strconv.Itoa(pk))
	}
	return q
}

// Decode resolves query parameters against remote data. Unknown values yield nil.
func Decode(q url.Values, categories []models.Category, locations models.FeatureCollection) (*models.Category, *models.Location) {
	var c *models.Category
	var l *models.Location
	if slug := utils.FirstParam(q, ParamCategory); slug != "" {
		c, _ = models.FindCategoryBySlug(categories, slug)
	}
	if pk, ok := utils.ParsePK(utils.FirstParam(q, ParamLocation)); ok {
		l, _ = locations.FindByPK(pk)
	}
	return c, l
}

func categorySlug(c *models.Category) string {
	if c == nil || c.IsAll() {
		return ""
	}
	return c.NameSlug
}

func locationPK(l *models.Location) int {
	if l == nil {
		return 0
	}
	return l.Properties.PK
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
