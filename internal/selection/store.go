// Package selection holds the three independent pieces of map selection
// state: active category, selected location and search phrase.
package selection

import "diaspora-map/internal/models"

// Field names a piece of selection state.
type Field string

const (
	FieldCategory     Field = "category"
	FieldLocation     Field = "location"
	FieldSearchPhrase Field = "search_phrase"
)

// Change is delivered to subscribers after a setter modified a field.
type Change struct {
	Field Field
}

// Store is owned by a single session. It is not safe for concurrent use;
// all access happens on the owning session's event loop.
type Store struct {
	category     *models.Category
	location     *models.Location
	searchPhrase string

	subscribers []func(Change)
}

func NewStore() *Store {
	return &Store{}
}

// Category returns the active category filter; nil means show all.
func (s *Store) Category() *models.Category {
	return s.category
}

// SetCategory changes the filter. The sentinel "all categories" entry is
// stored as nil. Returns whether the value changed.
func (s *Store) SetCategory(c *models.Category) bool {
	if c != nil && c.IsAll() {
		c = nil
	}
	if sameCategory(s.category, c) {
		return false
	}
	if c != nil {
		cp := *c
		c = &cp
	}
	s.category = c
	s.notify(FieldCategory)
	return true
}

// Location returns the selected location; nil means nothing is selected.
func (s *Store) Location() *models.Location {
	return s.location
}

// SetLocation changes the selected location. Returns whether the value changed.
func (s *Store) SetLocation(l *models.Location) bool {
	if sameLocation(s.location, l) {
		return false
	}
	if l != nil {
		cp := *l
		l = &cp
	}
	s.location = l
	s.notify(FieldLocation)
	return true
}

// SearchPhrase returns the raw, undebounced phrase as typed.
func (s *Store) SearchPhrase() string {
	return s.searchPhrase
}

// SetSearchPhrase changes the raw phrase. Returns whether the value changed.
func (s *Store) SetSearchPhrase(p string) bool {
	if s.searchPhrase == p {
		return false
	}
	s.searchPhrase = p
	s.notify(FieldSearchPhrase)
	return true
}

// Subscribe registers fn to be called synchronously after every change.
func (s *Store) Subscribe(fn func(Change)) {
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(f Field) {
	for _, fn := range s.subscribers {
		fn(Change{Field: f})
	}
}

func sameCategory(a, b *models.Category) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.PK == b.PK
}

func sameLocation(a, b *models.Location) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Properties.PK == b.Properties.PK
}
