package models

// MapView is everything the browser shell needs to draw one state of the map.
type MapView struct {
	Status       string           `json:"status"` // loading, error or ready
	Error        string           `json:"error,omitempty"`
	Query        string           `json:"query"`
	ShareQuery   string           `json:"share_query"`
	HistoryLen   int              `json:"history_length"`
	SearchPhrase string           `json:"search_phrase"`
	ActiveSearch string           `json:"active_search"`
	Categories   []CategoryOption `json:"categories"`
	Selected     *CategoryOption  `json:"selected_category"`
	Pins         []Pin            `json:"pins"`
	Entries      []ListEntry      `json:"entries"`
	Detail       *LocationDetail  `json:"detail"`
	Viewport     Viewport         `json:"viewport"`
	Bounds       *Bounds          `json:"bounds,omitempty"`
	Proposal     ProposalView     `json:"proposal"`
}

// CategoryOption is one entry of the category selector.
type CategoryOption struct {
	PK            int    `json:"pk"`
	NameSlug      string `json:"name_slug,omitempty"`
	LabelSingular string `json:"label_singular,omitempty"`
	LabelPlural   string `json:"label_plural"`
	Color         string `json:"color"`
}

// Pin is a geocoded feature placed on the map.
type Pin struct {
	PK         int     `json:"pk"`
	Name       string  `json:"name"`
	Longitude  float64 `json:"longitude"`
	Latitude   float64 `json:"latitude"`
	CategoryPK int     `json:"category_pk"`
	Color      string  `json:"color"`
	Selected   bool    `json:"selected"`
}

// ListEntry is a feature in list form; non-geocoded features appear here but not as pins.
type ListEntry struct {
	PK       int    `json:"pk"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Geocoded bool   `json:"geocoded"`
}

// LocationDetail is the content of the location panel.
type LocationDetail struct {
	PK          int     `json:"pk"`
	Category    string  `json:"category,omitempty"`
	Name        string  `json:"name"`
	Address     *string `json:"address,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Website     *string `json:"website,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Viewport is the map camera.
type Viewport struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

// Bounds is the box enclosing all visible pins.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// ProposalView is the state of the submission form.
type ProposalView struct {
	Status  string            `json:"status"`
	Form    ProposalForm      `json:"form"`
	Errors  map[string]string `json:"errors,omitempty"`
	Message string            `json:"message,omitempty"`
}
