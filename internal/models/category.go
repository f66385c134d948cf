package models

// Category is a POI classification as served by GET /api/categories/.
type Category struct {
	PK            int    `json:"pk"`
	NameSlug      string `json:"name_slug"`
	LabelSingular string `json:"label_singular"`
	LabelPlural   string `json:"label_plural"`
}

// AllCategoriesPK identifies the synthetic "all categories" entry of the selector.
const AllCategoriesPK = 0

// AllCategories is layered on top of the backend list by the view; it is never sent to the backend.
var AllCategories = Category{
	PK:          AllCategoriesPK,
	LabelPlural: "Toate Categoriile",
}

// IsAll reports whether c is the "all categories" sentinel.
func (c Category) IsAll() bool {
	return c.PK == AllCategoriesPK
}

// categoryColors is the pin palette, indexed by category pk starting at 1.
var categoryColors = []string{
	"#a6cee3",
	"#1f78b4",
	"#b2df8a",
	"#33a02c",
	"#fb9a99",
	"#e31a1c",
	"#fdbf6f",
	"#ff7f00",
	"#cab2d6",
	"#6a3d9a",
	"#ffff99",
	"#b15928",
	"#000000",
	"#ff00d7",
}

// DefaultPinColor is used for the sentinel and for pks outside the palette.
const DefaultPinColor = "#374151"

// CategoryColor returns the pin colour for a category pk.
func CategoryColor(pk int) string {
	if pk < 1 || pk > len(categoryColors) {
		return DefaultPinColor
	}
	return categoryColors[pk-1]
}

// FindCategoryBySlug returns the category with exactly the given slug.
func FindCategoryBySlug(categories []Category, slug string) (*Category, bool) {
	for i := range categories {
		if categories[i].NameSlug == slug {
			c := categories[i]
			return &c, true
		}
	}
	return nil, false
}

// FindCategoryByPK returns the category with the given pk.
func FindCategoryByPK(categories []Category, pk int) (*Category, bool) {
	for i := range categories {
		if categories[i].PK == pk {
			c := categories[i]
			return &c, true
		}
	}
	return nil, false
}
