// Package taxonomy holds the static town and category catalogs and maps URL
// paths onto their entities.
package taxonomy

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Dimension names a taxonomy.
type Dimension string

const (
	DimensionTown     Dimension = "town"
	DimensionCategory Dimension = "category"
)

// ErrUnknownDimension is returned for anything but town or category.
var ErrUnknownDimension = errors.New("unknown taxonomy dimension")

// ParseDimension accepts town(s) and category/categories.
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "town", "towns":
		return DimensionTown, nil
	case "category", "categories":
		return DimensionCategory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
}

// Other is the opposite dimension.
func (d Dimension) Other() Dimension {
	if d == DimensionTown {
		return DimensionCategory
	}
	return DimensionTown
}

// Entity is one catalog entry.
type Entity struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Synonyms []string `json:"synonyms,omitempty"`
}

func (e Entity) sources() []string {
	out := make([]string, 0, 2+len(e.Synonyms))
	out = append(out, e.ID, e.Label)
	return append(out, e.Synonyms...)
}

// Catalog is an immutable taxonomy with its token index and classifier.
type Catalog struct {
	dimension  Dimension
	entities   []Entity
	byID       map[string]int
	classifier *Classifier
}

// NewCatalog validates entities and builds the index. Ids must be unique,
// already in kebab form, and every entity needs a label.
func NewCatalog(dim Dimension, entities []Entity) (*Catalog, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%s catalog is empty", dim)
	}

	byID := make(map[string]int, len(entities))
	for i, e := range entities {
		switch {
		case e.ID == "":
			return nil, fmt.Errorf("%s catalog entry %d has no id", dim, i)
		case Normalize(e.ID).Kebab != e.ID:
			return nil, fmt.Errorf("%s id %q is not normalized", dim, e.ID)
		case strings.TrimSpace(e.Label) == "":
			return nil, fmt.Errorf("%s %q has no label", dim, e.ID)
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("%s id %q is duplicated", dim, e.ID)
		}
		for _, syn := range e.Synonyms {
			if Normalize(syn).Compact == "" {
				return nil, fmt.Errorf("%s %q has an empty synonym", dim, e.ID)
			}
		}
		byID[e.ID] = i
	}

	frozen := make([]Entity, len(entities))
	copy(frozen, entities)

	return &Catalog{
		dimension:  dim,
		entities:   frozen,
		byID:       byID,
		classifier: NewClassifier(BuildIndex(frozen)),
	}, nil
}

// MustCatalog is NewCatalog for compiled-in tables.
func MustCatalog(dim Dimension, entities []Entity) *Catalog {
	c, err := NewCatalog(dim, entities)
	if err != nil {
		panic("taxonomy: " + err.Error())
	}
	return c
}

func (c *Catalog) Dimension() Dimension {
	return c.dimension
}

// Entities returns the entries in catalog order.
func (c *Catalog) Entities() []Entity {
	out := make([]Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Lookup finds an entity by id.
func (c *Catalog) Lookup(id string) (Entity, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entity{}, false
	}
	return c.entities[i], true
}

// Has reports whether id belongs to the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Label returns the display label for id, or id itself when unknown.
func (c *Catalog) Label(id string) string {
	if e, ok := c.Lookup(id); ok {
		return e.Label
	}
	return id
}

// Classifier returns the path classifier for this catalog.
func (c *Catalog) Classifier() *Classifier {
	return c.classifier
}

// Classify maps a URL or path to an entity id.
func (c *Catalog) Classify(path string) (string, bool) {
	return c.classifier.Classify(path)
}

var (
	towns      = sync.OnceValue(func() *Catalog { return MustCatalog(DimensionTown, townEntities) })
	categories = sync.OnceValue(func() *Catalog { return MustCatalog(DimensionCategory, categoryEntities) })
)

// Towns is the town catalog.
func Towns() *Catalog {
	return towns()
}

// Categories is the category catalog.
func Categories() *Catalog {
	return categories()
}

// ForDimension returns the catalog for d.
func ForDimension(d Dimension) (*Catalog, error) {
	switch d {
	case DimensionTown:
		return Towns(), nil
	case DimensionCategory:
		return Categories(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, d)
	}
}

func init() {
	// Panics on a malformed compiled-in table.
	Towns()
	Categories()
}

// Locate returns the ordinal of the first segment that exactly matches id.
func (c *Catalog) Locate(segments []string, id string) (int, bool) {
	return c.classifier.Locate(segments, id)
}
