package domain

import "strings"

// Catalogue is the in-memory product table, keyed by product identifier.
// Records keep their insertion order. It is not safe for concurrent use;
// callers that share a Catalogue guard it themselves.
type Catalogue struct {
	records []ProductRecord
	index   map[string]int
}

// NewCatalogue builds a catalogue from records, deduplicating by id.
// When an id repeats, the last occurrence wins and takes the position of the first.
func NewCatalogue(records ...ProductRecord) *Catalogue {
	c := &Catalogue{index: make(map[string]int, len(records))}
	c.Merge(records...)
	return c
}

// NormalizeID canonicalizes an identifier for set comparisons
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// Len returns the number of distinct products
func (c *Catalogue) Len() int {
	return len(c.records)
}

// Records returns a copy of all records in catalogue order
func (c *Catalogue) Records() []ProductRecord {
	out := make([]ProductRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Get returns the record with the given id
func (c *Catalogue) Get(id string) (ProductRecord, bool) {
	i, ok := c.index[NormalizeID(id)]
	if !ok {
		return ProductRecord{}, false
	}
	return c.records[i], true
}

// Has reports whether id is already stored
func (c *Catalogue) Has(id string) bool {
	_, ok := c.index[NormalizeID(id)]
	return ok
}

// IDs returns the set of stored identifiers
func (c *Catalogue) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(c.index))
	for id := range c.index {
		ids[id] = struct{}{}
	}
	return ids
}

// Missing returns the identifiers of discovered that are not stored, in discovery order,
// without duplicates.
func (c *Catalogue) Missing(discovered []string) []string {
	seen := make(map[string]struct{}, len(discovered))
	var out []string
	for _, raw := range discovered {
		id := NormalizeID(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !c.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Merge appends records, replacing any stored record with the same id.
// It returns how many ids were not present before.
func (c *Catalogue) Merge(records ...ProductRecord) int {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	added := 0
	for _, r := range records {
		r.ID = NormalizeID(r.ID)
		if r.ID == "" {
			continue
		}
		if i, ok := c.index[r.ID]; ok {
			c.records[i] = r
			continue
		}
		c.index[r.ID] = len(c.records)
		c.records = append(c.records, r)
		added++
	}
	return added
}
