package grid

import "sort"

// FirstPage is the page whose settings new pages inherit.
const FirstPage = 0

// PageStore keeps per-page grid snapshots for multi-page sources.
// Page indices are 0-based.
type PageStore struct {
	pages map[int]*Geometry
}

// NewPageStore creates an empty store.
func NewPageStore() *PageStore {
	return &PageStore{pages: make(map[int]*Geometry)}
}

// Save stores a copy of g as the snapshot for page.
func (s *PageStore) Save(page int, g *Geometry) {
	if g == nil {
		return
	}
	s.pages[page] = g.Clone()
}

// Get returns the page's own snapshot, if any. The result is a copy.
func (s *PageStore) Get(page int) (*Geometry, bool) {
	g, ok := s.pages[page]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// Pages returns the indices that have a saved snapshot, ascending.
func (s *PageStore) Pages() []int {
	out := make([]int, 0, len(s.pages))
	for p := range s.pages {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Clear drops every snapshot.
func (s *PageStore) Clear() {
	s.pages = make(map[int]*Geometry)
}

// Lookup resolves the grid to use when switching to page:
// the page's own snapshot, else the first page's snapshot with its excluded
// regions cleared, else an empty grid. The result is always a fresh copy.
func (s *PageStore) Lookup(page int) *Geometry {
	return ResolvePage(s.pages, page)
}

// ResolvePage is the lookup policy behind PageStore.Lookup.
func ResolvePage(pages map[int]*Geometry, page int) *Geometry {
	if g, ok := pages[page]; ok && g != nil {
		return g.Clone()
	}
	if g, ok := pages[FirstPage]; ok && g != nil {
		inherited := g.Clone()
		inherited.ClearExcludedRegions()
		return inherited
	}
	return New()
}
