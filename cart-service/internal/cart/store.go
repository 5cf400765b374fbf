// Package cart holds the shopping-cart state of a single session: the
// quantity store, the mutator API the storefront calls, the pending
// add-to-cart intent, and the pure aggregation of lines against a catalog.
//
// Nothing in this package returns an error. Operations on lines that do not
// exist are no-ops, and missing catalog entries render with fallback values.
package cart

import (
	"sort"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
)

// Store maps productID -> size -> quantity.
//
// Every pair present has a quantity >= 1 and every product present has at
// least one size.
type Store struct {
	items   map[string]map[string]int
	version uint64
}

func NewStore() *Store {
	return &Store{items: make(map[string]map[string]int)}
}

// SetQuantity upserts the pair, or removes it when quantity <= 0.
// Removing a pair that is not there does nothing.
func (s *Store) SetQuantity(productID, size string, quantity int) {
	sizes, ok := s.items[productID]

	if quantity <= 0 {
		if !ok {
			return
		}
		if _, exists := sizes[size]; !exists {
			return
		}
		delete(sizes, size)
		if len(sizes) == 0 {
			delete(s.items, productID)
		}
		s.version++
		return
	}

	if !ok {
		sizes = make(map[string]int)
		s.items[productID] = sizes
	}
	if sizes[size] == quantity {
		return
	}
	sizes[size] = quantity
	s.version++
}

// Quantity returns the stored quantity, 0 when the pair is absent.
func (s *Store) Quantity(productID, size string) int {
	return s.items[productID][size]
}

// GetAll returns a copy of every line ordered by product then size.
func (s *Store) GetAll() []domain.CartLine {
	lines := make([]domain.CartLine, 0, s.Len())
	for productID, sizes := range s.items {
		for size, q := range sizes {
			lines = append(lines, domain.CartLine{ProductID: productID, Size: size, Quantity: q})
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ProductID != lines[j].ProductID {
			return lines[i].ProductID < lines[j].ProductID
		}
		return lines[i].Size < lines[j].Size
	})
	return lines
}

// Count is the sum of all quantities.
func (s *Store) Count() int {
	total := 0
	for _, sizes := range s.items {
		for _, q := range sizes {
			total += q
		}
	}
	return total
}

// Len is the number of lines.
func (s *Store) Len() int {
	n := 0
	for _, sizes := range s.items {
		n += len(sizes)
	}
	return n
}

func (s *Store) Clear() {
	if len(s.items) == 0 {
		return
	}
	s.items = make(map[string]map[string]int)
	s.version++
}

// Version increases on every change to the stored quantities.
func (s *Store) Version() uint64 {
	return s.version
}

// Export returns a deep copy in the persisted mapping form.
func (s *Store) Export() map[string]map[string]int {
	out := make(map[string]map[string]int, len(s.items))
	for productID, sizes := range s.items {
		cp := make(map[string]int, len(sizes))
		for size, q := range sizes {
			cp[size] = q
		}
		out[productID] = cp
	}
	return out
}
