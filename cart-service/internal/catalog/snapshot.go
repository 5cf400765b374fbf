package catalog

import (
	"sync/atomic"
	"time"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
)

// Snapshot is an immutable point-in-time copy of the product list.
type Snapshot struct {
	version   uint64
	fetchedAt time.Time
	products  []domain.Product
	byID      map[string]domain.Product
}

// NewSnapshot copies products. When an id repeats, the first product wins.
func NewSnapshot(products []domain.Product, version uint64, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		version:   version,
		fetchedAt: fetchedAt,
		products:  make([]domain.Product, 0, len(products)),
		byID:      make(map[string]domain.Product, len(products)),
	}
	for _, p := range products {
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		p.Images = append([]string(nil), p.Images...)
		s.byID[p.ID] = p
		s.products = append(s.products, p)
	}
	return s
}

// Lookup is safe on a nil snapshot, which behaves as an empty catalog.
func (s *Snapshot) Lookup(productID string) (domain.Product, bool) {
	if s == nil {
		return domain.Product{}, false
	}
	p, ok := s.byID[productID]
	return p, ok
}

func (s *Snapshot) Products() []domain.Product {
	if s == nil {
		return nil
	}
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.products)
}

func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

func (s *Snapshot) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// Holder publishes the current snapshot to readers without locking.
type Holder struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(NewSnapshot(nil, 0, time.Time{}))
	return h
}

// Current never returns nil.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Replace installs products as the next snapshot version.
func (h *Holder) Replace(products []domain.Product) *Snapshot {
	s := NewSnapshot(products, h.version.Add(1), time.Now())
	h.current.Store(s)
	return s
}
