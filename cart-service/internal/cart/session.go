package cart

import (
	"github.com/legacyxi/shopcart/cart-service/internal/domain"
)

type ChangeKind string

const (
	ChangePendingSet       ChangeKind = "pending-set"
	ChangePendingCancelled ChangeKind = "pending-cancelled"
	ChangeLineSet          ChangeKind = "line-set"
	ChangeLineRemoved      ChangeKind = "line-removed"
	ChangeCleared          ChangeKind = "cleared"
)

// Change describes one mutation that altered the session.
type Change struct {
	Kind      ChangeKind
	ProductID string
	Size      string
	Quantity  int    // resulting quantity for line changes, intent quantity for pending ones
	Version   uint64 // store version after the change
}

type Listener func(Change)

// Session is the only sanctioned way to change a Store. It also owns the
// single pending add-to-cart intent.
//
// A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	store     *Store
	pending   *domain.PendingAdd
	listeners map[int]Listener
	nextID    int
}

// NewSession wraps store, or a fresh empty store when store is nil.
func NewSession(store *Store) *Session {
	if store == nil {
		store = NewStore()
	}
	return &Session{
		store:     store,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for every change. The returned func removes it.
func (s *Session) Subscribe(fn Listener) func() {
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

// BeginAdd replaces any pending intent with a new one. A quantity below 1
// means the default of 1.
func (s *Session) BeginAdd(productID, size string, quantity int) {
	quantity = CoerceQuantity(quantity)
	s.pending = &domain.PendingAdd{ProductID: productID, Size: size, Quantity: quantity}
	s.notify(Change{Kind: ChangePendingSet, ProductID: productID, Size: size, Quantity: quantity})
}

// ConfirmAdd adds the pending quantity on top of whatever the store already
// holds for that pair. It reports false when there was nothing to commit.
func (s *Session) ConfirmAdd() bool {
	p := s.pending
	if p == nil {
		return false
	}
	s.pending = nil

	q := s.store.Quantity(p.ProductID, p.Size) + p.Quantity
	s.store.SetQuantity(p.ProductID, p.Size, q)
	s.notify(Change{Kind: ChangeLineSet, ProductID: p.ProductID, Size: p.Size, Quantity: q})
	return true
}

// CancelPendingAdd drops the pending intent without committing it.
func (s *Session) CancelPendingAdd() bool {
	p := s.pending
	if p == nil {
		return false
	}
	s.pending = nil
	s.notify(Change{Kind: ChangePendingCancelled, ProductID: p.ProductID, Size: p.Size, Quantity: p.Quantity})
	return true
}

// Pending returns the uncommitted intent, if any.
func (s *Session) Pending() (domain.PendingAdd, bool) {
	if s.pending == nil {
		return domain.PendingAdd{}, false
	}
	return *s.pending, true
}

// UpdateQuantity sets an absolute quantity. Unlike ConfirmAdd it does not
// accumulate; quantity <= 0 removes the line.
func (s *Session) UpdateQuantity(productID, size string, quantity int) {
	before := s.store.Version()
	s.store.SetQuantity(productID, size, quantity)
	if s.store.Version() == before {
		return
	}

	if quantity <= 0 {
		s.notify(Change{Kind: ChangeLineRemoved, ProductID: productID, Size: size})
		return
	}
	s.notify(Change{Kind: ChangeLineSet, ProductID: productID, Size: size, Quantity: quantity})
}

func (s *Session) RemoveLine(productID, size string) {
	s.UpdateQuantity(productID, size, 0)
}

// Clear empties the store and forgets any pending intent.
func (s *Session) Clear() {
	hadState := s.store.Len() > 0 || s.pending != nil
	s.pending = nil
	s.store.Clear()
	if hadState {
		s.notify(Change{Kind: ChangeCleared})
	}
}

func (s *Session) GetAll() []domain.CartLine {
	return s.store.GetAll()
}

// GetCartCount is the badge value: total units across all lines.
func (s *Session) GetCartCount() int {
	return s.store.Count()
}

func (s *Session) Version() uint64 {
	return s.store.Version()
}

// Export returns the store in its persisted mapping form.
func (s *Session) Export() map[string]map[string]int {
	return s.store.Export()
}

func (s *Session) notify(c Change) {
	c.Version = s.store.Version()
	for _, fn := range s.listeners {
		fn(c)
	}
}
