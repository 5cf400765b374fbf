package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/legacyxi/shopcart/cart-service/internal/cache"
	"github.com/legacyxi/shopcart/cart-service/internal/cart"
	"github.com/legacyxi/shopcart/cart-service/internal/catalog"
	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/legacyxi/shopcart/cart-service/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCurrency = "INR"
	DefaultIdleTTL  = 30 * time.Minute
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// CatalogReader exposes the current catalog snapshot.
type CatalogReader interface {
	Current() *catalog.Snapshot
}

// CheckoutPublisher hands a checkout payload to order placement.
type CheckoutPublisher interface {
	PublishCheckout(ctx context.Context, payload *domain.CheckoutPayload) error
}

type Options struct {
	Sizes     cart.SizePolicy
	Currency  string
	IdleTTL   time.Duration
	Publisher CheckoutPublisher
	Logger    *zap.Logger
}

// CartService keeps one cart.Session per shopper session. Each session is
// the single writer of record for its cart; all calls for the same session
// are serialized.
type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	catalog   CatalogReader
	publisher CheckoutPublisher
	sizes     cart.SizePolicy
	currency  string
	idleTTL   time.Duration
	log       *zap.Logger
	sfg       singleflight.Group // one hydration per session at a time

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

type sessionEntry struct {
	mu       sync.Mutex
	session  *cart.Session
	userID   string
	lastUsed time.Time
	evicted  bool
	dirty    bool // last save or delete failed; the repository is behind
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, catalog CatalogReader, opts Options) *CartService {
	if opts.Sizes == nil {
		opts.Sizes = cart.AnySize
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &CartService{
		repo:        repo,
		cache:       c,
		catalog:     catalog,
		publisher:   opts.Publisher,
		sizes:       opts.Sizes,
		currency:    opts.Currency,
		idleTTL:     opts.IdleTTL,
		log:         opts.Logger,
		sessions:    make(map[string]*sessionEntry),
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Close stops the idle-session sweeper and waits for background cache fills.
func (s *CartService) Close() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	s.wg.Wait()
}

func (s *CartService) View(ctx context.Context, sessionID string) (*domain.CartView, error) {
	return s.mutate(ctx, sessionID, nil)
}

// Count is the navigation badge value.
func (s *CartService) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.withSession(ctx, sessionID, func(e *sessionEntry) {
		count = e.session.GetCartCount()
	})
	return count, err
}

func (s *CartService) BeginAdd(ctx context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error) {
	size, err := s.canonicalSize(productID, size, true)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(c *cart.Session) {
		c.BeginAdd(productID, size, quantity)
	})
}

func (s *CartService) ConfirmAdd(ctx context.Context, sessionID string) (*domain.CartView, error) {
	return s.mutate(ctx, sessionID, func(c *cart.Session) {
		c.ConfirmAdd()
	})
}

func (s *CartService) CancelPendingAdd(ctx context.Context, sessionID string) (*domain.CartView, error) {
	return s.mutate(ctx, sessionID, func(c *cart.Session) {
		c.CancelPendingAdd()
	})
}

// AddItem is a one-step catalog add: begin and confirm under one lock.
func (s *CartService) AddItem(ctx context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error) {
	size, err := s.canonicalSize(productID, size, true)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(c *cart.Session) {
		c.BeginAdd(productID, size, quantity)
		c.ConfirmAdd()
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID, size string, quantity int) (*domain.CartView, error) {
	size, err := s.canonicalSize(productID, size, quantity > 0)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(c *cart.Session) {
		c.UpdateQuantity(productID, size, quantity)
	})
}

func (s *CartService) RemoveLine(ctx context.Context, sessionID, productID, size string) (*domain.CartView, error) {
	size, err := s.canonicalSize(productID, size, false)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(c *cart.Session) {
		c.RemoveLine(productID, size)
	})
}

// ClearCart empties the cart after logout or a placed order. The session
// stays resident, empty, so no reader can reload the old document while
// the delete is in flight.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	for {
		s.mu.Lock()
		e, ok := s.sessions[sessionID]
		if !ok {
			// nothing to load: the cart is about to be empty anyway
			e = s.newEntry(sessionID, cart.NewStore(), "")
			s.sessions[sessionID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		e.session.Clear()
		e.userID = ""
		err := s.persist(ctx, sessionID, e)
		e.lastUsed = time.Now()
		e.mu.Unlock()
		return err
	}
}

// Checkout prices the cart against the current catalog and hands the
// result to order placement. The cart itself is left untouched.
func (s *CartService) Checkout(ctx context.Context, sessionID, userID string) (*domain.CheckoutPayload, error) {
	var payload *domain.CheckoutPayload
	var errCheckout error

	err := s.withSession(ctx, sessionID, func(e *sessionEntry) {
		lines := e.session.GetAll()
		if len(lines) == 0 {
			errCheckout = ErrEmptyCart
			return
		}

		views := cart.ComputeLines(lines, s.snapshot())
		payload = &domain.CheckoutPayload{
			CheckoutID: uuid.NewString(),
			SessionID:  sessionID,
			UserID:     userID,
			Lines:      views,
			Total:      cart.ComputeTotal(views),
			Currency:   s.currency,
			CapturedAt: time.Now(),
		}

		if userID != "" && e.userID != userID {
			e.userID = userID
			_ = s.persist(ctx, sessionID, e)
		}
	})
	if err != nil {
		return nil, err
	}
	if errCheckout != nil {
		return nil, errCheckout
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCheckout(ctx, payload); err != nil {
			return nil, fmt.Errorf("checkout handoff failed: %w", err)
		}
	}

	s.log.Info("checkout handed off",
		zap.String("session_id", sessionID),
		zap.String("checkout_id", payload.CheckoutID),
		zap.String("total", cart.FormatAmount(payload.Total)),
		zap.Int("lines", len(payload.Lines)))
	return payload, nil
}

// mutate applies fn to the session, persists when the committed cart
// changed and returns the fresh view. A nil fn only reads.
func (s *CartService) mutate(ctx context.Context, sessionID string, fn func(*cart.Session)) (*domain.CartView, error) {
	var view *domain.CartView
	err := s.withSession(ctx, sessionID, func(e *sessionEntry) {
		if fn != nil {
			before := e.session.Version()
			fn(e.session)
			if e.session.Version() != before {
				// failures leave the entry dirty for evictIdle to retry
				_ = s.persist(ctx, sessionID, e)
			}
		}
		view = s.view(sessionID, e)
	})
	return view, err
}

func (s *CartService) withSession(ctx context.Context, sessionID string, fn func(*sessionEntry)) error {
	for {
		e, err := s.getSession(ctx, sessionID)
		if err != nil {
			return err
		}

		e.mu.Lock()
		if e.evicted {
			// lost a race with eviction or ClearCart; load again
			e.mu.Unlock()
			continue
		}
		fn(e)
		e.lastUsed = time.Now()
		e.mu.Unlock()
		return nil
	}
}

func (s *CartService) getSession(ctx context.Context, sessionID string) (*sessionEntry, error) {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		s.mu.Lock()
		if e, ok := s.sessions[sessionID]; ok {
			s.mu.Unlock()
			return e, nil
		}
		s.mu.Unlock()

		state, fromRepo, err := s.loadState(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		e := s.newEntry(sessionID, cart.Restore(state.Items, s.sizes), state.UserID)

		s.mu.Lock()
		if existing, ok := s.sessions[sessionID]; ok {
			// ClearCart installed an entry while we were loading
			s.mu.Unlock()
			return existing, nil
		}
		s.sessions[sessionID] = e
		s.mu.Unlock()

		if fromRepo {
			s.fillCache(sessionID, e)
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*sessionEntry), nil
}

func (s *CartService) newEntry(sessionID string, store *cart.Store, userID string) *sessionEntry {
	e := &sessionEntry{
		session:  cart.NewSession(store),
		userID:   userID,
		lastUsed: time.Now(),
	}
	e.session.Subscribe(s.changeLogger(sessionID))
	return e
}

// loadState reports whether the state came from the repository, in which
// case the cache is still cold.
func (s *CartService) loadState(ctx context.Context, sessionID string) (*domain.CartState, bool, error) {
	state, err := s.cache.Get(ctx, sessionID)
	if err == nil {
		return state, false, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("cache get error", zap.String("session_id", sessionID), zap.Error(err))
	}

	state, errGet := s.repo.GetCart(ctx, sessionID)
	if errors.Is(errGet, repository.ErrCartNotFound) {
		return &domain.CartState{SessionID: sessionID}, false, nil
	}
	if errGet != nil {
		return nil, false, fmt.Errorf("load cart: %w", errGet)
	}
	return state, true, nil
}

// fillCache warms the cache in the background with the state just loaded.
// It runs under the entry lock and gives up once the session has changed,
// so it can never overwrite a later invalidation.
func (s *CartService) fillCache(sessionID string, e *sessionEntry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.evicted || e.dirty || e.session.Version() != 0 || e.session.GetCartCount() == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		state := &domain.CartState{
			SessionID: sessionID,
			UserID:    e.userID,
			Items:     e.session.Export(),
			UpdatedAt: time.Now(),
		}
		if err := s.cache.Set(ctx, state); err != nil {
			s.log.Warn("cache set error", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// persist writes the whole committed cart. Callers hold e.mu. On failure
// the in-memory session stays authoritative and the entry is marked dirty
// until a later save succeeds.
func (s *CartService) persist(ctx context.Context, sessionID string, e *sessionEntry) error {
	state := &domain.CartState{
		SessionID: sessionID,
		UserID:    e.userID,
		Items:     e.session.Export(),
		UpdatedAt: time.Now(),
	}

	var err error
	if len(state.Items) == 0 && e.userID == "" {
		err = s.repo.DeleteCart(ctx, sessionID)
		if errors.Is(err, repository.ErrCartNotFound) {
			err = nil
		}
		if err != nil {
			s.log.Warn("repo delete cart error", zap.String("session_id", sessionID), zap.Error(err))
		}
	} else if err = s.repo.SaveCart(ctx, state); err != nil {
		s.log.Warn("repo save cart error", zap.String("session_id", sessionID), zap.Error(err))
	}
	e.dirty = err != nil

	s.invalidateCache(sessionID)
	return err
}

// canonicalSize runs size through the size policy and, when checkProduct
// is set and the catalog knows the product, through its own size list.
func (s *CartService) canonicalSize(productID, size string, checkProduct bool) (string, error) {
	canonical, ok := s.sizes(size)
	if !ok {
		return "", fmt.Errorf("%w %q", cart.ErrUnknownSize, size)
	}
	if checkProduct {
		if p, found := s.snapshot().Lookup(productID); found && !p.OffersSize(canonical) {
			return "", fmt.Errorf("%w %q for product %s", cart.ErrUnknownSize, size, productID)
		}
	}
	return canonical, nil
}

func (s *CartService) view(sessionID string, e *sessionEntry) *domain.CartView {
	lines := cart.ComputeLines(e.session.GetAll(), s.snapshot())
	total := cart.ComputeTotal(lines)

	v := &domain.CartView{
		SessionID: sessionID,
		Lines:     lines,
		Total:     total,
		Display:   cart.FormatAmount(total),
		Currency:  s.currency,
		Count:     e.session.GetCartCount(),
		Version:   e.session.Version(),
	}
	if p, ok := e.session.Pending(); ok {
		v.Pending = &p
	}
	return v
}

// snapshot returns nil when no catalog is wired, which renders as empty.
func (s *CartService) snapshot() *catalog.Snapshot {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Current()
}

func (s *CartService) changeLogger(sessionID string) cart.Listener {
	return func(c cart.Change) {
		s.log.Debug("cart changed",
			zap.String("session_id", sessionID),
			zap.String("kind", string(c.Kind)),
			zap.String("product_id", c.ProductID),
			zap.String("size", c.Size),
			zap.Int("quantity", c.Quantity),
			zap.Uint64("version", c.Version))
	}
}

func (s *CartService) invalidateCache(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.log.Warn("cache invalidate error", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *CartService) cleanupLoop() {
	defer s.wg.Done()

	interval := s.idleTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictIdle(time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

// evictIdle drops sessions unused for idleTTL. Their committed state stays
// in the repository; pending adds are discarded with them. Busy sessions
// are skipped and retried on the next tick. A dirty session is never
// dropped: its save is retried instead and it becomes evictable once the
// repository has caught up.
func (s *CartService) evictIdle(now time.Time) int {
	type pendingFlush struct {
		id string
		e  *sessionEntry
	}
	var flush []pendingFlush

	s.mu.Lock()
	evicted := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if now.Sub(e.lastUsed) >= s.idleTTL {
			if e.dirty {
				flush = append(flush, pendingFlush{id: id, e: e})
			} else {
				e.evicted = true
				delete(s.sessions, id)
				evicted++
			}
		}
		e.mu.Unlock()
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.log.Debug("evicted idle sessions", zap.Int("count", evicted))
	}

	for _, f := range flush {
		f.e.mu.Lock()
		if !f.e.evicted && f.e.dirty {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.persist(ctx, f.id, f.e); err == nil {
				s.log.Info("flushed unsaved cart", zap.String("session_id", f.id))
			}
			cancel()
		}
		f.e.mu.Unlock()
	}
	return evicted
}
