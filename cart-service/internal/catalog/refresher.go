package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/legacyxi/shopcart/pkg/circuitbreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultRefreshInterval = time.Minute

// Refresher keeps a Holder current. A failed fetch leaves the previous
// snapshot, possibly the empty one, in place.
type Refresher struct {
	holder   *Holder
	source   Source
	breaker  *circuitbreaker.Breaker[[]domain.Product]
	interval time.Duration
	log      *zap.Logger
	sfg      singleflight.Group // concurrent refreshes share one fetch
}

func NewRefresher(holder *Holder, source Source, interval time.Duration, log *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{
		holder:   holder,
		source:   source,
		breaker:  circuitbreaker.New[[]domain.Product](circuitbreaker.Config{Name: "catalog"}, log),
		interval: interval,
		log:      log,
	}
}

// Refresh fetches the catalog once and installs it.
func (r *Refresher) Refresh(ctx context.Context) error {
	_, err, _ := r.sfg.Do("catalog", func() (interface{}, error) {
		products, err := r.breaker.Execute(func() ([]domain.Product, error) {
			return r.source.FetchProducts(ctx)
		})
		if err != nil {
			return nil, err
		}
		snap := r.holder.Replace(products)
		r.log.Debug("catalog refreshed",
			zap.Uint64("version", snap.Version()),
			zap.Int("products", snap.Len()))
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	return nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refreshAndLog(ctx)
	for {
		select {
		case <-ticker.C:
			r.refreshAndLog(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Healthy reports whether the catalog source is reachable.
func (r *Refresher) Healthy() bool {
	return r.breaker.Healthy()
}

func (r *Refresher) refreshAndLog(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		snap := r.holder.Current()
		r.log.Warn("catalog refresh failed, serving previous snapshot",
			zap.Error(err),
			zap.Uint64("version", snap.Version()),
			zap.Int("products", snap.Len()),
			zap.Time("fetched_at", snap.FetchedAt()))
	}
}
