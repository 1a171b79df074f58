package accounts

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/podping-watcher/internal/podping"
	"github.com/your-org/podping-watcher/pkg/metrics"
)

// Registry publishes immutable snapshots of the accounts trusted to post
// podpings. Readers never block; Refresh swaps in a new snapshot.
type Registry struct {
	resolver Resolver
	anchors  []string
	logger   *zap.Logger
	metrics  *metrics.Metrics
	current  atomic.Pointer[podping.AccountSet]
}

type Params struct {
	Resolver Resolver
	// Anchors are always trusted, whatever the resolver returns.
	Anchors []string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewRegistry constructs a Registry seeded with the anchor accounts only.
func NewRegistry(p Params) *Registry {
	r := &Registry{
		resolver: p.Resolver,
		anchors:  append([]string(nil), p.Anchors...),
		logger:   p.Logger,
		metrics:  p.Metrics,
	}
	r.store(podping.NewAccountSet(r.anchors...))
	return r
}

// Snapshot returns the current trusted account set.
func (r *Registry) Snapshot() podping.AccountSet {
	return *r.current.Load()
}

// Refresh resolves the trusted accounts again. On failure the previous
// snapshot stays in place.
func (r *Registry) Refresh(ctx context.Context) error {
	names, err := r.resolver.Resolve(ctx)
	if err != nil {
		r.metrics.AccountRefreshFailures.Inc()
		return fmt.Errorf("resolve accounts: %w", err)
	}

	all := make([]string, 0, len(r.anchors)+len(names))
	all = append(all, r.anchors...)
	all = append(all, names...)
	set := podping.NewAccountSet(all...)
	r.store(set)

	r.logger.Info("authorized accounts refreshed", zap.Int("count", set.Len()))
	return nil
}

// Run refreshes every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("account refresh failed, keeping previous snapshot", zap.Error(err))
			}
		}
	}
}

func (r *Registry) store(set podping.AccountSet) {
	r.current.Store(&set)
	r.metrics.AuthorizedAccounts.Set(float64(set.Len()))
}
