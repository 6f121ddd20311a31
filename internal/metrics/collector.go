package metrics

import (
	"context"
	"time"

	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
)

// ItemCounter reports the current number of items per cache namespace.
type ItemCounter interface {
	ItemCounts() map[string]int
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Collector periodically samples gauges that are not updated inline.
type Collector struct {
	items    ItemCounter
	store    Pinger
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a new metrics collector. store may be nil.
func NewCollector(items ItemCounter, store Pinger, interval time.Duration) *Collector {
	return &Collector{
		items:    items,
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the collection loop until Stop is called or ctx is done.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	close(c.stop)
}

// Collect samples every source once.
func (c *Collector) Collect(ctx context.Context) {
	if c.items != nil {
		for ns, n := range c.items.ItemCounts() {
			CacheItems.WithLabelValues(ns).Set(float64(n))
		}
	}
	if c.store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.store.Ping(pingCtx); err != nil {
			logger.WithComponent("metrics").Warn("store ping failed", "error", err)
			MetricsCollectionErrors.WithLabelValues("store").Inc()
		}
	}
}
