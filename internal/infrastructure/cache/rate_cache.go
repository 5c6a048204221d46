// Package cache provides in-memory catalogs refreshed via PostgreSQL
// LISTEN/NOTIFY, avoiding TTL polling.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"docstitch/internal/core/types"
	"docstitch/internal/domain/totals"
	"docstitch/pkg/logger"
)

const rateChannel = "tax_rates_changed"

// RateCache caches the tax_rates table and serves it to the totals
// calculator. A NOTIFY on tax_rates_changed reloads the whole catalog;
// the table is small, so selective invalidation is not worth the payload
// parsing.
type RateCache struct {
	pool     *pgxpool.Pool
	fallback totals.RateSource

	mu    sync.RWMutex
	rates map[string]types.Percent

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewRateCache creates a rate cache over the pool. The fallback source
// answers for codes absent from the table, and for every code until Start
// succeeds. It may be nil.
func NewRateCache(pool *pgxpool.Pool, fallback totals.RateSource) *RateCache {
	return &RateCache{
		pool:     pool,
		fallback: fallback,
		rates:    make(map[string]types.Percent),
	}
}

// Start loads the catalog and begins listening for invalidations.
func (c *RateCache) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	if err := c.load(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("load tax rates: %w", err)
	}

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "tax rate cache started")
	return nil
}

// Stop cancels the listener and waits for it to exit.
func (c *RateCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "tax rate cache stopped")
}

// listenLoop holds a dedicated connection on LISTEN and reloads the
// catalog on every notification. Connection loss backs off one second
// and retries.
func (c *RateCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logger.Error(c.ctx, "acquire connection for LISTEN failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(c.ctx, "LISTEN "+rateChannel); err != nil {
			logger.Error(c.ctx, "LISTEN failed", "channel", rateChannel, "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *RateCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Timeout so shutdown is never blocked on a silent channel.
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		_, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			continue
		}

		if err := c.load(c.ctx); err != nil {
			logger.Error(c.ctx, "tax rate reload failed", "error", err)
		}
	}
}

// load replaces the cached catalog from tax_rates.
func (c *RateCache) load(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `
		SELECT code, rate
		FROM tax_rates
		WHERE active = TRUE
	`)
	if err != nil {
		return fmt.Errorf("query tax rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]types.Percent)
	for rows.Next() {
		var code string
		var rate types.Percent
		if err := rows.Scan(&code, &rate); err != nil {
			return fmt.Errorf("scan tax rate: %w", err)
		}
		rates[code] = rate
	}
	if err := rows.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.rates = rates
	c.mu.Unlock()

	logger.Info(ctx, "loaded tax rates", "count", len(rates))
	return nil
}

// RateFor implements totals.RateSource.
func (c *RateCache) RateFor(ctx context.Context, taxCode string) (types.Percent, error) {
	c.mu.RLock()
	rate, ok := c.rates[taxCode]
	c.mu.RUnlock()
	if ok {
		return rate, nil
	}
	if c.fallback != nil {
		return c.fallback.RateFor(ctx, taxCode)
	}
	return types.Zero(), nil
}

var _ totals.RateSource = (*RateCache)(nil)
