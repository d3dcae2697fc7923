package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// PoolConfig configures the browser pool. Adapted from the teacher's
// ChromeDPPoolConfig (internal/services/crawler/chromedp_pool.go).
type PoolConfig struct {
	Size      int
	Headless  bool
	UserAgent string
	// StartupTimeout bounds the smoke-test navigation each pool slot runs
	// once at construction time.
	StartupTimeout time.Duration
}

// Pool manages Size pre-warmed, isolated chromedp browser contexts, one per
// scheduler worker slot, allocated round-robin. Grounded on the teacher's
// ChromeDPPool (internal/services/crawler/chromedp_pool.go), generalized
// from a shared-crawl pool to per-job isolated sessions: Acquire hands out
// one of the allocator contexts, and the caller derives a fresh browser
// tab (chromedp.NewContext child) from it per job so concurrent jobs never
// share page state, matching spec §4.2 "isolated session".
type Pool struct {
	mu          sync.Mutex
	allocators  []context.Context
	allocCancel []context.CancelFunc
	logger      arbor.ILogger
	size        int
	next        int
	initialized bool
}

func NewPool(logger arbor.ILogger) *Pool {
	return &Pool{logger: logger}
}

// Init creates Size browser-process allocators, tolerating partial
// failures down to "at least one succeeded" the same way the teacher's
// InitBrowserPool does.
func (p *Pool) Init(cfg PoolConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}
	if cfg.Size <= 0 {
		return fmt.Errorf("browser pool size must be > 0, got %d", cfg.Size)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Pumpkin-Perf/1.0"
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}

	p.allocators = make([]context.Context, 0, cfg.Size)
	p.allocCancel = make([]context.CancelFunc, 0, cfg.Size)

	successCount := 0
	var lastErr error
	for i := 0; i < cfg.Size; i++ {
		allocCtx, cancel, err := newAllocator(cfg)
		if err != nil {
			lastErr = err
			if p.logger != nil {
				p.logger.Warn().Err(err).Int("slot", i).Msg("failed to create browser allocator")
			}
			continue
		}
		p.allocators = append(p.allocators, allocCtx)
		p.allocCancel = append(p.allocCancel, cancel)
		successCount++
	}

	if successCount == 0 {
		return fmt.Errorf("failed to create any browser allocators: %w", lastErr)
	}

	p.size = successCount
	p.initialized = true
	if p.logger != nil {
		p.logger.Info().Int("requested", cfg.Size).Int("created", successCount).Msg("browser pool initialized")
	}
	return nil
}

func newAllocator(cfg PoolConfig) (context.Context, context.CancelFunc, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	testCtx, testCancel := chromedp.NewContext(allocCtx)
	defer testCancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(testCtx, cfg.StartupTimeout)
	defer timeoutCancel()

	if err := chromedp.Run(timeoutCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("browser smoke test failed: %w", err)
	}

	return allocCtx, cancel, nil
}

// Acquire returns the allocator context for the next pool slot, round
// robin, and a release func (currently a no-op: browser processes are
// long-lived and reused, only tab contexts created from them are
// per-job). Callers derive a fresh tab with chromedp.NewContext(allocCtx)
// for each job so sessions stay isolated (spec §4.2).
func (p *Pool) Acquire() (context.Context, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized || len(p.allocators) == 0 {
		return nil, nil, fmt.Errorf("browser pool not initialized")
	}

	idx := p.next % len(p.allocators)
	p.next++
	return p.allocators[idx], func() {}, nil
}

// Size returns the number of successfully created allocator slots.
func (p *Pool) Size() int {
	return p.size
}

// Shutdown cancels every allocator context.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, cancel := range p.allocCancel {
			cancel()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		if p.logger != nil {
			p.logger.Warn().Msg("browser pool shutdown timed out")
		}
	case <-ctx.Done():
	}

	p.initialized = false
}
