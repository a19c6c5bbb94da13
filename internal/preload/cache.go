// Package preload warms remote image caches ahead of card navigation. It is
// best effort: failures are logged and never reach the caller.
package preload

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danieldreier/ankoma-flashcards/internal/deck"
	"github.com/danieldreier/ankoma-flashcards/internal/images"
)

// Defaults for Options.
const (
	DefaultLookahead = 5
	DefaultBatchSize = 3
	DefaultDelay     = 100 * time.Millisecond
)

// Loader fetches one image.
type Loader interface {
	Load(ctx context.Context, url string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, url string) error

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Options configure a Cache. Zero values take the defaults.
type Options struct {
	Lookahead int
	BatchSize int
	Delay     time.Duration
	Resolver  images.Resolver
	Logger    *zap.Logger
}

// Stats counts URLs by state. Requested covers every URL handed to the loader,
// whether it has finished or not.
type Stats struct {
	Requested int `json:"requested"`
	Queued    int `json:"queued"`
	Loaded    int `json:"loaded"`
	Failed    int `json:"failed"`
}

type set map[string]struct{}

func (s set) has(k string) bool {
	_, ok := s[k]
	return ok
}

// Cache de-duplicates image requests and drains upcoming ones in small batches.
// All methods are safe for concurrent use.
type Cache struct {
	loader Loader
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	requested set
	queued    set
	loaded    set
	failed    set
	queue     []string
	draining  bool
	timer     *time.Timer
	gen       uint64
}

// New returns a cache issuing loads through loader.
func New(loader Loader, opts Options) *Cache {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Resolver.BaseURL == "" {
		opts.Resolver = images.DefaultResolver()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		loader: loader,
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.requested = set{}
	c.queued = set{}
	c.loaded = set{}
	c.failed = set{}
	c.queue = nil
	c.draining = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// URLs returns the image URLs of a card: question, answer and auxiliary fields,
// without duplicates.
func (c *Cache) URLs(card deck.Card) []string {
	seen := set{}
	var urls []string
	for _, src := range card.ImageSources() {
		for _, u := range c.opts.Resolver.URLs(src) {
			if !seen.has(u) {
				seen[u] = struct{}{}
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// Observe is called whenever the current position in cards changes. The current
// card's images are requested right away; those of the next cards up to the
// lookahead are queued.
func (c *Cache) Observe(cards []deck.Card, index int) {
	if index < 0 || index >= len(cards) {
		return
	}
	c.LoadNow(c.URLs(cards[index])...)

	var upcoming []string
	for i := index + 1; i < len(cards) && i <= index+c.opts.Lookahead; i++ {
		upcoming = append(upcoming, c.URLs(cards[i])...)
	}
	c.Enqueue(upcoming...)
}

// LoadNow requests urls immediately, outside the batch queue. URLs requested
// before are skipped; queued ones leave the queue.
func (c *Cache) LoadNow(urls ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range urls {
		if u == "" || c.requested.has(u) {
			continue
		}
		if c.queued.has(u) {
			c.dequeue(u)
		}
		c.requested[u] = struct{}{}
		go c.load(c.gen, u)
	}
}

// dequeue drops u from the queue. The caller holds the lock.
func (c *Cache) dequeue(u string) {
	delete(c.queued, u)
	for i, q := range c.queue {
		if q == u {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// Enqueue queues urls that were neither requested nor queued before and starts
// draining the queue if it is idle. It returns the number of URLs added.
func (c *Cache) Enqueue(urls ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, u := range urls {
		if u == "" || c.requested.has(u) || c.queued.has(u) {
			continue
		}
		c.queued[u] = struct{}{}
		c.queue = append(c.queue, u)
		added++
	}
	if len(c.queue) > 0 && !c.draining {
		c.draining = true
		go c.runBatch(c.gen)
	}
	return added
}

// runBatch loads up to BatchSize queued URLs concurrently and schedules the
// next batch after the delay while the queue is not empty.
func (c *Cache) runBatch(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	var batch []string
	for len(c.queue) > 0 && len(batch) < c.opts.BatchSize {
		u := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.queued, u)
		if c.requested.has(u) {
			continue
		}
		c.requested[u] = struct{}{}
		batch = append(batch, u)
	}
	c.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(c.opts.BatchSize)
	for _, u := range batch {
		u := u
		g.Go(func() error {
			c.load(gen, u)
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if len(c.queue) == 0 {
		c.draining = false
		return
	}
	c.timer = time.AfterFunc(c.opts.Delay, func() { c.runBatch(gen) })
}

func (c *Cache) load(gen uint64, url string) {
	err := c.loader.Load(c.ctx, url)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if err != nil {
		c.failed[url] = struct{}{}
		c.logger.Warn("Image preload failed", zap.String("url", url), zap.Error(err))
		return
	}
	c.loaded[url] = struct{}{}
	c.logger.Debug("Image preloaded", zap.String("url", url))
}

// Requested reports whether url has been handed to the loader.
func (c *Cache) Requested(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested.has(url)
}

// Loaded reports whether url finished loading successfully.
func (c *Cache) Loaded(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded.has(url)
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Requested: len(c.requested),
		Queued:    len(c.queue),
		Loaded:    len(c.loaded),
		Failed:    len(c.failed),
	}
}

// Clear empties the requested set and the queue and stops a scheduled batch.
// Loads in flight still complete, but their results are dropped.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.reset()
}

// Close clears the cache and cancels loads in flight.
func (c *Cache) Close() {
	c.Clear()
	c.cancel()
}
