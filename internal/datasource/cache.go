package datasource

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"dashboard-go/internal/table"
)

// ── Cache ──────────────────────────────────────────────────
// Memoises one Source so repeated sessions over the same remote dataset
// do not refetch it. A refresh schedule (cron) or a file watch (fsnotify)
// keeps it current.

// Cache holds the last table loaded from a Source.
type Cache struct {
	src Source

	mu     sync.Mutex
	table  *table.Table
	loaded time.Time

	cronSched   *cron.Cron
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
}

// NewCache wraps src. Nothing is loaded until the first Get.
func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// Source returns the wrapped source.
func (c *Cache) Source() Source { return c.src }

// Get returns the cached table, loading it on first use or after
// Invalidate.
func (c *Cache) Get(ctx context.Context) (*table.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.table != nil {
		return c.table, nil
	}
	return c.loadLocked(ctx)
}

// Refresh reloads the table. On failure the previous table is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.loadLocked(ctx)
	return err
}

func (c *Cache) loadLocked(ctx context.Context) (*table.Table, error) {
	t, err := c.src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.src.Name(), err)
	}
	c.table = t
	c.loaded = time.Now()
	log.Printf("[Cache] loaded %s: %d rows, %d columns", c.src.Name(), t.Len(), t.Width())
	return t, nil
}

// Invalidate drops the cached table so the next Get reloads it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = nil
}

// LoadedAt reports when the cached table was loaded, or the zero time.
func (c *Cache) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.table == nil {
		return time.Time{}
	}
	return c.loaded
}

// Schedule refreshes the cache on a cron expression ("@every 15m",
// "0 * * * *").
func (c *Cache) Schedule(ctx context.Context, expr string) error {
	sched := cron.New()
	_, err := sched.AddFunc(expr, func() {
		if err := c.Refresh(ctx); err != nil {
			log.Printf("[Cache] scheduled refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh expression %q: %w", expr, err)
	}

	c.mu.Lock()
	if c.cronSched != nil {
		c.cronSched.Stop()
	}
	c.cronSched = sched
	c.mu.Unlock()

	sched.Start()
	log.Printf("[Cache] refreshing %s on %q", c.src.Name(), expr)
	return nil
}

// Watch invalidates the cache whenever path is written or recreated.
// Bursts of events within debounce collapse into one invalidation.
func (c *Cache) Watch(path string, debounce time.Duration) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("bad path %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(absPath), err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.stopWatchLocked()
	c.watcher, c.watchCancel = watcher, cancel
	c.mu.Unlock()

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-watchCtx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if name, _ := filepath.Abs(event.Name); name != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					log.Printf("[Cache] %s changed, invalidating", absPath)
					c.Invalidate()
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Cache] watcher error: %v", err)
			}
		}
	}()

	log.Printf("[Cache] watching %s", absPath)
	return nil
}

// Stop tears down the refresh schedule and file watch.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopWatchLocked()
	if c.cronSched != nil {
		c.cronSched.Stop()
		c.cronSched = nil
	}
}

func (c *Cache) stopWatchLocked() {
	if c.watchCancel != nil {
		c.watchCancel()
		c.watchCancel = nil
	}
	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
}
