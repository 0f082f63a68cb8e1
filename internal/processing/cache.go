package processing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gocache "github.com/patrickmn/go-cache"
)

const (
	documentCacheTTL     = 1 * time.Hour
	documentCacheCleanup = 10 * time.Minute
)

// DocumentCache memoizes ParseDocument by absolute path. Entries expire
// after an hour; Watch drops them as soon as the file changes on disk.
type DocumentCache struct {
	cache  *gocache.Cache
	parse  func(string) Document
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDocumentCache creates an empty cache.
func NewDocumentCache(logger *slog.Logger) *DocumentCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentCache{
		cache:  gocache.New(documentCacheTTL, documentCacheCleanup),
		parse:  ParseDocument,
		logger: logger.With(slog.String("component", "document_cache")),
	}
}

// Parse returns the cached parse of path, parsing it on a miss. Failed
// parses are not cached.
func (c *DocumentCache) Parse(path string) Document {
	key := cacheKey(path)
	if v, ok := c.cache.Get(key); ok {
		return v.(Document)
	}
	doc := c.parse(path)
	if doc.Error == "" {
		c.cache.Set(key, doc, gocache.DefaultExpiration)
	}
	return doc
}

// Invalidate drops the entry for path.
func (c *DocumentCache) Invalidate(path string) {
	c.cache.Delete(cacheKey(path))
}

// Len is the number of cached documents.
func (c *DocumentCache) Len() int {
	return c.cache.ItemCount()
}

// Watch invalidates entries for files in dir when they are written, removed
// or renamed. It runs until ctx is done or Close is called.
func (c *DocumentCache) Watch(ctx context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		return fmt.Errorf("document cache is already watching")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	c.watcher = fsw
	c.done = make(chan struct{})
	go c.loop(ctx, fsw, c.done)
	c.logger.Info("watching upload directory", "dir", dir)
	return nil
}

// Close stops the watcher, if any.
func (c *DocumentCache) Close() error {
	c.mu.Lock()
	fsw, done := c.watcher, c.done
	c.watcher, c.done = nil, nil
	c.mu.Unlock()
	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	<-done
	return err
}

func (c *DocumentCache) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				c.logger.Debug("invalidating cached document", "file", event.Name, "op", event.Op.String())
				c.Invalidate(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			c.logger.Error("file watcher error", "error", err)
		}
	}
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
