// Package filecache maintains local copies of remote source files under a
// single directory, downloading with a fixed pool of workers. It implements
// vod.SourceCache.
package filecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"
)

const queueDepth = 256

// Cache downloads remote sources into dir, named by content address of
// their URL. It is constructed explicitly and shut down explicitly; there
// is no process-wide instance.
type Cache struct {
	dir    string
	client *http.Client
	log    *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool

	jobs chan string
	wg   sync.WaitGroup
}

// New starts a Cache with the given worker count (minimum 1). dir is
// resolved to an absolute path (so file:// URLs built from cached paths
// always carry the full filesystem path) and created if missing.
func New(dir string, workers int, log *slog.Logger) (*Cache, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cache dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir %s: %w", dir, err)
	}
	if workers < 1 {
		workers = 1
	}
	c := &Cache{
		dir:     dir,
		client:  &http.Client{Timeout: 5 * time.Minute},
		log:     log,
		pending: make(map[string]struct{}),
		jobs:    make(chan string, queueDepth),
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c, nil
}

// Resolve returns the local path for rawURL if a cached copy exists. On a
// miss the download is enqueued (deduplicated; dropped when the queue is
// full, to be retried by the next refresh sweep) and ok is false.
func (c *Cache) Resolve(rawURL string) (string, bool) {
	local := c.localPath(rawURL)
	if _, err := os.Stat(local); err == nil {
		return local, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", false
	}
	if _, inFlight := c.pending[rawURL]; inFlight {
		return "", false
	}
	select {
	case c.jobs <- rawURL:
		c.pending[rawURL] = struct{}{}
	default:
	}
	return "", false
}

// Shutdown stops accepting work and drains the in-flight downloads, or
// returns ctx.Err() if the context expires first.
func (c *Cache) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.jobs)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) worker() {
	defer c.wg.Done()
	for rawURL := range c.jobs {
		if err := c.download(rawURL); err != nil {
			c.log.Warn("source download failed",
				slog.String("url", rawURL),
				slog.String("error", err.Error()))
		}
		c.mu.Lock()
		delete(c.pending, rawURL)
		c.mu.Unlock()
	}
}

func (c *Cache) download(rawURL string) error {
	resp, err := c.client.Get(rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream returned %s", resp.Status)
	}

	local := c.localPath(rawURL)
	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), local)
}

// localPath content-addresses a URL into the cache dir, keeping the
// original extension so the media server can sniff the container.
func (c *Cache) localPath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+ext)
}
