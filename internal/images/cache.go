package images

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// diskCache is a bounded directory of downloaded images. Before a write that
// would exceed the bound, the single oldest file is evicted.
type diskCache struct {
	dir        string
	maxEntries int

	mu sync.Mutex
}

func newDiskCache(dir string, maxEntries int) *diskCache {
	return &diskCache{dir: dir, maxEntries: maxEntries}
}

// Put stores data as a new .png file and returns its path, evicting the
// oldest entry first when the cache is full.
func (c *diskCache) Put(data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("images: create cache dir: %w", err)
	}
	if err := c.evictLocked(); err != nil {
		return "", err
	}

	path := filepath.Join(c.dir, uuid.NewString()+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("images: write cache entry: %w", err)
	}
	return path, nil
}

// evictLocked removes the oldest .png entry when the cache holds maxEntries
// or more. Caller holds c.mu.
func (c *diskCache) evictLocked() error {
	entries, err := c.list()
	if err != nil {
		return err
	}
	if len(entries) < c.maxEntries {
		return nil
	}

	oldest := ""
	var oldestTime time.Time
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if oldest == "" || info.ModTime().Before(oldestTime) {
			oldest = e.Name()
			oldestTime = info.ModTime()
		}
	}
	if oldest == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(c.dir, oldest)); err != nil {
		return fmt.Errorf("images: evict cache entry: %w", err)
	}
	return nil
}

func (c *diskCache) list() ([]os.DirEntry, error) {
	all, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("images: read cache dir: %w", err)
	}
	var out []os.DirEntry
	for _, e := range all {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".png" {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of cached entries.
func (c *diskCache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.list()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
