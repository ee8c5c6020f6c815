// Package fragcache memoizes assembled fragments. An entry is served only while
// the size and modification time of every file it was assembled from are unchanged,
// and is evicted as soon as the watcher reports a change to one of those files.
package fragcache

import (
	"context"
	"io/fs"
	"slices"
	"sync/atomic"
	"time"

	"shaderworkshop/broadcast"
	"shaderworkshop/frag"
	"shaderworkshop/watch"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

const DefaultSize = 128

type stamp struct {
	name    string
	size    int64
	modTime time.Time
}

type entry struct {
	frag   *frag.Fragment
	stamps []stamp
}

// Cache is safe for concurrent use.
type Cache struct {
	fsys fs.FS
	opts frag.Options
	lru  *lru.Cache[string, entry]

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func New(fsys fs.FS, opts frag.Options, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create fragment cache")
	}
	return &Cache{fsys: fsys, opts: opts, lru: l}, nil
}

// Get returns the assembled fragment for the root shader name, assembling it
// again when any of its files changed since the cached assembly.
// Assembly errors are returned unwrapped so callers can classify them.
func (c *Cache) Get(name string) (*frag.Fragment, error) {
	f, _, err := c.Lookup(name)
	return f, err
}

// Lookup is Get that also reports whether the result came from the cache.
func (c *Cache) Lookup(name string) (*frag.Fragment, bool, error) {
	if e, ok := c.lru.Get(name); ok {
		if c.fresh(e.stamps) {
			c.hits.Add(1)
			return e.frag, true, nil
		}
		logger.Debug("Cached fragment is stale", "shader", name)
	}
	c.misses.Add(1)

	f, err := c.assemble(name)
	return f, false, err
}

func (c *Cache) assemble(name string) (*frag.Fragment, error) {
	f, err := frag.Read(c.fsys, name, c.opts)
	if err != nil {
		c.lru.Remove(name)
		return nil, err
	}

	// A write landing between the read and the stamps would be cached as fresh,
	// so the result is only kept if a second read after stamping agrees.
	stamps, err := c.stampAll(f.Files)
	if err != nil {
		c.lru.Remove(name)
		return f, nil
	}
	again, err := frag.Read(c.fsys, name, c.opts)
	if err != nil {
		c.lru.Remove(name)
		return nil, err
	}
	if again.Content() != f.Content() || !slices.Equal(again.Files, f.Files) {
		logger.Debug("Shader changed during assembly, not caching", "shader", name)
		c.lru.Remove(name)
		return again, nil
	}

	c.lru.Add(name, entry{frag: f, stamps: stamps})
	return f, nil
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Invalidate evicts every entry assembled from file and returns how many were dropped.
func (c *Cache) Invalidate(file string) int {
	n := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if slices.ContainsFunc(e.stamps, func(s stamp) bool { return s.name == file }) {
			c.lru.Remove(key)
			n++
		}
	}
	return n
}

// Follow evicts entries as filesystem events arrive from bcast until ctx is done.
// Stamps alone miss a same-size rewrite within one mtime tick.
func (c *Cache) Follow(ctx context.Context, bcast *broadcast.Broadcaster[watch.Event]) error {
	q := broadcast.NewQueue[watch.Event]()
	bcast.Subscribe(q)
	defer q.Close()
	defer bcast.Unsubscribe(q)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.Ready():
			for _, e := range q.Drain() {
				if e.Name == "" {
					c.Purge()
					continue
				}
				if n := c.Invalidate(e.Name); n > 0 {
					logger.Debug("Evicted cached fragments", "file", e.Name, "entries", n)
				}
			}
		}
	}
}

func (c *Cache) Stats() Stats {
	return Stats{Entries: c.lru.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cache) stampAll(names []string) ([]stamp, error) {
	stamps := make([]stamp, 0, len(names))
	for _, n := range names {
		info, err := fs.Stat(c.fsys, n)
		if err != nil {
			return nil, err
		}
		stamps = append(stamps, stamp{name: n, size: info.Size(), modTime: info.ModTime()})
	}
	return stamps, nil
}

func (c *Cache) fresh(stamps []stamp) bool {
	for _, s := range stamps {
		info, err := fs.Stat(c.fsys, s.name)
		if err != nil || info.Size() != s.size || !info.ModTime().Equal(s.modTime) {
			return false
		}
	}
	return true
}
