package fixture

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Catalog holds the fixture sets found under a list of glob patterns.
// It is safe for concurrent use.
type Catalog struct {
	patterns []string
	logger   *slog.Logger

	mu   sync.RWMutex
	sets map[string]Set
}

// NewCatalog creates an empty catalog. Call Reload to populate it.
func NewCatalog(patterns []string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		patterns: patterns,
		logger:   logger,
		sets:     make(map[string]Set),
	}
}

// Reload re-reads every fixture file. Valid sets replace the current
// contents even when some files fail; the failures are returned.
func (c *Catalog) Reload() error {
	sets, err := LoadGlob(c.patterns...)
	if err != nil {
		c.logger.Warn("some fixture files failed to load", "error", err)
	}

	next := make(map[string]Set, len(sets))
	for _, s := range sets {
		next[s.Name] = s
	}

	c.mu.Lock()
	c.sets = next
	c.mu.Unlock()

	c.logger.Debug("fixture catalog loaded", "sets", len(next))
	return err
}

// Get returns the set called name.
func (c *Catalog) Get(name string) (Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sets[name]
	return s, ok
}

// List returns all sets ordered by name.
func (c *Catalog) List() []Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Set, 0, len(c.sets))
	for _, s := range c.sets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dirs returns the directories that must be watched to notice fixture
// changes: the static base of every pattern plus the directory of every
// loaded file.
func (c *Catalog) Dirs() []string {
	seen := make(map[string]struct{})
	for _, p := range c.patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		seen[filepath.FromSlash(base)] = struct{}{}
	}

	c.mu.RLock()
	for _, s := range c.sets {
		if s.Source != "" {
			seen[filepath.Dir(s.Source)] = struct{}{}
		}
	}
	c.mu.RUnlock()

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}
