package compiler

import (
	"encoding/hex"
	"sync"

	"github.com/chazu/tessera/vm"
	"github.com/chazu/tessera/wire"
)

// ---------------------------------------------------------------------------
// Cache: content-addressed compiled programs
// ---------------------------------------------------------------------------

type cacheKey struct {
	hash [32]byte
	name string
}

// Cache memoizes compiled programs by the content hash of their wire
// template. Programs are immutable, so one cached program serves every
// caller. A Cache is safe for concurrent use.
type Cache struct {
	compiler *Compiler

	mu       sync.RWMutex
	programs map[cacheKey]*vm.Program
	hits     int
	misses   int
}

// NewCache creates an empty cache in front of c.
func NewCache(c *Compiler) *Cache {
	return &Cache{
		compiler: c,
		programs: make(map[cacheKey]*vm.Program),
	}
}

// Compile returns the cached program for t, compiling it on a miss.
// Failed compiles are not cached.
func (c *Cache) Compile(t *wire.Template, name string) (*vm.Program, error) {
	h, err := wire.Hash(t)
	if err != nil {
		return nil, err
	}
	key := cacheKey{hash: h, name: name}

	c.mu.RLock()
	p, ok := c.programs[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return p, nil
	}

	p, err = c.compiler.Compile(t, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if existing, ok := c.programs[key]; ok {
		return existing, nil
	}
	c.programs[key] = p
	log.Debugf("cached %s as %s", name, hex.EncodeToString(h[:8]))
	return p, nil
}

// Lookup returns the program cached for a template hash and name, or nil.
func (c *Cache) Lookup(h [32]byte, name string) *vm.Program {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.programs[cacheKey{hash: h, name: name}]
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Purge drops every cached program.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.programs = make(map[cacheKey]*vm.Program)
	c.mu.Unlock()
}
