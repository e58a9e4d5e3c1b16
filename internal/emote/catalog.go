// Package emote holds the emote reference type and the per-source catalog.
package emote

import "sync"

// lookupOrder is the token lookup precedence. PlatformNative is resolved
// from message annotations by the classifier and never appears here.
var lookupOrder = []SourceID{
	ChannelCustom,
	GlobalCustom,
	ThirdPartyGlobal,
	ThirdPartyChannel,
}

// Catalog maps emote names to asset URLs, one table per source.
// It is safe for concurrent use; loaders may run in parallel.
type Catalog struct {
	mu      sync.RWMutex
	sources map[SourceID]map[string]string
	enabled map[SourceID]bool
}

// NewCatalog creates a catalog with the given sources enabled. Sources
// absent from enabled are disabled.
func NewCatalog(enabled map[SourceID]bool) *Catalog {
	c := &Catalog{
		sources: make(map[SourceID]map[string]string),
		enabled: make(map[SourceID]bool),
	}
	for id, on := range enabled {
		c.enabled[id] = on
	}
	return c
}

// Enabled reports whether a source takes part in resolution
func (c *Catalog) Enabled(id SourceID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled[id]
}

// Load merges mapping into the source's table. Later writes win per name.
// Entries with an empty name or url are ignored.
func (c *Catalog) Load(id SourceID, mapping map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := c.sources[id]
	if table == nil {
		table = make(map[string]string, len(mapping))
		c.sources[id] = table
	}
	for name, url := range mapping {
		if name == "" || url == "" {
			continue
		}
		table[name] = url
	}
}

// Len returns the number of entries loaded for a source
func (c *Catalog) Len(id SourceID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources[id])
}

// Lookup resolves a token against enabled sources in precedence order
func (c *Catalog) Lookup(name string) (Ref, bool) {
	if name == "" {
		return Ref{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range lookupOrder {
		if !c.enabled[id] {
			continue
		}
		if url, ok := c.sources[id][name]; ok {
			return Ref{Name: name, URL: url, Source: id}, true
		}
	}
	return Ref{}, false
}
