package cache

// RenderCache caches fully rendered page output keyed by template name plus
// context fingerprint. It has no automatic invalidation; callers invalidate
// by template name whenever the underlying document set changes.
//
// A nil or zero-capacity RenderCache is disabled: Get always misses and Put
// is a no-op. This lets configuration turn the cache off without the render
// path growing conditionals.
type RenderCache struct {
	lru *LRU
}

// NewRenderCache creates a rendered-output cache. capacity <= 0 disables it.
func NewRenderCache(capacity int) *RenderCache {
	if capacity <= 0 {
		return &RenderCache{}
	}
	return &RenderCache{lru: NewLRU(capacity)}
}

// Enabled reports whether the cache stores anything at all.
func (rc *RenderCache) Enabled() bool { return rc != nil && rc.lru != nil }

// Get returns the cached bytes for (template, context).
func (rc *RenderCache) Get(template string, context map[string]any) ([]byte, bool) {
	if !rc.Enabled() {
		return nil, false
	}
	v, ok := rc.lru.Get(RenderKey(template, context))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Put stores rendered bytes for (template, context).
func (rc *RenderCache) Put(template string, context map[string]any, output []byte) {
	if !rc.Enabled() {
		return
	}
	rc.lru.Put(RenderKey(template, context), output)
}

// InvalidateTemplate drops every cached render of the named template.
func (rc *RenderCache) InvalidateTemplate(template string) int {
	if !rc.Enabled() {
		return 0
	}
	return rc.lru.Invalidate(template + ":")
}

// Clear drops all cached output.
func (rc *RenderCache) Clear() {
	if rc.Enabled() {
		rc.lru.Clear()
	}
}

// Stats exposes accounting; a disabled cache reports zeros.
func (rc *RenderCache) Stats() Stats {
	if !rc.Enabled() {
		return Stats{}
	}
	return rc.lru.Stats()
}
