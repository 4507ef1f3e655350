package resolver

import (
	"sync"
	"time"

	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/internal/task"
)

// DefaultMetadataTTL bounds how long provider metadata listings (projects,
// sections, field settings) are reused across resolution calls. Shorter than
// the task cache TTL is unnecessary: metadata churns far less than tasks.
const DefaultMetadataTTL = 10 * time.Minute

// MetadataCache memoizes metadata listings across resolution calls within one
// process. It is in-memory only; the persisted task cache is separate.
type MetadataCache struct {
	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	workspaces map[string]metaEntry[[]plugin.Workspace]
	projects   map[string]metaEntry[[]plugin.Project]
	sections   map[string]metaEntry[[]plugin.Section]
	fields     map[string]metaEntry[[]plugin.FieldSetting]
}

type metaEntry[T any] struct {
	data      T
	expiresAt time.Time
}

func NewMetadataCache(ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return &MetadataCache{
		ttl:        ttl,
		now:        time.Now,
		workspaces: make(map[string]metaEntry[[]plugin.Workspace]),
		projects:   make(map[string]metaEntry[[]plugin.Project]),
		sections:   make(map[string]metaEntry[[]plugin.Section]),
		fields:     make(map[string]metaEntry[[]plugin.FieldSetting]),
	}
}

func metaKey(provider task.ProviderType, scope string) string {
	return string(provider) + ":" + scope
}

func getMeta[T any](c *MetadataCache, m map[string]metaEntry[T], key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := m[key]
	if !ok || c.now().After(entry.expiresAt) {
		delete(m, key)
		return zero, false
	}
	return entry.data, true
}

func putMeta[T any](c *MetadataCache, m map[string]metaEntry[T], key string, data T) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m[key] = metaEntry[T]{data: data, expiresAt: c.now().Add(c.ttl)}
}
