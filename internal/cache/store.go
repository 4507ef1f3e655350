// Package cache implements the TTL-based local task cache. It is a pure
// accelerator, never a source of truth: a corrupt or unreadable backing store
// degrades to "always miss" instead of failing the caller.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jogi47/pm-cli/internal/task"
	"github.com/jogi47/pm-cli/pkg/cerr"
	"github.com/jogi47/pm-cli/pkg/storage"
)

// Operation names a cacheable task-list read.
type Operation string

const (
	OperationAssigned Operation = "assigned"
	OperationOverdue  Operation = "overdue"
	OperationSearch   Operation = "search"
)

// DefaultTTL is the validity window applied when no explicit TTL is given.
const DefaultTTL = 5 * time.Minute

const fileName = "cache.yaml"

// Entry wraps cached data with its validity window. An entry is valid iff
// now <= ExpiresAt; expired entries are evicted lazily on read.
type Entry[T any] struct {
	Key       string    `yaml:"key"`
	Data      T         `yaml:"data"`
	CachedAt  time.Time `yaml:"cached_at"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

type document struct {
	TaskLists   map[string]Entry[[]task.Task] `yaml:"tasks"`
	TaskDetails map[string]Entry[task.Task]   `yaml:"task_details"`
}

func newDocument() *document {
	return &document{
		TaskLists:   make(map[string]Entry[[]task.Task]),
		TaskDetails: make(map[string]Entry[task.Task]),
	}
}

// Store is the TTL cache. All mutations persist synchronously to the backing
// store before returning.
type Store struct {
	storage    storage.Storage
	defaultTTL time.Duration
	now        func() time.Time

	mu  sync.Mutex
	doc *document
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source. Tests use this to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage:    st,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load reads the backing file lazily. Any read or decode failure yields a
// fresh empty document so the cache behaves as always-miss.
func (s *Store) load(ctx context.Context) *document {
	if s.doc != nil {
		return s.doc
	}
	s.doc = newDocument()
	data, err := s.storage.Read(ctx, fileName)
	if err != nil {
		return s.doc
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return s.doc
	}
	if doc.TaskLists != nil {
		s.doc.TaskLists = doc.TaskLists
	}
	if doc.TaskDetails != nil {
		s.doc.TaskDetails = doc.TaskDetails
	}
	return s.doc
}

func (s *Store) persist(ctx context.Context) error {
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode cache", err)
	}
	if err := s.storage.Write(ctx, fileName, data); err != nil {
		return cerr.NewError(cerr.Internal, "failed to persist cache", err)
	}
	return nil
}

func listKey(op Operation, provider task.ProviderType, extra string) string {
	parts := []string{string(op), string(provider)}
	if extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, ":")
}

// GetTaskList returns the cached task list for (operation, provider, extra),
// or a miss. Expired entries are deleted on this read.
func (s *Store) GetTaskList(ctx context.Context, op Operation, provider task.ProviderType, extra string) ([]task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	key := listKey(op, provider, extra)
	entry, ok := doc.TaskLists[key]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.ExpiresAt) {
		delete(doc.TaskLists, key)
		// Eviction persistence is best effort; the entry is gone from the
		// in-memory view either way.
		_ = s.persist(ctx)
		return nil, false
	}
	return entry.Data, true
}

// SetTaskList caches a task list. ttl <= 0 applies the store default.
func (s *Store) SetTaskList(ctx context.Context, op Operation, provider task.ProviderType, tasks []task.Task, extra string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	doc := s.load(ctx)
	key := listKey(op, provider, extra)
	now := s.now()
	doc.TaskLists[key] = Entry[[]task.Task]{
		Key:       key,
		Data:      tasks,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return s.persist(ctx)
}

// GetTaskDetail returns the cached detail for a canonical task id, or a miss.
func (s *Store) GetTaskDetail(ctx context.Context, taskID string) (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	entry, ok := doc.TaskDetails[taskID]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.ExpiresAt) {
		delete(doc.TaskDetails, taskID)
		_ = s.persist(ctx)
		return nil, false
	}
	t := entry.Data
	return &t, true
}

// SetTaskDetail caches one task keyed by its canonical id.
func (s *Store) SetTaskDetail(ctx context.Context, t task.Task, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	doc := s.load(ctx)
	now := s.now()
	doc.TaskDetails[t.ID] = Entry[task.Task]{
		Key:       t.ID,
		Data:      t,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return s.persist(ctx)
}

// InvalidateProvider removes every task-list entry whose key references the
// provider and every task-detail entry carrying its id prefix. Call after any
// successful create/update/complete/delete so later reads are not stale.
// Idempotent: invalidating an already-cold provider is a no-op write.
func (s *Store) InvalidateProvider(ctx context.Context, provider task.ProviderType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	for key := range doc.TaskLists {
		// Keys are "{operation}:{provider}[:{extra}]"; match the provider
		// segment exactly so a search query containing a provider name
		// cannot invalidate the wrong entries.
		parts := strings.SplitN(key, ":", 3)
		if len(parts) >= 2 && parts[1] == string(provider) {
			delete(doc.TaskLists, key)
		}
	}
	prefix := strings.ToUpper(string(provider)) + "-"
	for key := range doc.TaskDetails {
		if strings.HasPrefix(key, prefix) {
			delete(doc.TaskDetails, key)
		}
	}
	return s.persist(ctx)
}

// ClearAll drops every cached entry.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = newDocument()
	return s.persist(ctx)
}

// Stats describes the current cache contents.
type Stats struct {
	ListCount   int   `json:"listCount"`
	DetailCount int   `json:"detailCount"`
	BackingSize int64 `json:"backingSize"`
}

func (s *Store) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	stats := Stats{
		ListCount:   len(doc.TaskLists),
		DetailCount: len(doc.TaskDetails),
	}
	if size, err := s.storage.Size(ctx, fileName); err == nil {
		stats.BackingSize = size
	}
	return stats
}
