// Package aggregator fans task operations out across registered providers and
// merges the results into a single ordered view. Reads go through the TTL
// cache; writes invalidate the owning provider's cache entries.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc"

	"github.com/jogi47/pm-cli/internal/cache"
	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/internal/resolver"
	"github.com/jogi47/pm-cli/internal/task"
	"github.com/jogi47/pm-cli/pkg/cerr"
)

// Aggregator is the multi-provider façade. Providers are injected at
// construction; registration order decides iteration order everywhere.
type Aggregator struct {
	providers map[task.ProviderType]plugin.Provider
	order     []task.ProviderType
	cache     *cache.Store
	meta      *resolver.MetadataCache
	logger    *slog.Logger
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithMetadataTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.meta = resolver.NewMetadataCache(ttl)
	}
}

func New(store *cache.Store, providers []plugin.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers: make(map[task.ProviderType]plugin.Provider, len(providers)),
		cache:     store,
		meta:      resolver.NewMetadataCache(0),
		logger:    slog.Default(),
	}
	for _, p := range providers {
		if _, ok := a.providers[p.Name()]; ok {
			continue
		}
		a.providers[p.Name()] = p
		a.order = append(a.order, p.Name())
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AggregateOptions controls multi-provider reads.
type AggregateOptions struct {
	// Source restricts the read to one provider. Empty means every
	// authenticated provider.
	Source  task.ProviderType
	Limit   int
	Refresh bool
}

// AggregateTasks runs one list operation (assigned or overdue) across the
// selected providers. With an explicit source, a provider failure is
// returned; across multiple providers a failure only drops that provider's
// contribution.
func (a *Aggregator) AggregateTasks(ctx context.Context, op cache.Operation, opts AggregateOptions) ([]task.Task, error) {
	if op != cache.OperationAssigned && op != cache.OperationOverdue {
		return nil, cerr.Newf(cerr.InvalidArgument, "unknown aggregate operation: %s", op)
	}

	logger := a.runLogger("aggregate_tasks").With("operation", string(op))
	targets, explicit, err := a.selectTargets(ctx, opts.Source)
	if err != nil {
		return nil, err
	}

	results := a.fanOut(ctx, logger, targets, func(ctx context.Context, p plugin.Provider) ([]task.Task, error) {
		return a.fetchList(ctx, logger, op, p, "", opts.Refresh, func(ctx context.Context) ([]task.Task, error) {
			q := plugin.QueryOptions{Refresh: opts.Refresh}
			if op == cache.OperationOverdue {
				return p.GetOverdueTasks(ctx, q)
			}
			return p.GetAssignedTasks(ctx, q)
		})
	})

	tasks, err := a.collect(logger, targets, results, explicit)
	if err != nil {
		return nil, err
	}
	tasks = dedupeByID(tasks)
	sortByDueDate(tasks)
	return limit(tasks, opts.Limit), nil
}

// SearchTasks queries the selected providers. Explicit-source searches skip
// the authentication gate so a misconfigured provider surfaces its own error.
// Results keep provider relevance order; no due-date sort is applied.
func (a *Aggregator) SearchTasks(ctx context.Context, query string, opts AggregateOptions) ([]task.Task, error) {
	logger := a.runLogger("search_tasks").With("query", query)

	var targets []task.ProviderType
	explicit := opts.Source != ""
	if explicit {
		p, ok := a.providers[opts.Source]
		if !ok {
			return nil, cerr.Newf(cerr.UnknownProvider, "unknown provider: %s", opts.Source)
		}
		targets = []task.ProviderType{p.Name()}
	} else {
		targets = a.authenticated(ctx)
		if len(targets) == 0 {
			return nil, nil
		}
	}

	results := a.fanOut(ctx, logger, targets, func(ctx context.Context, p plugin.Provider) ([]task.Task, error) {
		return a.fetchList(ctx, logger, cache.OperationSearch, p, query, opts.Refresh, func(ctx context.Context) ([]task.Task, error) {
			return p.SearchTasks(ctx, query, plugin.QueryOptions{Refresh: opts.Refresh})
		})
	})

	tasks, err := a.collect(logger, targets, results, explicit)
	if err != nil {
		return nil, err
	}
	return limit(dedupeByID(tasks), opts.Limit), nil
}

// GetTask loads one task by canonical id, read-through on the detail cache.
func (a *Aggregator) GetTask(ctx context.Context, id string, refresh bool) (*task.Task, error) {
	parsed, err := task.ParseID(id)
	if err != nil {
		return nil, err
	}
	p, ok := a.providers[parsed.Source]
	if !ok {
		return nil, cerr.Newf(cerr.UnknownProvider, "unknown provider: %s", parsed.Source)
	}

	canonical := task.NewID(parsed.Source, parsed.ExternalID)
	if !refresh {
		if t, ok := a.cache.GetTaskDetail(ctx, canonical); ok {
			return t, nil
		}
	}

	t, err := p.GetTask(ctx, parsed.ExternalID)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while loading task %s", p.Name(), canonical), err)
	}
	if t == nil {
		return nil, cerr.Newf(cerr.NotFound, "task not found: %s", canonical)
	}
	if err := a.cache.SetTaskDetail(ctx, *t, 0); err != nil {
		a.runLogger("get_task").Warn("failed to cache task detail", "task_id", canonical, "error", err)
	}
	return t, nil
}

// CreateTask resolves names to ids via the provider's resolver, delegates the
// create, and invalidates the provider's cache entries.
func (a *Aggregator) CreateTask(ctx context.Context, source task.ProviderType, in plugin.CreateTaskInput) (*task.Task, error) {
	p, err := a.connected(ctx, source)
	if err != nil {
		return nil, err
	}
	logger := a.runLogger("create_task").With("provider", string(source))

	res := resolver.New(p, a.meta)
	prepared, muts, err := res.PrepareCreate(ctx, in)
	if err != nil {
		return nil, err
	}

	created, err := p.CreateTask(ctx, prepared)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while creating task", p.Name()), err)
	}
	if len(created.CustomFieldResults) == 0 {
		created.CustomFieldResults = resolver.FieldResults(muts)
	}
	a.invalidate(ctx, logger, source)
	return created, nil
}

// UpdateTask parses the canonical id, resolves custom-field assignments, and
// delegates the update.
func (a *Aggregator) UpdateTask(ctx context.Context, id string, in plugin.UpdateTaskInput) (*task.Task, error) {
	parsed, err := task.ParseID(id)
	if err != nil {
		return nil, err
	}
	p, err := a.connected(ctx, parsed.Source)
	if err != nil {
		return nil, err
	}
	logger := a.runLogger("update_task").With("provider", string(parsed.Source), "task_id", id)

	res := resolver.New(p, a.meta)
	prepared, muts, err := res.PrepareUpdate(ctx, parsed.ExternalID, in)
	if err != nil {
		return nil, err
	}

	updated, err := p.UpdateTask(ctx, parsed.ExternalID, prepared)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while updating task %s", p.Name(), id), err)
	}
	if len(updated.CustomFieldResults) == 0 {
		updated.CustomFieldResults = resolver.FieldResults(muts)
	}
	a.invalidate(ctx, logger, parsed.Source)
	return updated, nil
}

// CompleteResult reports the outcome of completing one task in a batch.
type CompleteResult struct {
	ID   string
	Task *task.Task
	Err  error
}

// CompleteTasks completes each id independently; one bad id never aborts the
// rest of the batch. Results preserve input order.
func (a *Aggregator) CompleteTasks(ctx context.Context, ids []string) []CompleteResult {
	logger := a.runLogger("complete_tasks")
	results := make([]CompleteResult, len(ids))
	touched := make(map[task.ProviderType]struct{})

	for i, id := range ids {
		results[i] = CompleteResult{ID: id}
		parsed, err := task.ParseID(id)
		if err != nil {
			results[i].Err = err
			continue
		}
		p, err := a.connected(ctx, parsed.Source)
		if err != nil {
			results[i].Err = err
			continue
		}
		t, err := p.CompleteTask(ctx, parsed.ExternalID)
		if err != nil {
			results[i].Err = cerr.NewError(cerr.ProviderCallFailure,
				fmt.Sprintf("%s API failure while completing task %s", p.Name(), id), err)
			continue
		}
		results[i].Task = t
		touched[parsed.Source] = struct{}{}
	}

	for provider := range touched {
		a.invalidate(ctx, logger, provider)
	}
	return results
}

// DeleteResult reports the outcome of deleting one task in a batch.
type DeleteResult struct {
	ID  string
	Err error
}

func (a *Aggregator) DeleteTasks(ctx context.Context, ids []string) []DeleteResult {
	logger := a.runLogger("delete_tasks")
	results := make([]DeleteResult, len(ids))
	touched := make(map[task.ProviderType]struct{})

	for i, id := range ids {
		results[i] = DeleteResult{ID: id}
		parsed, err := task.ParseID(id)
		if err != nil {
			results[i].Err = err
			continue
		}
		p, err := a.connected(ctx, parsed.Source)
		if err != nil {
			results[i].Err = err
			continue
		}
		if err := p.DeleteTask(ctx, parsed.ExternalID); err != nil {
			results[i].Err = cerr.NewError(cerr.ProviderCallFailure,
				fmt.Sprintf("%s API failure while deleting task %s", p.Name(), id), err)
			continue
		}
		touched[parsed.Source] = struct{}{}
	}

	for provider := range touched {
		a.invalidate(ctx, logger, provider)
	}
	return results
}

// AddComment posts a comment on a task, gated on the comments capability.
func (a *Aggregator) AddComment(ctx context.Context, id, body string) error {
	parsed, err := task.ParseID(id)
	if err != nil {
		return err
	}
	p, err := a.connected(ctx, parsed.Source)
	if err != nil {
		return err
	}
	if !p.Capabilities().Has(plugin.CapabilityComments) {
		return cerr.Newf(cerr.UnsupportedCapability, "%s does not support comments", p.Name())
	}
	if err := p.AddComment(ctx, parsed.ExternalID, body); err != nil {
		return cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while commenting on task %s", p.Name(), id), err)
	}
	return nil
}

// GetTaskThread returns a task's comment thread, oldest first.
func (a *Aggregator) GetTaskThread(ctx context.Context, id string) ([]plugin.ThreadEntry, error) {
	parsed, err := task.ParseID(id)
	if err != nil {
		return nil, err
	}
	p, err := a.connected(ctx, parsed.Source)
	if err != nil {
		return nil, err
	}
	if !p.Capabilities().Has(plugin.CapabilityThreads) {
		return nil, cerr.Newf(cerr.UnsupportedCapability, "%s does not support task threads", p.Name())
	}
	thread, err := p.GetTaskThread(ctx, parsed.ExternalID)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while loading thread of task %s", p.Name(), id), err)
	}
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	return thread, nil
}

// ProvidersInfo reports connection state for every registered provider, in
// registration order.
func (a *Aggregator) ProvidersInfo(ctx context.Context) []plugin.Info {
	infos := make([]plugin.Info, 0, len(a.order))
	for _, name := range a.order {
		p := a.providers[name]
		info, err := p.Info(ctx)
		if err != nil {
			info = plugin.Info{Name: p.Name(), DisplayName: p.DisplayName()}
		}
		infos = append(infos, info)
	}
	return infos
}

// ClearCache drops every cached task entry.
func (a *Aggregator) ClearCache(ctx context.Context) error {
	return a.cache.ClearAll(ctx)
}

func (a *Aggregator) CacheStats(ctx context.Context) cache.Stats {
	return a.cache.Stats(ctx)
}

// runLogger tags every log line of one aggregator invocation with a unique
// run id so interleaved concurrent fetches stay attributable.
func (a *Aggregator) runLogger(op string) *slog.Logger {
	return a.logger.With("run_id", ulid.Make().String(), "op", op)
}

// selectTargets picks the providers a list operation runs against. An
// explicit source must be registered and authenticated; otherwise every
// authenticated provider participates.
func (a *Aggregator) selectTargets(ctx context.Context, source task.ProviderType) ([]task.ProviderType, bool, error) {
	if source != "" {
		if _, err := a.connected(ctx, source); err != nil {
			return nil, true, err
		}
		return []task.ProviderType{source}, true, nil
	}
	targets := a.authenticated(ctx)
	if len(targets) == 0 {
		return nil, false, cerr.Newf(cerr.NotAuthenticated, "no providers connected. Run: pm connect <provider>")
	}
	return targets, false, nil
}

func (a *Aggregator) authenticated(ctx context.Context) []task.ProviderType {
	var targets []task.ProviderType
	for _, name := range a.order {
		if a.providers[name].IsAuthenticated(ctx) {
			targets = append(targets, name)
		}
	}
	return targets
}

func (a *Aggregator) connected(ctx context.Context, source task.ProviderType) (plugin.Provider, error) {
	p, ok := a.providers[source]
	if !ok {
		return nil, cerr.Newf(cerr.UnknownProvider, "unknown provider: %s", source)
	}
	if !p.IsAuthenticated(ctx) {
		return nil, cerr.Newf(cerr.NotAuthenticated, "not connected to %s. Run: pm connect %s", source, source)
	}
	return p, nil
}

type fetchResult struct {
	tasks []task.Task
	err   error
}

// fanOut runs fetch against every target concurrently, collecting results by
// index so output order follows registration order, not completion order.
func (a *Aggregator) fanOut(ctx context.Context, logger *slog.Logger, targets []task.ProviderType, fetch func(context.Context, plugin.Provider) ([]task.Task, error)) []fetchResult {
	results := make([]fetchResult, len(targets))
	var wg conc.WaitGroup
	for i, name := range targets {
		i, name := i, name
		p := a.providers[name]
		wg.Go(func() {
			start := time.Now()
			results[i].tasks, results[i].err = fetch(ctx, p)
			logger.Debug("provider fetch finished",
				"provider", string(name),
				"duration", time.Since(start),
				"count", len(results[i].tasks))
		})
	}
	wg.Wait()
	return results
}

// collect merges fan-out results. With an explicit single source the
// provider's error propagates; across multiple providers failures are logged
// and skipped so one outage cannot blank the aggregate.
func (a *Aggregator) collect(logger *slog.Logger, targets []task.ProviderType, results []fetchResult, explicit bool) ([]task.Task, error) {
	var tasks []task.Task
	for i, res := range results {
		if res.err != nil {
			if explicit {
				return nil, res.err
			}
			logger.Warn("provider fetch failed, skipping",
				"provider", string(targets[i]),
				"error", cerr.Message(res.err))
			continue
		}
		tasks = append(tasks, res.tasks...)
	}
	return tasks, nil
}

// fetchList is the cached read path for one provider's list operation.
func (a *Aggregator) fetchList(ctx context.Context, logger *slog.Logger, op cache.Operation, p plugin.Provider, extra string, refresh bool, call func(context.Context) ([]task.Task, error)) ([]task.Task, error) {
	if !refresh {
		if tasks, ok := a.cache.GetTaskList(ctx, op, p.Name(), extra); ok {
			logger.Debug("cache hit", "provider", string(p.Name()))
			return tasks, nil
		}
	}
	tasks, err := call(ctx)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure during %s", p.Name(), op), err)
	}
	if err := a.cache.SetTaskList(ctx, op, p.Name(), tasks, extra, 0); err != nil {
		logger.Warn("failed to cache task list", "provider", string(p.Name()), "error", err)
	}
	return tasks, nil
}

// invalidate drops the provider's cache entries, best effort.
func (a *Aggregator) invalidate(ctx context.Context, logger *slog.Logger, provider task.ProviderType) {
	if err := a.cache.InvalidateProvider(ctx, provider); err != nil {
		logger.Warn("cache invalidation failed", "provider", string(provider), "error", err)
	}
}

// dedupeByID keeps the first occurrence of each canonical id.
func dedupeByID(tasks []task.Task) []task.Task {
	seen := make(map[string]struct{}, len(tasks))
	out := tasks[:0]
	for _, t := range tasks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// sortByDueDate orders tasks by due date ascending, undated tasks last. The
// sort is stable so provider registration order breaks ties.
func sortByDueDate(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

// limit truncates after dedupe and sort so the cap applies to the merged
// view, not per provider.
func limit(tasks []task.Task, n int) []task.Task {
	if n > 0 && len(tasks) > n {
		return tasks[:n]
	}
	return tasks
}
