package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/jogi47/pm-cli/internal/aggregator"
	"github.com/jogi47/pm-cli/internal/cache"
	"github.com/jogi47/pm-cli/internal/config"
	"github.com/jogi47/pm-cli/internal/output"
	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/internal/resolver"
	"github.com/jogi47/pm-cli/internal/task"
	"github.com/jogi47/pm-cli/pkg/clog"
	"github.com/jogi47/pm-cli/pkg/storage"
)

var (
	app      = kingpin.New("pm", "Unified task aggregation across project management providers")
	appJSON  = app.Flag("json", "Emit machine-readable JSON").Bool()
	appDebug = app.Flag("debug", "Enable debug logging").Bool()

	assignedCmd     = app.Command("assigned", "List tasks assigned to you across providers")
	assignedSource  = assignedCmd.Flag("source", "Restrict to one provider").String()
	assignedLimit   = assignedCmd.Flag("limit", "Maximum number of tasks").Int()
	assignedRefresh = assignedCmd.Flag("refresh", "Bypass the task cache").Bool()
	assignedStatus  = assignedCmd.Flag("status", "Filter by status (todo, in_progress, done)").String()
	assignedSort    = assignedCmd.Flag("sort", "Sort by due, priority, status, source or title").Default("due").String()

	overdueCmd     = app.Command("overdue", "List overdue tasks across providers")
	overdueSource  = overdueCmd.Flag("source", "Restrict to one provider").String()
	overdueLimit   = overdueCmd.Flag("limit", "Maximum number of tasks").Int()
	overdueRefresh = overdueCmd.Flag("refresh", "Bypass the task cache").Bool()

	searchCmd     = app.Command("search", "Search tasks across providers")
	searchQuery   = searchCmd.Arg("query", "Search query").Required().String()
	searchSource  = searchCmd.Flag("source", "Restrict to one provider").String()
	searchLimit   = searchCmd.Flag("limit", "Maximum number of tasks").Int()
	searchRefresh = searchCmd.Flag("refresh", "Bypass the task cache").Bool()

	showCmd     = app.Command("show", "Show one task by id")
	showID      = showCmd.Arg("id", "Task id, e.g. ASANA-1234567890").Required().String()
	showRefresh = showCmd.Flag("refresh", "Bypass the task cache").Bool()

	createCmd        = app.Command("create", "Create a task")
	createSource     = createCmd.Flag("source", "Provider to create the task in").Required().String()
	createTitle      = createCmd.Arg("title", "Task title").Required().String()
	createDesc       = createCmd.Flag("description", "Task description").String()
	createDue        = createCmd.Flag("due", "Due date (YYYY-MM-DD)").String()
	createProject    = createCmd.Flag("project", "Project name or id").String()
	createSection    = createCmd.Flag("section", "Section name or id (requires --project)").String()
	createWorkspace  = createCmd.Flag("workspace", "Workspace name or id").String()
	createAssignee   = createCmd.Flag("assignee", "Assignee email").String()
	createDifficulty = createCmd.Flag("difficulty", "Shorthand for --field Difficulty=<value>").String()
	createFields     = createCmd.Flag("field", "Custom field assignment <Field>=<v1,v2,...> (repeatable)").Strings()
	createRefresh    = createCmd.Flag("refresh", "Bypass provider metadata caches").Bool()

	updateCmd       = app.Command("update", "Update a task")
	updateID        = updateCmd.Arg("id", "Task id").Required().String()
	updateTitle     = updateCmd.Flag("title", "New title").String()
	updateDesc      = updateCmd.Flag("description", "New description").String()
	updateDue       = updateCmd.Flag("due", "New due date (YYYY-MM-DD)").String()
	updateClearDue  = updateCmd.Flag("clear-due", "Remove the due date").Bool()
	updateStatus    = updateCmd.Flag("status", "New status (todo, in_progress, done)").String()
	updateProject   = updateCmd.Flag("project", "Project scoping custom-field resolution").String()
	updateWorkspace = updateCmd.Flag("workspace", "Workspace scoping custom-field resolution").String()
	updateFields    = updateCmd.Flag("field", "Custom field assignment <Field>=<v1,v2,...> (repeatable)").Strings()
	updateRefresh   = updateCmd.Flag("refresh", "Bypass provider metadata caches").Bool()

	doneCmd = app.Command("done", "Complete one or more tasks")
	doneIDs = doneCmd.Arg("ids", "Task ids").Required().Strings()

	deleteCmd = app.Command("delete", "Delete one or more tasks")
	deleteIDs = deleteCmd.Arg("ids", "Task ids").Required().Strings()

	commentCmd  = app.Command("comment", "Comment on a task")
	commentID   = commentCmd.Arg("id", "Task id").Required().String()
	commentBody = commentCmd.Arg("body", "Comment body").Required().String()

	threadCmd = app.Command("thread", "Show a task's comment thread")
	threadID  = threadCmd.Arg("id", "Task id").Required().String()

	providersCmd = app.Command("providers", "Show provider connection status")

	cacheCmd      = app.Command("cache", "Task cache management")
	cacheClearCmd = cacheCmd.Command("clear", "Drop every cached entry")
	cacheStatsCmd = cacheCmd.Command("stats", "Show cache occupancy")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(env, *appDebug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = clog.ContextWithSlog(ctx)

	st, err := newStorage(ctx, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	store := cache.NewStore(st, cache.WithTTL(env.CacheTTL))
	agg := aggregator.New(store, buildProviders(env),
		aggregator.WithLogger(logger),
		aggregator.WithMetadataTTL(env.MetadataTTL))
	renderer := output.NewRenderer(os.Stdout, output.WithJSON(*appJSON))

	if err := run(ctx, command, env, agg, renderer); err != nil {
		renderer.Error(err)
		os.Exit(1)
	}
}

func newLogger(env *config.Env, debug bool) *slog.Logger {
	level := env.SlogLevel()
	if debug {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(clog.NewAttributesHandler(handler))
}

func newStorage(ctx context.Context, env *config.Env) (storage.Storage, error) {
	switch env.Type {
	case "s3":
		return storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
	default:
		dir, err := env.ResolveCacheDir()
		if err != nil {
			return nil, err
		}
		return storage.NewLocalStorage(dir)
	}
}

func run(ctx context.Context, command string, env *config.Env, agg *aggregator.Aggregator, renderer *output.Renderer) error {
	switch command {
	case assignedCmd.FullCommand():
		tasks, err := agg.AggregateTasks(ctx, cache.OperationAssigned, aggregator.AggregateOptions{
			Source:  task.ProviderType(*assignedSource),
			Limit:   pickLimit(*assignedLimit, env.DefaultLimit),
			Refresh: *assignedRefresh,
		})
		if err != nil {
			return err
		}
		filter := aggregator.FilterOptions{SortBy: aggregator.SortKey(*assignedSort)}
		if *assignedStatus != "" {
			status := task.Status(*assignedStatus)
			filter.Status = &status
		}
		return renderer.RenderTasks(aggregator.FilterAndSortTasks(tasks, filter))

	case overdueCmd.FullCommand():
		tasks, err := agg.AggregateTasks(ctx, cache.OperationOverdue, aggregator.AggregateOptions{
			Source:  task.ProviderType(*overdueSource),
			Limit:   pickLimit(*overdueLimit, env.DefaultLimit),
			Refresh: *overdueRefresh,
		})
		if err != nil {
			return err
		}
		return renderer.RenderTasks(tasks)

	case searchCmd.FullCommand():
		tasks, err := agg.SearchTasks(ctx, *searchQuery, aggregator.AggregateOptions{
			Source:  task.ProviderType(*searchSource),
			Limit:   pickLimit(*searchLimit, env.DefaultLimit),
			Refresh: *searchRefresh,
		})
		if err != nil {
			return err
		}
		return renderer.RenderTasks(tasks)

	case showCmd.FullCommand():
		t, err := agg.GetTask(ctx, *showID, *showRefresh)
		if err != nil {
			return err
		}
		return renderer.RenderTask(t)

	case createCmd.FullCommand():
		in, err := buildCreateInput()
		if err != nil {
			return err
		}
		t, err := agg.CreateTask(ctx, task.ProviderType(*createSource), in)
		if err != nil {
			return err
		}
		renderer.Success("created %s", t.ID)
		return renderer.RenderTask(t)

	case updateCmd.FullCommand():
		in, err := buildUpdateInput()
		if err != nil {
			return err
		}
		t, err := agg.UpdateTask(ctx, *updateID, in)
		if err != nil {
			return err
		}
		renderer.Success("updated %s", t.ID)
		return renderer.RenderTask(t)

	case doneCmd.FullCommand():
		results := agg.CompleteTasks(ctx, *doneIDs)
		failed, err := renderer.RenderBatchResults("completed", results, nil)
		if err != nil {
			return err
		}
		if failed {
			os.Exit(1)
		}
		return nil

	case deleteCmd.FullCommand():
		results := agg.DeleteTasks(ctx, *deleteIDs)
		failed, err := renderer.RenderBatchResults("deleted", nil, results)
		if err != nil {
			return err
		}
		if failed {
			os.Exit(1)
		}
		return nil

	case commentCmd.FullCommand():
		if err := agg.AddComment(ctx, *commentID, *commentBody); err != nil {
			return err
		}
		renderer.Success("commented on %s", *commentID)
		return nil

	case threadCmd.FullCommand():
		thread, err := agg.GetTaskThread(ctx, *threadID)
		if err != nil {
			return err
		}
		return renderer.RenderThread(thread)

	case providersCmd.FullCommand():
		return renderer.RenderProviders(agg.ProvidersInfo(ctx))

	case cacheClearCmd.FullCommand():
		if err := agg.ClearCache(ctx); err != nil {
			return err
		}
		renderer.Success("cache cleared")
		return nil

	case cacheStatsCmd.FullCommand():
		return renderer.RenderCacheStats(agg.CacheStats(ctx))
	}
	return nil
}

func buildCreateInput() (plugin.CreateTaskInput, error) {
	fields, err := resolver.ParseFieldAssignments(*createFields)
	if err != nil {
		return plugin.CreateTaskInput{}, err
	}
	in := plugin.CreateTaskInput{
		Title:         *createTitle,
		Description:   *createDesc,
		AssigneeEmail: *createAssignee,
		Difficulty:    *createDifficulty,
		CustomFields:  fields,
		Refresh:       *createRefresh,
	}
	in.ProjectID, in.ProjectName = splitIdentifier(*createProject)
	in.SectionID, in.SectionName = splitIdentifier(*createSection)
	in.WorkspaceID, in.WorkspaceName = splitIdentifier(*createWorkspace)
	if *createDue != "" {
		due, err := time.Parse("2006-01-02", *createDue)
		if err != nil {
			return plugin.CreateTaskInput{}, fmt.Errorf("invalid --due date %q: %w", *createDue, err)
		}
		in.DueDate = &due
	}
	return in, nil
}

func buildUpdateInput() (plugin.UpdateTaskInput, error) {
	fields, err := resolver.ParseFieldAssignments(*updateFields)
	if err != nil {
		return plugin.UpdateTaskInput{}, err
	}
	in := plugin.UpdateTaskInput{
		ClearDueDate: *updateClearDue,
		CustomFields: fields,
		Refresh:      *updateRefresh,
	}
	if *updateTitle != "" {
		in.Title = updateTitle
	}
	if *updateDesc != "" {
		in.Description = updateDesc
	}
	if *updateStatus != "" {
		status := task.Status(*updateStatus)
		in.Status = &status
	}
	in.ProjectID, in.ProjectName = splitIdentifier(*updateProject)
	in.WorkspaceID, in.WorkspaceName = splitIdentifier(*updateWorkspace)
	if *updateDue != "" {
		due, err := time.Parse("2006-01-02", *updateDue)
		if err != nil {
			return plugin.UpdateTaskInput{}, fmt.Errorf("invalid --due date %q: %w", *updateDue, err)
		}
		in.DueDate = &due
	}
	return in, nil
}

// splitIdentifier routes a flag value to the id slot when it is "id:<value>",
// otherwise to the name slot. Resolution treats names case-insensitively.
func splitIdentifier(value string) (id, name string) {
	if rest, ok := strings.CutPrefix(value, "id:"); ok {
		return rest, ""
	}
	return "", value
}

func pickLimit(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}
