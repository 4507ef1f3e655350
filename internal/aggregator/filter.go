package aggregator

import (
	"sort"
	"strings"

	"github.com/jogi47/pm-cli/internal/task"
)

// SortKey names a client-side ordering of an aggregated task list.
type SortKey string

const (
	SortByDue      SortKey = "due"
	SortByPriority SortKey = "priority"
	SortByStatus   SortKey = "status"
	SortBySource   SortKey = "source"
	SortByTitle    SortKey = "title"
)

// FilterOptions narrows and reorders an already-aggregated task list without
// touching providers or the cache.
type FilterOptions struct {
	Status     *task.Status
	Priorities []task.Priority
	SortBy     SortKey
}

// FilterAndSortTasks applies status/priority filters, then the requested
// ordering. The input slice is not modified.
func FilterAndSortTasks(tasks []task.Task, opts FilterOptions) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		if len(opts.Priorities) > 0 && !containsPriority(opts.Priorities, t.Priority) {
			continue
		}
		out = append(out, t)
	}

	switch opts.SortBy {
	case SortByDue:
		sortByDueDate(out)
	case SortByPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return priorityRank(out[i].Priority) < priorityRank(out[j].Priority)
		})
	case SortByStatus:
		sort.SliceStable(out, func(i, j int) bool {
			return statusRank(out[i].Status) < statusRank(out[j].Status)
		})
	case SortBySource:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Source < out[j].Source
		})
	case SortByTitle:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	}
	return out
}

func containsPriority(ps []task.Priority, p task.Priority) bool {
	for _, candidate := range ps {
		if candidate == p {
			return true
		}
	}
	return false
}

// priorityRank orders urgent first; tasks without a priority sink to the end.
func priorityRank(p task.Priority) int {
	switch p {
	case task.PriorityUrgent:
		return 0
	case task.PriorityHigh:
		return 1
	case task.PriorityMedium:
		return 2
	case task.PriorityLow:
		return 3
	default:
		return 4
	}
}

// statusRank surfaces active work first.
func statusRank(s task.Status) int {
	switch s {
	case task.StatusInProgress:
		return 0
	case task.StatusTodo:
		return 1
	case task.StatusDone:
		return 2
	default:
		return 3
	}
}
