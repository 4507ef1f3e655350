// Package output renders aggregated results for the terminal. Every renderer
// has a JSON mode for scripting; the text mode uses color when the terminal
// supports it.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/jogi47/pm-cli/internal/aggregator"
	"github.com/jogi47/pm-cli/internal/cache"
	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/internal/task"
	"github.com/jogi47/pm-cli/pkg/cerr"
)

// Renderer writes command results to one stream.
type Renderer struct {
	w    io.Writer
	json bool
	now  func() time.Time
}

type Option func(*Renderer)

// WithJSON switches every renderer to machine-readable output.
func WithJSON(enabled bool) Option {
	return func(r *Renderer) {
		r.json = enabled
	}
}

// WithClock overrides the time source used for relative due-date labels.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

func NewRenderer(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{w: w, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode output", err)
	}
	_, err = fmt.Fprintln(r.w, string(data))
	return err
}

// RenderTasks prints an aggregated task list as a fixed-width table.
func (r *Renderer) RenderTasks(tasks []task.Task) error {
	if r.json {
		return r.writeJSON(tasks)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(r.w, "No tasks found.")
		return nil
	}

	header := color.New(color.Bold)
	fmt.Fprintf(r.w, "%s  %s  %s  %s  %s\n",
		header.Sprintf("%-24s", "ID"),
		header.Sprintf("%-40s", "TITLE"),
		header.Sprintf("%-12s", "STATUS"),
		header.Sprintf("%-20s", "DUE"),
		header.Sprint("PROJECT"))
	for _, t := range tasks {
		fmt.Fprintf(r.w, "%-24s  %-40s  %-12s  %-20s  %s\n",
			truncate(t.ID, 24),
			truncate(t.Title, 40),
			string(t.Status),
			r.dueLabel(t.DueDate),
			truncate(t.Project, 30))
	}
	fmt.Fprintf(r.w, "\n%d task(s)\n", len(tasks))
	return nil
}

// RenderTask prints one task in full.
func (r *Renderer) RenderTask(t *task.Task) error {
	if r.json {
		return r.writeJSON(t)
	}

	fmt.Fprintf(r.w, "%s %s\n", color.New(color.Bold).Sprint(t.ID), t.Title)
	fmt.Fprintf(r.w, "  Source:   %s\n", t.Source)
	fmt.Fprintf(r.w, "  Status:   %s\n", t.Status)
	if t.Priority != "" {
		fmt.Fprintf(r.w, "  Priority: %s\n", t.Priority)
	}
	if t.DueDate != nil {
		fmt.Fprintf(r.w, "  Due:      %s\n", r.dueLabel(t.DueDate))
	}
	if t.Assignee != "" {
		fmt.Fprintf(r.w, "  Assignee: %s\n", t.Assignee)
	}
	if t.Placement != nil {
		placement := t.Placement.Project.Name
		if t.Placement.Section != nil {
			placement += " / " + t.Placement.Section.Name
		}
		fmt.Fprintf(r.w, "  Project:  %s\n", placement)
	} else if t.Project != "" {
		fmt.Fprintf(r.w, "  Project:  %s\n", t.Project)
	}
	if t.URL != "" {
		fmt.Fprintf(r.w, "  URL:      %s\n", t.URL)
	}
	if t.Description != "" {
		fmt.Fprintf(r.w, "\n%s\n", t.Description)
	}
	for _, res := range t.CustomFieldResults {
		label := color.GreenString("applied")
		if res.Status == task.FieldFailed {
			label = color.RedString("failed")
		}
		value := strings.Join(res.OptionNames, ", ")
		if value == "" {
			value = "(cleared)"
		}
		fmt.Fprintf(r.w, "  Field %s = %s [%s]\n", res.FieldName, value, label)
		if res.Message != "" {
			fmt.Fprintf(r.w, "    %s\n", res.Message)
		}
	}
	return nil
}

// RenderProviders prints connection state per provider.
func (r *Renderer) RenderProviders(infos []plugin.Info) error {
	if r.json {
		return r.writeJSON(infos)
	}
	for _, info := range infos {
		state := color.RedString("disconnected")
		if info.Connected {
			state = color.GreenString("connected")
		}
		fmt.Fprintf(r.w, "%-12s %s", info.DisplayName, state)
		if info.Workspace != "" {
			fmt.Fprintf(r.w, "  workspace=%s", info.Workspace)
		}
		if info.UserEmail != "" {
			fmt.Fprintf(r.w, "  user=%s", info.UserEmail)
		}
		fmt.Fprintln(r.w)
	}
	return nil
}

// RenderThread prints a task's comment thread, oldest first.
func (r *Renderer) RenderThread(thread []plugin.ThreadEntry) error {
	if r.json {
		return r.writeJSON(thread)
	}
	if len(thread) == 0 {
		fmt.Fprintln(r.w, "No comments.")
		return nil
	}
	for _, entry := range thread {
		author := entry.Author
		if author == "" {
			author = "(unknown)"
		}
		fmt.Fprintf(r.w, "%s %s\n", color.New(color.Bold).Sprint(author),
			color.New(color.Faint).Sprint(entry.CreatedAt.Format("2006-01-02 15:04")))
		fmt.Fprintf(r.w, "%s\n\n", entry.Body)
	}
	return nil
}

// RenderCacheStats prints cache occupancy.
func (r *Renderer) RenderCacheStats(stats cache.Stats) error {
	if r.json {
		return r.writeJSON(stats)
	}
	fmt.Fprintf(r.w, "cached task lists:   %d\n", stats.ListCount)
	fmt.Fprintf(r.w, "cached task details: %d\n", stats.DetailCount)
	fmt.Fprintf(r.w, "backing file size:   %d bytes\n", stats.BackingSize)
	return nil
}

// RenderBatchResults prints per-id outcomes of a complete or delete batch and
// reports whether any entry failed.
func (r *Renderer) RenderBatchResults(action string, completes []aggregator.CompleteResult, deletes []aggregator.DeleteResult) (failed bool, err error) {
	type row struct {
		ID    string `json:"id"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	rows := make([]row, 0, len(completes)+len(deletes))
	for _, res := range completes {
		entry := row{ID: res.ID, OK: res.Err == nil}
		if res.Err != nil {
			entry.Error = cerr.Message(res.Err)
			failed = true
		}
		rows = append(rows, entry)
	}
	for _, res := range deletes {
		entry := row{ID: res.ID, OK: res.Err == nil}
		if res.Err != nil {
			entry.Error = cerr.Message(res.Err)
			failed = true
		}
		rows = append(rows, entry)
	}

	if r.json {
		return failed, r.writeJSON(rows)
	}
	for _, entry := range rows {
		if entry.OK {
			fmt.Fprintf(r.w, "%s %s %s\n", color.GreenString("✓"), action, entry.ID)
		} else {
			fmt.Fprintf(r.w, "%s %s %s: %s\n", color.RedString("✗"), action, entry.ID, entry.Error)
		}
	}
	return failed, nil
}

// Success prints a one-line confirmation.
func (r *Renderer) Success(format string, args ...any) {
	if r.json {
		return
	}
	fmt.Fprintf(r.w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// Error prints a one-line failure message.
func (r *Renderer) Error(err error) {
	fmt.Fprintf(r.w, "%s %s\n", color.RedString("error:"), cerr.Message(err))
}

// dueLabel formats a due date with a relative hint: overdue in red, today in
// yellow, tomorrow in cyan.
func (r *Renderer) dueLabel(due *time.Time) string {
	if due == nil {
		return "-"
	}
	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, now.Location())
	date := due.Format("2006-01-02")

	days := int(day.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return color.RedString("%s (%dd overdue)", date, -days)
	case days == 0:
		return color.YellowString("%s (today)", date)
	case days == 1:
		return color.CyanString("%s (tomorrow)", date)
	case days <= 7:
		return fmt.Sprintf("%s (%dd)", date, days)
	default:
		return date
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
