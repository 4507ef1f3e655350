// Package plugintest provides a configurable in-memory Provider for tests.
package plugintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/internal/task"
)

// Provider is a fake plugin.Provider backed by fixture data. Zero value plus
// a name is usable; configure the exported fields before handing it to the
// code under test.
type Provider struct {
	ProviderName  task.ProviderType
	Display       string
	Caps          plugin.CapabilitySet
	Authenticated bool

	Assigned []task.Task
	Overdue  []task.Task
	// SearchResults maps query strings to result sets.
	SearchResults map[string][]task.Task
	// TasksByID maps external ids to task details.
	TasksByID map[string]*task.Task

	Workspaces        []plugin.Workspace
	DefaultWS         *plugin.Workspace
	ProjectsByWS      map[string][]plugin.Project
	SectionsByProject map[string][]plugin.Section
	FieldsByProject   map[string][]plugin.FieldSetting
	Thread            []plugin.ThreadEntry

	// Errs injects a failure for the named operation ("assigned", "overdue",
	// "search", "get", "create", "update", "complete", "delete", "comment",
	// "thread", "workspaces", "projects", "sections", "fields").
	Errs map[string]error

	mu        sync.Mutex
	Calls     map[string]int
	Created   []plugin.CreateTaskInput
	Updated   map[string]plugin.UpdateTaskInput
	Completed []string
	Deleted   []string
	Comments  map[string][]string
}

var _ plugin.Provider = (*Provider)(nil)

// New returns a connected fake with comments, threads, and workspaces
// enabled.
func New(name task.ProviderType) *Provider {
	return &Provider{
		ProviderName:  name,
		Display:       string(name),
		Caps:          plugin.Capabilities(plugin.CapabilityComments, plugin.CapabilityThreads, plugin.CapabilityWorkspaces),
		Authenticated: true,
	}
}

func (p *Provider) record(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Calls == nil {
		p.Calls = make(map[string]int)
	}
	p.Calls[op]++
	return p.Errs[op]
}

// CallCount reports how many times the named operation ran.
func (p *Provider) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls[op]
}

func (p *Provider) Name() task.ProviderType { return p.ProviderName }

func (p *Provider) DisplayName() string {
	if p.Display != "" {
		return p.Display
	}
	return string(p.ProviderName)
}

func (p *Provider) Capabilities() plugin.CapabilitySet { return p.Caps }

func (p *Provider) IsAuthenticated(ctx context.Context) bool { return p.Authenticated }

func (p *Provider) Info(ctx context.Context) (plugin.Info, error) {
	return plugin.Info{
		Name:        p.ProviderName,
		DisplayName: p.DisplayName(),
		Connected:   p.Authenticated,
	}, nil
}

func (p *Provider) GetAssignedTasks(ctx context.Context, opts plugin.QueryOptions) ([]task.Task, error) {
	if err := p.record("assigned"); err != nil {
		return nil, err
	}
	return p.Assigned, nil
}

func (p *Provider) GetOverdueTasks(ctx context.Context, opts plugin.QueryOptions) ([]task.Task, error) {
	if err := p.record("overdue"); err != nil {
		return nil, err
	}
	return p.Overdue, nil
}

func (p *Provider) SearchTasks(ctx context.Context, query string, opts plugin.QueryOptions) ([]task.Task, error) {
	if err := p.record("search"); err != nil {
		return nil, err
	}
	return p.SearchResults[query], nil
}

func (p *Provider) GetTask(ctx context.Context, externalID string) (*task.Task, error) {
	if err := p.record("get"); err != nil {
		return nil, err
	}
	return p.TasksByID[externalID], nil
}

func (p *Provider) CreateTask(ctx context.Context, in plugin.CreateTaskInput) (*task.Task, error) {
	if err := p.record("create"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Created = append(p.Created, in)
	seq := len(p.Created)
	p.mu.Unlock()

	external := fmt.Sprintf("created-%d", seq)
	t := &task.Task{
		ID:         task.NewID(p.ProviderName, external),
		ExternalID: external,
		Title:      in.Title,
		Status:     task.StatusTodo,
		DueDate:    in.DueDate,
		Project:    in.ProjectName,
		Source:     p.ProviderName,
	}
	return t, nil
}

func (p *Provider) UpdateTask(ctx context.Context, externalID string, in plugin.UpdateTaskInput) (*task.Task, error) {
	if err := p.record("update"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.Updated == nil {
		p.Updated = make(map[string]plugin.UpdateTaskInput)
	}
	p.Updated[externalID] = in
	p.mu.Unlock()

	if t, ok := p.TasksByID[externalID]; ok {
		updated := *t
		if in.Title != nil {
			updated.Title = *in.Title
		}
		if in.Status != nil {
			updated.Status = *in.Status
		}
		return &updated, nil
	}
	return &task.Task{
		ID:         task.NewID(p.ProviderName, externalID),
		ExternalID: externalID,
		Source:     p.ProviderName,
	}, nil
}

func (p *Provider) CompleteTask(ctx context.Context, externalID string) (*task.Task, error) {
	if err := p.record("complete"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Completed = append(p.Completed, externalID)
	p.mu.Unlock()
	return &task.Task{
		ID:         task.NewID(p.ProviderName, externalID),
		ExternalID: externalID,
		Status:     task.StatusDone,
		Source:     p.ProviderName,
	}, nil
}

func (p *Provider) DeleteTask(ctx context.Context, externalID string) error {
	if err := p.record("delete"); err != nil {
		return err
	}
	p.mu.Lock()
	p.Deleted = append(p.Deleted, externalID)
	p.mu.Unlock()
	return nil
}

func (p *Provider) AddComment(ctx context.Context, externalID, body string) error {
	if err := p.record("comment"); err != nil {
		return err
	}
	p.mu.Lock()
	if p.Comments == nil {
		p.Comments = make(map[string][]string)
	}
	p.Comments[externalID] = append(p.Comments[externalID], body)
	p.mu.Unlock()
	return nil
}

func (p *Provider) GetTaskThread(ctx context.Context, externalID string) ([]plugin.ThreadEntry, error) {
	if err := p.record("thread"); err != nil {
		return nil, err
	}
	return p.Thread, nil
}

func (p *Provider) ListWorkspaces(ctx context.Context) ([]plugin.Workspace, error) {
	if err := p.record("workspaces"); err != nil {
		return nil, err
	}
	return p.Workspaces, nil
}

func (p *Provider) DefaultWorkspace(ctx context.Context) (*plugin.Workspace, error) {
	return p.DefaultWS, nil
}

func (p *Provider) ListProjects(ctx context.Context, workspaceID string, refresh bool) ([]plugin.Project, error) {
	if err := p.record("projects"); err != nil {
		return nil, err
	}
	return p.ProjectsByWS[workspaceID], nil
}

func (p *Provider) ListSections(ctx context.Context, projectID string, refresh bool) ([]plugin.Section, error) {
	if err := p.record("sections"); err != nil {
		return nil, err
	}
	return p.SectionsByProject[projectID], nil
}

func (p *Provider) ListCustomFieldSettings(ctx context.Context, projectID string, refresh bool) ([]plugin.FieldSetting, error) {
	if err := p.record("fields"); err != nil {
		return nil, err
	}
	return p.FieldsByProject[projectID], nil
}
