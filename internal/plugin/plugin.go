// Package plugin defines the capability interface every provider backend
// implements. The core depends only on this interface, never on a concrete
// provider client.
package plugin

import (
	"context"
	"time"

	"github.com/jogi47/pm-cli/internal/task"
)

// Capability tags an optional provider operation. Callers check tag
// membership before invoking the corresponding method; providers that omit a
// tag may implement the method as a no-op returning an error.
type Capability string

const (
	CapabilityComments   Capability = "comments"
	CapabilityThreads    Capability = "threads"
	CapabilityWorkspaces Capability = "workspaces"
)

type CapabilitySet map[Capability]struct{}

func Capabilities(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// QueryOptions narrows read operations.
type QueryOptions struct {
	Limit            int
	IncludeCompleted bool
	// Refresh bypasses provider-side metadata caches.
	Refresh bool
}

type Workspace struct {
	ID   string
	Name string
}

type Project struct {
	ID        string
	Name      string
	Workspace Workspace
}

type Section struct {
	ID   string
	Name string
}

type FieldKind string

const (
	FieldEnum      FieldKind = "enum"
	FieldMultiEnum FieldKind = "multi_enum"
)

type FieldOption struct {
	ID   string
	Name string
}

// Field describes a custom field definition as listed by a provider.
type Field struct {
	ID      string
	Name    string
	Kind    FieldKind
	Options []FieldOption
}

// FieldSetting wraps a Field the way providers attach field definitions to a
// project.
type FieldSetting struct {
	Field Field
}

// CustomFieldInput is one caller-supplied field assignment before resolution.
// An empty Values slice means "clear the field".
type CustomFieldInput struct {
	Field  string
	Values []string
}

// FieldMutation is a resolved custom-field write ready for the provider.
// Empty OptionIDs clears the field: null payload for enum, [] for multi_enum
// (Kind disambiguates).
type FieldMutation struct {
	FieldID   string
	Kind      FieldKind
	OptionIDs []string
}

// CreateTaskInput carries create parameters. Callers may supply human names;
// the core resolves them to ids (and fills Fields) before delegating to the
// provider.
type CreateTaskInput struct {
	Title         string
	Description   string
	DueDate       *time.Time
	ProjectID     string
	ProjectName   string
	SectionID     string
	SectionName   string
	WorkspaceID   string
	WorkspaceName string
	AssigneeEmail string
	// Difficulty is a legacy shorthand for CustomFields entry "Difficulty".
	Difficulty   string
	CustomFields []CustomFieldInput
	Fields       []FieldMutation
	Refresh      bool
}

// UpdateTaskInput carries update parameters; nil pointers leave the
// corresponding attribute untouched.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Status       *task.Status
	// Project/workspace inputs only scope custom-field resolution.
	ProjectID     string
	ProjectName   string
	WorkspaceID   string
	WorkspaceName string
	CustomFields  []CustomFieldInput
	Fields        []FieldMutation
	Refresh       bool
}

// ThreadEntry is one comment in a task's thread.
type ThreadEntry struct {
	ID        string            `json:"id"`
	Body      string            `json:"body"`
	Author    string            `json:"author,omitempty"`
	Source    task.ProviderType `json:"source"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Info summarizes a provider's connection state.
type Info struct {
	Name        task.ProviderType `json:"name"`
	DisplayName string            `json:"displayName"`
	Connected   bool              `json:"connected"`
	Workspace   string            `json:"workspace,omitempty"`
	UserName    string            `json:"userName,omitempty"`
	UserEmail   string            `json:"userEmail,omitempty"`
}

// Provider is the capability interface one backend exposes to the core.
type Provider interface {
	Name() task.ProviderType
	DisplayName() string
	Capabilities() CapabilitySet
	IsAuthenticated(ctx context.Context) bool
	Info(ctx context.Context) (Info, error)

	GetAssignedTasks(ctx context.Context, opts QueryOptions) ([]task.Task, error)
	GetOverdueTasks(ctx context.Context, opts QueryOptions) ([]task.Task, error)
	SearchTasks(ctx context.Context, query string, opts QueryOptions) ([]task.Task, error)
	// GetTask returns (nil, nil) when the task does not exist.
	GetTask(ctx context.Context, externalID string) (*task.Task, error)

	CreateTask(ctx context.Context, in CreateTaskInput) (*task.Task, error)
	UpdateTask(ctx context.Context, externalID string, in UpdateTaskInput) (*task.Task, error)
	CompleteTask(ctx context.Context, externalID string) (*task.Task, error)
	DeleteTask(ctx context.Context, externalID string) error

	// Gated by CapabilityComments / CapabilityThreads.
	AddComment(ctx context.Context, externalID, body string) error
	GetTaskThread(ctx context.Context, externalID string) ([]ThreadEntry, error)

	// Metadata listings used by name resolution. Gated by
	// CapabilityWorkspaces where workspaces are concerned; providers without
	// workspaces list projects under the empty workspace id.
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	DefaultWorkspace(ctx context.Context) (*Workspace, error)
	ListProjects(ctx context.Context, workspaceID string, refresh bool) ([]Project, error)
	ListSections(ctx context.Context, projectID string, refresh bool) ([]Section, error)
	ListCustomFieldSettings(ctx context.Context, projectID string, refresh bool) ([]FieldSetting, error)
}
