package task

import "time"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ref is an id/name pair referencing a provider-side entity.
type Ref struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Placement describes where a task lives inside its provider.
type Placement struct {
	Project Ref  `yaml:"project" json:"project"`
	Section *Ref `yaml:"section,omitempty" json:"section,omitempty"`
}

type CustomFieldResultStatus string

const (
	FieldApplied CustomFieldResultStatus = "applied"
	FieldFailed  CustomFieldResultStatus = "failed"
)

// CustomFieldResult records the outcome of a custom-field write on a task.
type CustomFieldResult struct {
	FieldID     string                  `yaml:"field_id" json:"fieldId"`
	FieldName   string                  `yaml:"field_name" json:"fieldName"`
	Type        string                  `yaml:"type" json:"type"`
	OptionIDs   []string                `yaml:"option_ids" json:"optionIds"`
	OptionNames []string                `yaml:"option_names" json:"optionNames"`
	Status      CustomFieldResultStatus `yaml:"status" json:"status"`
	Message     string                  `yaml:"message,omitempty" json:"message,omitempty"`
}

// Task is the unified task entity aggregated across providers.
type Task struct {
	// ID has the form "{PROVIDER}-{externalId}", e.g. "ASANA-1234567890".
	ID          string     `yaml:"id" json:"id"`
	ExternalID  string     `yaml:"external_id" json:"externalId"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Status      Status     `yaml:"status" json:"status"`
	DueDate     *time.Time `yaml:"due_date,omitempty" json:"dueDate,omitempty"`
	Assignee    string     `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	// AssigneeEmail allows matching the same person across providers.
	AssigneeEmail string     `yaml:"assignee_email,omitempty" json:"assigneeEmail,omitempty"`
	Project       string     `yaml:"project,omitempty" json:"project,omitempty"`
	Placement     *Placement `yaml:"placement,omitempty" json:"placement,omitempty"`
	// Memberships lists every project the task belongs to; Placement keeps
	// only the primary one. Update-time custom-field resolution scopes its
	// metadata lookups to these projects when no explicit project is given.
	Memberships        []Ref               `yaml:"memberships,omitempty" json:"memberships,omitempty"`
	Tags               []string            `yaml:"tags,omitempty" json:"tags,omitempty"`
	Priority           Priority            `yaml:"priority,omitempty" json:"priority,omitempty"`
	CustomFieldResults []CustomFieldResult `yaml:"custom_field_results,omitempty" json:"customFieldResults,omitempty"`
	Source             ProviderType        `yaml:"source" json:"source"`
	URL                string              `yaml:"url" json:"url"`
	CreatedAt          *time.Time          `yaml:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt          *time.Time          `yaml:"updated_at,omitempty" json:"updatedAt,omitempty"`
}
