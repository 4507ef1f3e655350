// Package resolver turns human-supplied workspace/project/section/custom-field
// names into provider-native ids. Matching is exact and case-insensitive;
// zero matches fail with the legal candidates, multiple matches fail as
// ambiguous with exactly the tied candidates, so every error is retryable
// without consulting anything else.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/pkg/cerr"
)

// ResolvedProject is a transient project resolution result, computed per
// create/update call and never persisted.
type ResolvedProject struct {
	ID        string
	Name      string
	Workspace plugin.Workspace
}

// ResolvedSection is a transient section resolution result.
type ResolvedSection struct {
	ID   string
	Name string
}

// Resolver performs name resolution against one provider for the duration of
// a single create/update call. Listings are memoized per call and, when a
// MetadataCache is attached, reused across calls until the metadata TTL
// expires.
type Resolver struct {
	p    plugin.Provider
	meta *MetadataCache

	// mu guards the per-call memo maps; listings fan out concurrently.
	mu       sync.Mutex
	projects map[string][]plugin.Project
	sections map[string][]plugin.Section
	fields   map[string][]plugin.FieldSetting
}

func New(p plugin.Provider, meta *MetadataCache) *Resolver {
	return &Resolver{
		p:        p,
		meta:     meta,
		projects: make(map[string][]plugin.Project),
		sections: make(map[string][]plugin.Section),
		fields:   make(map[string][]plugin.FieldSetting),
	}
}

// PrepareCreate resolves every human-readable input on a create call,
// returning a copy with canonical ids filled in plus the resolved
// custom-field mutations.
func (r *Resolver) PrepareCreate(ctx context.Context, in plugin.CreateTaskInput) (plugin.CreateTaskInput, []ResolvedFieldMutation, error) {
	ws, err := r.resolveWorkspace(ctx, in.WorkspaceID, in.WorkspaceName)
	if err != nil {
		return in, nil, err
	}
	wsExplicit := in.WorkspaceID != "" || in.WorkspaceName != ""

	project, err := r.resolveProject(ctx, in.ProjectID, in.ProjectName, ws, wsExplicit, in.Refresh)
	if err != nil {
		return in, nil, err
	}

	section, err := r.resolveSection(ctx, in.SectionID, in.SectionName, project, in.ProjectID, in.Refresh)
	if err != nil {
		return in, nil, err
	}

	inputs := MergeLegacyDifficulty(in.CustomFields, in.Difficulty)
	var muts []ResolvedFieldMutation
	if len(inputs) > 0 {
		var scope []scopedProject
		if project != nil {
			scope = []scopedProject{{ID: project.ID, Name: project.Name}}
		} else if in.ProjectID != "" {
			scope = []scopedProject{{ID: in.ProjectID, Name: in.ProjectID}}
		}
		muts, err = r.resolveCustomFields(ctx, inputs, scope, in.Refresh, "--field requires --project")
		if err != nil {
			return in, nil, err
		}
	}

	out := in
	out.WorkspaceID, out.WorkspaceName = ws.ID, ws.Name
	if project != nil {
		out.ProjectID, out.ProjectName = project.ID, project.Name
		out.WorkspaceID, out.WorkspaceName = project.Workspace.ID, project.Workspace.Name
	}
	if section != nil {
		out.SectionID, out.SectionName = section.ID, section.Name
	}
	out.Fields = mutations(muts)
	return out, muts, nil
}

// PrepareUpdate resolves the custom-field assignments of an update call. The
// scoping project set comes from the explicit project input when given,
// otherwise from the task's own project memberships.
func (r *Resolver) PrepareUpdate(ctx context.Context, externalID string, in plugin.UpdateTaskInput) (plugin.UpdateTaskInput, []ResolvedFieldMutation, error) {
	if len(in.CustomFields) == 0 {
		return in, nil, nil
	}

	var scope []scopedProject
	if in.ProjectID != "" || in.ProjectName != "" {
		ws, err := r.resolveWorkspace(ctx, in.WorkspaceID, in.WorkspaceName)
		if err != nil {
			return in, nil, err
		}
		wsExplicit := in.WorkspaceID != "" || in.WorkspaceName != ""
		project, err := r.resolveProject(ctx, in.ProjectID, in.ProjectName, ws, wsExplicit, in.Refresh)
		if err != nil {
			return in, nil, err
		}
		if project == nil {
			return in, nil, cerr.Newf(cerr.InvalidArgument, "--project could not be resolved for --field updates")
		}
		scope = []scopedProject{{ID: project.ID, Name: project.Name}}
	} else {
		var err error
		scope, err = r.taskProjectScope(ctx, externalID)
		if err != nil {
			return in, nil, err
		}
	}

	muts, err := r.resolveCustomFields(ctx, in.CustomFields, scope, in.Refresh, "--field requires a resolvable project context")
	if err != nil {
		return in, nil, err
	}

	out := in
	out.Fields = mutations(muts)
	return out, muts, nil
}

// taskProjectScope derives the scoping project set from the task itself,
// preferring memberships over the primary placement.
func (r *Resolver) taskProjectScope(ctx context.Context, externalID string) ([]scopedProject, error) {
	t, err := r.p.GetTask(ctx, externalID)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while loading task for custom field resolution", r.p.Name()), err)
	}
	if t == nil {
		return nil, cerr.Newf(cerr.NotFound, "task not found: %s", externalID)
	}

	var scope []scopedProject
	seen := make(map[string]struct{})
	add := func(id, name string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		if name == "" {
			name = id
		}
		scope = append(scope, scopedProject{ID: id, Name: name})
	}
	for _, m := range t.Memberships {
		add(m.ID, m.Name)
	}
	if t.Placement != nil {
		add(t.Placement.Project.ID, t.Placement.Project.Name)
	}
	if len(scope) == 0 {
		return nil, cerr.Newf(cerr.InvalidArgument,
			"cannot resolve --field updates: task has no project memberships. Pass --project explicitly.")
	}
	return scope, nil
}

func (r *Resolver) resolveWorkspace(ctx context.Context, id, name string) (plugin.Workspace, error) {
	if !r.p.Capabilities().Has(plugin.CapabilityWorkspaces) {
		if id != "" || name != "" {
			return plugin.Workspace{}, cerr.Newf(cerr.UnsupportedCapability,
				"%s does not support workspaces", r.p.Name())
		}
		return plugin.Workspace{}, nil
	}

	workspaces, err := r.listWorkspaces(ctx)
	if err != nil {
		return plugin.Workspace{}, err
	}
	if len(workspaces) == 0 {
		return plugin.Workspace{}, cerr.Newf(cerr.NotFound, "no %s workspaces available for this account", r.p.Name())
	}

	if id != "" {
		for _, ws := range workspaces {
			if ws.ID == id {
				return ws, nil
			}
		}
		return plugin.Workspace{}, cerr.Newf(cerr.NotFound,
			"workspace not found: %q. Available workspaces:\n%s", id, formatWorkspaces(workspaces))
	}

	if name != "" {
		var matches []plugin.Workspace
		for _, ws := range workspaces {
			if strings.EqualFold(ws.Name, name) {
				matches = append(matches, ws)
			}
		}
		switch len(matches) {
		case 1:
			return matches[0], nil
		case 0:
			return plugin.Workspace{}, cerr.Newf(cerr.NotFound,
				"workspace not found: %q. Available workspaces:\n%s", name, formatWorkspaces(workspaces))
		default:
			return plugin.Workspace{}, cerr.Newf(cerr.Ambiguous,
				"ambiguous workspace: %q. Use --workspace ID.\nCandidates:\n%s", name, formatWorkspaces(matches))
		}
	}

	if ws, err := r.p.DefaultWorkspace(ctx); err == nil && ws != nil {
		return *ws, nil
	}
	return workspaces[0], nil
}

// resolveProject applies the exact-match policy for project names and a
// best-effort id lookup: when only an id is given and the metadata listing
// fails or lacks it, the id doubles as the display name rather than failing
// the whole operation.
func (r *Resolver) resolveProject(ctx context.Context, id, name string, ws plugin.Workspace, wsExplicit, refresh bool) (*ResolvedProject, error) {
	if name != "" {
		all, err := r.loadProjects(ctx, r.scopedWorkspaces(ctx, ws, wsExplicit), refresh)
		if err != nil {
			return nil, err
		}

		var matches []ResolvedProject
		for _, p := range all {
			if strings.EqualFold(p.Name, name) {
				matches = append(matches, p)
			}
		}
		switch len(matches) {
		case 1:
			m := matches[0]
			return &m, nil
		case 0:
			suggestions := projectSuggestions(all, name)
			msg := fmt.Sprintf("project not found: %q.", name)
			if len(suggestions) > 0 {
				lines := make([]string, 0, len(suggestions))
				for _, p := range suggestions {
					lines = append(lines, fmt.Sprintf("%s (%s, %s)", p.Name, p.ID, p.Workspace.Name))
				}
				msg += "\nPossible matches:\n" + strings.Join(lines, "\n")
			}
			return nil, cerr.Newf(cerr.NotFound, "%s", msg)
		default:
			lines := make([]string, 0, len(matches))
			for _, p := range matches {
				lines = append(lines, fmt.Sprintf("%s (%s)", p.ID, p.Workspace.Name))
			}
			return nil, cerr.Newf(cerr.Ambiguous,
				"ambiguous project: %q. Use --project ID or --workspace.\nCandidates:\n%s", name, strings.Join(lines, "\n"))
		}
	}

	if id != "" {
		if all, err := r.loadProjects(ctx, r.scopedWorkspaces(ctx, ws, wsExplicit), refresh); err == nil {
			for _, p := range all {
				if p.ID == id {
					return &p, nil
				}
			}
		}
		// Metadata enrichment for id inputs is best effort only.
		return &ResolvedProject{ID: id, Name: id, Workspace: ws}, nil
	}

	return nil, nil
}

func (r *Resolver) resolveSection(ctx context.Context, id, name string, project *ResolvedProject, rawProjectID string, refresh bool) (*ResolvedSection, error) {
	if id == "" && name == "" {
		return nil, nil
	}

	projectID := rawProjectID
	if project != nil {
		projectID = project.ID
	}
	if projectID == "" {
		return nil, cerr.Newf(cerr.InvalidArgument, "--section requires --project")
	}

	sections, err := r.listSections(ctx, projectID, refresh)
	if err != nil {
		return nil, err
	}

	if name != "" {
		var matches []plugin.Section
		for _, s := range sections {
			if strings.EqualFold(s.Name, name) {
				matches = append(matches, s)
			}
		}
		switch len(matches) {
		case 1:
			return &ResolvedSection{ID: matches[0].ID, Name: matches[0].Name}, nil
		case 0:
			available := make([]string, 0, len(sections))
			for _, s := range sections {
				available = append(available, fmt.Sprintf("%s (%s)", s.Name, s.ID))
			}
			listing := strings.Join(available, "\n")
			if listing == "" {
				listing = "(none)"
			}
			return nil, cerr.Newf(cerr.NotFound,
				"section not found: %q in project %s. Available sections:\n%s", name, projectID, listing)
		default:
			lines := make([]string, 0, len(matches))
			for _, s := range matches {
				lines = append(lines, fmt.Sprintf("%s (%s)", s.ID, s.Name))
			}
			return nil, cerr.Newf(cerr.Ambiguous,
				"ambiguous section: %q in project %s. Use --section ID.\nCandidates:\n%s", name, projectID, strings.Join(lines, "\n"))
		}
	}

	for _, s := range sections {
		if s.ID == id {
			return &ResolvedSection{ID: s.ID, Name: s.Name}, nil
		}
	}
	return &ResolvedSection{ID: id, Name: id}, nil
}

// scopedWorkspaces narrows the project search to the explicitly requested
// workspace, or widens it to every workspace the provider lists.
func (r *Resolver) scopedWorkspaces(ctx context.Context, ws plugin.Workspace, wsExplicit bool) []plugin.Workspace {
	if wsExplicit {
		return []plugin.Workspace{ws}
	}
	if !r.p.Capabilities().Has(plugin.CapabilityWorkspaces) {
		return []plugin.Workspace{{}}
	}
	all, err := r.listWorkspaces(ctx)
	if err != nil || len(all) == 0 {
		return []plugin.Workspace{ws}
	}
	return all
}

func (r *Resolver) listWorkspaces(ctx context.Context) ([]plugin.Workspace, error) {
	key := metaKey(r.p.Name(), "workspaces")
	if ws, ok := getMeta(r.meta, metaWorkspaces(r.meta), key); ok {
		return ws, nil
	}
	ws, err := r.p.ListWorkspaces(ctx)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while listing workspaces", r.p.Name()), err)
	}
	putMeta(r.meta, metaWorkspaces(r.meta), key, ws)
	return ws, nil
}

// loadProjects lists projects in every scoped workspace concurrently and
// flattens them in workspace order.
func (r *Resolver) loadProjects(ctx context.Context, workspaces []plugin.Workspace, refresh bool) ([]ResolvedProject, error) {
	lists := make([][]plugin.Project, len(workspaces))
	errs := make([]error, len(workspaces))

	var wg conc.WaitGroup
	for i, ws := range workspaces {
		i, ws := i, ws
		wg.Go(func() {
			lists[i], errs[i] = r.listProjects(ctx, ws.ID, refresh)
		})
	}
	wg.Wait()

	var all []ResolvedProject
	for i, ws := range workspaces {
		if errs[i] != nil {
			return nil, errs[i]
		}
		for _, p := range lists[i] {
			resolved := ResolvedProject{ID: p.ID, Name: p.Name, Workspace: ws}
			if p.Workspace.ID != "" {
				resolved.Workspace = p.Workspace
			}
			all = append(all, resolved)
		}
	}
	return all, nil
}

func (r *Resolver) listProjects(ctx context.Context, workspaceID string, refresh bool) ([]plugin.Project, error) {
	key := metaKey(r.p.Name(), "projects:"+workspaceID)
	if !refresh {
		r.mu.Lock()
		ps, ok := r.projects[key]
		r.mu.Unlock()
		if ok {
			return ps, nil
		}
		if ps, ok := getMeta(r.meta, metaProjects(r.meta), key); ok {
			r.mu.Lock()
			r.projects[key] = ps
			r.mu.Unlock()
			return ps, nil
		}
	}
	ps, err := r.p.ListProjects(ctx, workspaceID, refresh)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while listing projects in workspace %s", r.p.Name(), workspaceID), err)
	}
	r.mu.Lock()
	r.projects[key] = ps
	r.mu.Unlock()
	putMeta(r.meta, metaProjects(r.meta), key, ps)
	return ps, nil
}

func (r *Resolver) listSections(ctx context.Context, projectID string, refresh bool) ([]plugin.Section, error) {
	key := metaKey(r.p.Name(), "sections:"+projectID)
	if !refresh {
		r.mu.Lock()
		ss, ok := r.sections[key]
		r.mu.Unlock()
		if ok {
			return ss, nil
		}
		if ss, ok := getMeta(r.meta, metaSections(r.meta), key); ok {
			r.mu.Lock()
			r.sections[key] = ss
			r.mu.Unlock()
			return ss, nil
		}
	}
	ss, err := r.p.ListSections(ctx, projectID, refresh)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while resolving sections of project %s", r.p.Name(), projectID), err)
	}
	r.mu.Lock()
	r.sections[key] = ss
	r.mu.Unlock()
	putMeta(r.meta, metaSections(r.meta), key, ss)
	return ss, nil
}

func (r *Resolver) listFieldSettings(ctx context.Context, projectID string, refresh bool) ([]plugin.FieldSetting, error) {
	key := metaKey(r.p.Name(), "fields:"+projectID)
	if !refresh {
		r.mu.Lock()
		fs, ok := r.fields[key]
		r.mu.Unlock()
		if ok {
			return fs, nil
		}
		if fs, ok := getMeta(r.meta, metaFields(r.meta), key); ok {
			r.mu.Lock()
			r.fields[key] = fs
			r.mu.Unlock()
			return fs, nil
		}
	}
	fs, err := r.p.ListCustomFieldSettings(ctx, projectID, refresh)
	if err != nil {
		return nil, cerr.NewError(cerr.ProviderCallFailure,
			fmt.Sprintf("%s API failure while resolving custom fields of project %s", r.p.Name(), projectID), err)
	}
	r.mu.Lock()
	r.fields[key] = fs
	r.mu.Unlock()
	putMeta(r.meta, metaFields(r.meta), key, fs)
	return fs, nil
}

// projectSuggestions guides correction after a failed name match: projects
// containing the query as a substring if any, else the first 10 listed.
func projectSuggestions(all []ResolvedProject, query string) []ResolvedProject {
	lower := strings.ToLower(query)
	var containing []ResolvedProject
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), lower) {
			containing = append(containing, p)
		}
	}
	if len(containing) > 0 {
		return truncateProjects(containing, 10)
	}
	return truncateProjects(all, 10)
}

func truncateProjects(ps []ResolvedProject, n int) []ResolvedProject {
	if len(ps) > n {
		return ps[:n]
	}
	return ps
}

func formatWorkspaces(workspaces []plugin.Workspace) string {
	lines := make([]string, 0, len(workspaces))
	for _, ws := range workspaces {
		lines = append(lines, fmt.Sprintf("%s (%s)", ws.Name, ws.ID))
	}
	return strings.Join(lines, "\n")
}

// Accessor helpers keep the generic map plumbing in one place; a nil
// MetadataCache disables cross-call reuse entirely.

func metaWorkspaces(c *MetadataCache) map[string]metaEntry[[]plugin.Workspace] {
	if c == nil {
		return nil
	}
	return c.workspaces
}

func metaProjects(c *MetadataCache) map[string]metaEntry[[]plugin.Project] {
	if c == nil {
		return nil
	}
	return c.projects
}

func metaSections(c *MetadataCache) map[string]metaEntry[[]plugin.Section] {
	if c == nil {
		return nil
	}
	return c.sections
}

func metaFields(c *MetadataCache) map[string]metaEntry[[]plugin.FieldSetting] {
	if c == nil {
		return nil
	}
	return c.fields
}
