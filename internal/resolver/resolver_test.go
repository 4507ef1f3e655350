package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/internal/plugin/plugintest"
	"github.com/jogi47/pm-cli/internal/task"
	"github.com/jogi47/pm-cli/pkg/cerr"
)

// newFakeAsana builds a provider with three workspaces; "Shared" appears as a
// project name in two of them.
func newFakeAsana() *plugintest.Provider {
	fake := plugintest.New(task.ProviderAsana)
	fake.Workspaces = []plugin.Workspace{
		{ID: "ws1", Name: "Engineering"},
		{ID: "ws2", Name: "Design"},
		{ID: "ws3", Name: "Ops"},
	}
	fake.ProjectsByWS = map[string][]plugin.Project{
		"ws1": {{ID: "p1", Name: "Website"}},
		"ws2": {{ID: "p2", Name: "Shared"}},
		"ws3": {{ID: "p3", Name: "Shared"}},
	}
	fake.SectionsByProject = map[string][]plugin.Section{
		"p1": {{ID: "s1", Name: "Backlog"}, {ID: "s2", Name: "In Review"}},
	}
	return fake
}

func TestResolveWorkspaceByName(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	ws, err := r.resolveWorkspace(ctx, "", "engineering")
	require.NoError(t, err)
	assert.Equal(t, "ws1", ws.ID)
}

func TestResolveWorkspaceNotFoundListsAll(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	_, err := r.resolveWorkspace(ctx, "", "Marketing")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Contains(t, err.Error(), "Engineering (ws1)")
	assert.Contains(t, err.Error(), "Ops (ws3)")
}

func TestResolveWorkspaceDefault(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAsana()
	fake.DefaultWS = &plugin.Workspace{ID: "ws2", Name: "Design"}
	r := New(fake, nil)

	ws, err := r.resolveWorkspace(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "ws2", ws.ID)
}

func TestResolveWorkspaceFallsBackToFirst(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	ws, err := r.resolveWorkspace(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "ws1", ws.ID)
}

func TestResolveWorkspaceWithoutCapability(t *testing.T) {
	ctx := context.Background()
	fake := plugintest.New(task.ProviderTrello)
	fake.Caps = plugin.Capabilities(plugin.CapabilityComments)
	r := New(fake, nil)

	// No input: silently no workspace.
	ws, err := r.resolveWorkspace(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, ws.ID)

	// Explicit input: hard error.
	_, err = r.resolveWorkspace(ctx, "", "Engineering")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.UnsupportedCapability))
}

func TestPrepareCreateResolvesProjectAcrossWorkspaces(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	prepared, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "Ship it",
		ProjectName: "website",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", prepared.ProjectID)
	assert.Equal(t, "Website", prepared.ProjectName)
	assert.Equal(t, "ws1", prepared.WorkspaceID)
}

func TestPrepareCreateAmbiguousProject(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "x",
		ProjectName: "Shared",
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Ambiguous))
	assert.Contains(t, err.Error(), "p2 (Design)")
	assert.Contains(t, err.Error(), "p3 (Ops)")
}

func TestPrepareCreateAmbiguousProjectDisambiguatedByWorkspace(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	prepared, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:         "x",
		ProjectName:   "Shared",
		WorkspaceName: "Design",
	})
	require.NoError(t, err)
	assert.Equal(t, "p2", prepared.ProjectID)
	assert.Equal(t, "ws2", prepared.WorkspaceID)
}

func TestPrepareCreateProjectNotFoundSuggests(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "x",
		ProjectName: "Webs",
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Contains(t, err.Error(), "Website (p1, Engineering)")
}

func TestPrepareCreateProjectIDBestEffort(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	prepared, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:     "x",
		ProjectID: "p-unlisted",
	})
	require.NoError(t, err)
	assert.Equal(t, "p-unlisted", prepared.ProjectID)
	assert.Equal(t, "p-unlisted", prepared.ProjectName)
}

func TestPrepareCreateSectionRequiresProject(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "x",
		SectionName: "Backlog",
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestPrepareCreateResolvesSection(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	prepared, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "x",
		ProjectName: "Website",
		SectionName: "in review",
	})
	require.NoError(t, err)
	assert.Equal(t, "s2", prepared.SectionID)
	assert.Equal(t, "In Review", prepared.SectionName)
}

func TestPrepareCreateSectionNotFoundListsAvailable(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeAsana(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "x",
		ProjectName: "Website",
		SectionName: "Done",
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Contains(t, err.Error(), "Backlog (s1)")
}

func TestMetadataCacheSkipsRepeatListings(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAsana()
	meta := NewMetadataCache(0)

	first := New(fake, meta)
	_, _, err := first.PrepareCreate(ctx, plugin.CreateTaskInput{Title: "x", ProjectName: "Website"})
	require.NoError(t, err)
	calls := fake.CallCount("projects")
	require.Greater(t, calls, 0)

	// A fresh resolver on the same metadata cache must not re-list.
	second := New(fake, meta)
	_, _, err = second.PrepareCreate(ctx, plugin.CreateTaskInput{Title: "y", ProjectName: "Website"})
	require.NoError(t, err)
	assert.Equal(t, calls, fake.CallCount("projects"))
	assert.Equal(t, 1, fake.CallCount("workspaces"))
}

func TestRefreshBypassesMetadataCache(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAsana()
	meta := NewMetadataCache(0)

	_, _, err := New(fake, meta).PrepareCreate(ctx, plugin.CreateTaskInput{Title: "x", ProjectName: "Website"})
	require.NoError(t, err)
	calls := fake.CallCount("projects")

	_, _, err = New(fake, meta).PrepareCreate(ctx, plugin.CreateTaskInput{Title: "y", ProjectName: "Website", Refresh: true})
	require.NoError(t, err)
	assert.Greater(t, fake.CallCount("projects"), calls)
}

func TestPrepareCreateProviderFailureWraps(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAsana()
	fake.Errs = map[string]error{"workspaces": assert.AnError}
	r := New(fake, nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{Title: "x", ProjectName: "Website"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.ProviderCallFailure))
}
