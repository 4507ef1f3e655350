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

func newFieldFake() *plugintest.Provider {
	fake := plugintest.New(task.ProviderAsana)
	fake.Workspaces = []plugin.Workspace{{ID: "ws1", Name: "Engineering"}}
	fake.ProjectsByWS = map[string][]plugin.Project{
		"ws1": {{ID: "p1", Name: "Website"}, {ID: "p2", Name: "Backend"}},
	}
	fake.FieldsByProject = map[string][]plugin.FieldSetting{
		"p1": {
			{Field: plugin.Field{ID: "f1", Name: "Difficulty", Kind: plugin.FieldEnum, Options: []plugin.FieldOption{
				{ID: "o1", Name: "XS"}, {ID: "o2", Name: "S"}, {ID: "o3", Name: "M"},
			}}},
			{Field: plugin.Field{ID: "f2", Name: "Area", Kind: plugin.FieldMultiEnum, Options: []plugin.FieldOption{
				{ID: "a1", Name: "Bugs"}, {ID: "a2", Name: "Analytics"}, {ID: "a3", Name: "Research"},
			}}},
			{Field: plugin.Field{ID: "f3", Name: "Notes", Kind: "text"}},
		},
	}
	return fake
}

func TestCreateResolvesEnumField(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	prepared, muts, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		ProjectName:  "Website",
		CustomFields: []plugin.CustomFieldInput{{Field: "difficulty", Values: []string{"m"}}},
	})
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "f1", muts[0].FieldID)
	assert.Equal(t, []string{"o3"}, muts[0].OptionIDs)
	assert.Equal(t, []string{"M"}, muts[0].OptionNames)
	require.Len(t, prepared.Fields, 1)
	assert.Equal(t, plugin.FieldEnum, prepared.Fields[0].Kind)
}

func TestCreateLegacyDifficultyShorthand(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, muts, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "x",
		ProjectName: "Website",
		Difficulty:  "S",
	})
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "Difficulty", muts[0].FieldName)
	assert.Equal(t, []string{"o2"}, muts[0].OptionIDs)
}

func TestEnumOptionNotFoundListsOptions(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		ProjectName:  "Website",
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"L"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Contains(t, err.Error(), "XS (o1), S (o2), M (o3)")
}

func TestEnumRejectsMultipleValues(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		ProjectName:  "Website",
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"S", "M"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Contains(t, err.Error(), "single value")
}

func TestEnumClear(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, muts, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		ProjectName:  "Website",
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty"}},
	})
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Empty(t, muts[0].OptionIDs)
	assert.Equal(t, plugin.FieldEnum, muts[0].Kind)
}

func TestMultiEnumResolvesAndDedupes(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, muts, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:       "x",
		ProjectName: "Website",
		CustomFields: []plugin.CustomFieldInput{
			{Field: "Area", Values: []string{"Bugs", "Analytics", "a1"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, muts, 1)
	// "a1" is the option id of "Bugs"; the duplicate collapses.
	assert.Equal(t, []string{"a1", "a2"}, muts[0].OptionIDs)
	assert.Equal(t, []string{"Bugs", "Analytics"}, muts[0].OptionNames)
}

func TestUnsupportedFieldKind(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		ProjectName:  "Website",
		CustomFields: []plugin.CustomFieldInput{{Field: "Notes", Values: []string{"hello"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.UnsupportedFieldType))
	assert.Contains(t, err.Error(), "enum, multi_enum")
}

func TestFieldNotFoundSuggests(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		ProjectName:  "Website",
		CustomFields: []plugin.CustomFieldInput{{Field: "Diff", Values: []string{"S"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Contains(t, err.Error(), "Possible matches:")
	assert.Contains(t, err.Error(), "Difficulty (f1)")
}

func TestFieldRequiresProjectScope(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"S"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Contains(t, err.Error(), "--field requires --project")
}

func TestNoFieldsInScopedProjects(t *testing.T) {
	ctx := context.Background()
	r := New(newFieldFake(), nil)

	// p2 has no custom fields configured.
	_, _, err := r.PrepareCreate(ctx, plugin.CreateTaskInput{
		Title:        "x",
		ProjectName:  "Backend",
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"S"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Contains(t, err.Error(), "no custom fields found")
	assert.Contains(t, err.Error(), "Backend")
}

func TestUpdateScopesFieldsByTaskMemberships(t *testing.T) {
	ctx := context.Background()
	fake := newFieldFake()
	fake.TasksByID = map[string]*task.Task{
		"t1": {
			ID:          "ASANA-t1",
			ExternalID:  "t1",
			Memberships: []task.Ref{{ID: "p1", Name: "Website"}},
		},
	}
	r := New(fake, nil)

	prepared, muts, err := r.PrepareUpdate(ctx, "t1", plugin.UpdateTaskInput{
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"XS"}}},
	})
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, []string{"o1"}, muts[0].OptionIDs)
	require.Len(t, prepared.Fields, 1)
}

func TestUpdateWithoutMembershipsNeedsExplicitProject(t *testing.T) {
	ctx := context.Background()
	fake := newFieldFake()
	fake.TasksByID = map[string]*task.Task{
		"t1": {ID: "ASANA-t1", ExternalID: "t1"},
	}
	r := New(fake, nil)

	_, _, err := r.PrepareUpdate(ctx, "t1", plugin.UpdateTaskInput{
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"XS"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Contains(t, err.Error(), "--project")
}

func TestUpdateWithoutCustomFieldsSkipsResolution(t *testing.T) {
	ctx := context.Background()
	fake := newFieldFake()
	r := New(fake, nil)

	title := "renamed"
	prepared, muts, err := r.PrepareUpdate(ctx, "t1", plugin.UpdateTaskInput{Title: &title})
	require.NoError(t, err)
	assert.Empty(t, muts)
	assert.Equal(t, &title, prepared.Title)
	assert.Zero(t, fake.CallCount("get"))
}

func TestAmbiguousFieldNameAcrossProjects(t *testing.T) {
	ctx := context.Background()
	fake := newFieldFake()
	fake.FieldsByProject["p2"] = []plugin.FieldSetting{
		{Field: plugin.Field{ID: "f9", Name: "Difficulty", Kind: plugin.FieldEnum, Options: []plugin.FieldOption{
			{ID: "z1", Name: "Hard"},
		}}},
	}
	fake.TasksByID = map[string]*task.Task{
		"t1": {
			ID:         "ASANA-t1",
			ExternalID: "t1",
			Memberships: []task.Ref{
				{ID: "p1", Name: "Website"},
				{ID: "p2", Name: "Backend"},
			},
		},
	}
	r := New(fake, nil)

	_, _, err := r.PrepareUpdate(ctx, "t1", plugin.UpdateTaskInput{
		CustomFields: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"XS"}}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Ambiguous))
	assert.Contains(t, err.Error(), "Difficulty (f1) [projects: Website]")
	assert.Contains(t, err.Error(), "Difficulty (f9) [projects: Backend]")
}

func TestMergedFieldContextFirstDefinitionWins(t *testing.T) {
	ctx := context.Background()
	fake := newFieldFake()
	// Same field id in both projects; the second copy has no options and must
	// not shadow the first.
	fake.FieldsByProject["p2"] = []plugin.FieldSetting{
		{Field: plugin.Field{ID: "f1", Name: "Difficulty", Kind: plugin.FieldEnum}},
	}
	fake.TasksByID = map[string]*task.Task{
		"t1": {
			ID:         "ASANA-t1",
			ExternalID: "t1",
			Memberships: []task.Ref{
				{ID: "p2", Name: "Backend"},
				{ID: "p1", Name: "Website"},
			},
		},
	}
	r := New(fake, nil)

	_, muts, err := r.PrepareUpdate(ctx, "t1", plugin.UpdateTaskInput{
		CustomFields: []plugin.CustomFieldInput{{Field: "f1", Values: []string{"M"}}},
	})
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, []string{"o3"}, muts[0].OptionIDs)
}
