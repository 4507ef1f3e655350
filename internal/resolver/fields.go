package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc"

	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/internal/task"
	"github.com/jogi47/pm-cli/pkg/cerr"
)

// scopedProject is one project whose field settings participate in
// custom-field resolution.
type scopedProject struct {
	ID   string
	Name string
}

// FieldContext is a custom-field definition merged across the scoped
// projects, remembering every project that defines it.
type FieldContext struct {
	Field        plugin.Field
	ProjectIDs   []string
	ProjectNames []string
}

// ResolvedFieldMutation is one fully resolved custom-field write, carrying
// display names alongside the wire-level mutation for result reporting.
type ResolvedFieldMutation struct {
	FieldID     string
	FieldName   string
	Kind        plugin.FieldKind
	OptionIDs   []string
	OptionNames []string
}

func (m ResolvedFieldMutation) Mutation() plugin.FieldMutation {
	return plugin.FieldMutation{FieldID: m.FieldID, Kind: m.Kind, OptionIDs: m.OptionIDs}
}

func mutations(muts []ResolvedFieldMutation) []plugin.FieldMutation {
	if len(muts) == 0 {
		return nil
	}
	out := make([]plugin.FieldMutation, 0, len(muts))
	for _, m := range muts {
		out = append(out, m.Mutation())
	}
	return out
}

// FieldResults converts resolved mutations into per-task result records, all
// marked applied. Providers downgrade individual entries on write failure.
func FieldResults(muts []ResolvedFieldMutation) []task.CustomFieldResult {
	if len(muts) == 0 {
		return nil
	}
	out := make([]task.CustomFieldResult, 0, len(muts))
	for _, m := range muts {
		out = append(out, task.CustomFieldResult{
			FieldID:     m.FieldID,
			FieldName:   m.FieldName,
			Type:        string(m.Kind),
			OptionIDs:   m.OptionIDs,
			OptionNames: m.OptionNames,
			Status:      task.FieldApplied,
		})
	}
	return out
}

// resolveCustomFields resolves each assignment against the merged field
// contexts of the scoped projects. An empty scope is a usage error carrying
// the caller-specific hint.
func (r *Resolver) resolveCustomFields(ctx context.Context, inputs []plugin.CustomFieldInput, scope []scopedProject, refresh bool, missingScopeMsg string) ([]ResolvedFieldMutation, error) {
	if len(scope) == 0 {
		return nil, cerr.Newf(cerr.InvalidArgument, "%s", missingScopeMsg)
	}

	contexts, err := r.loadFieldContexts(ctx, scope, refresh)
	if err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		names := make([]string, 0, len(scope))
		for _, p := range scope {
			names = append(names, p.Name)
		}
		return nil, cerr.Newf(cerr.NotFound,
			"no custom fields found in scoped project metadata (%s)", strings.Join(names, ", "))
	}

	muts := make([]ResolvedFieldMutation, 0, len(inputs))
	for _, in := range inputs {
		fc, err := resolveFieldContext(contexts, in.Field)
		if err != nil {
			return nil, err
		}
		mut, err := resolveFieldValues(fc, in.Values)
		if err != nil {
			return nil, err
		}
		muts = append(muts, mut)
	}
	return muts, nil
}

// loadFieldContexts fetches field settings of every scoped project
// concurrently, then merges them in scope order: the first occurrence of a
// field id wins its definition, the first non-empty option list wins the
// options, and every defining project is recorded for diagnostics.
func (r *Resolver) loadFieldContexts(ctx context.Context, scope []scopedProject, refresh bool) ([]FieldContext, error) {
	lists := make([][]plugin.FieldSetting, len(scope))
	errs := make([]error, len(scope))

	var wg conc.WaitGroup
	for i, p := range scope {
		i, p := i, p
		wg.Go(func() {
			lists[i], errs[i] = r.listFieldSettings(ctx, p.ID, refresh)
		})
	}
	wg.Wait()

	var merged []FieldContext
	index := make(map[string]int)
	for i, p := range scope {
		if errs[i] != nil {
			return nil, errs[i]
		}
		for _, setting := range lists[i] {
			f := setting.Field
			if f.ID == "" {
				continue
			}
			at, ok := index[f.ID]
			if !ok {
				index[f.ID] = len(merged)
				merged = append(merged, FieldContext{
					Field:        f,
					ProjectIDs:   []string{p.ID},
					ProjectNames: []string{p.Name},
				})
				continue
			}
			merged[at].ProjectIDs = append(merged[at].ProjectIDs, p.ID)
			merged[at].ProjectNames = append(merged[at].ProjectNames, p.Name)
			if len(merged[at].Field.Options) == 0 && len(f.Options) > 0 {
				merged[at].Field.Options = f.Options
			}
		}
	}
	return merged, nil
}

// resolveFieldContext finds the field an assignment refers to, by id first
// and then by case-insensitive name. Name collisions across distinct field
// ids are ambiguous.
func resolveFieldContext(contexts []FieldContext, ident string) (FieldContext, error) {
	for _, fc := range contexts {
		if fc.Field.ID == ident {
			return fc, nil
		}
	}

	var matches []FieldContext
	for _, fc := range contexts {
		if strings.EqualFold(fc.Field.Name, ident) {
			matches = append(matches, fc)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		suggestions, label := fieldSuggestions(contexts, ident)
		lines := make([]string, 0, len(suggestions))
		for _, fc := range suggestions {
			lines = append(lines, fmt.Sprintf("%s (%s)", fc.Field.Name, fc.Field.ID))
		}
		return FieldContext{}, cerr.Newf(cerr.NotFound,
			"custom field not found: %q.\n%s\n%s", ident, label, strings.Join(lines, "\n"))
	default:
		lines := make([]string, 0, len(matches))
		for _, fc := range matches {
			lines = append(lines, fmt.Sprintf("%s (%s) [projects: %s]",
				fc.Field.Name, fc.Field.ID, strings.Join(fc.ProjectNames, ", ")))
		}
		return FieldContext{}, cerr.Newf(cerr.Ambiguous,
			"ambiguous custom field: %q. Use the field id.\nCandidates:\n%s", ident, strings.Join(lines, "\n"))
	}
}

// fieldSuggestions prefers prefix matches, then substring matches, then the
// first 10 fields outright.
func fieldSuggestions(contexts []FieldContext, ident string) ([]FieldContext, string) {
	lower := strings.ToLower(ident)
	var prefixed, containing []FieldContext
	for _, fc := range contexts {
		name := strings.ToLower(fc.Field.Name)
		if strings.HasPrefix(name, lower) {
			prefixed = append(prefixed, fc)
		} else if strings.Contains(name, lower) {
			containing = append(containing, fc)
		}
	}
	if len(prefixed) > 0 {
		return truncateContexts(prefixed, 10), "Possible matches:"
	}
	if len(containing) > 0 {
		return truncateContexts(containing, 10), "Possible matches:"
	}
	return truncateContexts(contexts, 10), "Available fields:"
}

func truncateContexts(fcs []FieldContext, n int) []FieldContext {
	if len(fcs) > n {
		return fcs[:n]
	}
	return fcs
}

// resolveFieldValues maps the raw values onto option ids according to the
// field kind. Empty values clear the field.
func resolveFieldValues(fc FieldContext, values []string) (ResolvedFieldMutation, error) {
	mut := ResolvedFieldMutation{
		FieldID:   fc.Field.ID,
		FieldName: fc.Field.Name,
		Kind:      fc.Field.Kind,
	}

	switch fc.Field.Kind {
	case plugin.FieldEnum:
		if len(values) > 1 {
			return mut, cerr.Newf(cerr.InvalidArgument,
				"custom field %q expects a single value, got %d", fc.Field.Name, len(values))
		}
		if len(values) == 0 {
			return mut, nil
		}
		opt, err := resolveOption(fc, values[0])
		if err != nil {
			return mut, err
		}
		mut.OptionIDs = []string{opt.ID}
		mut.OptionNames = []string{opt.Name}
		return mut, nil

	case plugin.FieldMultiEnum:
		seen := make(map[string]struct{})
		for _, v := range values {
			opt, err := resolveOption(fc, v)
			if err != nil {
				return mut, err
			}
			if _, ok := seen[opt.ID]; ok {
				continue
			}
			seen[opt.ID] = struct{}{}
			mut.OptionIDs = append(mut.OptionIDs, opt.ID)
			mut.OptionNames = append(mut.OptionNames, opt.Name)
		}
		return mut, nil

	default:
		return mut, cerr.Newf(cerr.UnsupportedFieldType,
			"custom field %q has unsupported type %q. Supported types: enum, multi_enum", fc.Field.Name, fc.Field.Kind)
	}
}

// resolveOption matches one value against the field's options, by id first
// and then by case-insensitive name.
func resolveOption(fc FieldContext, value string) (plugin.FieldOption, error) {
	for _, opt := range fc.Field.Options {
		if opt.ID == value {
			return opt, nil
		}
	}

	var matches []plugin.FieldOption
	for _, opt := range fc.Field.Options {
		if strings.EqualFold(opt.Name, value) {
			matches = append(matches, opt)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		available := make([]string, 0, len(fc.Field.Options))
		for _, opt := range fc.Field.Options {
			available = append(available, fmt.Sprintf("%s (%s)", opt.Name, opt.ID))
		}
		return plugin.FieldOption{}, cerr.Newf(cerr.NotFound,
			"option not found for custom field %q: %q. Available options: %s",
			fc.Field.Name, value, strings.Join(available, ", "))
	default:
		lines := make([]string, 0, len(matches))
		for _, opt := range matches {
			lines = append(lines, fmt.Sprintf("%s (%s)", opt.Name, opt.ID))
		}
		return plugin.FieldOption{}, cerr.Newf(cerr.Ambiguous,
			"ambiguous option for custom field %q: %q. Use the option id.\nCandidates: %s",
			fc.Field.Name, value, strings.Join(lines, ", "))
	}
}
