package resolver

import (
	"strings"

	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/pkg/cerr"
)

// ParseFieldAssignments parses repeated --field flags of the form
// "<Field>=<value1,value2,...>". An assignment with an empty value part
// clears the field. Commas inside the value part always split; option names
// containing commas must be addressed by option id.
func ParseFieldAssignments(raw []string) ([]plugin.CustomFieldInput, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	inputs := make([]plugin.CustomFieldInput, 0, len(raw))
	for _, assignment := range raw {
		field, valuePart, found := strings.Cut(assignment, "=")
		if !found {
			return nil, cerr.Newf(cerr.InvalidArgument,
				"invalid --field assignment %q: expected <Field>=<value>[,<value>...]", assignment)
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, cerr.Newf(cerr.InvalidArgument,
				"invalid --field assignment %q: field name is empty", assignment)
		}

		var values []string
		for _, v := range strings.Split(valuePart, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				values = append(values, v)
			}
		}
		inputs = append(inputs, plugin.CustomFieldInput{Field: field, Values: values})
	}
	return inputs, nil
}

// MergeLegacyDifficulty folds the --difficulty shorthand in ahead of the
// explicit assignments so an explicit "Difficulty=" can still override it
// downstream.
func MergeLegacyDifficulty(inputs []plugin.CustomFieldInput, difficulty string) []plugin.CustomFieldInput {
	if difficulty == "" {
		return inputs
	}
	merged := make([]plugin.CustomFieldInput, 0, len(inputs)+1)
	merged = append(merged, plugin.CustomFieldInput{Field: "Difficulty", Values: []string{difficulty}})
	return append(merged, inputs...)
}
