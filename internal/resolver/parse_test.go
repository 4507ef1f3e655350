package resolver

import (
	"reflect"
	"testing"

	"github.com/jogi47/pm-cli/internal/plugin"
	"github.com/jogi47/pm-cli/pkg/cerr"
)

func TestParseFieldAssignments(t *testing.T) {
	tests := []struct {
		name     string
		raw      []string
		expected []plugin.CustomFieldInput
		wantErr  bool
	}{
		{
			name:     "single value",
			raw:      []string{"Difficulty=M"},
			expected: []plugin.CustomFieldInput{{Field: "Difficulty", Values: []string{"M"}}},
		},
		{
			name:     "multiple values split on comma",
			raw:      []string{"Area=Bugs,Analytics"},
			expected: []plugin.CustomFieldInput{{Field: "Area", Values: []string{"Bugs", "Analytics"}}},
		},
		{
			name:     "empty value part clears",
			raw:      []string{"Difficulty="},
			expected: []plugin.CustomFieldInput{{Field: "Difficulty"}},
		},
		{
			name:     "whitespace trimmed",
			raw:      []string{" Area = Bugs , Analytics "},
			expected: []plugin.CustomFieldInput{{Field: "Area", Values: []string{"Bugs", "Analytics"}}},
		},
		{
			name:     "empty entries between commas dropped",
			raw:      []string{"Area=Bugs,,Analytics,"},
			expected: []plugin.CustomFieldInput{{Field: "Area", Values: []string{"Bugs", "Analytics"}}},
		},
		{
			name: "value may contain equals",
			raw:  []string{"Formula=a=b"},
			expected: []plugin.CustomFieldInput{
				{Field: "Formula", Values: []string{"a=b"}},
			},
		},
		{
			name:     "nil input",
			raw:      nil,
			expected: nil,
		},
		{
			name:    "missing equals",
			raw:     []string{"Difficulty"},
			wantErr: true,
		},
		{
			name:    "empty field name",
			raw:     []string{"=M"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFieldAssignments(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if !cerr.IsCode(err, cerr.InvalidArgument) {
					t.Errorf("expected invalid argument code, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestMergeLegacyDifficulty(t *testing.T) {
	explicit := []plugin.CustomFieldInput{{Field: "Area", Values: []string{"Bugs"}}}

	merged := MergeLegacyDifficulty(explicit, "M")
	if len(merged) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(merged))
	}
	if merged[0].Field != "Difficulty" || merged[0].Values[0] != "M" {
		t.Errorf("difficulty shorthand should come first, got %+v", merged[0])
	}
	if merged[1].Field != "Area" {
		t.Errorf("explicit assignment should follow, got %+v", merged[1])
	}

	if got := MergeLegacyDifficulty(explicit, ""); len(got) != 1 {
		t.Errorf("empty difficulty must not add an input, got %+v", got)
	}
}
