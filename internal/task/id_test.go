package task

import (
	"testing"
)

func TestNewID(t *testing.T) {
	tests := []struct {
		name       string
		provider   ProviderType
		externalID string
		expected   string
	}{
		{
			name:       "asana",
			provider:   ProviderAsana,
			externalID: "1234567890",
			expected:   "ASANA-1234567890",
		},
		{
			name:       "notion keeps external id case",
			provider:   ProviderNotion,
			externalID: "aBc-123",
			expected:   "NOTION-aBc-123",
		},
		{
			name:       "clickup",
			provider:   ProviderClickUp,
			externalID: "86abc",
			expected:   "CLICKUP-86abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewID(tt.provider, tt.externalID); got != tt.expected {
				t.Errorf("NewID(%s, %s) = %s, want %s", tt.provider, tt.externalID, got, tt.expected)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		source     ProviderType
		externalID string
		wantErr    bool
	}{
		{
			name:       "uppercase prefix",
			id:         "ASANA-1234567890",
			source:     ProviderAsana,
			externalID: "1234567890",
		},
		{
			name:       "lowercase prefix accepted",
			id:         "trello-abc123",
			source:     ProviderTrello,
			externalID: "abc123",
		},
		{
			name:       "mixed case prefix accepted",
			id:         "LiNeAr-XYZ-42",
			source:     ProviderLinear,
			externalID: "XYZ-42",
		},
		{
			name:       "external id keeps dashes",
			id:         "NOTION-a-b-c",
			source:     ProviderNotion,
			externalID: "a-b-c",
		},
		{
			name:    "unknown provider prefix",
			id:      "JIRA-1234",
			wantErr: true,
		},
		{
			name:    "no separator",
			id:      "ASANA1234",
			wantErr: true,
		},
		{
			name:    "empty external id",
			id:      "ASANA-",
			wantErr: true,
		},
		{
			name:    "empty prefix",
			id:      "-1234",
			wantErr: true,
		},
		{
			name:    "empty string",
			id:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseID(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseID(%q) expected error, got %+v", tt.id, parsed)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) failed: %v", tt.id, err)
			}
			if parsed.Source != tt.source {
				t.Errorf("source = %s, want %s", parsed.Source, tt.source)
			}
			if parsed.ExternalID != tt.externalID {
				t.Errorf("external id = %s, want %s", parsed.ExternalID, tt.externalID)
			}
		})
	}
}

func TestParseIDRoundTrip(t *testing.T) {
	for _, provider := range Providers() {
		id := NewID(provider, "ext-1")
		parsed, err := ParseID(id)
		if err != nil {
			t.Fatalf("ParseID(%q) failed: %v", id, err)
		}
		if parsed.Source != provider || parsed.ExternalID != "ext-1" {
			t.Errorf("round trip of %s gave %+v", id, parsed)
		}
	}
}
