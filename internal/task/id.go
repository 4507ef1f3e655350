package task

import (
	"strings"

	"github.com/jogi47/pm-cli/pkg/cerr"
)

// ProviderType identifies a task provider backend.
type ProviderType string

const (
	ProviderAsana   ProviderType = "asana"
	ProviderNotion  ProviderType = "notion"
	ProviderTrello  ProviderType = "trello"
	ProviderLinear  ProviderType = "linear"
	ProviderClickUp ProviderType = "clickup"
)

// Providers returns every known provider type in canonical order.
func Providers() []ProviderType {
	return []ProviderType{
		ProviderAsana,
		ProviderNotion,
		ProviderTrello,
		ProviderLinear,
		ProviderClickUp,
	}
}

func (p ProviderType) Valid() bool {
	for _, known := range Providers() {
		if p == known {
			return true
		}
	}
	return false
}

// NewID builds the canonical task id "{PROVIDER}-{externalId}". The external
// id is kept verbatim; only the provider prefix is case-normalized.
func NewID(provider ProviderType, externalID string) string {
	return strings.ToUpper(string(provider)) + "-" + externalID
}

// ParsedID is a decomposed canonical task id.
type ParsedID struct {
	Source     ProviderType
	ExternalID string
}

// ParseID decomposes a canonical task id. The provider prefix matches
// case-insensitively; the external id part keeps its original case and may
// itself contain dashes.
func ParseID(id string) (ParsedID, error) {
	prefix, rest, found := strings.Cut(id, "-")
	if !found || prefix == "" || rest == "" {
		return ParsedID{}, cerr.Newf(cerr.InvalidTaskID,
			"invalid task id: %q, expected format {PROVIDER}-{id}", id)
	}
	provider := ProviderType(strings.ToLower(prefix))
	if !provider.Valid() {
		return ParsedID{}, cerr.Newf(cerr.InvalidTaskID,
			"invalid task id: %q, unknown provider prefix %q", id, prefix)
	}
	return ParsedID{Source: provider, ExternalID: rest}, nil
}
