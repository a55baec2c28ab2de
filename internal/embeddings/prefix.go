package embeddings

import "strings"

// Role tags the purpose of a text for instruction tuned models.
type Role string

const (
	RoleQuery   Role = "query"
	RolePassage Role = "passage"
)

// ParseRole maps a request type to a Role. Anything other than "query"
// is a passage.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleQuery)) {
		return RoleQuery
	}
	return RolePassage
}

// DefaultPrefixFamily is the model family marker that enables prefixes.
const DefaultPrefixFamily = "e5"

// PrefixStrategy prepends role markers to texts for model families trained
// with them. It is inactive for every other model.
type PrefixStrategy struct {
	active bool
}

// NewPrefixStrategy activates prefixes when modelID contains family,
// ignoring case. An empty family disables prefixes.
func NewPrefixStrategy(modelID, family string) PrefixStrategy {
	family = strings.TrimSpace(family)
	if family == "" {
		return PrefixStrategy{}
	}
	return PrefixStrategy{
		active: strings.Contains(strings.ToLower(modelID), strings.ToLower(family)),
	}
}

// Active reports whether texts are rewritten.
func (p PrefixStrategy) Active() bool {
	return p.active
}

// Apply returns text with the marker for role prepended, or text unchanged
// when the strategy is inactive.
func (p PrefixStrategy) Apply(text string, role Role) string {
	if !p.active {
		return text
	}
	if role == RoleQuery {
		return "query: " + text
	}
	return "passage: " + text
}
