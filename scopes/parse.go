package scopes

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidScopeNames reports scope input that is neither a JSON array nor
// a comma-separated string. It is never silently treated as an empty set.
var ErrInvalidScopeNames = errors.New("invalid scope names")

// ParseNames accepts scope names as either a JSON array
// (`["a","b"]`) or a comma-separated string (`a,b`). Blank entries are
// dropped; an empty input yields an empty set.
func ParseNames(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, errors.Wrap(ErrInvalidScopeNames, err.Error())
		}
		return trimBlank(names), nil
	}

	if strings.HasPrefix(raw, "{") {
		return nil, ErrInvalidScopeNames
	}
	return trimBlank(strings.Split(raw, ",")), nil
}

func trimBlank(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
