package authx

import (
	"fmt"
	"strings"
)

// AuthorizationLevel is the ordinal privilege tier of a principal or token.
type AuthorizationLevel int

const (
	LevelScopedTemporary AuthorizationLevel = iota
	LevelDefault
	LevelAdmin
)

// ParseLevel returns the level named s. Names are case-insensitive.
func ParseLevel(s string) (AuthorizationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scoped-temporary", "scoped":
		return LevelScopedTemporary, nil
	case "default":
		return LevelDefault, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return 0, newError(ErrCodeInvalidLevel, fmt.Errorf("unknown level %q", s))
	}
}

func (l AuthorizationLevel) String() string {
	switch l {
	case LevelScopedTemporary:
		return "scoped-temporary"
	case LevelDefault:
		return "default"
	case LevelAdmin:
		return "admin"
	default:
		return ""
	}
}

// Satisfies reports whether l grants at least required.
func (l AuthorizationLevel) Satisfies(required AuthorizationLevel) bool {
	return l >= required
}
