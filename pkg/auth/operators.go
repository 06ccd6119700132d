package auth

import "strings"

// Operators is the set of user ids allowed to manage rule definitions and run
// member-wide award checks.
type Operators map[string]struct{}

// NewOperators builds an Operators set, ignoring blank ids.
func NewOperators(ids []string) Operators {
	ops := make(Operators, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			ops[id] = struct{}{}
		}
	}
	return ops
}

// ParseOperators splits a comma separated id list such as "user_a, user_b".
func ParseOperators(raw string) Operators {
	return NewOperators(strings.Split(raw, ","))
}

// Allows reports whether user is an operator. An empty set allows nobody.
func (o Operators) Allows(user AuthenticatedUser) bool {
	if user.UserID == "" {
		return false
	}
	_, ok := o[user.UserID]
	return ok
}

