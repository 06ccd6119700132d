package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOperators(t *testing.T) {
	ops := ParseOperators(" user_admin, ,scheduler ,")

	assert.Len(t, ops, 2)
	assert.True(t, ops.Allows(AuthenticatedUser{UserID: "user_admin"}))
	assert.True(t, ops.Allows(AuthenticatedUser{UserID: "scheduler"}))
	assert.False(t, ops.Allows(AuthenticatedUser{UserID: "member"}))
	assert.False(t, ops.Allows(AuthenticatedUser{}))
}

func TestEmptyOperatorsAllowNobody(t *testing.T) {
	assert.False(t, ParseOperators("").Allows(AuthenticatedUser{UserID: "user_admin"}))
	assert.False(t, Operators(nil).Allows(AuthenticatedUser{UserID: "user_admin"}))
}
