package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleMember, ActionRead, true},
		{RoleMember, ActionWrite, true},
		{RoleMember, ActionInvite, true},
		{RoleMember, ActionListMembers, true},
		{RoleMember, ActionRemoveMember, false},
		{RoleMember, ActionCleanupInvites, false},
		{RoleOwner, ActionRead, true},
		{RoleOwner, ActionInvite, true},
		{RoleOwner, ActionRemoveMember, true},
		{RoleOwner, ActionCleanupInvites, true},
		{Role("stranger"), ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			got, err := a.Allowed(tt.role, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	assert.NoError(t, a.Check(RoleOwner, ActionRemoveMember))
	assert.ErrorIs(t, a.Check(RoleMember, ActionRemoveMember), ErrForbidden)
}
