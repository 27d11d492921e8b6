// Package authz decides what a household role may do.
package authz

import (
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Role is a principal's standing within one household.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Action is an operation on an open household.
type Action string

const (
	ActionRead           Action = "read"
	ActionWrite          Action = "write"
	ActionInvite         Action = "invite"
	ActionListMembers    Action = "list_members"
	ActionRemoveMember   Action = "remove_member"
	ActionCleanupInvites Action = "cleanup_invites"
)

// ErrForbidden is returned by Check when the role lacks the action.
var ErrForbidden = errors.New("action not permitted for role")

// DefaultModel is a plain role/action ACL. The owner inherits every member
// permission through the role hierarchy.
var DefaultModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act
`

var defaultPolicy = []struct {
	role   Role
	action Action
}{
	{RoleMember, ActionRead},
	{RoleMember, ActionWrite},
	{RoleMember, ActionInvite},
	{RoleMember, ActionListMembers},
	{RoleOwner, ActionRemoveMember},
	{RoleOwner, ActionCleanupInvites},
}

// Authorizer evaluates role permissions with casbin.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// New builds an Authorizer loaded with the default household policy.
func New() (*Authorizer, error) {
	m, err := model.NewModelFromString(DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authz model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	for _, p := range defaultPolicy {
		if _, err := enforcer.AddPolicy(string(p.role), string(p.action)); err != nil {
			return nil, fmt.Errorf("failed to add policy: %w", err)
		}
	}
	if _, err := enforcer.AddGroupingPolicy(string(RoleOwner), string(RoleMember)); err != nil {
		return nil, fmt.Errorf("failed to add role hierarchy: %w", err)
	}

	return &Authorizer{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform action.
func (a *Authorizer) Allowed(role Role, action Action) (bool, error) {
	return a.enforcer.Enforce(string(role), string(action))
}

// Check returns ErrForbidden unless role may perform action.
func (a *Authorizer) Check(role Role, action Action) error {
	ok, err := a.Allowed(role, action)
	if err != nil {
		return fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot %s", ErrForbidden, role, action)
	}
	return nil
}
