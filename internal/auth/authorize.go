package auth

import (
	"context"
	"fmt"
)

// GrantSource returns the (resource, action) pairs assigned to a role.
type GrantSource interface {
	GrantsForRole(ctx context.Context, roleID int64) ([]Grant, error)
}

// Evaluator decides whether a user may perform action on resource.
type Evaluator struct {
	grants GrantSource
}

func NewEvaluator(grants GrantSource) *Evaluator {
	return &Evaluator{grants: grants}
}

// Authorize returns the verdict for (user, resource, action). Superusers are
// allowed without a lookup; users without a role are denied. The error is
// non-nil only when the role's grants could not be loaded.
func (e *Evaluator) Authorize(ctx context.Context, user *User, resource string, action Action) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	if user.RoleID == nil {
		return false, nil
	}
	grants, err := e.grants.GrantsForRole(ctx, *user.RoleID)
	if err != nil {
		return false, fmt.Errorf("load role grants: %w", err)
	}
	return Allowed(grants, resource, action), nil
}

// Allowed scans grants for an exact (resource, action) match.
func Allowed(grants []Grant, resource string, action Action) bool {
	for _, g := range grants {
		if g.Resource == resource && g.Action == action {
			return true
		}
	}
	return false
}
