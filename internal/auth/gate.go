package auth

import "context"

// Gate composes token resolution and permission evaluation for protected
// entry points. It keeps no state between calls.
type Gate struct {
	resolver  *SessionResolver
	evaluator *Evaluator
}

func NewGate(resolver *SessionResolver, evaluator *Evaluator) *Gate {
	return &Gate{resolver: resolver, evaluator: evaluator}
}

// Authenticate resolves the caller without a permission requirement.
func (g *Gate) Authenticate(ctx context.Context, token string) (*User, error) {
	return g.resolver.Resolve(ctx, token)
}

// Check resolves token and requires (resource, action). It returns
// ErrInvalidToken when the caller is unknown and a Denied error naming the pair
// when the caller lacks the grant.
func (g *Gate) Check(ctx context.Context, token, resource string, action Action) (*User, error) {
	user, err := g.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := g.Require(ctx, user, resource, action); err != nil {
		return nil, err
	}
	return user, nil
}

// Require evaluates an already-resolved user.
func (g *Gate) Require(ctx context.Context, user *User, resource string, action Action) error {
	ok, err := g.evaluator.Authorize(ctx, user, resource, action)
	if err != nil {
		return err
	}
	if !ok {
		return Denied(resource, action)
	}
	return nil
}
