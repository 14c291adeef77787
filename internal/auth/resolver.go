package auth

import (
	"context"
	"errors"
	"fmt"
)

// SessionResolver maps a bearer token back to the live user record.
//
// Account status is not re-checked: a token stays usable for its
// whole lifetime even if the account is deactivated after issuance.
type SessionResolver struct {
	codec *TokenCodec
	users UserStore
}

func NewSessionResolver(codec *TokenCodec, users UserStore) *SessionResolver {
	return &SessionResolver{codec: codec, users: users}
}

// Resolve returns the user named by token's subject. Any verification failure,
// and a subject that no longer exists, yields ErrInvalidToken.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*User, error) {
	username, err := r.codec.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := r.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolve subject: %w", err)
	}
	return user, nil
}
