package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Authenticator verifies username/password credentials.
type Authenticator struct {
	users  UserStore
	hasher *PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthenticator wires an Authenticator. A nil logger discards bookkeeping warnings.
func NewAuthenticator(users UserStore, hasher *PasswordHasher, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authenticator{users: users, hasher: hasher, logger: logger, now: time.Now}
}

// Authenticate returns the user when the credentials match an active account.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials; a
// correct password on a non-active account yields ErrAccountLocked.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !a.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, ErrAccountLocked
	}

	now := a.now().UTC()
	if err := a.users.TouchLastActive(ctx, user.ID, now); err != nil {
		a.logger.WarnContext(ctx, "last_active update failed",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastActive = &now
	}
	return user, nil
}
