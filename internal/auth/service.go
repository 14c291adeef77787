package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// MinPasswordLength is enforced on password changes.
const MinPasswordLength = 8

// TokenTypeBearer is reported alongside every issued access token.
const TokenTypeBearer = "bearer"

// Token is the login result handed back to clients.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// Service is the entry point route handlers use for login, identity and
// password changes. It owns the core components and exposes the gate.
type Service struct {
	users         UserStore
	hasher        *PasswordHasher
	codec         *TokenCodec
	authenticator *Authenticator
	gate          *Gate
	logger        *slog.Logger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithLogger sets the logger used for bookkeeping warnings.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthClock overrides the authenticator's time source.
func WithAuthClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.authenticator.now = fn
		}
	}
}

// NewService wires the auth core over store.
func NewService(store Store, hasher *PasswordHasher, codec *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if hasher == nil || codec == nil {
		return nil, errors.New("auth: hasher and token codec are required")
	}
	s := &Service{
		users:  store,
		hasher: hasher,
		codec:  codec,
		logger: slog.New(slog.DiscardHandler),
	}
	s.authenticator = NewAuthenticator(store, hasher, nil)
	s.gate = NewGate(NewSessionResolver(codec, store), NewEvaluator(store))
	for _, opt := range opts {
		opt(s)
	}
	s.authenticator.logger = s.logger
	return s, nil
}

// Gate returns the authorization gate shared by protected routes.
func (s *Service) Gate() *Gate { return s.gate }

// Login authenticates the credentials and issues an access token with the default TTL.
func (s *Service) Login(ctx context.Context, username, password string) (Token, *User, error) {
	user, err := s.authenticator.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, nil, err
	}
	access, expiresAt, err := s.codec.Issue(user.Username, 0)
	if err != nil {
		return Token{}, nil, err
	}
	return Token{AccessToken: access, TokenType: TokenTypeBearer, ExpiresAt: expiresAt}, user, nil
}

// Me resolves the bearer token to the caller's profile.
func (s *Service) Me(ctx context.Context, token string) (Profile, error) {
	user, err := s.gate.Authenticate(ctx, token)
	if err != nil {
		return Profile{}, err
	}
	return user.Profile(), nil
}

// ChangePassword re-hashes newPassword for user. The new password must differ
// from the current one and be at least MinPasswordLength characters.
func (s *Service) ChangePassword(ctx context.Context, user *User, newPassword string) error {
	if user == nil {
		return ErrInvalidToken
	}
	if s.hasher.Verify(newPassword, user.PasswordHash) {
		return Validation("The password cannot be the same as the old one")
	}
	if len(newPassword) < MinPasswordLength {
		return Validationf("Password must be at least %d characters long.", MinPasswordLength)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("save password: %w", err)
	}
	user.PasswordHash = hash
	return nil
}
