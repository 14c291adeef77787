package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeStore struct {
	Store

	users     map[string]*User
	grants    map[int64][]Grant
	saveErr   error
	lookupErr error
	saves     int
}

func newFakeStore(users ...*User) *fakeStore {
	s := &fakeStore{users: map[string]*User{}, grants: map[int64][]Grant{}}
	for _, u := range users {
		if u.ID == "" {
			u.ID = u.Username
		}
		s.users[u.Username] = u
	}
	return s
}

func (s *fakeStore) FindByUsername(_ context.Context, username string) (*User, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	u, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *fakeStore) byID(id string) (*User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) TouchLastActive(_ context.Context, id string, at time.Time) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	u, err := s.byID(id)
	if err != nil {
		return err
	}
	u.LastActive = &at
	return nil
}

func (s *fakeStore) SetPasswordHash(_ context.Context, id, hash string) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	u, err := s.byID(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (s *fakeStore) GrantsForRole(_ context.Context, roleID int64) ([]Grant, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.grants[roleID], nil
}

func mustHash(t *testing.T, h *PasswordHasher, password string) string {
	t.Helper()
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return hash
}

func TestPasswordHasherArgon2id(t *testing.T) {
	h := NewPasswordHasher(SchemeArgon2id, 0)
	hash := mustHash(t, h, "correct horse")
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=2,p=1$") {
		t.Fatalf("unexpected encoding: %s", hash)
	}
	if !h.Verify("correct horse", hash) {
		t.Fatalf("expected password to verify")
	}
	if h.Verify("correct horse!", hash) {
		t.Fatalf("wrong password verified")
	}
	other := mustHash(t, h, "correct horse")
	if other == hash {
		t.Fatalf("expected a fresh salt per hash")
	}
}

func TestPasswordHasherBcrypt(t *testing.T) {
	h := NewPasswordHasher(SchemeBcrypt, 4)
	hash := mustHash(t, h, "secret-pw")
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected bcrypt encoding: %s", hash)
	}
	// verification accepts either encoding regardless of the configured scheme
	argon := NewPasswordHasher(SchemeArgon2id, 0)
	if !argon.Verify("secret-pw", hash) {
		t.Fatalf("bcrypt hash did not verify under argon2id hasher")
	}
}

func TestPasswordHasherMalformed(t *testing.T) {
	h := NewPasswordHasher("", 0)
	for _, hash := range []string{"", "plaintext", "$argon2id$v=19$m=0,t=2,p=1$AAAA$AAAA", "$argon2id$v=19$broken", "$2b$10$short"} {
		if h.Verify("anything", hash) {
			t.Fatalf("malformed hash %q verified", hash)
		}
	}
	if _, err := h.Hash(""); err == nil {
		t.Fatalf("expected error hashing empty password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	codec, err := NewTokenCodec("s3cret", "HS256", 0)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	if codec.TTL() != DefaultTokenTTL {
		t.Fatalf("expected default ttl, got %v", codec.TTL())
	}
	token, exp, err := codec.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if d := time.Until(exp); d <= 29*time.Minute || d > 30*time.Minute {
		t.Fatalf("unexpected expiry window: %v", d)
	}
	sub, err := codec.Verify(token)
	if err != nil || sub != "alice" {
		t.Fatalf("Verify: sub=%q err=%v", sub, err)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	codec, err := NewTokenCodec("s3cret", "HS256", time.Minute, WithClock(clock))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, err := codec.Issue("alice", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now = now.Add(59 * time.Second)
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}

	expired, _, err := codec.Issue("alice", -time.Second)
	if err != nil {
		t.Fatalf("Issue negative ttl: %v", err)
	}
	if _, err := codec.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("negative ttl token verified: %v", err)
	}
}

func TestTokenRejectsTamperingAndForeignAlgorithms(t *testing.T) {
	codec, err := NewTokenCodec("s3cret", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, err := codec.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	otherKey, _ := NewTokenCodec("different", "HS256", time.Minute)
	foreign, _, _ := otherKey.Issue("alice", 0)

	hs512, _ := NewTokenCodec("s3cret", "HS512", time.Minute)
	wrongAlg, _, _ := hs512.Issue("alice", 0)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign without exp: %v", err)
	}

	for name, tok := range map[string]string{
		"tampered":  tampered,
		"other key": foreign,
		"HS512":     wrongAlg,
		"none":      none,
		"no exp":    noExp,
		"garbage":   "not-a-token",
		"empty":     "",
	} {
		if _, err := codec.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewTokenCodecValidation(t *testing.T) {
	if _, err := NewTokenCodec("", "HS256", 0); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenCodec("x", "RS256", 0); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
	if _, _, err := mustCodec(t).Issue(" ", 0); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func mustCodec(t *testing.T) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec("s3cret", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return c
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserFromContext(ctx); ok {
		t.Fatalf("unexpected user in empty context")
	}
	ctx = ContextWithUser(ctx, &User{Username: "alice"})
	ctx = ContextWithToken(ctx, "tok")
	u, ok := UserFromContext(ctx)
	if !ok || u.Username != "alice" {
		t.Fatalf("unexpected user: %+v ok=%v", u, ok)
	}
	if tok, ok := TokenFromContext(ctx); !ok || tok != "tok" {
		t.Fatalf("unexpected token: %q ok=%v", tok, ok)
	}
}

func TestErrorKinds(t *testing.T) {
	err := Denied("department", ActionCreate)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Denied should match ErrPermissionDenied")
	}
	if err.Error() != "Permission denied: create on department" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	wrapped := errors.Join(errors.New("ctx"), ErrInvalidToken)
	if KindOf(wrapped) != KindInvalidToken {
		t.Fatalf("KindOf lost the kind through wrapping")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("foreign errors must be internal")
	}
	if _, err := ParseAction("approve"); KindOf(err) != KindValidation {
		t.Fatalf("unknown action must be a validation error, got %v", err)
	}
	if a, err := ParseAction(" LIST "); err != nil || a != ActionList {
		t.Fatalf("ParseAction normalisation: %v %v", a, err)
	}
}
