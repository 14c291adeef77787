package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HRM_SECRET_KEY", "s3cret")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, ":9090", cfg.GRPCAddr)
	require.Equal(t, "HS256", cfg.Algorithm)
	require.Equal(t, 30*time.Minute, cfg.AccessTTL())
	require.Equal(t, "argon2id", cfg.PasswordHash)
	require.Equal(t, 12, cfg.BcryptCost)
	require.Equal(t, 20, cfg.RateBurst)
	require.Equal(t, 10, cfg.RatePerSec)
	require.False(t, cfg.TrustProxy)
	require.Equal(t, "seed/permissions.yaml", cfg.SeedFile)
	require.Empty(t, cfg.DSN())
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("HRM_SECRET_KEY", "s3cret")
	t.Setenv("HRM_ALGORITHM", "hs512")
	t.Setenv("HRM_ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("HRM_PASSWORD_HASH", "BCRYPT")
	t.Setenv("HRM_DATABASE_HOST", "db")
	t.Setenv("HRM_DATABASE_USERNAME", "hr")
	t.Setenv("HRM_DATABASE_PASSWORD", "p@ss")
	t.Setenv("HRM_DATABASE_NAME", "hrms")
	t.Setenv("HRM_TRUST_PROXY", "true")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	require.True(t, cfg.TrustProxy)
	require.Equal(t, "HS512", cfg.Algorithm)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL())
	require.Equal(t, "bcrypt", cfg.PasswordHash)
	require.Equal(t, "postgres://hr:p%40ss@db:5432/hrms?sslmode=disable", cfg.DSN())

	t.Setenv("HRM_DATABASE_URL", "postgres://explicit/db")
	cfg, err = LoadFile("")
	require.NoError(t, err)
	require.Equal(t, "postgres://explicit/db", cfg.DSN())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HRM_SECRET_KEY=from-file\nHRM_LOG_LEVEL=debug\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.SecretKey)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":    {},
		"bad algorithm":     {"HRM_SECRET_KEY": "x", "HRM_ALGORITHM": "RS256"},
		"zero ttl":          {"HRM_SECRET_KEY": "x", "HRM_ACCESS_TOKEN_EXPIRE_MINUTES": "0"},
		"bad hash scheme":   {"HRM_SECRET_KEY": "x", "HRM_PASSWORD_HASH": "md5"},
		"bcrypt cost":       {"HRM_SECRET_KEY": "x", "HRM_BCRYPT_COST": "40"},
		"non-positive rate": {"HRM_SECRET_KEY": "x", "HRM_RATE_BURST": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HRM_SECRET_KEY", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			require.Error(t, err)
			require.Contains(t, err.Error(), "config:")
		})
	}
}
