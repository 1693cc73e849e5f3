package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresOnlySigningSecret(t *testing.T) {
	t.Setenv("EDUPORT_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "test-secret", cfg.JWTSecret)
	require.Equal(t, "EduPort API", cfg.AppName)
	require.Equal(t, 4, cfg.GradebookConcurrency)
	require.Equal(t, 512, cfg.OfflineQuotaMB)
}

func TestLoadFailsWithoutSigningSecret(t *testing.T) {
	t.Setenv("EDUPORT_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}
