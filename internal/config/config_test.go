package config_test

import (
	"testing"

	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresStateSigningKey(t *testing.T) {
	t.Setenv("STATE_SIGNING_KEY", "")
	t.Setenv("SESSION_SIGNING_KEY", "session-secret")

	_, err := config.New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "STATE_SIGNING_KEY")
}

func TestNewRequiresSessionSigningKey(t *testing.T) {
	t.Setenv("STATE_SIGNING_KEY", "state-secret")
	t.Setenv("SESSION_SIGNING_KEY", "")

	_, err := config.New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SESSION_SIGNING_KEY")
}

func TestNewWithSigningKeysSet(t *testing.T) {
	t.Setenv("STATE_SIGNING_KEY", "state-secret")
	t.Setenv("SESSION_SIGNING_KEY", "session-secret")

	cfg, err := config.New()
	require.NoError(t, err)
	require.Equal(t, "state-secret", cfg.GetStateSigningKey())
	require.Equal(t, "session-secret", cfg.GetSessionSigningKey())
}
