package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAllowEnforcesBurst exhausts the bucket for one client only.
func TestAllowEnforcesBurst(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 2})
	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))

	require.True(t, l.Allow("10.0.0.2"))
}

// TestZeroRPSDisablesThrottling treats non-positive rates as unlimited.
func TestZeroRPSDisablesThrottling(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("client"))
	}
}
