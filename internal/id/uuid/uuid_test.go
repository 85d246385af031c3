package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestNewRawIDProducesV7 generates parseable, time-ordered identifiers.
func TestNewRawIDProducesV7(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	raw, err := gen.NewRawID()
	require.NoError(t, err)
	require.Equal(t, guuid.Version(7), raw.Version())

	parsed, err := guuid.Parse(raw.String())
	require.NoError(t, err)
	require.Equal(t, raw, parsed)
}
