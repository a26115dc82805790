package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFixed(start)
	require.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), clock.Now())
	require.Equal(t, time.UTC, clock.Location())
}

func TestStandardImpl(t *testing.T) {
	impl, err := NewStandardImpl("UTC")
	require.NoError(t, err)
	require.Equal(t, time.UTC, impl.Now().Location())

	_, err = NewStandardImpl("Not/AZone")
	require.Error(t, err)

	local, err := NewStandardImpl("")
	require.NoError(t, err)
	require.Equal(t, time.Local, local.Location())
}
