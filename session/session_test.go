package session_test

import (
	"testing"

	"github.com/blockzip/blockzip/session"
	"github.com/stretchr/testify/require"
)

func TestRegistryOpenGetClose(t *testing.T) {
	r := session.NewRegistry()

	s, err := r.Open("rank-0", "identity", "none", 0)
	require.NoError(t, err)
	require.Equal(t, "rank-0", s.Name())
	require.Equal(t, "identity", s.Plugin().Name())
	require.Equal(t, "none", s.Entropy().Name())

	got, ok := r.Get("rank-0")
	require.True(t, ok)
	require.Same(t, s, got)

	_, err = r.Open("rank-0", "identity", "none", 0)
	require.Error(t, err)

	r.Close("rank-0")
	_, ok = r.Get("rank-0")
	require.False(t, ok)
}

func TestRegistryOpenUnknownBackend(t *testing.T) {
	r := session.NewRegistry()

	_, err := r.Open("rank-0", "nope", "none", 0)
	require.Error(t, err)

	_, err = r.Open("rank-0", "identity", "nope", 0)
	require.Error(t, err)
}
