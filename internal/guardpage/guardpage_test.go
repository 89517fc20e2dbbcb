package guardpage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProtectUnprotectRoundTrip(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	for slot := 0; slot < NumSlots; slot++ {
		require.NoError(t, r.Unprotect(slot))
		require.NoError(t, r.Protect(slot))
		require.NoError(t, r.Unprotect(slot))
	}
}

func TestContains(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	for slot := 0; slot < NumSlots; slot++ {
		require.True(t, r.Contains(r.Addr(slot)))
	}
	require.False(t, r.Contains(0))
	require.False(t, r.Contains(r.Addr(NumSlots-1)+uintptr(r.PageSize())))
}
