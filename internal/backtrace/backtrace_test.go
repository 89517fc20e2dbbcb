package backtrace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func capturer() []uintptr { return Capture(0) }

func TestCaptureNonEmpty(t *testing.T) {
	pcs := capturer()
	require.NotEmpty(t, pcs)
	require.LessOrEqual(t, len(pcs), MaxFrames)
}

func TestFormatProducesOneLinePerFrame(t *testing.T) {
	pcs := capturer()
	lines := Format(pcs)
	require.Len(t, lines, len(pcs))
}

func TestFormatEmpty(t *testing.T) {
	require.Nil(t, Format(nil))
}
