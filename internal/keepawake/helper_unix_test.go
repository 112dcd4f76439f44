//go:build linux || darwin

package keepawake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartHelperReleaseStopsProcess(t *testing.T) {
	t.Parallel()

	release, err := startHelper("sleep", "60")
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestStartHelperMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := startHelper("citearchive-no-such-helper")
	require.Error(t, err)
}
