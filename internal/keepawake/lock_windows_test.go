//go:build windows

package keepawake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseOnPinnedThread(t *testing.T) {
	t.Parallel()

	release, err := acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestSetExecutionStateContinuous(t *testing.T) {
	t.Parallel()

	require.NoError(t, setExecutionState(esContinuous))
}
