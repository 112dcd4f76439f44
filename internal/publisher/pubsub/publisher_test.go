package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishWithoutClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "runs", map[string]string{"run_id": "r"})
	require.ErrorContains(t, err, "not configured")
}

func TestDialRequiresProject(t *testing.T) {
	t.Parallel()

	_, _, err := Dial(context.Background(), "")
	require.ErrorContains(t, err, "project id is required")
}
