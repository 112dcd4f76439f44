//go:build !linux && !darwin && !windows

package keepawake

import (
	"context"
	"errors"
)

func acquire(_ context.Context) (func() error, error) {
	return nil, errors.New("keep-awake is not supported on this platform")
}
