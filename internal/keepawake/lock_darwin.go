//go:build darwin

package keepawake

import (
	"context"
	"os"
	"strconv"
)

// caffeinate -w also exits on its own if this process dies without releasing.
func acquire(_ context.Context) (func() error, error) {
	return startHelper("caffeinate", "-i", "-w", strconv.Itoa(os.Getpid()))
}
