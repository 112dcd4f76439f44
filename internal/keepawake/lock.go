// Package keepawake stops the machine from idle-sleeping while a long batch
// runs. The lock is scoped: Release restores normal power management and is
// safe to call more than once.
package keepawake

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Lock is a held keep-awake request.
type Lock struct {
	once    sync.Once
	release func() error
	logger  *zap.Logger
}

// Acquire asks the operating system to keep the machine awake. On platforms
// without support, or when the helper is missing, it returns a no-op lock
// and logs at debug level.
func Acquire(ctx context.Context, logger *zap.Logger) *Lock {
	if logger == nil {
		logger = zap.NewNop()
	}
	release, err := acquire(ctx)
	if err != nil {
		logger.Debug("keep-awake unavailable", zap.Error(err))
		return &Lock{logger: logger}
	}
	logger.Debug("keep-awake acquired")
	return &Lock{release: release, logger: logger}
}

// Disabled returns a lock that holds nothing.
func Disabled() *Lock {
	return &Lock{logger: zap.NewNop()}
}

// Held reports whether the lock holds an operating system request.
func (l *Lock) Held() bool {
	return l != nil && l.release != nil
}

// Release returns the machine to normal power management.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.release == nil {
			return
		}
		if err := l.release(); err != nil {
			l.logger.Warn("release keep-awake", zap.Error(err))
			return
		}
		l.logger.Debug("keep-awake released")
	})
}
