// Package lock serializes enrollment commits per identity.
package lock

import (
	"context"
	"fmt"

	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
	vsync "voxid/pkg/platform/sync"
)

// Locker hands out per-identity exclusive sections. The returned unlock
// function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, identityID id.IdentityID) (unlock func(), err error)
}

// Local serializes within one process.
type Local struct {
	mu *vsync.ShardedMutex
}

func NewLocal() *Local {
	return &Local{mu: vsync.NewShardedMutex()}
}

func (l *Local) Lock(ctx context.Context, identityID id.IdentityID) (func(), error) {
	key := identityID.String()
	if err := l.mu.LockContext(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrLockTimeout, err)
	}
	return func() { l.mu.Unlock(key) }, nil
}
