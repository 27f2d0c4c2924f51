//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"voxid/internal/voice/store/lock"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	client *goredis.Client
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	rc := containers.GetManager().GetRedis(s.T())
	opts, err := goredis.ParseURL(rc.URL)
	s.Require().NoError(err)
	s.client = goredis.NewClient(opts)
}

func (s *RedisLockSuite) TearDownSuite() {
	_ = s.client.Close()
}

func (s *RedisLockSuite) TestSecondHolderWaitsForRelease() {
	locker := lock.NewRedis(s.client, lock.WithPollInterval(5*time.Millisecond))
	identityID := id.NewIdentityID()

	unlock, err := locker.Lock(context.Background(), identityID)
	s.Require().NoError(err)

	acquired := make(chan struct{})
	go func() {
		unlock2, err := locker.Lock(context.Background(), identityID)
		if err == nil {
			unlock2()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		s.Fail("lock acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		s.Fail("waiter never acquired the lock")
	}
}

func (s *RedisLockSuite) TestTimeout() {
	locker := lock.NewRedis(s.client)
	identityID := id.NewIdentityID()
	unlock, err := locker.Lock(context.Background(), identityID)
	s.Require().NoError(err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, identityID)
	s.ErrorIs(err, sentinel.ErrLockTimeout)
}

func (s *RedisLockSuite) TestExpiredHolderCannotReleaseNewOwner() {
	locker := lock.NewRedis(s.client, lock.WithTTL(50*time.Millisecond), lock.WithPollInterval(5*time.Millisecond))
	identityID := id.NewIdentityID()

	staleUnlock, err := locker.Lock(context.Background(), identityID)
	s.Require().NoError(err)
	time.Sleep(80 * time.Millisecond)

	freshLocker := lock.NewRedis(s.client, lock.WithTTL(5*time.Second))
	freshUnlock, err := freshLocker.Lock(context.Background(), identityID)
	s.Require().NoError(err)
	defer freshUnlock()

	staleUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, identityID)
	s.ErrorIs(err, sentinel.ErrLockTimeout, "fresh owner must still hold the lock")
}
