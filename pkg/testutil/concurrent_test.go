package testutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"voxid/pkg/platform/sentinel"
)

func TestRunConcurrent(t *testing.T) {
	res := RunConcurrent(8, func(idx int) error {
		switch idx % 4 {
		case 0:
			return nil
		case 1:
			return fmt.Errorf("profile: %w", sentinel.ErrConflict)
		case 2:
			return fmt.Errorf("identity: %w", sentinel.ErrNotFound)
		default:
			return errors.New("boom")
		}
	})

	assert.Equal(t, int32(2), res.Successes)
	assert.Equal(t, int32(2), res.Conflicts)
	assert.Equal(t, int32(2), res.NotFounds)
	assert.Equal(t, int32(2), res.Errors)
	assert.Equal(t, int32(8), res.Total())
}
