// Package store persists identity records.
package store

import (
	"context"
	"time"

	"voxid/pkg/requestcontext"
)

func nowFrom(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}
