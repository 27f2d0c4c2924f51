package audit

import "context"

// Sink persists or forwards audit events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
