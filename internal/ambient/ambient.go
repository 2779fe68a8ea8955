// Package ambient lowers other applications' audio while voxd speaks and
// puts it back afterwards. Every operation is best-effort: failures are
// logged and never reach the caller.
package ambient

import "context"

// Coordinator brackets a speech bout. Duck records and halves the volume of
// every other audio session; Unduck restores what Duck recorded.
type Coordinator interface {
	Duck(ctx context.Context)
	Unduck(ctx context.Context)
}

// Noop is the coordinator for platforms without a session volume API.
type Noop struct{}

// Duck does nothing.
func (Noop) Duck(context.Context) {}

// Unduck does nothing.
func (Noop) Unduck(context.Context) {}
