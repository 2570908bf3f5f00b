// Package alert delivers execution events to whatever channel the deployment
// wires in. Delivery is best-effort by design: a stalled notifier must never
// block order execution, so the broker calls Send with a short timeout and
// logs failures instead of propagating them.
package alert

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier pushes one human-readable event message.
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, msg string) error

func (f Func) Send(ctx context.Context, msg string) error { return f(ctx, msg) }

// LogNotifier writes events to the structured log. It is the default sink
// when no external channel is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Send(_ context.Context, msg string) error {
	n.Log.Info().Str("component", "alert").Msg(msg)
	return nil
}
