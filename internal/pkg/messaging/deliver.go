package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/shandysiswandi/finadvise/internal/pkg/stacktrace"
)

// settleOnce makes Ack/Nack idempotent across handler and auto-ack.
type settleOnce struct {
	done atomic.Bool
}

func (s *settleOnce) first() bool { return !s.done.Swap(true) }

func (s *settleOnce) settled() bool { return s.done.Load() }

type settleable interface {
	Message
	settled() bool
}

// deliver runs handler with panic recovery and, when autoAck is set and the
// handler did not settle the message itself, acks or nacks it. Handler errors
// are logged; only a failed ack/nack is returned.
func deliver(ctx context.Context, driver string, msg settleable, handler Handler, autoAck bool) error {
	herr := callHandler(ctx, driver, msg, handler)
	if herr != nil {
		slog.WarnContext(ctx, "message handler failed", "driver", driver, "topic", msg.Topic(), "id", msg.ID(), "error", herr)
	}

	if !autoAck || msg.settled() {
		return nil
	}

	if herr != nil {
		return msg.Nack(ctx)
	}
	return msg.Ack(ctx)
}

func callHandler(ctx context.Context, driver string, msg Message, handler Handler) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}
		stack := debug.Stack()
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "panic", rvr, "stack", paths)
		} else {
			slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "panic", rvr, "stack", string(stack))
		}
		err = fmt.Errorf("messaging: panic in %s handler: %v", driver, rvr)
	}()

	return handler(ctx, msg)
}
