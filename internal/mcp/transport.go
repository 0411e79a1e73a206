package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/koopa0/toolhub/internal/log"
)

// receivePollInterval is how long the message loop waits between queue polls
// when no message is buffered, so it notices shutdown promptly while idle.
const receivePollInterval = 500 * time.Millisecond

// Handler processes one raw incoming message and returns the response to
// send back, or nil when nothing should be sent (notifications).
type Handler func(ctx context.Context, raw json.RawMessage) *Response

// Transport moves JSON-RPC messages between the server and a single client.
type Transport interface {
	// Start makes the transport ready to produce and accept messages.
	Start(ctx context.Context) error

	// Stop shuts the transport down. Safe to call more than once.
	Stop() error

	// Send writes one message. Frames are never interleaved.
	Send(ctx context.Context, msg any) error

	// Receive pops the next buffered incoming message without blocking.
	// ok is false when no message is currently available.
	Receive() (raw json.RawMessage, ok bool)

	// Running reports whether the transport still accepts input.
	Running() bool
}

// RunMessageLoop drains the transport one message at a time, feeding each
// through handle and sending whatever it returns. Messages are processed
// strictly in receipt order, one in flight at a time, so responses leave in
// the same order requests arrived.
//
// The loop ends when the context is canceled or when the transport has
// stopped accepting input and the buffered backlog is drained. Handler and
// send failures are logged and the loop keeps going; they never kill the
// session. The transport is always stopped before returning.
func RunMessageLoop(ctx context.Context, t Transport, handle Handler, logger log.Logger) error {
	defer func() {
		if err := t.Stop(); err != nil {
			logger.Error("stopping transport", "error", err)
		}
	}()

	ticker := time.NewTicker(receivePollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			logger.Info("message loop canceled")
			return nil
		}

		raw, ok := t.Receive()
		if !ok {
			// Input is done and the backlog is empty: normal shutdown.
			if !t.Running() {
				logger.Info("message loop finished")
				return nil
			}
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
			continue
		}

		resp := handle(ctx, raw)
		if resp == nil {
			continue
		}
		if err := t.Send(ctx, resp); err != nil {
			logger.Error("sending response", "error", err)
		}
	}
}
