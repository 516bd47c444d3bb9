package store

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Connectivity tracks whether the shared counter store is reachable. Reads are
// atomic; a read racing a transition may observe the previous state.
type Connectivity struct {
	connected atomic.Bool
	logger    *zap.Logger
	onChange  func(connected bool)
}

// NewConnectivity creates a connectivity flag in the disconnected state.
func NewConnectivity(logger *zap.Logger, onChange func(connected bool)) *Connectivity {
	if onChange == nil {
		onChange = func(bool) {}
	}

	return &Connectivity{logger: logger, onChange: onChange}
}

// Connected reports the current state.
func (c *Connectivity) Connected() bool {
	return c.connected.Load()
}

// MarkConnected records a successful interaction and reports whether the state changed.
func (c *Connectivity) MarkConnected() bool {
	if !c.connected.CompareAndSwap(false, true) {
		return false
	}

	c.logger.Info("rate limit store connected, using redis")
	c.onChange(true)

	return true
}

// MarkDisconnected records a failure and reports whether the state changed.
func (c *Connectivity) MarkDisconnected(cause error) bool {
	if !c.connected.CompareAndSwap(true, false) {
		return false
	}

	c.logger.Warn("rate limit store disconnected, using in-process counters", zap.Error(cause))
	c.onChange(false)

	return true
}

// Hook returns a go-redis hook that feeds connection events into c.
func (c *Connectivity) Hook() redis.Hook {
	return connectivityHook{state: c}
}

type connectivityHook struct {
	state *Connectivity
}

func (h connectivityHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.state.MarkDisconnected(err)

			return nil, err
		}

		h.state.MarkConnected()

		return conn, nil
	}
}

func (h connectivityHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if isConnectionError(err) {
			h.state.MarkDisconnected(err)
		}

		return err
	}
}

func (h connectivityHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if isConnectionError(err) {
			h.state.MarkDisconnected(err)
		}

		return err
	}
}

// isConnectionError separates transport failures from server replies such as
// redis.Nil or a script error.
func isConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return false
	}

	return true
}
