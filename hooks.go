package beanctx

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// RegisterShutdownHook closes the context once ctx is done. The returned stop func
// detaches the hook without closing the context.
func (c *ApplicationContext) RegisterShutdownHook(ctx context.Context) (stop func()) {
	detached := make(chan struct{})
	stop = sync.OnceFunc(func() { close(detached) })

	go func() {
		select {
		case <-ctx.Done():
			// stop may race with ctx cancellation; detaching always wins.
			select {
			case <-detached:
				return
			default:
			}
			c.logger.Debug("shutdown hook triggered", zap.Error(context.Cause(ctx)))
			if err := c.Close(); err != nil {
				c.logger.Error("close on shutdown", zap.Error(err))
			}
		case <-detached:
		}
	}()
	return stop
}

// NotifyShutdown ties Close to process signals, SIGINT and SIGTERM when none are
// given. Calling the returned func detaches the hook and restores default signal
// handling.
func (c *ApplicationContext) NotifyShutdown(signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	detach := c.RegisterShutdownHook(ctx)
	return sync.OnceFunc(func() {
		detach()
		cancel()
	})
}
