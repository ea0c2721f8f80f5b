package server

import (
	"context"
	"fmt"
	"net"

	"github.com/mdlayher/vsock"
	"golang.org/x/sync/errgroup"
)

type fiberApp interface {
	Shutdown() error
	Listen(addr string) error
	Listener(listener net.Listener) error
}

// RunFiber runs a fiber server on a TCP address until ctx is done.
func RunFiber(ctx context.Context, fiberApp fiberApp, addr string, group *errgroup.Group) {
	group.Go(func() error {
		if err := fiberApp.Listen(addr); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	shutdownOnDone(ctx, fiberApp, group)
}

// RunFiberWithListener runs a fiber server on listener until ctx is done.
func RunFiberWithListener(ctx context.Context, fiberApp fiberApp, listener net.Listener, group *errgroup.Group) {
	group.Go(func() error {
		if err := fiberApp.Listener(listener); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	shutdownOnDone(ctx, fiberApp, group)
}

// RunFiberVsock runs a fiber server on a vsock port of the local context ID,
// which is how callers outside an enclave reach the service.
func RunFiberVsock(ctx context.Context, fiberApp fiberApp, port uint32, group *errgroup.Group) error {
	listener, err := vsock.Listen(port, nil)
	if err != nil {
		return fmt.Errorf("failed to listen on vsock port %d: %w", port, err)
	}
	RunFiberWithListener(ctx, fiberApp, listener, group)
	return nil
}

func shutdownOnDone(ctx context.Context, fiberApp fiberApp, group *errgroup.Group) {
	group.Go(func() error {
		<-ctx.Done()
		if err := fiberApp.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})
}
