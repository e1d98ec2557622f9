package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// withSignals returns a context cancelled on SIGTERM. SIGINT is first offered
// to interrupt, which reports whether it consumed the signal; unconsumed
// interrupts cancel the context too.
func withSignals(parent context.Context, interrupt func() bool) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go routeSignals(ctx, sigs, interrupt, cancel)

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}

func routeSignals(ctx context.Context, sigs <-chan os.Signal, interrupt func() bool, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == os.Interrupt && interrupt != nil && interrupt() {
				continue
			}
			cancel()
			return
		}
	}
}
