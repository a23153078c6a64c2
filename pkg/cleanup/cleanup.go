package cleanup

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lagerhq/lager/pkg/logging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type (
	Callback func(ctx context.Context, sig os.Signal) error

	// Handler runs callbacks, in registration order, when the process is asked to stop.
	Handler struct {
		mu        sync.Mutex
		callbacks []Callback
	}
)

func (h *Handler) OnKill(callback Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, callback)
}

// Execute runs every callback, even when some fail.
func (h *Handler) Execute(ctx context.Context, sig os.Signal) error {
	h.mu.Lock()
	callbacks := make([]Callback, len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	var err error
	for _, cb := range callbacks {
		err = multierr.Append(err, cb(ctx, sig))
	}
	return err
}

// Initialize returns a context that is cancelled once SIGINT, SIGTERM or SIGQUIT has been received
// and the callbacks have run. stop releases the signal handler.
func (h *Handler) Initialize(ctx context.Context) (_ context.Context, stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	log := logging.GetLogger(ctx).Named("cleanup")
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal", zap.Stringer("signal", sig))
			if err := h.Execute(context.WithoutCancel(ctx), sig); err != nil {
				log.Error("error executing cleanup", zap.Error(err))
			}
			cancel()
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}
}
