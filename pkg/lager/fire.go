package lager

import (
	"context"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/lagerhq/lager/pkg/logging"
	"go.uber.org/zap"
)

// Pending is the result of FireAsync.
type Pending struct {
	done chan struct{}
	args Args
	err  error
}

// Fire runs the hook of every plugin registered for event, in registration order, and returns
// the final argument list. Each hook receives the list returned by the previous one. The first
// failing hook stops the pipeline and its error is returned as a *HookError.
//
// Firing an event nothing listens to returns args unchanged.
func (inst *Instance) Fire(ctx context.Context, event string, args ...any) (Args, error) {
	inst.stats.fires.Inc()
	current := Args(args).Clone()

	participants := inst.pluginsFor(event)
	if len(participants) == 0 {
		return current, nil
	}

	log := inst.logger(ctx).With(zap.String("event", event), zap.String("fire_id", uuid.NewString()))
	log.Debug("firing", zap.Int("participants", len(participants)))

	for _, p := range participants {
		plog := log.With(zap.String("plugin", p.plugin))
		if err := ctx.Err(); err != nil {
			inst.stats.failures.Inc()
			plog.Debug("cancelled", zap.Error(err))
			return nil, NewHookError(p.plugin, event, err)
		}

		plog.Debug("starting", logging.DumpField("args", current...))
		next, err := inst.call(ctx, p, current)
		if err != nil {
			inst.stats.failures.Inc()
			plog.Debug("failed", zap.Error(err))
			return nil, NewHookError(p.plugin, event, err)
		}
		current = next
		plog.Debug("completed")
	}
	return current, nil
}

func (inst *Instance) call(ctx context.Context, p participant, args Args) (next Args, err error) {
	inst.stats.hookCalls.Inc()
	defer func() {
		if r := recover(); r != nil {
			next, err = nil, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	raw, err := p.hook(ctx, args...)
	if err != nil {
		return nil, err
	}
	return Normalize(ctx, raw, args, inst.resultPolicy)
}

// FireAsync runs Fire on its own goroutine. A hook may return the Pending of a nested event as
// its result; the pipeline then waits for it.
func (inst *Instance) FireAsync(ctx context.Context, event string, args ...any) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.args, p.err = inst.Fire(ctx, event, args...)
	}()
	return p
}

// Done is closed once the pipeline has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pipeline has finished.
func (p *Pending) Wait() (Args, error) {
	<-p.done
	return p.args, p.err
}

// Await implements Awaitable. It stops waiting, but does not stop the pipeline, when ctx is done.
func (p *Pending) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		if p.err != nil {
			return nil, p.err
		}
		return p.args, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
