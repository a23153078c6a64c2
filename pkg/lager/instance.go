package lager

import (
	"context"
	"sync"

	"github.com/lagerhq/lager/pkg/logging"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Instance owns a plugin registry and dispatches events to it. An application normally
	// constructs one at its entry point and passes it (or a context carrying it) to the
	// packages that register plugins or fire events.
	Instance struct {
		mu      sync.RWMutex
		plugins []*Plugin
		byName  map[string]int

		log             *zap.Logger
		resultPolicy    ResultPolicy
		duplicatePolicy DuplicatePolicy

		stats counters
	}

	Option func(*Instance)

	// Stats is a point-in-time copy of an instance's dispatch counters.
	Stats struct {
		Fires     int64
		HookCalls int64
		Failures  int64
	}

	counters struct {
		fires     atomic.Int64
		hookCalls atomic.Int64
		failures  atomic.Int64
	}
)

func New(opts ...Option) *Instance {
	inst := &Instance{
		byName:          make(map[string]int),
		resultPolicy:    ResultLenient,
		duplicatePolicy: DuplicateReject,
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// WithLogger sets the logger used by the instance. Without it, the logger carried by the
// context passed to Fire is used, falling back to zap.L().
func WithLogger(log *zap.Logger) Option {
	return func(inst *Instance) {
		inst.log = log
	}
}

func WithResultPolicy(policy ResultPolicy) Option {
	return func(inst *Instance) {
		if policy != "" {
			inst.resultPolicy = policy
		}
	}
}

func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(inst *Instance) {
		if policy != "" {
			inst.duplicatePolicy = policy
		}
	}
}

func (inst *Instance) ResultPolicy() ResultPolicy {
	return inst.resultPolicy
}

func (inst *Instance) DuplicatePolicy() DuplicatePolicy {
	return inst.duplicatePolicy
}

func (inst *Instance) Stats() Stats {
	return Stats{
		Fires:     inst.stats.fires.Load(),
		HookCalls: inst.stats.hookCalls.Load(),
		Failures:  inst.stats.failures.Load(),
	}
}

func (inst *Instance) logger(ctx context.Context) *zap.Logger {
	if inst.log != nil {
		return inst.log
	}
	return logging.GetLogger(ctx).Named("lager")
}

type contextKey struct{}

// WithInstance returns a copy of ctx carrying inst.
func WithInstance(ctx context.Context, inst *Instance) context.Context {
	return context.WithValue(ctx, contextKey{}, inst)
}

// FromContext returns the instance carried by ctx, or nil if there is none.
func FromContext(ctx context.Context) *Instance {
	inst, _ := ctx.Value(contextKey{}).(*Instance)
	return inst
}
