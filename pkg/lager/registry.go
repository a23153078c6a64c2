package lager

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type (
	// Hook observes and may transform an event's arguments. The returned value becomes the
	// next hook's arguments after Normalize; a non-nil error stops the pipeline.
	Hook func(ctx context.Context, args ...any) (any, error)

	// Plugin is a named bundle of hooks keyed by event name. Once registered, the registry owns
	// the descriptor and it must not be modified.
	Plugin struct {
		Name  string
		Hooks map[string]Hook
	}

	// DuplicatePolicy decides what RegisterPlugin does with a name that is already registered.
	DuplicatePolicy string

	participant struct {
		plugin string
		hook   Hook
	}
)

const (
	// DuplicateReject fails the registration with ErrDuplicatePlugin.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateReplace swaps the descriptor in place. The plugin keeps the position of its
	// first registration.
	DuplicateReplace DuplicatePolicy = "replace"
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(s); p {
	case "":
		return DuplicateReject, nil
	case DuplicateReject, DuplicateReplace:
		return p, nil
	}
	return "", errors.Errorf("unknown duplicate policy %q (supported: %s, %s)", s, DuplicateReject, DuplicateReplace)
}

// Events returns the names of the events p has a hook for, sorted.
func (p *Plugin) Events() []string {
	events := make([]string, 0, len(p.Hooks))
	for event, hook := range p.Hooks {
		if hook != nil {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}

// RegisterPlugin appends p to the registry. Registration order is the order in which hooks run
// for every event.
func (inst *Instance) RegisterPlugin(p *Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	if p.Name == "" {
		return ErrEmptyPluginName
	}
	log := inst.logger(context.Background()).With(zap.String("plugin", p.Name))

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if i, exists := inst.byName[p.Name]; exists {
		if inst.duplicatePolicy != DuplicateReplace {
			return errors.Wrapf(ErrDuplicatePlugin, "plugin %s", p.Name)
		}
		inst.plugins[i] = p
		log.Debug("replaced plugin", zap.Int("position", i), zap.Strings("events", p.Events()))
		return nil
	}
	inst.byName[p.Name] = len(inst.plugins)
	inst.plugins = append(inst.plugins, p)
	log.Debug("registered plugin", zap.Int("position", len(inst.plugins)-1), zap.Strings("events", p.Events()))
	return nil
}

// RegisterPlugins registers each plugin in order. Failures do not stop the remaining
// registrations; they are all returned together.
func (inst *Instance) RegisterPlugins(ps ...*Plugin) error {
	var err error
	for _, p := range ps {
		err = multierr.Append(err, inst.RegisterPlugin(p))
	}
	return err
}

// GetPlugin returns the registered descriptor with the given name, or nil.
func (inst *Instance) GetPlugin(name string) *Plugin {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	i, ok := inst.byName[name]
	if !ok {
		return nil
	}
	return inst.plugins[i]
}

// Plugins returns the registered plugins in registration order.
func (inst *Instance) Plugins() []*Plugin {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	ps := make([]*Plugin, len(inst.plugins))
	copy(ps, inst.plugins)
	return ps
}

func (inst *Instance) pluginsFor(event string) []participant {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	var ps []participant
	for _, p := range inst.plugins {
		if hook := p.Hooks[event]; hook != nil {
			ps = append(ps, participant{plugin: p.Name, hook: hook})
		}
	}
	return ps
}
