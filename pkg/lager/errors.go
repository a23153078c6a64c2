package lager

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNilPlugin       = errors.New("plugin cannot be nil")
	ErrEmptyPluginName = errors.New("plugin name cannot be empty")
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrMalformedResult is returned when a hook's result cannot be read as an argument list
	// under the instance's ResultPolicy.
	ErrMalformedResult = errors.New("malformed hook result")

	// ErrArgType is returned by typed event hooks when an argument is missing or of the wrong type.
	ErrArgType = errors.New("unexpected argument type")
)

type (
	// HookError is the failure of a single plugin's hook during Fire. The pipeline that
	// produced it was stopped at that plugin.
	HookError struct {
		Plugin string
		Event  string
		Cause  error
	}

	// PanicError is the cause of a HookError when the hook panicked.
	PanicError struct {
		Value any
		Stack []byte
	}
)

// NewHookError wraps cause as the failure of plugin on event. When cause is, or wraps, a
// HookError (a hook that fired a nested event), the plugin and event paths are joined.
func NewHookError(plugin, event string, cause error) *HookError {
	var sub *HookError
	if errors.As(cause, &sub) {
		return &HookError{
			Plugin: plugin + "/" + sub.Plugin,
			Event:  event + "/" + sub.Event,
			Cause:  sub.Cause,
		}
	}
	return &HookError{
		Plugin: plugin,
		Event:  event,
		Cause:  cause,
	}
}

func (err *HookError) Error() string {
	return fmt.Sprintf("error in plugin %s (event %s): %v", err.Plugin, err.Event, err.Cause)
}

func (err *HookError) Format(s fmt.State, verb rune) {
	fmt.Fprintf(s, "error in plugin %s (event %s): ", err.Plugin, err.Event)
	if formatter, ok := err.Cause.(fmt.Formatter); ok {
		formatter.Format(s, verb)
	} else {
		fmt.Fprint(s, err.Cause.Error())
	}
}

func (err *HookError) Unwrap() error {
	return err.Cause
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("hook panicked: %v", err.Value)
}

func (err *PanicError) Format(s fmt.State, verb rune) {
	fmt.Fprint(s, err.Error())
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "\n%s", err.Stack)
	}
}
