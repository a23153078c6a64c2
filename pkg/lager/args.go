package lager

import (
	"context"

	"github.com/pkg/errors"
)

type (
	// Args is the ordered argument list threaded through a pipeline.
	Args []any

	// Result is an explicitly tagged hook result. Hooks may also return Args, []any, a single
	// value, nil or an Awaitable of any of those; see Normalize.
	Result struct {
		args Args
	}

	// Awaitable is an asynchronous hook result. Normalize awaits it before reading the value.
	Awaitable interface {
		Await(ctx context.Context) (any, error)
	}

	// DeferredFunc adapts a function into an Awaitable, for hooks that want to hand back work
	// to be resolved by the pipeline.
	DeferredFunc func(ctx context.Context) (any, error)

	// ResultPolicy controls how strictly hook results are read as argument lists.
	ResultPolicy string
)

const (
	// ResultLenient uses sequences verbatim, wraps a single value as a one-element list and
	// passes the input through when a hook returns nil.
	ResultLenient ResultPolicy = "lenient"
	// ResultStrict is ResultLenient, except that a bare value (or nil) returned for an event
	// that received more than one argument is rejected with ErrMalformedResult.
	ResultStrict ResultPolicy = "strict"
	// ResultCoerce fits every result to the arity of the hook's input: longer results are
	// truncated and shorter ones are padded with the input's trailing arguments.
	ResultCoerce ResultPolicy = "coerce"
)

// Values tags vs as the complete next argument list.
func Values(vs ...any) Result {
	return Result{args: Args(vs)}
}

// Value tags v as a one-element argument list. Unlike returning v directly, this is accepted by
// ResultStrict for multi-argument events.
func Value(v any) Result {
	return Result{args: Args{v}}
}

func (r Result) Args() Args {
	return r.args.Clone()
}

func (f DeferredFunc) Await(ctx context.Context) (any, error) {
	return f(ctx)
}

// Clone returns a copy of the list. The values themselves are not copied.
func (a Args) Clone() Args {
	if a == nil {
		return Args{}
	}
	c := make(Args, len(a))
	copy(c, a)
	return c
}

// Get returns the i'th argument or nil when out of range.
func (a Args) Get(i int) any {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// fit truncates or pads a to the length of in, padding from in.
func (a Args) fit(in Args) Args {
	switch {
	case len(a) > len(in):
		return a[:len(in)]
	case len(a) < len(in):
		return append(a, in[len(a):]...)
	}
	return a
}

func ParseResultPolicy(s string) (ResultPolicy, error) {
	switch p := ResultPolicy(s); p {
	case "":
		return ResultLenient, nil
	case ResultLenient, ResultStrict, ResultCoerce:
		return p, nil
	}
	return "", errors.Errorf("unknown result policy %q (supported: %s, %s, %s)", s, ResultLenient, ResultStrict, ResultCoerce)
}

// Normalize turns the raw return value of a hook into the next argument list. in is the list
// the hook was called with.
func Normalize(ctx context.Context, raw any, in Args, policy ResultPolicy) (Args, error) {
	for {
		aw, ok := raw.(Awaitable)
		if !ok {
			break
		}
		v, err := aw.Await(ctx)
		if err != nil {
			return nil, err
		}
		raw = v
	}

	var out Args
	explicit := true
	switch v := raw.(type) {
	case nil:
		if policy == ResultStrict && len(in) > 1 {
			return nil, errors.Wrapf(ErrMalformedResult, "hook returned nothing for an event with %d arguments", len(in))
		}
		return in.Clone(), nil

	case Result:
		out = v.args.Clone()

	case Args:
		out = v.Clone()

	case []any:
		out = Args(v).Clone()

	default:
		explicit = false
		out = Args{v}
	}

	switch policy {
	case ResultStrict:
		if !explicit && len(in) > 1 {
			return nil, errors.Wrapf(ErrMalformedResult, "hook returned a single %T for an event with %d arguments", raw, len(in))
		}
	case ResultCoerce:
		out = out.fit(in)
	}
	return out, nil
}
