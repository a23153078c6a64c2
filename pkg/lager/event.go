package lager

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

type (
	// Event is an event whose pipeline carries a single argument of type T.
	//
	//	var PolicyCreated = lager.Event[*Policy]("beforeCreatePolicy")
	//
	//	p := &lager.Plugin{Name: "audit", Hooks: map[string]lager.Hook{
	//		PolicyCreated.Name(): PolicyCreated.Hook(func(ctx context.Context, p *Policy) (*Policy, error) { ... }),
	//	}}
	//	policy, err := PolicyCreated.Fire(ctx, inst, policy)
	Event[T any] string

	// Event2 is an event whose pipeline carries two arguments of types A and B.
	Event2[A, B any] string
)

func (e Event[T]) Name() string {
	return string(e)
}

// Hook adapts fn into an untyped Hook. A wrong argument reaching it fails with ErrArgType.
func (e Event[T]) Hook(fn func(ctx context.Context, v T) (T, error)) Hook {
	return func(ctx context.Context, args ...any) (any, error) {
		v, err := argAt[T](args, 0)
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, v)
		if err != nil {
			return nil, err
		}
		return Value(out), nil
	}
}

func (e Event[T]) Fire(ctx context.Context, inst *Instance, v T) (T, error) {
	var zero T
	out, err := inst.Fire(ctx, string(e), v)
	if err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, errors.Wrapf(ErrMalformedResult, "event %s resolved to %d arguments, expected 1", e, len(out))
	}
	return argAt[T](out, 0)
}

func (e Event2[A, B]) Name() string {
	return string(e)
}

func (e Event2[A, B]) Hook(fn func(ctx context.Context, a A, b B) (A, B, error)) Hook {
	return func(ctx context.Context, args ...any) (any, error) {
		a, err := argAt[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := argAt[B](args, 1)
		if err != nil {
			return nil, err
		}
		a, b, err = fn(ctx, a, b)
		if err != nil {
			return nil, err
		}
		return Values(a, b), nil
	}
}

func (e Event2[A, B]) Fire(ctx context.Context, inst *Instance, a A, b B) (A, B, error) {
	var (
		zeroA A
		zeroB B
	)
	out, err := inst.Fire(ctx, string(e), a, b)
	if err != nil {
		return zeroA, zeroB, err
	}
	if len(out) != 2 {
		return zeroA, zeroB, errors.Wrapf(ErrMalformedResult, "event %s resolved to %d arguments, expected 2", e, len(out))
	}
	if a, err = argAt[A](out, 0); err != nil {
		return zeroA, zeroB, err
	}
	if b, err = argAt[B](out, 1); err != nil {
		return zeroA, zeroB, err
	}
	return a, b, nil
}

func argAt[T any](args Args, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, errors.Wrapf(ErrArgType, "missing argument %d", i)
	}
	if args[i] == nil {
		return zero, nil
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, errors.Wrapf(ErrArgType, "argument %d is %T, expected %s", i, args[i], reflect.TypeOf((*T)(nil)).Elem())
	}
	return v, nil
}
