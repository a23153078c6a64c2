package lager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		policy    ResultPolicy
		raw       any
		in        Args
		want      Args
		wantErrIs error
	}{
		{name: "args verbatim", raw: Args{"x", 1}, in: Args{"a"}, want: Args{"x", 1}},
		{name: "slice verbatim", raw: []any{"x", 1, 2}, in: Args{"a"}, want: Args{"x", 1, 2}},
		{name: "single value wrapped", raw: "x", in: Args{"a"}, want: Args{"x"}},
		{name: "typed slice is a single value", raw: []string{"x", "y"}, in: Args{"a"}, want: Args{[]string{"x", "y"}}},
		{name: "nil passes input through", raw: nil, in: Args{"a", 1}, want: Args{"a", 1}},
		{name: "explicit values", raw: Values(), in: Args{"a"}, want: Args{}},
		{name: "explicit value", raw: Value([]any{1, 2}), in: Args{"a"}, want: Args{[]any{1, 2}}},
		{
			name: "deferred",
			raw:  DeferredFunc(func(ctx context.Context) (any, error) { return "later", nil }),
			in:   Args{"a"},
			want: Args{"later"},
		},
		{
			name: "deferred of deferred",
			raw: DeferredFunc(func(ctx context.Context) (any, error) {
				return DeferredFunc(func(ctx context.Context) (any, error) { return Values(1, 2), nil }), nil
			}),
			in:   Args{"a"},
			want: Args{1, 2},
		},
		{
			name:      "deferred failure",
			raw:       DeferredFunc(func(ctx context.Context) (any, error) { return nil, boom }),
			wantErrIs: boom,
		},
		{name: "strict accepts single for single-arg event", policy: ResultStrict, raw: "x", in: Args{"a"}, want: Args{"x"}},
		{name: "strict rejects bare single for multi-arg event", policy: ResultStrict, raw: "x", in: Args{"a", "b"}, wantErrIs: ErrMalformedResult},
		{name: "strict rejects nil for multi-arg event", policy: ResultStrict, raw: nil, in: Args{"a", "b"}, wantErrIs: ErrMalformedResult},
		{name: "strict accepts explicit value", policy: ResultStrict, raw: Value("x"), in: Args{"a", "b"}, want: Args{"x"}},
		{name: "strict accepts arity change", policy: ResultStrict, raw: Args{"x", "y", "z"}, in: Args{"a", "b"}, want: Args{"x", "y", "z"}},
		{name: "coerce pads from input", policy: ResultCoerce, raw: "x", in: Args{"a", "b", "c"}, want: Args{"x", "b", "c"}},
		{name: "coerce truncates", policy: ResultCoerce, raw: Args{"x", "y", "z"}, in: Args{"a"}, want: Args{"x"}},
		{name: "coerce keeps equal arity", policy: ResultCoerce, raw: Args{"x", "y"}, in: Args{"a", "b"}, want: Args{"x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			policy := tt.policy
			if policy == "" {
				policy = ResultLenient
			}

			got, err := Normalize(context.Background(), tt.raw, tt.in, policy)

			if tt.wantErrIs != nil {
				assert.ErrorIs(err, tt.wantErrIs)
				return
			}
			assert.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestNormalize_DoesNotAlias(t *testing.T) {
	assert := assert.New(t)
	returned := Args{"x", "y"}
	got, err := Normalize(context.Background(), returned, Args{"a"}, ResultLenient)
	assert.NoError(err)
	returned[0] = "changed"
	assert.Equal(Args{"x", "y"}, got)
}

func TestFire_StrictPolicy(t *testing.T) {
	assert := assert.New(t)
	inst := newTestInstance(WithResultPolicy(ResultStrict))
	downstream := 0
	assert.NoError(inst.RegisterPlugins(
		&Plugin{Name: "drops", Hooks: map[string]Hook{"E": func(ctx context.Context, args ...any) (any, error) {
			return args[0], nil
		}}},
		&Plugin{Name: "downstream", Hooks: map[string]Hook{"E": func(ctx context.Context, args ...any) (any, error) {
			downstream++
			return nil, nil
		}}},
	))

	_, err := inst.Fire(context.Background(), "E", "a", "b")

	assert.ErrorIs(err, ErrMalformedResult)
	assert.Equal(0, downstream)
}

func TestArgs(t *testing.T) {
	assert := assert.New(t)
	var nilArgs Args
	assert.Equal(Args{}, nilArgs.Clone())
	a := Args{1, "two"}
	assert.Equal("two", a.Get(1))
	assert.Nil(a.Get(2))
	assert.Nil(a.Get(-1))
	assert.Equal(Args{1, 2}, Values(1, 2).Args())
}

func TestParseResultPolicy(t *testing.T) {
	assert := assert.New(t)
	for in, want := range map[string]ResultPolicy{"": ResultLenient, "lenient": ResultLenient, "strict": ResultStrict, "coerce": ResultCoerce} {
		got, err := ParseResultPolicy(in)
		assert.NoError(err)
		assert.Equal(want, got)
	}
	_, err := ParseResultPolicy("pad")
	assert.Error(err)
}
