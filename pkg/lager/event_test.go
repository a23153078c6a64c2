package lager

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type policyDoc struct {
	Name       string
	Statements []string
}

var (
	docCreated = Event[*policyDoc]("docCreated")
	myEvent    = Event2[string, map[string]any]("myEvent")
)

func TestEvent_Typed(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	inst := newTestInstance()

	require.NoError(inst.RegisterPlugins(
		&Plugin{Name: "upper", Hooks: map[string]Hook{
			docCreated.Name(): docCreated.Hook(func(ctx context.Context, d *policyDoc) (*policyDoc, error) {
				d.Name = strings.ToUpper(d.Name)
				return d, nil
			}),
		}},
		&Plugin{Name: "statement", Hooks: map[string]Hook{
			docCreated.Name(): docCreated.Hook(func(ctx context.Context, d *policyDoc) (*policyDoc, error) {
				return &policyDoc{Name: d.Name, Statements: append(d.Statements, "s3:GetObject")}, nil
			}),
		}},
	))

	got, err := docCreated.Fire(context.Background(), inst, &policyDoc{Name: "readers"})

	require.NoError(err)
	assert.Equal(&policyDoc{Name: "READERS", Statements: []string{"s3:GetObject"}}, got)
}

func TestEvent2_MyEventScenario(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	inst := newTestInstance()

	require.NoError(inst.RegisterPlugins(
		&Plugin{Name: "a-simple-plugin", Hooks: map[string]Hook{
			myEvent.Name(): myEvent.Hook(func(ctx context.Context, x string, y map[string]any) (string, map[string]any, error) {
				y["bar"] = y["bar"].(int) + 23
				return x + " modified by a plugin", y, nil
			}),
		}},
		&Plugin{Name: "another-simple-plugin", Hooks: map[string]Hook{
			myEvent.Name(): myEvent.Hook(func(ctx context.Context, x string, y map[string]any) (string, map[string]any, error) {
				y["baz"] = "value from plugin"
				return x, y, nil
			}),
		}},
	))

	x, y, err := myEvent.Fire(context.Background(), inst, "a string", map[string]any{"foo": "lager", "bar": 100})

	require.NoError(err)
	assert.Equal("a string modified by a plugin", x)
	assert.Equal(map[string]any{"foo": "lager", "bar": 123, "baz": "value from plugin"}, y)
}

func TestEvent_ArgTypeMismatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	inst := newTestInstance()

	require.NoError(inst.RegisterPlugins(
		&Plugin{Name: "untyped", Hooks: map[string]Hook{
			"docCreated": func(ctx context.Context, args ...any) (any, error) {
				return "not a document", nil
			},
		}},
		&Plugin{Name: "typed", Hooks: map[string]Hook{
			docCreated.Name(): docCreated.Hook(func(ctx context.Context, d *policyDoc) (*policyDoc, error) {
				return d, nil
			}),
		}},
	))

	_, err := docCreated.Fire(context.Background(), inst, &policyDoc{})

	assert.ErrorIs(err, ErrArgType)
	var hookErr *HookError
	if assert.ErrorAs(err, &hookErr) {
		assert.Equal("typed", hookErr.Plugin)
	}
}

func TestEvent_ArityMismatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	inst := newTestInstance()

	require.NoError(inst.RegisterPlugin(&Plugin{Name: "grows", Hooks: map[string]Hook{
		"docCreated": func(ctx context.Context, args ...any) (any, error) {
			return append(Args{}, args[0], "extra"), nil
		},
	}}))

	_, err := docCreated.Fire(context.Background(), inst, &policyDoc{})
	assert.ErrorIs(err, ErrMalformedResult)

	_, _, err = myEvent.Fire(context.Background(), inst, "only", nil)
	assert.NoError(err, "no plugin listens to myEvent")
}
