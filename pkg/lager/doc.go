// Package lager is the plugin and event engine shared by the lager CLI and its packages.
//
// Plugins are registered once, in order, on an Instance. Firing an event runs the hook of every
// plugin that has one for that event name, in registration order, each hook receiving the
// argument list returned by the one before it:
//
//	inst := lager.New()
//	_ = inst.RegisterPlugin(&lager.Plugin{
//		Name: "prefix",
//		Hooks: map[string]lager.Hook{
//			"greet": func(ctx context.Context, args ...any) (any, error) {
//				return "hello " + args[0].(string), nil
//			},
//		},
//	})
//	args, err := inst.Fire(ctx, "greet", "world") // lager.Args{"hello world"}
package lager
