package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lagerhq/lager/pkg/cleanup"
	"github.com/lagerhq/lager/pkg/config"
	"github.com/lagerhq/lager/pkg/lager"
	"github.com/lagerhq/lager/pkg/logging"
	"github.com/lagerhq/lager/pkg/packages"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type LagerMain struct {
	Version  string
	Packages []packages.Package
	// Cleanup, when set, fires the shutdown event on the instance when the process is interrupted.
	Cleanup *cleanup.Handler
}

// CommonConfig holds the flags shared by every command. They are parsed ahead of cobra because
// the project file they point to decides which packages, and so which commands, exist.
type CommonConfig struct {
	verbose       bool
	jsonLog       bool
	color         string
	config        string
	internalDebug bool
}

func (c *CommonConfig) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&c.jsonLog, "json-log", false, "Enable JSON logging")
	flags.StringVar(&c.color, "color", "auto", "Colorize logs (auto, always, never)")
	flags.StringVar(&c.config, "config", "", "Project file (default $LAGER_CONFIG or ./lager.{yaml,yml,toml,json})")
	flags.BoolVar(&c.internalDebug, "internal-debug", false, "Print errors with their stack traces")
	_ = flags.MarkHidden("internal-debug")
}

func parseCommon(args []string) (CommonConfig, error) {
	var c CommonConfig
	flags := pflag.NewFlagSet("lager", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.SetOutput(io.Discard)
	flags.Usage = func() {}
	c.AddFlags(flags)
	// cobra prints the help, this only keeps -h from failing the parse
	flags.BoolP("help", "h", false, "")
	err := flags.Parse(args)
	return c, err
}

func (lm LagerMain) Main() {
	if lm.Cleanup == nil {
		lm.Cleanup = &cleanup.Handler{}
	}
	ctx, stop := lm.Cleanup.Initialize(context.Background())
	err := lm.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// Run executes the lager command line args. Logs and errors go to stderr.
func (lm LagerMain) Run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	common, err := parseCommon(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}

	logOpts := logging.LogOpts{
		Verbose: common.verbose,
		Color:   common.color,
		Output:  stderr,
	}
	if common.jsonLog {
		logOpts.Encoding = "json"
	}
	z, err := logOpts.NewLogger()
	if err != nil {
		return err
	}
	defer z.Sync() // nolint:errcheck
	defer zap.ReplaceGlobals(z)()
	ctx = logging.WithLogger(ctx, z)

	errHandler := ErrorHandler{
		InternalDebug: common.internalDebug,
		Verbose:       common.verbose,
	}
	defer func() {
		if err != nil {
			errHandler.PrintErr(err)
			z.Error("lager failed")
		}
	}()

	project, err := loadProject(common.config)
	if err != nil {
		return err
	}
	inst := lager.New(append(project.InstanceOptions(), lager.WithLogger(z.Named("lager")))...)
	if err := lm.registerPackages(inst, project); err != nil {
		return err
	}
	ctx = lager.WithInstance(ctx, inst)

	root := &cobra.Command{
		Use:           "lager",
		Short:         "Run lager packages and the events they fire",
		Version:       lm.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	common.AddFlags(root.PersistentFlags())
	root.AddCommand(
		lm.newProjectCmd(),
		newPluginsCmd(),
		newFireCmd(),
	)
	if _, err := packages.RegisterCommands.Fire(ctx, inst, root); err != nil {
		return err
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if lm.Cleanup != nil {
		lm.Cleanup.OnKill(func(ctx context.Context, sig os.Signal) error {
			_, err := packages.Shutdown.Fire(ctx, inst, sig.String())
			return err
		})
	}

	return root.ExecuteContext(ctx)
}

func loadProject(path string) (config.Project, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Project{}, err
		}
		path = config.DefaultPath(wd)
	}
	if path == "" {
		return config.Project{}, nil
	}
	project, err := config.ReadConfig(path)
	if err != nil {
		return project, errors.Wrapf(err, "could not read config '%s'", path)
	}
	zap.L().Debug("read project", zap.String("path", path), zap.String("format", project.Format))
	return project, project.Validate()
}

// registerPackages registers the plugin of every package the project enables, in the order the
// packages are listed in lm.Packages.
func (lm LagerMain) registerPackages(inst *lager.Instance, project config.Project) error {
	var merr error
	known := make(map[string]bool, len(lm.Packages))
	for _, pkg := range lm.Packages {
		known[pkg.Name()] = true
		if !project.PackageEnabled(pkg.Name()) {
			zap.L().Debug("package disabled", zap.String("package", pkg.Name()))
			continue
		}
		p, err := pkg.Plugin(project.Plugin(pkg.Name()))
		if err != nil {
			merr = multierr.Append(merr, err)
			continue
		}
		merr = multierr.Append(merr, inst.RegisterPlugin(p))
	}
	for _, name := range project.Packages {
		if !known[name] {
			merr = multierr.Append(merr, errors.Errorf("unknown package %s", name))
		}
	}
	return merr
}
