package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/lagerhq/lager/pkg/config"
	"github.com/lagerhq/lager/pkg/lager"
	"github.com/lagerhq/lager/pkg/packages"
	"github.com/lithammer/dedent"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	pluginColor = color.New(color.FgHiGreen, color.Bold)
	eventColor  = color.New(color.FgCyan)
)

func instance(cmd *cobra.Command) (*lager.Instance, error) {
	inst := lager.FromContext(cmd.Context())
	if inst == nil {
		return nil, errors.New("no lager instance")
	}
	return inst, nil
}

func (lm LagerMain) newProjectCmd() *cobra.Command {
	var (
		write bool
		dir   string
	)
	cmd := &cobra.Command{
		Use:   "new <project> [package]...",
		Short: "Plan a new project using the given packages",
		Long: dedent.Dedent(`
			Plan a new project. Without packages, every available package is used.

			The plan goes through the beforeNewProject and afterNewProject events, where
			each package adds the resources it needs. With --write, the project file
			is written to <dir>/<project>/lager.yaml.`),
		Example: "  lager new my-project @lager/iam @lager/node-lambda",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instance(cmd)
			if err != nil {
				return err
			}
			project := config.Project{Name: args[0], Packages: args[1:]}
			if err := project.Validate(); err != nil {
				return err
			}
			if len(project.Packages) == 0 {
				for _, pkg := range lm.Packages {
					if inst.GetPlugin(pkg.Name()) != nil {
						project.Packages = append(project.Packages, pkg.Name())
					}
				}
			}
			for _, name := range project.Packages {
				if inst.GetPlugin(name) == nil {
					return errors.Errorf("package %s is not available", name)
				}
			}

			plan := &packages.ProjectPlan{Name: project.Name, Packages: project.Packages}
			if plan, err = packages.BeforeNewProject.Fire(cmd.Context(), inst, plan); err != nil {
				return err
			}
			if plan, err = packages.AfterNewProject.Fire(cmd.Context(), inst, plan); err != nil {
				return err
			}
			if plan == nil {
				return errors.New("project plan was dropped")
			}

			if write {
				// hooks may have renamed the plan, and the name becomes a directory under dir
				written := config.Project{Name: plan.Name, Packages: plan.Packages}
				if written.Name == "" {
					return errors.New("project plan has no name")
				}
				if err := written.Validate(); err != nil {
					return err
				}
				fpath := filepath.Join(dir, written.Name, "lager.yaml")
				if err := config.WriteConfig(fpath, written); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", fpath)
			}
			return packages.PrintYAML(cmd.OutOrStdout(), plan)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&write, "write", false, "Write the project file")
	flags.StringVar(&dir, "dir", ".", "Directory to create the project in")
	return cmd
}

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the registered plugins and the events they hook, in dispatch order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instance(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range inst.Plugins() {
				pluginColor.Fprintln(w, p.Name) // nolint:errcheck
				for _, event := range p.Events() {
					fmt.Fprint(w, "  ")
					eventColor.Fprintln(w, event) // nolint:errcheck
				}
			}
			return nil
		},
	}
}

func newFireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fire <event> [arg]...",
		Short: "Fire an event and print the resulting arguments",
		Long: dedent.Dedent(`
			Fire an event through every plugin hooking it and print the resulting
			arguments. Each arg is read as JSON, falling back to a plain string.`),
		Example: `  lager fire myEvent '"hello"' 42`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instance(cmd)
			if err != nil {
				return err
			}
			in := make([]any, len(args)-1)
			for i, arg := range args[1:] {
				in[i] = parseArg(arg)
			}
			out, err := inst.Fire(cmd.Context(), args[0], in...)
			if err != nil {
				return err
			}
			return packages.PrintYAML(cmd.OutOrStdout(), []any(out))
		},
	}
}

func parseArg(s string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}
