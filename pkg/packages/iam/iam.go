package iam

import (
	"context"
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/lagerhq/lager/pkg/config"
	"github.com/lagerhq/lager/pkg/lager"
	"github.com/lagerhq/lager/pkg/packages"
	"github.com/lithammer/dedent"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	Name = "@lager/iam"

	PolicyVersion = "2012-10-17"
)

type (
	Package struct{}

	Options struct {
		// DefaultEffect is applied to statements that do not name an effect.
		DefaultEffect string `mapstructure:"default_effect"`
	}

	Policy struct {
		Name       string      `yaml:"name"`
		Version    string      `yaml:"version"`
		Statements []Statement `yaml:"statements"`
	}

	Statement struct {
		Effect    string   `yaml:"effect"`
		Actions   []string `yaml:"actions"`
		Resources []string `yaml:"resources"`
	}

	Role struct {
		Name            string   `yaml:"name"`
		AssumedBy       string   `yaml:"assumed_by"`
		ManagedPolicies []string `yaml:"managed_policies,omitempty"`
	}
)

var (
	BeforeCreatePolicy = lager.Event[*Policy]("beforeCreatePolicy")
	BeforeDeployRoles  = lager.Event[[]Role]("beforeDeployRoles")
)

func (Package) Name() string {
	return Name
}

func (Package) Plugin(cfg config.PluginConfig) (*lager.Plugin, error) {
	opts := Options{DefaultEffect: "Allow"}
	if err := cfg.Decode(&opts); err != nil {
		return nil, errors.Wrap(err, Name)
	}
	if !validEffect(opts.DefaultEffect) {
		return nil, errors.Errorf("%s: default_effect must be Allow or Deny (was %q)", Name, opts.DefaultEffect)
	}

	return &lager.Plugin{
		Name: Name,
		Hooks: map[string]lager.Hook{
			packages.RegisterCommands.Name(): packages.RegisterCommands.Hook(func(ctx context.Context, root *cobra.Command) (*cobra.Command, error) {
				root.AddCommand(newCreatePolicyCmd(), newDeployRolesCmd())
				return root, nil
			}),
			packages.BeforeNewProject.Name(): packages.BeforeNewProject.Hook(addExecutionRole),
			BeforeCreatePolicy.Name():        BeforeCreatePolicy.Hook(opts.completePolicy),
		},
	}, nil
}

func addExecutionRole(ctx context.Context, plan *packages.ProjectPlan) (*packages.ProjectPlan, error) {
	if plan.Includes(Name) {
		plan.AddResource(Name, "ExecutionRole", map[string]any{"path": "/"})
	}
	return plan, nil
}

// completePolicy fills in the defaults of a policy before anything downstream sees it.
func (opts Options) completePolicy(ctx context.Context, p *Policy) (*Policy, error) {
	if p == nil {
		return nil, errors.New("no policy")
	}
	if p.Version == "" {
		p.Version = PolicyVersion
	}
	for i := range p.Statements {
		st := &p.Statements[i]
		if st.Effect == "" {
			st.Effect = opts.DefaultEffect
		}
		if !validEffect(st.Effect) {
			return nil, errors.Errorf("statement %d: invalid effect %q", i, st.Effect)
		}
		if len(st.Actions) == 0 {
			return nil, errors.Errorf("statement %d: no actions", i)
		}
		if len(st.Resources) == 0 {
			st.Resources = []string{"*"}
		}
	}
	return p, nil
}

func validEffect(e string) bool {
	return e == "Allow" || e == "Deny"
}

func newCreatePolicyCmd() *cobra.Command {
	var (
		effect    string
		actions   []string
		resources []string
	)
	cmd := &cobra.Command{
		Use:   "create-policy <name>",
		Short: "Create an IAM policy document",
		Long: dedent.Dedent(`
			Create an IAM policy document with a single statement built from the flags.

			The policy is passed through the beforeCreatePolicy event before it is printed,
			so other plugins can amend or reject it.`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst := lager.FromContext(cmd.Context())
			if inst == nil {
				return errors.New("no lager instance")
			}
			policy := &Policy{
				Name: strcase.ToCamel(args[0]),
				Statements: []Statement{{
					Effect:    effect,
					Actions:   actions,
					Resources: resources,
				}},
			}
			policy, err := BeforeCreatePolicy.Fire(cmd.Context(), inst, policy)
			if err != nil {
				return err
			}
			return packages.PrintYAML(cmd.OutOrStdout(), policy)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&effect, "effect", "", "Statement effect (Allow or Deny); defaults to the plugin's default_effect")
	flags.StringSliceVarP(&actions, "action", "a", nil, "Action the statement applies to (repeatable)")
	flags.StringSliceVarP(&resources, "resource", "r", nil, "Resource the statement applies to (repeatable, default *)")
	return cmd
}

func newDeployRolesCmd() *cobra.Command {
	var (
		assumedBy string
		policies  []string
	)
	cmd := &cobra.Command{
		Use:   "deploy-roles <role>...",
		Short: "Plan the deployment of IAM roles",
		Long: dedent.Dedent(`
			Build the roles to deploy and pass them through the beforeDeployRoles event.
			The resulting plan is printed; nothing is provisioned.`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst := lager.FromContext(cmd.Context())
			if inst == nil {
				return errors.New("no lager instance")
			}
			roles := make([]Role, len(args))
			for i, name := range args {
				roles[i] = Role{
					Name:            strcase.ToCamel(name),
					AssumedBy:       assumedBy,
					ManagedPolicies: policies,
				}
			}
			roles, err := BeforeDeployRoles.Fire(cmd.Context(), inst, roles)
			if err != nil {
				return err
			}
			if len(roles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no roles to deploy")
				return nil
			}
			return packages.PrintYAML(cmd.OutOrStdout(), roles)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&assumedBy, "assumed-by", "lambda.amazonaws.com", "Service principal allowed to assume the roles")
	flags.StringSliceVarP(&policies, "policy", "p", nil, "Managed policy to attach (repeatable)")
	return cmd
}
