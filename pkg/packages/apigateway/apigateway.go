package apigateway

import (
	"context"
	"regexp"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/lagerhq/lager/pkg/config"
	"github.com/lagerhq/lager/pkg/lager"
	"github.com/lagerhq/lager/pkg/packages"
	"github.com/lithammer/dedent"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const Name = "@lager/api-gateway"

type (
	Package struct{}

	Options struct {
		Stage string `mapstructure:"stage"`
	}

	Endpoint struct {
		Method string `yaml:"method"`
		Path   string `yaml:"path"`
		Stage  string `yaml:"stage"`
		// Integration is the function that handles the endpoint.
		Integration string `yaml:"integration"`
	}
)

var (
	BeforeCreateEndpoint = lager.Event[*Endpoint]("beforeCreateEndpoint")

	methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "ANY"}

	pathParam = regexp.MustCompile(`\{(\w+)\+?\}`)
)

func (Package) Name() string {
	return Name
}

func (Package) Plugin(cfg config.PluginConfig) (*lager.Plugin, error) {
	opts := Options{Stage: "dev"}
	if err := cfg.Decode(&opts); err != nil {
		return nil, errors.Wrap(err, Name)
	}
	if opts.Stage == "" {
		return nil, errors.Errorf("%s: stage cannot be empty", Name)
	}

	return &lager.Plugin{
		Name: Name,
		Hooks: map[string]lager.Hook{
			packages.RegisterCommands.Name(): packages.RegisterCommands.Hook(func(ctx context.Context, root *cobra.Command) (*cobra.Command, error) {
				root.AddCommand(newCreateEndpointCmd())
				return root, nil
			}),
			packages.BeforeNewProject.Name(): packages.BeforeNewProject.Hook(func(ctx context.Context, plan *packages.ProjectPlan) (*packages.ProjectPlan, error) {
				if plan.Includes(Name) {
					plan.AddResource(Name, "RestApi", map[string]any{"stage": opts.Stage})
				}
				return plan, nil
			}),
			BeforeCreateEndpoint.Name(): BeforeCreateEndpoint.Hook(opts.completeEndpoint),
		},
	}, nil
}

func (opts Options) completeEndpoint(ctx context.Context, ep *Endpoint) (*Endpoint, error) {
	if ep == nil {
		return nil, errors.New("no endpoint")
	}
	ep.Method = strings.ToUpper(ep.Method)
	if !validMethod(ep.Method) {
		return nil, errors.Errorf("unsupported method %q (supported: %s)", ep.Method, strings.Join(methods, ", "))
	}
	if !strings.HasPrefix(ep.Path, "/") {
		return nil, errors.Errorf("path %q must start with /", ep.Path)
	}
	if ep.Stage == "" {
		ep.Stage = opts.Stage
	}
	if ep.Integration == "" {
		ep.Integration = IntegrationName(ep.Method, ep.Path)
	}
	return ep, nil
}

// IntegrationName derives a function name from a route, eg. GET /users/{id} becomes getUsersById.
func IntegrationName(method, path string) string {
	path = pathParam.ReplaceAllString(path, "by $1")
	return strcase.ToLowerCamel(strings.ToLower(method) + " " + strings.ReplaceAll(path, "/", " "))
}

func validMethod(m string) bool {
	for _, v := range methods {
		if m == v {
			return true
		}
	}
	return false
}

func newCreateEndpointCmd() *cobra.Command {
	var ep Endpoint
	cmd := &cobra.Command{
		Use:   "create-endpoint <method> <path>",
		Short: "Create an API Gateway endpoint",
		Long: dedent.Dedent(`
			Create an API Gateway endpoint routing <method> <path> to a function.

			The endpoint is passed through the beforeCreateEndpoint event before it is
			printed. Without --integration, the function name is derived from the route.`),
		Example: "  lager create-endpoint GET /users/{id}",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst := lager.FromContext(cmd.Context())
			if inst == nil {
				return errors.New("no lager instance")
			}
			ep.Method, ep.Path = args[0], args[1]
			out, err := BeforeCreateEndpoint.Fire(cmd.Context(), inst, &ep)
			if err != nil {
				return err
			}
			return packages.PrintYAML(cmd.OutOrStdout(), out)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&ep.Integration, "integration", "", "Function handling the endpoint")
	flags.StringVar(&ep.Stage, "stage", "", "Stage to deploy the endpoint to; defaults to the plugin's stage")
	return cmd
}
