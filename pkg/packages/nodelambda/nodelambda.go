package nodelambda

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/alitto/pond"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/lagerhq/lager/pkg/config"
	"github.com/lagerhq/lager/pkg/lager"
	"github.com/lagerhq/lager/pkg/logging"
	"github.com/lagerhq/lager/pkg/packages"
	"github.com/lithammer/dedent"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const Name = "@lager/node-lambda"

type (
	Package struct{}

	Options struct {
		Runtime     string `mapstructure:"runtime"`
		Handler     string `mapstructure:"handler"`
		EventsDir   string `mapstructure:"events_dir"`
		Concurrency int    `mapstructure:"concurrency"`
	}

	// TestCase is a single event file, passed through beforeTestLambda with the function name.
	TestCase struct {
		Name    string
		Runtime string
		Handler string
		Payload map[string]any
	}

	Report struct {
		Function string       `yaml:"function"`
		Passed   int          `yaml:"passed"`
		Failed   int          `yaml:"failed"`
		Cases    []CaseResult `yaml:"cases"`
	}

	CaseResult struct {
		Name    string         `yaml:"name"`
		Runtime string         `yaml:"runtime,omitempty"`
		Handler string         `yaml:"handler,omitempty"`
		Payload map[string]any `yaml:"payload,omitempty"`
		Error   string         `yaml:"error,omitempty"`
	}
)

var (
	BeforeTestLambda = lager.Event2[string, *TestCase]("beforeTestLambda")
	AfterTestLambda  = lager.Event2[string, *Report]("afterTestLambda")
)

func DefaultOptions() Options {
	return Options{
		Runtime:     "nodejs18.x",
		Handler:     "index.handler",
		EventsDir:   "test/events",
		Concurrency: 4,
	}
}

func (Package) Name() string {
	return Name
}

func (Package) Plugin(cfg config.PluginConfig) (*lager.Plugin, error) {
	opts := DefaultOptions()
	if err := cfg.Decode(&opts); err != nil {
		return nil, errors.Wrap(err, Name)
	}
	if !strings.HasPrefix(opts.Runtime, "nodejs") {
		return nil, errors.Errorf("%s: runtime %q is not a node runtime", Name, opts.Runtime)
	}
	if opts.Concurrency < 1 {
		return nil, errors.Errorf("%s: concurrency must be at least 1 (was %d)", Name, opts.Concurrency)
	}

	return &lager.Plugin{
		Name: Name,
		Hooks: map[string]lager.Hook{
			packages.RegisterCommands.Name(): packages.RegisterCommands.Hook(func(ctx context.Context, root *cobra.Command) (*cobra.Command, error) {
				root.AddCommand(newTestCmd(opts))
				return root, nil
			}),
			packages.BeforeNewProject.Name(): packages.BeforeNewProject.Hook(func(ctx context.Context, plan *packages.ProjectPlan) (*packages.ProjectPlan, error) {
				if plan.Includes(Name) {
					plan.AddResource(Name, "Function", map[string]any{
						"runtime": opts.Runtime,
						"handler": opts.Handler,
					})
				}
				return plan, nil
			}),
			BeforeTestLambda.Name(): BeforeTestLambda.Hook(func(ctx context.Context, function string, tc *TestCase) (string, *TestCase, error) {
				if tc == nil {
					return function, nil, errors.New("no test case")
				}
				if tc.Runtime == "" {
					tc.Runtime = opts.Runtime
				}
				if tc.Handler == "" {
					tc.Handler = opts.Handler
				}
				return function, tc, nil
			}),
		},
	}, nil
}

// LoadCases reads every **/*.json file under dir as a test case, sorted by path.
func LoadCases(fsys fs.FS) ([]*TestCase, error) {
	matches, err := doublestar.Glob(fsys, "**/*.json")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	cases := make([]*TestCase, 0, len(matches))
	for _, path := range matches {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, err
		}
		tc := &TestCase{Name: strings.TrimSuffix(path, ".json")}
		if err := json.Unmarshal(data, &tc.Payload); err != nil {
			return nil, errors.Wrapf(err, "could not decode event %s", path)
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// RunCases fires beforeTestLambda for every case, at most concurrency at a time. A failing case
// is recorded in the report and does not stop the others.
func RunCases(ctx context.Context, inst *lager.Instance, function string, cases []*TestCase, concurrency int) *Report {
	log := logging.GetLogger(ctx).Named("node-lambda").With(zap.String("function", function))

	results := make([]CaseResult, len(cases))
	pool := pond.New(concurrency, len(cases), pond.Strategy(pond.Lazy()))
	for i, tc := range cases {
		i, tc := i, tc
		pool.Submit(func() {
			result := CaseResult{Name: tc.Name}
			_, out, err := BeforeTestLambda.Fire(ctx, inst, function, tc)
			if err != nil {
				result.Error = err.Error()
				log.Debug("test case failed", zap.String("case", tc.Name), zap.Error(err))
			} else if out != nil {
				result.Runtime = out.Runtime
				result.Handler = out.Handler
				result.Payload = out.Payload
			}
			results[i] = result
		})
	}
	pool.StopAndWait()

	report := &Report{Function: function, Cases: results}
	for _, r := range results {
		if r.Error != "" {
			report.Failed++
		} else {
			report.Passed++
		}
	}
	return report
}

func newTestCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-node-lambda <function>",
		Short: "Run a node lambda function against its test events",
		Long: dedent.Dedent(`
			Load every JSON event under --events and pass each one through the
			beforeTestLambda event, then report the results through afterTestLambda.`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst := lager.FromContext(cmd.Context())
			if inst == nil {
				return errors.New("no lager instance")
			}
			if opts.Concurrency < 1 {
				return errors.Errorf("--concurrency must be at least 1 (was %d)", opts.Concurrency)
			}
			function := args[0]

			cases, err := LoadCases(os.DirFS(opts.EventsDir))
			if err != nil {
				return errors.Wrapf(err, "could not load events from %s", opts.EventsDir)
			}
			if len(cases) == 0 {
				return errors.Errorf("no events found in %s", opts.EventsDir)
			}

			report := RunCases(cmd.Context(), inst, function, cases, opts.Concurrency)
			_, report, err = AfterTestLambda.Fire(cmd.Context(), inst, function, report)
			if err != nil {
				return err
			}
			if report == nil {
				return errors.New("afterTestLambda dropped the report")
			}
			if err := packages.PrintYAML(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return errors.Errorf("%d of %d test cases failed", report.Failed, len(report.Cases))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.EventsDir, "events", "e", opts.EventsDir, "Directory holding the JSON test events")
	flags.IntVarP(&opts.Concurrency, "concurrency", "c", opts.Concurrency, "Maximum number of test cases run at once")
	return cmd
}
