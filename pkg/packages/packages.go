package packages

import (
	"io"
	"slices"

	"github.com/iancoleman/strcase"
	"github.com/lagerhq/lager/pkg/config"
	"github.com/lagerhq/lager/pkg/lager"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type (
	// Package is a feature package that plugs into the lager CLI through a plugin.
	Package interface {
		Name() string
		Plugin(cfg config.PluginConfig) (*lager.Plugin, error)
	}

	// ProjectPlan describes the project `lager new` would create.
	ProjectPlan struct {
		Name      string     `yaml:"name"`
		Packages  []string   `yaml:"packages"`
		Resources []Resource `yaml:"resources,omitempty"`
	}

	Resource struct {
		Package    string         `yaml:"package"`
		Kind       string         `yaml:"kind"`
		Name       string         `yaml:"name"`
		Properties map[string]any `yaml:"properties,omitempty"`
	}
)

var (
	// RegisterCommands is fired once at startup with the root command; packages attach their
	// sub-commands to it.
	RegisterCommands = lager.Event[*cobra.Command]("registerCommands")

	BeforeNewProject = lager.Event[*ProjectPlan]("beforeNewProject")
	AfterNewProject  = lager.Event[*ProjectPlan]("afterNewProject")

	// Shutdown is fired with the signal name when the CLI is interrupted.
	Shutdown = lager.Event[string]("shutdown")
)

func (p *ProjectPlan) Includes(pkg string) bool {
	return slices.Contains(p.Packages, pkg)
}

// AddResource appends a resource owned by pkg, naming it after the project.
func (p *ProjectPlan) AddResource(pkg, kind string, props map[string]any) {
	p.Resources = append(p.Resources, Resource{
		Package:    pkg,
		Kind:       kind,
		Name:       strcase.ToKebab(p.Name + " " + kind),
		Properties: props,
	})
}

func PrintYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
