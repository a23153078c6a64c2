package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/lagerhq/lager/pkg/lager"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type (
	Project struct {
		Name string `json:"name" yaml:"name" toml:"name"`

		// Format is the format the file was read from.
		Format string `json:"-" yaml:"-" toml:"-"`

		// Packages lists the enabled packages. An empty list enables every known package.
		Packages []string                `json:"packages,omitempty" yaml:"packages,omitempty" toml:"packages,omitempty"`
		Plugins  map[string]PluginConfig `json:"plugins,omitempty" yaml:"plugins,omitempty" toml:"plugins,omitempty"`
		Events   EventsConfig            `json:"events" yaml:"events" toml:"events"`
	}

	PluginConfig struct {
		// Enabled overrides Packages when set.
		Enabled *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
		Options map[string]any `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
	}

	EventsConfig struct {
		ResultPolicy    string `json:"result_policy,omitempty" yaml:"result_policy,omitempty" toml:"result_policy,omitempty"`
		DuplicatePolicy string `json:"duplicate_policy,omitempty" yaml:"duplicate_policy,omitempty" toml:"duplicate_policy,omitempty"`
	}
)

var (
	ConfigEnv   = EnvVar("LAGER_CONFIG")
	projectName = regexp.MustCompile(`^\w[\w.-]*$`)

	defaultFiles = []string{"lager.yaml", "lager.yml", "lager.toml", "lager.json"}
)

// DefaultPath returns $LAGER_CONFIG, or the first lager.{yaml,yml,toml,json} in dir. It returns
// "" when there is none, which means running without a project file.
func DefaultPath(dir string) string {
	if p := ConfigEnv.GetOr(""); p != "" {
		return p
	}
	for _, name := range defaultFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func ReadConfig(fpath string) (Project, error) {
	var cfg Project

	f, err := os.Open(fpath)
	if err != nil {
		return cfg, err
	}
	defer f.Close() // nolint:errcheck

	switch ext := filepath.Ext(fpath); ext {
	case ".json":
		err = json.NewDecoder(f).Decode(&cfg)
		cfg.Format = "json"

	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(&cfg)
		cfg.Format = "yaml"

	case ".toml":
		err = toml.NewDecoder(f).Decode(&cfg)
		cfg.Format = "toml"

	default:
		return cfg, errors.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "could not decode %s", fpath)
	}
	return cfg, nil
}

// Validate reports every problem with the project, not just the first.
func (p Project) Validate() error {
	var err error
	if p.Name != "" && !projectName.MatchString(p.Name) {
		err = multierr.Append(err, errors.Errorf("'name' must start with an alphanumeric or _ and can only contain alphanumeric, -, _ and . (was %q)", p.Name))
	}
	seen := make(map[string]bool, len(p.Packages))
	for _, pkg := range p.Packages {
		if pkg == "" {
			err = multierr.Append(err, errors.New("'packages' cannot contain an empty name"))
			continue
		}
		if seen[pkg] {
			err = multierr.Append(err, errors.Errorf("package %s listed more than once", pkg))
		}
		seen[pkg] = true
	}
	for name := range p.Plugins {
		if name == "" {
			err = multierr.Append(err, errors.New("'plugins' cannot contain an empty name"))
		}
	}
	if _, perr := lager.ParseResultPolicy(p.Events.ResultPolicy); perr != nil {
		err = multierr.Append(err, perr)
	}
	if _, perr := lager.ParseDuplicatePolicy(p.Events.DuplicatePolicy); perr != nil {
		err = multierr.Append(err, perr)
	}
	return err
}

// InstanceOptions turns the events section into options for lager.New. The project must be valid.
func (p Project) InstanceOptions() []lager.Option {
	resultPolicy, _ := lager.ParseResultPolicy(p.Events.ResultPolicy)
	duplicatePolicy, _ := lager.ParseDuplicatePolicy(p.Events.DuplicatePolicy)
	return []lager.Option{
		lager.WithResultPolicy(resultPolicy),
		lager.WithDuplicatePolicy(duplicatePolicy),
	}
}

func (p Project) PackageEnabled(name string) bool {
	if pc, ok := p.Plugins[name]; ok && pc.Enabled != nil {
		return *pc.Enabled
	}
	if len(p.Packages) == 0 {
		return true
	}
	for _, pkg := range p.Packages {
		if pkg == name {
			return true
		}
	}
	return false
}

// Plugin returns the configuration block of the named package, empty if there is none.
func (p Project) Plugin(name string) PluginConfig {
	return p.Plugins[name]
}

// Decode maps the free-form options onto target, a pointer to a package's options struct
// using `mapstructure` tags. Unknown keys are an error.
func (pc PluginConfig) Decode(target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if pc.Options == nil {
		return nil
	}
	return errors.Wrap(dec.Decode(pc.Options), "invalid plugin options")
}

// WriteConfig writes p to fpath in the format given by its extension, creating parent directories.
func WriteConfig(fpath string, p Project) error {
	switch ext := filepath.Ext(fpath); ext {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return errors.Errorf("unsupported config format %q", ext)
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return err
	}
	f, err := os.Create(fpath)
	if err != nil {
		return err
	}
	return writeConfig(f, fpath, p)
}

// writeConfig encodes p into w in the format of fpath's extension and closes w. A close failure
// is reported unless encoding already failed.
func writeConfig(w io.WriteCloser, fpath string, p Project) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "could not close %s", fpath)
		}
	}()

	switch ext := filepath.Ext(fpath); ext {
	case ".json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(p)

	case ".yaml", ".yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(p)
		if err == nil {
			err = enc.Close()
		}

	case ".toml":
		err = toml.NewEncoder(w).Encode(p)

	default:
		return errors.Errorf("unsupported config format %q", ext)
	}
	return errors.Wrapf(err, "could not encode %s", fpath)
}
