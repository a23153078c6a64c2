package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/lagerhq/lager/pkg/lager"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadConfig(t *testing.T) {
	enabled := false
	want := Project{
		Name:     "my-project",
		Packages: []string{"@lager/iam", "@lager/node-lambda"},
		Plugins: map[string]PluginConfig{
			"@lager/iam":         {Options: map[string]any{"default_effect": "Deny"}},
			"@lager/api-gateway": {Enabled: &enabled},
		},
		Events: EventsConfig{ResultPolicy: "strict", DuplicatePolicy: "replace"},
	}
	tests := []struct {
		name    string
		file    string
		content string
		format  string
	}{
		{
			name: "yaml",
			file: "lager.yaml",
			content: `name: my-project
packages: ["@lager/iam", "@lager/node-lambda"]
plugins:
  "@lager/iam":
    options:
      default_effect: Deny
  "@lager/api-gateway":
    enabled: false
events:
  result_policy: strict
  duplicate_policy: replace
`,
			format: "yaml",
		},
		{
			name: "toml",
			file: "lager.toml",
			content: `name = "my-project"
packages = ["@lager/iam", "@lager/node-lambda"]

[plugins."@lager/iam".options]
default_effect = "Deny"

[plugins."@lager/api-gateway"]
enabled = false

[events]
result_policy = "strict"
duplicate_policy = "replace"
`,
			format: "toml",
		},
		{
			name: "json",
			file: "lager.json",
			content: `{
  "name": "my-project",
  "packages": ["@lager/iam", "@lager/node-lambda"],
  "plugins": {
    "@lager/iam": {"options": {"default_effect": "Deny"}},
    "@lager/api-gateway": {"enabled": false}
  },
  "events": {"result_policy": "strict", "duplicate_policy": "replace"}
}`,
			format: "json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			p := writeFile(t, t.TempDir(), tt.file, tt.content)

			got, err := ReadConfig(p)

			require.NoError(t, err)
			expect := want
			expect.Format = tt.format
			assert.Equal(expect, got)
		})
	}
}

func TestReadConfig_Errors(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	_, err := ReadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(err)

	_, err = ReadConfig(writeFile(t, dir, "lager.ini", "name=x"))
	assert.ErrorContains(err, "unsupported config format")

	_, err = ReadConfig(writeFile(t, dir, "bad.yaml", "name: [unclosed"))
	assert.ErrorContains(err, "could not decode")
}

func TestDefaultPath(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		t.Setenv("LAGER_CONFIG", "/somewhere/lager.toml")
		assert.Equal(t, "/somewhere/lager.toml", DefaultPath(t.TempDir()))
	})
	t.Run("first existing file", func(t *testing.T) {
		t.Setenv("LAGER_CONFIG", "")
		dir := t.TempDir()
		assert.Equal(t, "", DefaultPath(dir))
		writeFile(t, dir, "lager.toml", "")
		writeFile(t, dir, "lager.json", "")
		assert.Equal(t, filepath.Join(dir, "lager.toml"), DefaultPath(dir))
	})
}

func TestProject_Validate(t *testing.T) {
	tests := []struct {
		name     string
		project  Project
		wantErrs int
	}{
		{name: "empty is valid", project: Project{}},
		{name: "valid", project: Project{Name: "my-project.v2", Packages: []string{"a", "b"}, Events: EventsConfig{ResultPolicy: "coerce"}}},
		{name: "bad name", project: Project{Name: "my project!"}, wantErrs: 1},
		{name: "parent dir name", project: Project{Name: ".."}, wantErrs: 1},
		{name: "current dir name", project: Project{Name: "."}, wantErrs: 1},
		{name: "leading dot", project: Project{Name: ".hidden"}, wantErrs: 1},
		{name: "leading underscore", project: Project{Name: "_internal.v1"}},
		{
			name: "all problems reported",
			project: Project{
				Packages: []string{"a", "a", ""},
				Plugins:  map[string]PluginConfig{"": {}},
				Events:   EventsConfig{ResultPolicy: "pad", DuplicatePolicy: "append"},
			},
			wantErrs: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			err := tt.project.Validate()
			assert.Len(multierr.Errors(err), tt.wantErrs)
		})
	}
}

func TestProject_PackageEnabled(t *testing.T) {
	assert := assert.New(t)
	off, on := false, true

	assert.True(Project{}.PackageEnabled("@lager/iam"), "everything enabled without a list")

	p := Project{
		Packages: []string{"@lager/iam"},
		Plugins: map[string]PluginConfig{
			"@lager/iam":         {Enabled: &off},
			"@lager/node-lambda": {Enabled: &on},
		},
	}
	assert.False(p.PackageEnabled("@lager/iam"), "explicit disable wins over the list")
	assert.True(p.PackageEnabled("@lager/node-lambda"), "explicit enable wins over the list")
	assert.False(p.PackageEnabled("@lager/api-gateway"))
}

func TestProject_InstanceOptions(t *testing.T) {
	assert := assert.New(t)
	inst := lager.New(Project{Events: EventsConfig{ResultPolicy: "strict", DuplicatePolicy: "replace"}}.InstanceOptions()...)
	assert.Equal(lager.ResultStrict, inst.ResultPolicy())
	assert.Equal(lager.DuplicateReplace, inst.DuplicatePolicy())

	inst = lager.New(Project{}.InstanceOptions()...)
	assert.Equal(lager.ResultLenient, inst.ResultPolicy())
	assert.Equal(lager.DuplicateReject, inst.DuplicatePolicy())
}

func TestPluginConfig_Decode(t *testing.T) {
	type options struct {
		Stage   string `mapstructure:"stage"`
		Retries int    `mapstructure:"retries"`
	}
	tests := []struct {
		name    string
		options map[string]any
		want    options
		wantErr bool
	}{
		{name: "nil options", want: options{Stage: "dev"}},
		{name: "typed", options: map[string]any{"stage": "prod", "retries": 3}, want: options{Stage: "prod", Retries: 3}},
		{name: "weakly typed", options: map[string]any{"retries": "5"}, want: options{Stage: "dev", Retries: 5}},
		{name: "unknown key", options: map[string]any{"region": "eu-west-1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			got := options{Stage: "dev"}
			err := PluginConfig{Options: tt.options}.Decode(&got)
			if tt.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestWriteConfig(t *testing.T) {
	project := Project{
		Name:     "shop",
		Packages: []string{"@lager/iam", "@lager/api-gateway"},
	}
	for _, ext := range []string{"yaml", "toml", "json"} {
		t.Run(ext, func(t *testing.T) {
			assert := assert.New(t)
			p := filepath.Join(t.TempDir(), "shop", "lager."+ext)
			require.NoError(t, WriteConfig(p, project))

			got, err := ReadConfig(p)
			require.NoError(t, err)
			assert.Equal(ext, got.Format)
			assert.Equal(project.Name, got.Name)
			assert.Equal(project.Packages, got.Packages)
		})
	}

	assert.EqualError(t, WriteConfig(filepath.Join(t.TempDir(), "lager.ini"), project), `unsupported config format ".ini"`)
}

type closeRecorder struct {
	bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (w *closeRecorder) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return w.Buffer.Write(p)
}

func (w *closeRecorder) Close() error {
	w.closed = true
	return w.closeErr
}

func TestWriteConfig_CloseErrors(t *testing.T) {
	project := Project{Name: "shop"}
	diskFull := errors.New("no space left on device")
	writeFailed := errors.New("write failed")

	tests := []struct {
		name    string
		fpath   string
		w       *closeRecorder
		want    string
		wantErr string
	}{
		{name: "closed cleanly", fpath: "lager.yaml", w: &closeRecorder{}, want: "name: shop"},
		{name: "close fails", fpath: "lager.yaml", w: &closeRecorder{closeErr: diskFull}, wantErr: "could not close lager.yaml: no space left on device"},
		{name: "encode error wins", fpath: "lager.json", w: &closeRecorder{writeErr: writeFailed, closeErr: diskFull}, wantErr: "could not encode lager.json: write failed"},
		{name: "unsupported still closes", fpath: "lager.ini", w: &closeRecorder{closeErr: diskFull}, wantErr: `unsupported config format ".ini"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			err := writeConfig(tt.w, tt.fpath, project)
			assert.True(tt.w.closed)
			if tt.wantErr != "" {
				assert.EqualError(err, tt.wantErr)
				return
			}
			assert.NoError(err)
			assert.Contains(tt.w.String(), tt.want)
		})
	}
}
