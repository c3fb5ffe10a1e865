// Package config loads the two configuration files skycli reads: the
// per-user global config holding cluster credentials, and the per-project
// skygear.yaml describing the app and its cloud code.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elly0t/skycli/cli/model"
)

const (
	ProjectFile = "skygear.yaml"

	// CurrentVersion is the newest project config version this build
	// understands.
	CurrentVersion = 1
)

var ErrNotLoggedIn = errors.New("not logged in")

type Global struct {
	CurrentContext string             `yaml:"current_context"`
	Cluster        map[string]Cluster `yaml:"cluster,omitempty"`
	User           map[string]User    `yaml:"user,omitempty"`
}

type Cluster struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

type User struct {
	AccessToken string `yaml:"access_token"`
}

type Project struct {
	Version   int                              `yaml:"version"`
	App       string                           `yaml:"app"`
	CloudCode map[string]model.CloudCodeConfig `yaml:"cloud_code,omitempty"`

	// Dir is the directory holding skygear.yaml, or the search start when
	// no file was found.
	Dir string `yaml:"-"`
	// Path is empty when no skygear.yaml was found.
	Path string `yaml:"-"`
}

// GlobalPath returns the location of the global config, honouring
// XDG_CONFIG_HOME.
func GlobalPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "skycli", "config")
}

// LoadGlobal reads the global config at path. A missing file yields an
// empty config.
func LoadGlobal(path string) (*Global, error) {
	var g Global
	if err := readYAML(path, &g); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &g, nil
		}
		return nil, err
	}
	return &g, nil
}

// SaveGlobal writes g to path, creating parent directories as needed. The
// file holds credentials so it is written user-readable only.
func SaveGlobal(path string, g *Global) error {
	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Current returns the cluster and user entries of the current context.
func (g *Global) Current() (Cluster, User) {
	return g.Cluster[g.CurrentContext], g.User[g.CurrentContext]
}

// FindProject walks from dir up to the filesystem root and returns the
// first skygear.yaml found.
func FindProject(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		path := filepath.Join(dir, ProjectFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadProject finds and reads the project config starting from dir. With
// no skygear.yaml anywhere up the tree it returns an empty project.
func LoadProject(dir string) (*Project, error) {
	path, ok := FindProject(dir)
	if !ok {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		p := &Project{Dir: abs}
		return p, p.migrate()
	}

	var p Project
	if err := readYAML(path, &p); err != nil {
		return nil, err
	}
	p.Path = path
	p.Dir = filepath.Dir(path)
	if err := p.migrate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

// migrate brings an older project config up to CurrentVersion. Version 1 is
// the only one so far, so the work is stamping unversioned files.
func (p *Project) migrate() error {
	if p.Version == 0 {
		p.Version = CurrentVersion
	}
	if p.Version > CurrentVersion {
		return fmt.Errorf("config version %d is newer than supported version %d, upgrade skycli", p.Version, CurrentVersion)
	}
	return nil
}

// CloudCodeNames returns the configured cloud code names, sorted.
func (p *Project) CloudCodeNames() []string {
	names := make([]string, 0, len(p.CloudCode))
	for name := range p.CloudCode {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupCloudCode returns the config of the named cloud code with src made
// absolute against the project directory.
func (p *Project) LookupCloudCode(name string) (model.CloudCodeConfig, error) {
	cfg, ok := p.CloudCode[name]
	if !ok {
		names := p.CloudCodeNames()
		if len(names) == 0 {
			return cfg, fmt.Errorf("cloud code %q not found, no cloud code configured in %s", name, ProjectFile)
		}
		return cfg, fmt.Errorf("cloud code %q not found, available: %s", name, strings.Join(names, ", "))
	}
	if cfg.Src == "" {
		cfg.Src = "."
	}
	if !filepath.IsAbs(cfg.Src) {
		cfg.Src = filepath.Join(p.Dir, cfg.Src)
	}
	return cfg, nil
}

// Overrides carries values that take precedence over the config files.
// Empty fields do not override.
type Overrides struct {
	App         string
	Endpoint    string
	APIKey      string
	AccessToken string
}

// FromEnv reads the SKYCLI_* overrides through getenv.
func FromEnv(getenv func(string) string) Overrides {
	return Overrides{
		App:         getenv("SKYCLI_APP"),
		Endpoint:    getenv("SKYCLI_ENDPOINT"),
		APIKey:      getenv("SKYCLI_API_KEY"),
		AccessToken: getenv("SKYCLI_ACCESS_TOKEN"),
	}
}

// DeveloperMode reports whether SKYCLI_DEVELOPER_MODE is set to 1.
func DeveloperMode(getenv func(string) string) bool {
	return getenv("SKYCLI_DEVELOPER_MODE") == "1"
}

// Resolve builds the context for controller calls. Later overrides win:
// config files, then env, then flags.
func Resolve(g *Global, p *Project, overrides ...Overrides) (model.CLIContext, error) {
	var cli model.CLIContext
	if g != nil {
		cluster, user := g.Current()
		cli.Endpoint = cluster.Endpoint
		cli.APIKey = cluster.APIKey
		cli.AccessToken = user.AccessToken
	}
	if p != nil {
		cli.App = p.App
	}
	for _, o := range overrides {
		cli.App = pick(o.App, cli.App)
		cli.Endpoint = pick(o.Endpoint, cli.Endpoint)
		cli.APIKey = pick(o.APIKey, cli.APIKey)
		cli.AccessToken = pick(o.AccessToken, cli.AccessToken)
	}

	if cli.Endpoint == "" {
		return cli, errors.New("no cluster endpoint configured, set SKYCLI_ENDPOINT or --endpoint")
	}
	if cli.App == "" {
		return cli, fmt.Errorf("no app configured, set app in %s or use --app", ProjectFile)
	}
	if cli.AccessToken == "" {
		return cli, ErrNotLoggedIn
	}
	return cli, nil
}

func pick(override, current string) string {
	if override != "" {
		return override
	}
	return current
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
