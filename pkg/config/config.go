// Package config loads the optional ccfm.yaml project configuration.
//
// ccfm.yaml supplements CLI flags; flags always win. Env var interpolation
// uses ${VAR_NAME} anywhere in string values, with missing variables
// replaced by an empty string.
//
// ccfm.yaml is a trusted-author file: any env var visible to the process
// can be interpolated into config values, so review its changes like CI
// pipeline changes.
package config

import (
	"os"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Deployment routes one directory to a space for multi-space setups.
type Deployment struct {
	Directory string `yaml:"directory"`
	Space     string `yaml:"space"`
}

// Config mirrors the ccfm.yaml schema.
type Config struct {
	Version     int          `yaml:"version"`
	Domain      string       `yaml:"domain"`
	Email       string       `yaml:"email"`
	Token       string       `yaml:"token"`
	Space       string       `yaml:"space"`
	DocsRoot    string       `yaml:"docs_root"`
	GitRepoURL  string       `yaml:"git_repo_url"`
	StateFile   string       `yaml:"state_file"`
	Deployments []Deployment `yaml:"deployments"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// InterpolateEnv replaces ${VAR_NAME} placeholders with environment
// variable values. Missing variables become the empty string.
func InterpolateEnv(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}

// Load reads and parses a ccfm.yaml file, interpolating env vars in all
// string values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	cfg.Domain = InterpolateEnv(cfg.Domain)
	cfg.Email = InterpolateEnv(cfg.Email)
	cfg.Token = InterpolateEnv(cfg.Token)
	cfg.Space = InterpolateEnv(cfg.Space)
	cfg.DocsRoot = InterpolateEnv(cfg.DocsRoot)
	cfg.GitRepoURL = InterpolateEnv(cfg.GitRepoURL)
	cfg.StateFile = InterpolateEnv(cfg.StateFile)
	for i := range cfg.Deployments {
		cfg.Deployments[i].Directory = InterpolateEnv(cfg.Deployments[i].Directory)
		cfg.Deployments[i].Space = InterpolateEnv(cfg.Deployments[i].Space)
	}

	return &cfg, nil
}

// Fallback returns current when set, otherwise the config value. Flags use
// it to let explicit CLI values take precedence over ccfm.yaml.
func Fallback(current, fromConfig string) string {
	if current != "" {
		return current
	}
	return fromConfig
}
