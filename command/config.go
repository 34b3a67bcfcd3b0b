package command

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/condaops/conda-mirror/filter"
	"github.com/condaops/conda-mirror/storage"
)

// YamlConfig is the optional configuration file schema. Keys are
// kebab-cased; unknown fields reject the file.
type YamlConfig struct {
	Source      string   `yaml:"source"`
	Destination string   `yaml:"destination"`
	Subdirs     []string `yaml:"subdirs"`

	Include []RuleConfig `yaml:"include"`
	Exclude []RuleConfig `yaml:"exclude"`

	S3Config *S3ConfigSourceDest `yaml:"s3-config"`
}

// S3ConfigSourceDest carries the per-side S3 settings.
type S3ConfigSourceDest struct {
	Source      *S3Config `yaml:"source"`
	Destination *S3Config `yaml:"destination"`
}

// S3Config is one side's endpoint settings.
type S3Config struct {
	EndpointURL    string `yaml:"endpoint-url"`
	Region         string `yaml:"region"`
	ForcePathStyle bool   `yaml:"force-path-style"`
}

// Options converts the settings into their storage form.
func (c *S3Config) Options() *storage.Options {
	if c == nil {
		return nil
	}
	return &storage.Options{
		Endpoint:       c.EndpointURL,
		Region:         c.Region,
		ForcePathStyle: c.ForcePathStyle,
	}
}

// RuleConfig is one include/exclude entry: either a bare match-spec string
// or a mapping of a name glob with an optional match spec refining it.
type RuleConfig struct {
	spec string

	NameGlob  string `yaml:"name-glob"`
	MatchSpec string `yaml:"matchspec"`
}

// UnmarshalYAML implements yaml.Unmarshaler, accepting both entry forms.
func (r *RuleConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var spec string
	if err := unmarshal(&spec); err == nil {
		if spec == "" {
			return fmt.Errorf("empty match spec")
		}
		r.spec = spec
		return nil
	}

	type plain RuleConfig
	var entry plain
	if err := unmarshal(&entry); err != nil {
		return err
	}
	if entry.NameGlob == "" {
		return fmt.Errorf("rule entry needs a name-glob or a match spec string")
	}
	*r = RuleConfig(entry)
	return nil
}

// Rule compiles the entry into its filter rule.
func (r *RuleConfig) Rule() (filter.Rule, error) {
	if r.spec != "" {
		return filter.ParseMatchSpec(r.spec)
	}
	return filter.NewGlobRule(r.NameGlob, r.MatchSpec)
}

// ReadConfig loads and strictly parses the YAML configuration at given
// path.
func ReadConfig(path string) (*YamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*YamlConfig, error) {
	var config YamlConfig
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("parse config: %v", err)
	}
	return &config, nil
}

// Rules compiles given entries.
func Rules(entries []RuleConfig) ([]filter.Rule, error) {
	var rules []filter.Rule
	for _, entry := range entries {
		rule, err := entry.Rule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
