package model

import (
	"fmt"
	"runtime"
)

// Config holds the complete Concordia configuration
type Config struct {
	Resolution  ResolutionConfig  `yaml:"resolution" mapstructure:"resolution"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// ResolutionConfig controls clustering and conflict validation
type ResolutionConfig struct {
	DistanceThreshold    float64  `yaml:"distance_threshold" mapstructure:"distance_threshold"`         // Dendrogram cut point in [0,1]
	NameField            string   `yaml:"name_field" mapstructure:"name_field"`                         // Field driving similarity and representatives
	Localized            bool     `yaml:"localized" mapstructure:"localized"`                           // Strip name particles before scoring
	Particles            []string `yaml:"particles,omitempty" mapstructure:"particles"`                 // Custom particle set (empty = Dutch defaults)
	ListValuedAttributes []string `yaml:"list_valued_attributes" mapstructure:"list_valued_attributes"` // Set-intersection semantics
	ValidatedAttributes  []string `yaml:"validated_attributes" mapstructure:"validated_attributes"`     // Attributes checked for conflicts
}

// ConcurrencyConfig controls parallel work
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`             // Similarity matrix row workers
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"` // Files resolved concurrently by `batch`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	PrintClusters bool `yaml:"print_clusters" mapstructure:"print_clusters"` // Print each multi-member cluster to the terminal
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console or json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Resolution: ResolutionConfig{
			DistanceThreshold:    0.15,
			NameField:            "canonical_name",
			Localized:            true,
			ListValuedAttributes: []string{"occupation"},
			ValidatedAttributes:  []string{},
		},
		Concurrency: ConcurrencyConfig{
			Workers:      runtime.NumCPU(),
			BatchWorkers: 4,
		},
		Output: OutputConfig{
			IncludeFooter: true,
			PrintClusters: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks options that would make every run meaningless
func (c *Config) Validate() error {
	r := c.Resolution
	if r.NameField == "" {
		return fmt.Errorf("%w: name field must not be empty", ErrInvalidConfiguration)
	}
	if r.DistanceThreshold < 0 || r.DistanceThreshold > 1 {
		return fmt.Errorf("%w: distance threshold %.4f outside [0,1]", ErrInvalidConfiguration, r.DistanceThreshold)
	}
	for _, attr := range r.ValidatedAttributes {
		if IsNameAttribute(attr, r.NameField) {
			return fmt.Errorf("%w: name field %q cannot be validated for conflicts", ErrInvalidConfiguration, attr)
		}
	}
	return nil
}

// IsNameAttribute reports whether attr is the clustering name field. The
// literal "name" is always treated as one.
func IsNameAttribute(attr, nameField string) bool {
	return attr == "name" || attr == nameField
}
