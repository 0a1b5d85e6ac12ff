// Package batch runs QC pipelines on cron schedules, so re-screens
// pick up assemblies delivered since the last run.
package batch

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Pipeline names a schedulable workflow
type Pipeline string

const (
	PipelineCompleteness  Pipeline = "completeness"
	PipelineContamination Pipeline = "contamination"
)

// BatchConfig represents one scheduled pipeline run
type BatchConfig struct {
	Name     string   `toml:"name"`
	Cron     string   `toml:"cron"`
	Pipeline Pipeline `toml:"pipeline"`
	Manifest string   `toml:"manifest"`
	Out      string   `toml:"out"`

	// Lineage applies to completeness batches; Refs (a reference set
	// YAML path) applies to contamination batches.
	Lineage string `toml:"lineage,omitempty"`
	Refs    string `toml:"refs,omitempty"`
}

// ScheduleConfig holds all batch configurations
type ScheduleConfig struct {
	Batches []BatchConfig `toml:"batch"`
}

// Validate checks if the config is valid
func (c *BatchConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("batch name is required")
	}
	if c.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(c.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	switch c.Pipeline {
	case PipelineCompleteness, PipelineContamination:
	default:
		return fmt.Errorf("unknown pipeline %q", c.Pipeline)
	}
	if c.Manifest == "" {
		return fmt.Errorf("manifest path is required")
	}
	if c.Pipeline == PipelineCompleteness && c.Lineage == "" {
		return fmt.Errorf("completeness batch needs a lineage")
	}
	if c.Pipeline == PipelineContamination && c.Refs == "" {
		return fmt.Errorf("contamination batch needs a reference set file")
	}
	return nil
}

// LoadScheduleConfig loads batch configuration from a TOML file
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleConfig{}, nil
		}
		return nil, err
	}

	var cfg ScheduleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Batches {
		if err := cfg.Batches[i].Validate(); err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
	}

	return &cfg, nil
}
