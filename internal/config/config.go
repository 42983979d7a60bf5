// Package config resolves engine-wide settings and the per-species mapping
// configuration (rules, display sources, description filters, consortium).
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Engine holds the run-wide settings, unmarshalled from viper
// (flags, environment, and the optional ~/.xrefmap.yaml).
type Engine struct {
	// Path to the xref store (DuckDB file).
	XrefDB string `mapstructure:"xref-db"`

	// Path to the core annotation store (DuckDB file).
	CoreDB string `mapstructure:"core-db"`

	// Directory where FASTA dumps, map files and outputs are written.
	WorkDir string `mapstructure:"workdir"`

	// Species name, e.g. danio_rerio.
	Species string `mapstructure:"species"`

	// Optional genomic slice name restricting the core dump.
	Location string `mapstructure:"location"`

	// Truncate the core transcript dump after this many transcripts.
	// Zero means no cap.
	MaxDump int `mapstructure:"maxdump"`

	// Skip FASTA dumping when every expected file already exists.
	DumpCheck bool `mapstructure:"dumpcheck"`

	// Skip dumping and alignment entirely; parse the map files on disk.
	UseExistingMappings bool `mapstructure:"use-existing-mappings"`

	// Bulk-load the tabular outputs and run the UPDATE scripts.
	Upload bool `mapstructure:"upload"`

	// Delete existing rows from the target tables before loading.
	Truncate bool `mapstructure:"truncate"`

	// Worker cap for the local scheduler. Zero means NumCPU.
	Workers int `mapstructure:"workers"`

	// Optional species-config YAML overriding the packaged defaults.
	SpeciesConfig string `mapstructure:"species-config"`
}

// FromViper builds the engine config from the current viper state.
func FromViper() (Engine, error) {
	var e Engine
	if err := viper.Unmarshal(&e); err != nil {
		return Engine{}, fmt.Errorf("decode settings: %w", err)
	}
	return e, nil
}

// Validate checks the settings a pipeline run cannot proceed without.
func (e Engine) Validate() error {
	if e.XrefDB == "" {
		return fmt.Errorf("xref-db is required")
	}
	if e.CoreDB == "" {
		return fmt.Errorf("core-db is required")
	}
	if e.WorkDir == "" {
		return fmt.Errorf("workdir is required")
	}
	if e.Species == "" {
		return fmt.Errorf("species is required")
	}
	return nil
}
