// Package config loads declarative workflow definitions from YAML or JSON:
// the participant roster, the handoff routes between them, the coordinator,
// the termination phrases and the routing limits. A definition yields a
// validated routing graph plus engine options, so hosts can keep workflow
// topology in configuration instead of code.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/handoffmesh/core"
	"github.com/hupe1980/handoffmesh/engine"
	"github.com/hupe1980/handoffmesh/graph"
)

// ParticipantDefinition declares one participant and its permitted handoffs.
type ParticipantDefinition struct {
	ID               string   `yaml:"id" json:"id"`
	Description      string   `yaml:"description,omitempty" json:"description,omitempty"`
	HandoffsTo       []string `yaml:"handoffs_to,omitempty" json:"handoffs_to,omitempty"`
	AllowSelfHandoff bool     `yaml:"allow_self_handoff,omitempty" json:"allow_self_handoff,omitempty"`
}

// TerminationDefinition declares when a run's conversation ends.
type TerminationDefinition struct {
	ExitPhrases []string `yaml:"exit_phrases,omitempty" json:"exit_phrases,omitempty"`
}

// WorkflowDefinition is the root of a declarative workflow file.
type WorkflowDefinition struct {
	Name         string                  `yaml:"name" json:"name"`
	Coordinator  string                  `yaml:"coordinator" json:"coordinator"`
	Participants []ParticipantDefinition `yaml:"participants" json:"participants"`
	Termination  TerminationDefinition   `yaml:"termination,omitempty" json:"termination,omitempty"`
	HopLimit     int                     `yaml:"hop_limit,omitempty" json:"hop_limit,omitempty"`
	AutoAdvance  *bool                   `yaml:"auto_advance,omitempty" json:"auto_advance,omitempty"`
}

// LoadFile reads a workflow definition; the format is detected from the file
// extension (.yaml, .yml, .json).
func LoadFile(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow definition: %w", err)
	}

	format := detectFormat(path)
	if format == "" {
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}

	return LoadBytes(data, format)
}

// LoadBytes parses raw bytes in the given format ("yaml" or "json").
func LoadBytes(data []byte, format string) (*WorkflowDefinition, error) {
	var def WorkflowDefinition

	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q, use \"yaml\" or \"json\"", format)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate checks the definition for structural problems the graph builder
// cannot name as clearly (empty roster, missing coordinator field).
func (d *WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("workflow definition needs a name")
	}
	if d.Coordinator == "" {
		return fmt.Errorf("workflow %q: no coordinator declared", d.Name)
	}
	if len(d.Participants) == 0 {
		return fmt.Errorf("workflow %q: no participants declared", d.Name)
	}
	return nil
}

// Graph builds the validated routing graph described by the definition.
// Routing violations surface as *graph.InvalidGraphError.
func (d *WorkflowDefinition) Graph() (*graph.Graph, error) {
	b := graph.NewBuilder().SetCoordinator(d.Coordinator)
	for _, p := range d.Participants {
		b.AddParticipant(p.ID)
		if len(p.HandoffsTo) > 0 {
			b.AddHandoff(p.ID, p.HandoffsTo...)
		}
		if p.AllowSelfHandoff {
			b.AllowSelfHandoff(p.ID)
		}
	}
	return b.Build()
}

// TerminationCondition returns the condition declared by the definition,
// falling back to the default exit phrases.
func (d *WorkflowDefinition) TerminationCondition() core.Condition {
	return core.ExitPhrases(d.Termination.ExitPhrases...)
}

// EngineConfig returns base with the definition's routing limits applied on
// top. Hosts that assemble an engine.Config themselves (for example through
// the handoffmesh facade) use this to make the workflow file authoritative.
func (d *WorkflowDefinition) EngineConfig(base engine.Config) engine.Config {
	if d.HopLimit > 0 {
		base.HopLimit = d.HopLimit
	}
	if d.AutoAdvance != nil {
		base.AutoAdvance = *d.AutoAdvance
	}
	return base
}

// EngineOptions returns a functional option applying the definition's
// routing limits on top of the engine defaults.
func (d *WorkflowDefinition) EngineOptions() func(o *engine.Options) {
	return func(o *engine.Options) {
		o.Config = d.EngineConfig(o.Config)
	}
}

// detectFormat returns "yaml" or "json" based on the file extension, or ""
// if unknown.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
