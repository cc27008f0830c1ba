package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/ethereum-optimism/infra/op-tester/types"
	"gopkg.in/yaml.v3"
)

// Plan adds marks to registered tests without touching the code that
// registers them.
//
//	suites:
//	  math:
//	    disabled: [slow_div]
//	    no_parallel: [shared_counter]
//	tests:
//	  strings/upper[2]: [disabled, no_parallel]
type Plan struct {
	Suites map[string]SuitePlan `yaml:"suites"`
	Tests  map[string][]string  `yaml:"tests,omitempty"`
}

// SuitePlan lists the test ids of one suite that receive each mark.
type SuitePlan struct {
	Disabled   []string `yaml:"disabled,omitempty"`
	NoParallel []string `yaml:"no_parallel,omitempty"`
}

// LoadPlan reads a plan from a YAML file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to read plan %s: %w", path, err)}
	}
	return ParsePlan(data)
}

// ParsePlan decodes a plan document.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to parse plan: %w", err)}
	}
	return &p, nil
}

// ApplyPlan adds the plan's marks to registered tests. Every suite and test
// named by the plan must already be registered. Suites are applied in name
// order so the first reported error is stable.
func (b *Builder) ApplyPlan(p *Plan) error {
	if p == nil {
		return nil
	}

	names := make([]string, 0, len(p.Suites))
	for name := range p.Suites {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.mu.Lock()
		sb, ok := b.index[name]
		b.mu.Unlock()
		if !ok {
			return &ConfigError{ID: types.FullID{Suite: name}, Err: ErrUnknownSuite}
		}

		sp := p.Suites[name]
		for _, id := range sp.Disabled {
			if err := sb.mark(id, types.FlagDisabled); err != nil {
				return err
			}
		}
		for _, id := range sp.NoParallel {
			if err := sb.mark(id, types.FlagNoParallel); err != nil {
				return err
			}
		}
		b.log.Debug("Applied plan", "suite", name, "disabled", len(sp.Disabled), "noParallel", len(sp.NoParallel))
	}

	keys := make([]string, 0, len(p.Tests))
	for key := range p.Tests {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		id, err := types.ParseFullID(key)
		if err != nil {
			return &ConfigError{Err: err}
		}
		b.mu.Lock()
		sb, ok := b.index[id.Suite]
		b.mu.Unlock()
		if !ok {
			return &ConfigError{ID: id, Err: ErrUnknownSuite}
		}
		for _, name := range p.Tests[key] {
			flag, err := types.ParseFlag(name)
			if err != nil {
				return &ConfigError{ID: id, Err: err}
			}
			if err := sb.mark(id.Test, flag); err != nil {
				return err
			}
		}
	}
	return nil
}
