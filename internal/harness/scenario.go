package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Scenario is an expected operation sequence with optional assertions,
// loaded from YAML.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Operations are the expected operations in canonical encoded form.
	Operations []map[string]any `yaml:"operations"`

	// Assertions are checked against the dispatched sequence.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml scenario in dir, ordered by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Operations) == 0 {
		return fmt.Errorf("operations list is required and must be non-empty")
	}
	if _, err := s.Expected(); err != nil {
		return err
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// Expected decodes the scenario's operations.
func (s *Scenario) Expected() ([]operation.Operation, error) {
	ops := make([]operation.Operation, len(s.Operations))
	for i, raw := range s.Operations {
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		op, err := operation.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		if err := operation.Validate(op); err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		ops[i] = op
	}
	return ops, nil
}

// Provider returns a SequentialAssertionProvider expecting the scenario's
// operations.
func (s *Scenario) Provider(t TB) (*SequentialAssertionProvider, error) {
	ops, err := s.Expected()
	if err != nil {
		return nil, err
	}
	return New(t, ops...), nil
}

// Check evaluates every assertion against ops and joins the failures.
func (s *Scenario) Check(ops []operation.Operation) error {
	var errs []error
	for _, a := range s.Assertions {
		if err := Check(ops, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
