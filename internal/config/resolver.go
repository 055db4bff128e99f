package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical resolver defaults file.
const DefaultConfigPath = "config/resolver.defaults.json"

// ResolverConfig holds the tunable parameters of a merger-resolution run.
// Fields left out of a JSON file stay nil and the Get* methods fall back to
// built-in defaults, so partial configs are safe.
type ResolverConfig struct {
	// Energies
	NumStates    *int     `json:"num_states,omitempty"`
	BoundaryCost *float64 `json:"boundary_cost,omitempty"`

	// Transition costs of the flow re-solve
	TransitionParameter      *float64 `json:"transition_parameter,omitempty"`
	MinTransitionProbability *float64 `json:"min_transition_probability,omitempty"`

	// Shape fitting
	MaxFitIterations *int     `json:"max_fit_iterations,omitempty"`
	FitTolerance     *float64 `json:"fit_tolerance,omitempty"`

	Verbose *bool `json:"verbose,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

// EmptyResolverConfig returns a config with every field unset.
func EmptyResolverConfig() *ResolverConfig {
	return &ResolverConfig{}
}

// DefaultResolverConfig returns a config with every field set to its
// built-in default.
func DefaultResolverConfig() *ResolverConfig {
	c := EmptyResolverConfig()
	return &ResolverConfig{
		NumStates:                ptrInt(c.GetNumStates()),
		BoundaryCost:             ptrFloat64(c.GetBoundaryCost()),
		TransitionParameter:      ptrFloat64(c.GetTransitionParameter()),
		MinTransitionProbability: ptrFloat64(c.GetMinTransitionProbability()),
		MaxFitIterations:         ptrInt(c.GetMaxFitIterations()),
		FitTolerance:             ptrFloat64(c.GetFitTolerance()),
		Verbose:                  ptrBool(c.GetVerbose()),
	}
}

// LoadResolverConfig loads a ResolverConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadResolverConfig(path string) (*ResolverConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyResolverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for tests and binaries.
func MustLoadDefaultConfig() *ResolverConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/storage/sqlite/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadResolverConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set fields hold usable values.
func (c *ResolverConfig) Validate() error {
	if c.NumStates != nil && *c.NumStates < 1 {
		return fmt.Errorf("num_states must be at least 1, got %d", *c.NumStates)
	}
	if c.BoundaryCost != nil && *c.BoundaryCost < 0 {
		return fmt.Errorf("boundary_cost must be non-negative, got %f", *c.BoundaryCost)
	}
	if c.TransitionParameter != nil && *c.TransitionParameter <= 0 {
		return fmt.Errorf("transition_parameter must be positive, got %f", *c.TransitionParameter)
	}
	if c.MinTransitionProbability != nil {
		if p := *c.MinTransitionProbability; p <= 0 || p >= 1 {
			return fmt.Errorf("min_transition_probability must be in (0, 1), got %g", p)
		}
	}
	if c.MaxFitIterations != nil && *c.MaxFitIterations < 1 {
		return fmt.Errorf("max_fit_iterations must be at least 1, got %d", *c.MaxFitIterations)
	}
	if c.FitTolerance != nil && *c.FitTolerance < 0 {
		return fmt.Errorf("fit_tolerance must be non-negative, got %g", *c.FitTolerance)
	}
	return nil
}

// GetNumStates returns the num_states value or the default.
func (c *ResolverConfig) GetNumStates() int {
	if c.NumStates == nil {
		return 2
	}
	return *c.NumStates
}

// GetBoundaryCost returns the boundary_cost value or the default.
func (c *ResolverConfig) GetBoundaryCost() float64 {
	if c.BoundaryCost == nil {
		return 1.0
	}
	return *c.BoundaryCost
}

// GetTransitionParameter returns the transition_parameter value or the default.
func (c *ResolverConfig) GetTransitionParameter() float64 {
	if c.TransitionParameter == nil {
		return 5.0
	}
	return *c.TransitionParameter
}

// GetMinTransitionProbability returns the min_transition_probability value or the default.
func (c *ResolverConfig) GetMinTransitionProbability() float64 {
	if c.MinTransitionProbability == nil {
		return 1e-9
	}
	return *c.MinTransitionProbability
}

// GetMaxFitIterations returns the max_fit_iterations value or the default.
func (c *ResolverConfig) GetMaxFitIterations() int {
	if c.MaxFitIterations == nil {
		return 100
	}
	return *c.MaxFitIterations
}

// GetFitTolerance returns the fit_tolerance value or the default.
func (c *ResolverConfig) GetFitTolerance() float64 {
	if c.FitTolerance == nil {
		return 1e-4
	}
	return *c.FitTolerance
}

// GetVerbose returns the verbose value or the default.
func (c *ResolverConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}
