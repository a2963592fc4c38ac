// Package scenario loads YAML tree scenarios and replays them against an RBTree,
// validating every invariant after each single key operation.
package scenario

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Scenario errors.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownBuiltin  = errors.New("unknown builtin scenario")
)

// Op names a scenario step.
type Op string

// Step operations.
const (
	OpInsert   Op = "insert"
	OpDelete   Op = "delete"
	OpExpect   Op = "expect"
	OpContains Op = "contains"
	OpAbsent   Op = "absent"
	OpValidate Op = "validate"
	OpClear    Op = "clear"
)

// Step is one scenario instruction.
type Step struct {
	Op   Op      `yaml:"op"`
	Keys []int32 `yaml:"keys,omitempty"`
}

// Scenario is an ordered list of steps replayed on a fresh tree.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

//go:embed schema.json
var schemaJSON []byte

//go:embed builtin/*.yaml
var builtinFS embed.FS

const builtinDir = "builtin"

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Parse decodes a YAML scenario and checks it against the scenario JSON schema.
func Parse(data []byte) (*Scenario, error) {
	var raw any

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			problems = append(problems, verr.Field()+": "+verr.Description())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidScenario, strings.Join(problems, "; "))
	}

	var sc Scenario

	err = yaml.Unmarshal(data, &sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(filePath string) (*Scenario, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	return sc, nil
}

// Builtins lists the names of the embedded scenarios.
func Builtins() []string {
	entries, err := builtinFS.ReadDir(builtinDir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}

	slices.Sort(names)

	return names
}

// Builtin returns the embedded scenario called name.
func Builtin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile(path.Join(builtinDir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
	}

	return Parse(data)
}

// Resolve returns the builtin scenario called ref, or loads ref as a file path.
func Resolve(ref string) (*Scenario, error) {
	if slices.Contains(Builtins(), ref) {
		return Builtin(ref)
	}

	return Load(ref)
}
