package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Scenario defines one loop run and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Program names a built-in program (see Programs).
	Program string `yaml:"program" json:"program"`

	// LoopID fixes the loop ID. If empty, defaults to "test-loop-default".
	LoopID string `yaml:"loop_id,omitempty" json:"loop_id,omitempty"`

	Start Start `yaml:"start" json:"start"`

	// Events are dispatched in order, each after the loop is idle.
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	// SourceError, if set, is reported by the event source after all events.
	SourceError string `yaml:"source_error,omitempty" json:"source_error,omitempty"`

	Expect Expect `yaml:"expect" json:"expect"`
}

// Start is the start configuration of the loop.
type Start struct {
	// Model is the start model, or the Init seed when Init is set.
	Model string `yaml:"model" json:"model"`

	// Effects are handed to the effect handler before any event.
	Effects []string `yaml:"effects,omitempty" json:"effects,omitempty"`

	// Init runs the program's Init function on Model.
	Init bool `yaml:"init,omitempty" json:"init,omitempty"`
}

// Expect describes the expected outcome. Nil lists are not checked; an
// empty list asserts that nothing was produced.
type Expect struct {
	// Models is the full published model sequence, start model included.
	Models []string `yaml:"models,omitempty" json:"models,omitempty"`

	// Effects is every effect that reached the connection, in order.
	Effects []string `yaml:"effects,omitempty" json:"effects,omitempty"`

	// Error must be a substring of the start or terminal error. If empty,
	// the loop must start and be disposed without error.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// LoadScenario reads, schema-checks and decodes a .yaml, .yml or .cue file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields or fails the schema.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := checkYAML(path, data); err != nil {
			return nil, err
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&scenario); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}

	case ".cue":
		value, err := checkCUE(path, data)
		if err != nil {
			return nil, err
		}
		if err := value.Decode(&scenario); err != nil {
			return nil, fmt.Errorf("failed to decode CUE: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported scenario file type %q", ext)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ValidateScenario checks a scenario file against the schema without running
// it. The returned error lists every violation.
func ValidateScenario(path string) error {
	_, err := LoadScenario(path)
	return err
}

// LoadScenarios loads every scenario file under dir, sorted by path. If
// filter is non-empty, only files whose base name matches the glob are
// loaded.
func LoadScenarios(dir, filter string) ([]*Scenario, error) {
	paths, err := FindScenarioFiles(dir, filter)
	if err != nil {
		return nil, err
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// FindScenarioFiles returns the scenario files under dir, sorted.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, "x"); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isScenarioFile(path) {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, d.Name()); !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

func isScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// checkYAML validates YAML input against the schema. The document is decoded
// generically and encoded as a CUE value so both formats share one schema.
func checkYAML(path string, data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("%s: empty scenario", path)
	}

	ctx := cuecontext.New()
	schema, err := scenarioSchema(ctx)
	if err != nil {
		return err
	}
	return checkAgainst(schema, ctx.Encode(doc))
}

func checkCUE(path string, data []byte) (cue.Value, error) {
	ctx := cuecontext.New()
	schema, err := scenarioSchema(ctx)
	if err != nil {
		return cue.Value{}, err
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to compile CUE: %s", cueerrors.Details(err, nil))
	}

	unified := schema.Unify(value)
	if err := checkAgainst(schema, value); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}

func checkAgainst(schema, value cue.Value) error {
	if err := value.Err(); err != nil {
		return fmt.Errorf("schema violation: %s", cueerrors.Details(err, nil))
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema violation: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

func scenarioSchema(ctx *cue.Context) (cue.Value, error) {
	root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile scenario schema: %w", err)
	}
	return root.LookupPath(cue.ParsePath("#Scenario")), nil
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return fmt.Errorf("name %q must not contain spaces or path separators", s.Name)
	}
	if _, ok := LookupProgram(s.Program); !ok {
		return fmt.Errorf("unknown program %q (known: %s)", s.Program, strings.Join(ProgramNames(), ", "))
	}
	if s.Start.Init {
		if p, _ := LookupProgram(s.Program); p.Init == nil {
			return fmt.Errorf("program %q has no init function", s.Program)
		}
	}
	return nil
}
