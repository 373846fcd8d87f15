package harness

import (
	"bytes"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: fixtures to seed, statements to
// run and assertions over the resulting trace and store.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MetadataCollection overrides the collection holding auto-increment
	// counters.
	MetadataCollection string `yaml:"metadata_collection,omitempty"`

	// Fixtures are seeded before the first step, keyed by collection.
	Fixtures map[string][]Document `yaml:"fixtures,omitempty"`

	// Steps run in order on one cursor.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and store.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Fetch modes for a step.
const (
	FetchAll  = "all"
	FetchOne  = "one"
	FetchMany = "many"
	FetchNone = "none"
)

// Step executes one statement.
type Step struct {
	SQL    string `yaml:"sql"`
	Params Values `yaml:"params,omitempty"`

	// Fetch selects how rows are read after a successful Execute. Empty
	// means FetchAll.
	Fetch string `yaml:"fetch,omitempty"`

	// Size is the FetchMany batch size.
	Size int `yaml:"size,omitempty"`

	// Expect is checked against the step's outcome. Without it the step
	// must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step's expected outcome. Unset fields are not
// checked.
type Expect struct {
	Rows         *[]Values `yaml:"rows,omitempty"`
	Columns      []string  `yaml:"columns,omitempty"`
	RowCount     *int64    `yaml:"row_count,omitempty"`
	LastInsertID *Literal  `yaml:"last_insert_id,omitempty"`

	// Error is a substring of the expected error, such as "DECODE_ERROR".
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the statement kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Collection is matched against the trace (trace_contains) or read
	// from the store (final_state, document_count).
	Collection string `yaml:"collection,omitempty"`

	// Where selects one document by top-level field equality (final_state).
	Where Document `yaml:"where,omitempty"`

	// Expect lists fields the selected document must have (final_state).
	Expect Document `yaml:"expect,omitempty"`

	// Count is the expected number of statements or documents.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertDocumentCount = "document_count"
)

// Document is a YAML mapping decoded into a bson.D with its key order
// intact.
type Document bson.D

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Document) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	v, err := nodeValue(n)
	if err != nil {
		return err
	}
	*d = Document(v.(bson.D))
	return nil
}

// Values is a YAML sequence whose nested mappings decode as bson.D.
type Values []any

// UnmarshalYAML implements yaml.Unmarshaler.
func (vs *Values) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a sequence", n.Line)
	}
	v, err := nodeValue(n)
	if err != nil {
		return err
	}
	*vs = Values(v.(bson.A))
	return nil
}

// Literal is a single expected value of any YAML shape.
type Literal struct {
	Value any
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Literal) UnmarshalYAML(n *yaml.Node) error {
	v, err := nodeValue(n)
	if err != nil {
		return err
	}
	l.Value = v
	return nil
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		doc := make(bson.D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: n.Content[i].Value, Value: v})
		}
		return doc, nil
	case yaml.SequenceNode:
		arr := make(bson.A, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.SQL == "" {
			return fmt.Errorf("steps[%d]: sql is required", i)
		}
		switch step.Fetch {
		case "", FetchAll, FetchOne, FetchNone:
		case FetchMany:
			if step.Size < 1 {
				return fmt.Errorf("steps[%d]: size must be positive for fetch many", i)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown fetch mode %q", i, step.Fetch)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertDocumentCount:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for document_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for document_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
