package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fieldcheck/internal/asset"
)

// Scenario defines a field-check scenario: fixtures, the steps an operator
// and the network take, and assertions over the result.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Online is the connectivity signal's initial state.
	Online bool `yaml:"online"`

	// Remote seeds the fake asset service.
	Remote RemoteFixture `yaml:"remote,omitempty"`

	// Cache seeds the local asset cache before the first step.
	Cache []AssetFixture `yaml:"cache,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// RemoteFixture describes what the fake asset service knows.
type RemoteFixture struct {
	// Assets answer lookups by exact id.
	Assets []AssetFixture `yaml:"assets,omitempty"`

	// Searchable answer free-text searches.
	Searchable []AssetFixture `yaml:"searchable,omitempty"`
}

// AssetFixture is an asset record written in YAML.
type AssetFixture struct {
	AssetID        string `yaml:"asset_id"`
	AssetName      string `yaml:"asset_name,omitempty"`
	SerialNumber   string `yaml:"serial_number,omitempty"`
	Barcode        string `yaml:"barcode,omitempty"`
	Status         string `yaml:"status,omitempty"`
	DepartmentName string `yaml:"department_name,omitempty"`
	BuildingName   string `yaml:"building_name,omitempty"`
	RoomNumber     string `yaml:"room_number,omitempty"`
}

// Asset converts the fixture into a normalized asset record.
func (f AssetFixture) Asset() asset.ResolvedAsset {
	return asset.ResolvedAsset{
		AssetID:        f.AssetID,
		AssetName:      f.AssetName,
		SerialNumber:   f.SerialNumber,
		Barcode:        f.Barcode,
		Status:         asset.Status(f.Status),
		DepartmentName: f.DepartmentName,
		BuildingName:   f.BuildingName,
		RoomNumber:     f.RoomNumber,
	}.Normalized()
}

// Step is one thing that happens during a scenario.
type Step struct {
	// Do names the step: scan, submit, reset, drain, go_online, go_offline
	// or fail_submits.
	Do string `yaml:"do"`

	// Payload is the scanned text (scan).
	Payload string `yaml:"payload,omitempty"`

	// Status, Remark and Date describe the check (submit). Date defaults to
	// the harness clock's day.
	Status string `yaml:"status,omitempty"`
	Remark string `yaml:"remark,omitempty"`
	Date   string `yaml:"date,omitempty"`

	// Responses scripts the next remote submissions (fail_submits):
	// "ok", "transient" or "reject: <message>".
	Responses []string `yaml:"responses,omitempty"`

	// Expect is a subset match against the step's outcome.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step with Action whose outcome matches Outcome
	// - "trace_order": Actions appear in order
	// - "trace_count": Action appears exactly Count times
	// - "final_state": Subject's state matches Expect
	Type string `yaml:"type"`

	// Action is the step name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Outcome is a subset match against the step outcome (trace_contains).
	Outcome map[string]interface{} `yaml:"outcome,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Subject is queue, remote, session or cache (final_state).
	Subject string `yaml:"subject,omitempty"`

	// Where selects a record within Subject; cache takes asset_id.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected values (final_state). Subset match.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Step names.
const (
	StepScan        = "scan"
	StepSubmit      = "submit"
	StepReset       = "reset"
	StepDrain       = "drain"
	StepGoOnline    = "go_online"
	StepGoOffline   = "go_offline"
	StepFailSubmits = "fail_submits"
)

// Final state subjects.
const (
	SubjectQueue   = "queue"
	SubjectRemote  = "remote"
	SubjectSession = "session"
	SubjectCache   = "cache"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
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

// validateScenario checks that required fields are present and valid.
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

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, a := range append(append([]AssetFixture{}, s.Remote.Assets...), s.Cache...) {
		if a.AssetID == "" {
			return fmt.Errorf("fixture[%d]: asset_id is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its kind.
func validateStep(index int, s *Step) error {
	switch s.Do {
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	case StepScan:
		if s.Payload == "" {
			return fmt.Errorf("steps[%d]: payload is required for scan", index)
		}
	case StepSubmit:
		if s.Status == "" {
			return fmt.Errorf("steps[%d]: status is required for submit", index)
		}
		if s.Date != "" {
			if _, err := asset.ParseCheckDate(s.Date); err != nil {
				return fmt.Errorf("steps[%d]: %w", index, err)
			}
		}
	case StepFailSubmits:
		if len(s.Responses) == 0 {
			return fmt.Errorf("steps[%d]: responses is required for fail_submits", index)
		}
		for _, r := range s.Responses {
			if _, err := parseResponse(r); err != nil {
				return fmt.Errorf("steps[%d]: %w", index, err)
			}
		}
	case StepReset, StepDrain, StepGoOnline, StepGoOffline:
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, s.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		switch a.Subject {
		case SubjectQueue, SubjectRemote, SubjectSession, SubjectCache:
		case "":
			return fmt.Errorf("assertions[%d]: subject is required for final_state", index)
		default:
			return fmt.Errorf("assertions[%d]: unknown subject %q", index, a.Subject)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// parseResponse turns a scripted response into the error the fake remote
// returns. "ok" yields nil.
func parseResponse(r string) (scripted error, err error) {
	r = strings.TrimSpace(r)
	switch {
	case r == "ok":
		return nil, nil
	case r == "transient":
		return errTransient, nil
	case strings.HasPrefix(r, "reject:"):
		msg := strings.TrimSpace(strings.TrimPrefix(r, "reject:"))
		if msg == "" {
			return nil, fmt.Errorf("reject response needs a message")
		}
		return rejection(msg), nil
	}
	return nil, fmt.Errorf("unknown response %q", r)
}
