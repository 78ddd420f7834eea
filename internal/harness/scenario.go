package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/escalate/internal/device"
	"github.com/roach88/escalate/internal/rstmgr"
	"github.com/roach88/escalate/internal/sequencer"
)

// Scenario defines a conformance run of the escalation test on a simulated
// chip, with the faults to inject and what the relay must show.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	Config ScenarioConfig `yaml:"config,omitempty" json:"config,omitempty"`

	// Faults are injected into the simulated chip.
	Faults device.Faults `yaml:"faults,omitempty" json:"faults,omitempty"`

	// MaxBoots bounds the relay. Zero means DefaultMaxBoots.
	MaxBoots int `yaml:"max_boots,omitempty" json:"max_boots,omitempty"`

	// BootTimeoutMS bounds a single lifetime. Zero means DefaultBootTimeout.
	BootTimeoutMS int `yaml:"boot_timeout_ms,omitempty" json:"boot_timeout_ms,omitempty"`

	Expect Expect `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Assertions validate the console and hardware trace.
	// Supported types: console_contains, console_absent, console_order,
	// console_count, hw_event
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// ScenarioConfig mirrors the sequencer build configuration.
type ScenarioConfig struct {
	// VerificationEnabled defaults to true when omitted.
	VerificationEnabled *bool `yaml:"verification_enabled,omitempty" json:"verification_enabled,omitempty"`

	AlertSource string `yaml:"alert_source,omitempty" json:"alert_source,omitempty"`
	Alert       string `yaml:"alert,omitempty" json:"alert,omitempty"`
}

// Expect is the expected shape of the relay.
type Expect struct {
	// Pass is the expected firmware verdict. Nil means pass.
	Pass *bool `yaml:"pass,omitempty" json:"pass,omitempty"`

	// Boots, when set, must match the relay lifetime for lifetime.
	Boots []BootExpect `yaml:"boots,omitempty" json:"boots,omitempty"`
}

// BootExpect describes one expected lifetime. Empty fields are not checked.
type BootExpect struct {
	Cause  string `yaml:"cause,omitempty" json:"cause,omitempty"`
	Result string `yaml:"result,omitempty" json:"result,omitempty"`
}

// Assertion validates the relay trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "console_contains": a console line contains Marker
	// - "console_absent": no console line contains Marker
	// - "console_order": Markers appear in order
	// - "console_count": Marker appears exactly Count times
	// - "hw_event": the hardware event Event was recorded (Count times, if set)
	Type string `yaml:"type" json:"type"`

	Marker  string   `yaml:"marker,omitempty" json:"marker,omitempty"`
	Markers []string `yaml:"markers,omitempty" json:"markers,omitempty"`
	Event   string   `yaml:"event,omitempty" json:"event,omitempty"`

	// Boot restricts the assertion to one lifetime, counting from 1. Omitted
	// means the whole relay, including the power_on event recorded before
	// the first boot.
	Boot int `yaml:"boot,omitempty" json:"boot,omitempty"`

	// Count is required for console_count and optional for hw_event.
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertConsoleContains = "console_contains"
	AssertConsoleAbsent   = "console_absent"
	AssertConsoleOrder    = "console_order"
	AssertConsoleCount    = "console_count"
	AssertHWEvent         = "hw_event"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or fails validation.
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

// RelaySpec converts the scenario into the relay it describes.
func (s *Scenario) RelaySpec() RelaySpec {
	cfg := sequencer.DefaultConfig()
	if s.Config.VerificationEnabled != nil {
		cfg.VerificationEnabled = *s.Config.VerificationEnabled
	}
	if s.Config.AlertSource != "" {
		cfg.AlertSource = sequencer.NMISource(s.Config.AlertSource)
	}
	if s.Config.Alert != "" {
		cfg.Alert = sequencer.AlertID(s.Config.Alert)
	}
	return RelaySpec{
		Name:        s.Name,
		Sequencer:   cfg,
		Faults:      s.Faults,
		MaxBoots:    s.MaxBoots,
		BootTimeout: time.Duration(s.BootTimeoutMS) * time.Millisecond,
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.MaxBoots < 0 {
		return fmt.Errorf("max_boots must be non-negative")
	}

	if s.BootTimeoutMS < 0 {
		return fmt.Errorf("boot_timeout_ms must be non-negative")
	}

	for i, b := range s.Expect.Boots {
		if b.Cause != "" {
			if _, err := rstmgr.ParseCauseKind(b.Cause); err != nil {
				return fmt.Errorf("expect.boots[%d]: %w", i, err)
			}
		}
		switch device.Result(b.Result) {
		case "", device.ResultPass, device.ResultFail, device.ResultReset, device.ResultHung:
		default:
			return fmt.Errorf("expect.boots[%d]: unknown result %q", i, b.Result)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Boot < 0 {
		return fmt.Errorf("assertions[%d]: boot must be non-negative", index)
	}

	switch a.Type {
	case AssertConsoleContains, AssertConsoleAbsent:
		if a.Marker == "" {
			return fmt.Errorf("assertions[%d]: marker is required for %s", index, a.Type)
		}
	case AssertConsoleOrder:
		if len(a.Markers) == 0 {
			return fmt.Errorf("assertions[%d]: markers list is required for console_order", index)
		}
	case AssertConsoleCount:
		if a.Marker == "" {
			return fmt.Errorf("assertions[%d]: marker is required for console_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for console_count", index)
		}
	case AssertHWEvent:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for hw_event", index)
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for hw_event", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
