package harness

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed scenario.cue
var scenarioSchema string

// SchemaError is one schema violation in a scenario file.
type SchemaError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidateSchema checks scenario YAML against the #Scenario CUE definition.
// It reports every violation found, not only the first.
func ValidateSchema(data []byte) []SchemaError {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []SchemaError{{Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}
	if doc == nil {
		return []SchemaError{{Message: "empty document"}}
	}

	// yaml.v3 yields map[string]any, so the document round-trips through JSON.
	raw, err := json.Marshal(doc)
	if err != nil {
		return []SchemaError{{Message: fmt.Sprintf("failed to encode document: %v", err)}}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(scenarioSchema).LookupPath(cue.ParsePath("#Scenario"))
	if err := schema.Err(); err != nil {
		return []SchemaError{{Message: fmt.Sprintf("scenario schema: %v", err)}}
	}

	value := ctx.CompileBytes(raw)
	if err := value.Err(); err != nil {
		return cueErrors(err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueErrors(err)
	}
	return nil
}

func cueErrors(err error) []SchemaError {
	var out []SchemaError
	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		se := SchemaError{Message: fmt.Sprintf(format, args...)}
		path := e.Path()
		if len(path) > 0 && path[0] == "#Scenario" {
			path = path[1:]
		}
		se.Path = strings.Join(path, ".")
		out = append(out, se)
	}
	if len(out) == 0 {
		out = append(out, SchemaError{Message: err.Error()})
	}
	return out
}
