package strategy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/apply-agent/schemas"
)

// Parse decodes and validates a strategy definition from raw JSON. The
// document is checked against the JSON Schema first, then the decoded struct
// is validated and normalized.
func Parse(data []byte) (*Definition, error) {
	if err := validateAgainstSchema(data); err != nil {
		return nil, err
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, &ValidationError{Message: "invalid JSON", Cause: err}
	}

	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and parses one strategy definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "read failed", Cause: err}
	}

	def, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "parse failed", Cause: err}
	}
	return def, nil
}

// LoadDir loads every *.json strategy definition under dir. Files that fail
// validation are skipped and reported in the returned error slice; a bad file
// never prevents the rest from loading.
func LoadDir(dir string) ([]*Definition, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read strategies dir %s: %w", dir, err)}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var defs []*Definition
	var errs []error
	for _, name := range names {
		def, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, errs
}

// Validate checks the definition's required fields and the closed action set.
// Call Normalize first so domain aliases are folded in.
func (d *Definition) Validate() error {
	validate := validator.New()
	if err := validate.Struct(d); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, verr := range verrs {
				fields = append(fields, verr.Namespace())
			}
		}
		return &ValidationError{Message: "missing required fields", Fields: fields, Cause: err}
	}

	if len(d.Domains) == 0 {
		return &ValidationError{Message: "at least one domain is required", Fields: []string{"domains"}}
	}
	if d.Selectors.Empty() {
		return &ValidationError{Message: "at least one selector group is required", Fields: []string{"selectors"}}
	}
	if d.Workflow.Empty() {
		return &ValidationError{Message: "workflow has no steps", Fields: []string{"workflow"}}
	}

	for phase, steps := range map[string][]Step{
		"pre_application":  d.Workflow.PreApplication,
		"application":      d.Workflow.Application,
		"post_application": d.Workflow.PostApplication,
		"error_recovery":   d.Workflow.ErrorRecovery,
	} {
		for i, step := range steps {
			if !step.Action.Valid() {
				return &ValidationError{
					Message: fmt.Sprintf("unknown action %q in step %q", step.Action, step.Name),
					Fields:  []string{fmt.Sprintf("workflow.%s[%d].action", phase, i)},
				}
			}
			if step.RetryCount < 0 {
				return &ValidationError{
					Message: fmt.Sprintf("negative retry count in step %q", step.Name),
					Fields:  []string{fmt.Sprintf("workflow.%s[%d].retry_count", phase, i)},
				}
			}
			for j, fallback := range step.FallbackActions {
				if !fallback.Action.Valid() {
					return &ValidationError{
						Message: fmt.Sprintf("unknown fallback action %q in step %q", fallback.Action, step.Name),
						Fields:  []string{fmt.Sprintf("workflow.%s[%d].fallback_actions[%d]", phase, i, j)},
					}
				}
			}
		}
	}
	return nil
}

// validateAgainstSchema checks the raw document against the embedded JSON Schema.
func validateAgainstSchema(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemas.StrategySchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationError{Message: "schema validation failed", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	fields := make([]string, 0, len(result.Errors()))
	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		fields = append(fields, field)
		messages = append(messages, desc.Description())
	}
	return &ValidationError{
		Message: strings.Join(messages, "; "),
		Fields:  fields,
	}
}
