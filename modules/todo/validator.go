package todo

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrBatchRejected is returned when a batch is structurally invalid. One
// malformed action invalidates the entire submission: nothing is applied.
var ErrBatchRejected = errors.New("batch rejected")

// flatPayloadSchema constrains every payload value to a scalar. It applies
// to all actions, including unrecognized kinds.
const flatPayloadSchema = `{
	"type": "object",
	"additionalProperties": { "type": ["string", "number", "boolean", "null"] }
}`

// requiredFields lists the payload fields each recognized kind must carry.
var requiredFields = map[domain.ActionKind][]string{
	domain.KindCreateCollection: {"uuid", "name"},
	domain.KindDeleteCollection: {"uuid"},
	domain.KindCreateItem:       {"uuid", "inCollection", "name"},
	domain.KindUpdateItem:       {"uuid"},
	domain.KindDeleteItem:       {"uuid"},
}

// Validator classifies raw actions before any mutation is attempted. It is a
// pure predicate: it never touches storage.
type Validator struct {
	base   *jsonschema.Schema
	byKind map[domain.ActionKind]*jsonschema.Schema
}

// NewValidator compiles the per-kind payload schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := addSchema(compiler, "flat.json", flatPayloadSchema); err != nil {
		return nil, err
	}
	for kind, required := range requiredFields {
		if err := addSchema(compiler, string(kind)+".json", kindSchema(required)); err != nil {
			return nil, err
		}
	}

	base, err := compiler.Compile("flat.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile payload schema: %w", err)
	}
	byKind := make(map[domain.ActionKind]*jsonschema.Schema, len(requiredFields))
	for kind := range requiredFields {
		sch, err := compiler.Compile(string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
		}
		byKind[kind] = sch
	}

	return &Validator{base: base, byKind: byKind}, nil
}

// addSchema parses a raw schema document and registers it with the compiler.
func addSchema(compiler *jsonschema.Compiler, name, raw string) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse schema %s: %w", name, err)
	}
	if err := compiler.AddResource(name, doc); err != nil {
		return fmt.Errorf("failed to add schema %s: %w", name, err)
	}
	return nil
}

// kindSchema builds the schema document for one recognized kind: required
// fields plus the scalar-only constraint on every value.
func kindSchema(required []string) string {
	quoted := make([]string, len(required))
	for i, field := range required {
		quoted[i] = fmt.Sprintf("%q", field)
	}
	return fmt.Sprintf(`{
	"type": "object",
	"required": [%s],
	"additionalProperties": { "type": ["string", "number", "boolean", "null"] }
}`, strings.Join(quoted, ", "))
}

// Known reports whether the kind is a recognized action type. Unknown kinds
// are skipped by the applier, never rejected.
func (v *Validator) Known(kind domain.ActionKind) bool {
	_, ok := v.byKind[kind]
	return ok
}

// Check classifies one raw action. A structured payload value, or a missing
// required field on a recognized kind, yields an ErrBatchRejected error.
func (v *Validator) Check(action domain.Action) error {
	payload := action.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	sch, ok := v.byKind[action.Kind]
	if !ok {
		// Unrecognized kinds still get the flat-payload check: the
		// structural invariant holds for the whole submission.
		sch = v.base
	}
	if err := sch.Validate(payload); err != nil {
		return fmt.Errorf("%w: action %q: %v", ErrBatchRejected, action.Kind, err)
	}
	return nil
}

// CheckBatch runs the pre-mutation pass over the whole batch. The first
// invalid action rejects the entire submission.
func (v *Validator) CheckBatch(actions []domain.Action) error {
	for i, action := range actions {
		if err := v.Check(action); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}
