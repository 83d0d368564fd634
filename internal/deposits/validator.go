package deposits

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation marks a metadata shape violation (hard reject, 422).
var ErrValidation = errors.New("deposit metadata validation failed")

// depositMetadataSchema is the wire contract for a deposit claim. Amount
// limits are policy and live in Config; the schema guards shape and formats.
const depositMetadataSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["amount_cents", "account_holder_name", "bank_name", "deposit_date"],
	"properties": {
		"amount_cents":        {"type": "integer", "minimum": 1},
		"account_holder_name": {"type": "string", "minLength": 1, "maxLength": 200},
		"account_number":      {"type": "string", "maxLength": 50},
		"bank_name":           {"type": "string", "minLength": 1, "maxLength": 200},
		"deposit_date":        {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"deposit_time":        {"type": "string", "pattern": "^[0-9]{2}:[0-9]{2}$"},
		"reference_number":    {"type": "string", "maxLength": 100},
		"comments":            {"type": "string", "maxLength": 1000}
	}
}`

// Validator compiles the deposit metadata schema once and checks submissions
// against it.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	schema, err := jsonschema.CompileString("deposit_metadata.json", depositMetadataSchema)
	if err != nil {
		return nil, fmt.Errorf("compile deposit metadata schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a metadata document. The document is round-tripped through
// encoding/json so the schema sees canonical JSON types regardless of how
// the caller built it.
func (v *Validator) Validate(doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := v.schema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
