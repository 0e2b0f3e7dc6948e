// Package ffi describes the shape of a Seq FFI manifest — the
// "[[library.function]]" declarations a TOML file maps a host C symbol
// onto a Seq word's stack effect — and validates a manifest decoded to
// JSON against a fixed JSON Schema before the resolver and codegen
// trust it.
//
// Per spec.md §1, the TOML front end itself ("the FFI manifest loader,
// a TOML -> binding declaration translator") is an external
// collaborator out of scope for this module; what lives here is the
// declaration shape plus the validation step any loader (TOML, JSON,
// or otherwise) must run a decoded manifest through.
package ffi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PassMode is how one C function argument receives its value.
type PassMode string

const (
	PassCString PassMode = "c_string"
	PassPtr     PassMode = "ptr"
	PassByRef   PassMode = "by_ref"
	PassValue   PassMode = "value"
)

// Arg is one declared C-function argument.
type Arg struct {
	Type  string   `json:"type"`
	Pass  PassMode `json:"pass"`
	Value string   `json:"value,omitempty"` // literal value, when the arg is fixed rather than popped from the stack
}

// Return describes a C function's return value, if any.
type Return struct {
	Type string `json:"type"`
}

// Function is one "[[library.function]]" entry: a binding between a
// host C symbol and a Seq word with a declared stack effect.
type Function struct {
	CName       string  `json:"c_name"`
	SeqName     string  `json:"seq_name"`
	StackEffect string  `json:"stack_effect"` // textual Seq effect, e.g. "( String -- Int )"
	Args        []Arg   `json:"args"`
	Return      *Return `json:"return,omitempty"`
}

// Library is one manifest's declarations for a single native library.
type Library struct {
	Name     string     `json:"name"`
	Function []Function `json:"function"`
}

// Manifest is the fully decoded form of an FFI manifest file.
type Manifest struct {
	Library []Library `json:"library"`
}

// manifestSchema is the JSON Schema every decoded manifest must satisfy
// before the resolver will honor its "ffi:<name>" references. It is
// deliberately conservative: missing fields are the loader's bug to
// report, not something codegen should guess at.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["library"],
  "properties": {
    "library": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "function"],
        "properties": {
          "name": { "type": "string", "minLength": 1 },
          "function": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["c_name", "seq_name", "stack_effect"],
              "properties": {
                "c_name": { "type": "string", "minLength": 1 },
                "seq_name": { "type": "string", "minLength": 1 },
                "stack_effect": { "type": "string", "minLength": 1 },
                "args": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["type", "pass"],
                    "properties": {
                      "type": { "type": "string" },
                      "pass": { "enum": ["c_string", "ptr", "by_ref", "value"] },
                      "value": { "type": "string" }
                    }
                  }
                },
                "return": {
                  "type": "object",
                  "required": ["type"],
                  "properties": { "type": { "type": "string" } }
                }
              }
            }
          }
        }
      }
    }
  }
}`

// Validator compiles the manifest schema once and validates decoded
// manifest documents against it.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the fixed manifest schema. It only fails if
// manifestSchema itself is malformed, which would be a bug in this
// package, not a caller error.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema://ffi-manifest.json", strings.NewReader(manifestSchema)); err != nil {
		return nil, fmt.Errorf("ffi: compiling built-in manifest schema: %w", err)
	}
	schema, err := compiler.Compile("schema://ffi-manifest.json")
	if err != nil {
		return nil, fmt.Errorf("ffi: compiling built-in manifest schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a decoded manifest document (as produced by a TOML
// or JSON front end, already turned into generic map/slice/scalar
// values) against the manifest schema.
func (v *Validator) Validate(doc interface{}) error {
	if err := v.schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("ffi manifest validation failed: %s", formatValidationError(ve))
		}
		return fmt.Errorf("ffi manifest validation failed: %w", err)
	}
	return nil
}

// Decode validates doc and unmarshals it into a typed Manifest. doc
// must already be JSON-compatible (map[string]interface{}, etc.) —
// callers coming from TOML are expected to round-trip through
// encoding/json or an equivalent generic-value conversion first.
func (v *Validator) Decode(doc interface{}) (*Manifest, error) {
	if err := v.Validate(doc); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ffi: re-marshaling validated manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("ffi: decoding validated manifest: %w", err)
	}
	return &m, nil
}

func formatValidationError(ve *jsonschema.ValidationError) string {
	if len(ve.Causes) == 0 {
		return fmt.Sprintf("%s: %s", ve.InstanceLocation, ve.Message)
	}
	var parts []string
	for _, cause := range ve.Causes {
		parts = append(parts, formatValidationError(cause))
	}
	return strings.Join(parts, "; ")
}
