// Package jsonschema validates candidate records against contract
// descriptors by compiling them to JSON Schema.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/docpipe/internal/core/domain"
)

type Validator struct{}

func New() *Validator { return &Validator{} }

func (v *Validator) Validate(value map[string]any, contract *domain.Contract) error {
	schema, err := compile(contract)
	if err != nil {
		return err
	}

	// Round-trip through JSON so numeric types match what the schema
	// library expects regardless of how the value was built.
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	var candidate any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return fmt.Errorf("unmarshal candidate: %w", err)
	}

	if err := schema.Validate(candidate); err != nil {
		return fmt.Errorf("value does not match contract %s: %w", contract.Name, err)
	}
	return nil
}

func compile(contract *domain.Contract) (*jsonschema.Schema, error) {
	if err := contract.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}
	b, err := json.Marshal(contract.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("contract.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("contract.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
