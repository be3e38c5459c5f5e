package domain

import (
	"fmt"
	"strings"
)

// FieldType tags the JSON shape of a contract field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// Field is one entry of a contract's ordered field list. Set marks an array
// field whose merged contributions must be deduplicated.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Set         bool      `json:"set,omitempty" yaml:"set,omitempty"`
	Items       FieldType `json:"items,omitempty" yaml:"items,omitempty"`
}

// Contract is an explicit, ordered schema descriptor. Field order is the
// deterministic merge order for paginated extraction.
type Contract struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

func (c *Contract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("contract has no name")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("contract %q has no fields", c.Name)
	}
	names := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("contract %q has an unnamed field", c.Name)
		}
		if names[f.Name] {
			return fmt.Errorf("contract %q has duplicate field %q", c.Name, f.Name)
		}
		names[f.Name] = true
		switch f.Type {
		case FieldString, FieldNumber, FieldInteger, FieldBoolean, FieldArray, FieldObject:
		default:
			return fmt.Errorf("contract %q field %q has unknown type %q", c.Name, f.Name, f.Type)
		}
	}
	return nil
}

// Field returns the descriptor for name, if present.
func (c *Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// JSONSchema renders the descriptor as a draft 2020-12 schema map suitable
// for both the model's structured-output hint and local validation.
func (c *Contract) JSONSchema() map[string]any {
	props := make(map[string]any, len(c.Fields))
	required := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Type == FieldArray {
			items := f.Items
			if items == "" {
				items = FieldString
			}
			prop["items"] = map[string]any{"type": string(items)}
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// PromptDescription renders the field list for inclusion in a model prompt.
func (c *Contract) PromptDescription() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contract %s fields:\n", c.Name)
	for _, f := range c.Fields {
		fmt.Fprintf(&b, "- %s (%s", f.Name, f.Type)
		if f.Type == FieldArray && f.Items != "" {
			fmt.Fprintf(&b, " of %s", f.Items)
		}
		b.WriteString(")")
		if f.Required {
			b.WriteString(" [required]")
		}
		if f.Description != "" {
			b.WriteString(": " + f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
