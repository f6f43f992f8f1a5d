// Package generation wraps a text-generation capability with structural
// validation and bounded retries.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrGenerationFailed is the only error a Client surfaces once every
	// attempt has been spent.
	ErrGenerationFailed = errors.New("generation failed after all attempts")

	ErrEmptyResponse = errors.New("empty response")
)

// Generator is a text-generation backend. One call is one attempt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

type Request struct {
	Instructions string
	Content      string
	// Persona sets tone; empty means backend default.
	Persona string
	// Schema constrains structured output; nil for free text.
	Schema *Schema
}

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema is a backend-neutral description of a JSON response shape.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	// PropertyOrdering fixes field order in generated output when the
	// backend supports it.
	PropertyOrdering []string
	Items            *Schema
	Required         []string
}
