// Package assistant describes the UI components an assistant runtime may
// render and dispatches its calls to them.
package assistant

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
	ExpandedStruct: true,
}

// Reflect converts the type of v to a JSON Schema with every nested type
// inlined. Fields without omitempty are required.
func Reflect(v any) *jsonschema.Schema {
	return reflector.Reflect(v)
}

// WrapSchema returns a schema whose single required property prop holds s.
// It tells the assistant to produce one complete object under prop rather
// than flattened top-level fields. An empty prop returns s unchanged.
func WrapSchema(s *jsonschema.Schema, prop string) *jsonschema.Schema {
	if prop == "" {
		return s
	}
	props := jsonschema.NewProperties()
	props.Set(prop, s)
	return &jsonschema.Schema{
		Title:       prop + " Object Input",
		Description: fmt.Sprintf("This schema expects a complete object to be passed as the '%s' property.", prop),
		Type:        "object",
		Properties:  props,
		Required:    []string{prop},
	}
}
