package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/invopop/jsonschema"

	"github.com/starford/crmdesk/internal/apperr"
	"github.com/starford/crmdesk/internal/draft"
)

// Component is a registered UI component.
type Component struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	PropName    string             `json:"propName,omitempty"`
	Schema      *jsonschema.Schema `json:"schema"`
	Form        bool               `json:"form"`

	render func(ctx context.Context, raw json.RawMessage) (any, error)
	submit func(ctx context.Context, d draft.Draft) (any, error)
}

// View is what invoking a component produces.
type View struct {
	Component string `json:"component"`
	Data      any    `json:"data"`
}

// SchemaJSON returns the component's input schema as JSON.
func (c *Component) SchemaJSON() (json.RawMessage, error) {
	return json.Marshal(c.Schema)
}

// Registry maps component names to their schema and render function.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Component
	order  []string
	drafts *draft.Book
}

// NewRegistry returns an empty registry with its own draft book.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Component),
		drafts: draft.NewBook(),
	}
}

// Register adds a component whose props are of type P, wrapped under prop.
// Props are validated before render is called.
func Register[P any](r *Registry, name, description, prop string, render func(context.Context, P) (any, error)) error {
	inner := Reflect(new(P))
	c := &Component{
		Name:        name,
		Description: description,
		PropName:    prop,
		Schema:      WrapSchema(inner, prop),
	}
	c.render = func(ctx context.Context, raw json.RawMessage) (any, error) {
		props, err := decodeProps[P](raw, prop, inner)
		if err != nil {
			return nil, fmt.Errorf("assistant: %s: %w", name, err)
		}
		return render(ctx, props)
	}
	return r.add(c)
}

// RegisterForm adds a form component. fields turns validated props into the
// partial update merged into the form's draft; submit turns the draft into a
// mutation.
func RegisterForm[P any](r *Registry, name, description, prop string,
	fields func(context.Context, draft.Draft, P) (map[string]any, error),
	submit func(context.Context, draft.Draft) (any, error),
) error {
	inner := Reflect(new(P))
	c := &Component{
		Name:        name,
		Description: description,
		PropName:    prop,
		Schema:      WrapSchema(inner, prop),
		Form:        true,
		submit:      submit,
	}
	c.render = func(ctx context.Context, raw json.RawMessage) (any, error) {
		props, err := decodeProps[P](raw, prop, inner)
		if err != nil {
			return nil, fmt.Errorf("assistant: %s: %w", name, err)
		}
		update, err := fields(ctx, r.drafts.Get(name), props)
		if err != nil {
			return nil, fmt.Errorf("assistant: %s: %w", name, err)
		}
		return r.drafts.Merge(name, update), nil
	}
	return r.add(c)
}

func (r *Registry) add(c *Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[c.Name]; dup {
		return fmt.Errorf("assistant: component %q already registered", c.Name)
	}
	r.byName[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// Lookup returns the named component.
func (r *Registry) Lookup(name string) (*Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Components returns every component in registration order.
func (r *Registry) Components() []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Component, len(r.order))
	for i, n := range r.order {
		out[i] = r.byName[n]
	}
	return out
}

// Invoke validates raw props against the component's schema and renders it.
func (r *Registry) Invoke(ctx context.Context, name string, raw json.RawMessage) (View, error) {
	c, err := r.component(name)
	if err != nil {
		return View{}, err
	}
	data, err := c.render(ctx, raw)
	if err != nil {
		return View{}, err
	}
	return View{Component: name, Data: data}, nil
}

// Draft returns the current draft of a form component.
func (r *Registry) Draft(name string) (draft.Draft, error) {
	if _, err := r.form(name); err != nil {
		return draft.Draft{}, err
	}
	return r.drafts.Get(name), nil
}

// EditDraft applies user edits to a form's draft.
func (r *Registry) EditDraft(name string, fields map[string]any) (draft.Draft, error) {
	if _, err := r.form(name); err != nil {
		return draft.Draft{}, err
	}
	return r.drafts.Edit(name, fields), nil
}

// ResetDraft discards a form's draft.
func (r *Registry) ResetDraft(name string) error {
	if _, err := r.form(name); err != nil {
		return err
	}
	r.drafts.Reset(name)
	return nil
}

// Submit runs the form's mutation on its current draft. The draft is
// discarded on success and kept on failure.
func (r *Registry) Submit(ctx context.Context, name string) (any, error) {
	c, err := r.form(name)
	if err != nil {
		return nil, err
	}
	out, err := c.submit(ctx, r.drafts.Get(name))
	if err != nil {
		return nil, err
	}
	r.drafts.Reset(name)
	return out, nil
}

func (r *Registry) component(name string) (*Component, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("assistant: %q: %w", name, apperr.ErrUnknownComponent)
	}
	return c, nil
}

func (r *Registry) form(name string) (*Component, error) {
	c, err := r.component(name)
	if err != nil {
		return nil, err
	}
	if !c.Form {
		return nil, fmt.Errorf("assistant: %q is not a form: %w", name, apperr.ErrInvalid)
	}
	return c, nil
}

// decodeProps unwraps prop from raw, checks the inner schema's required
// keys, strictly decodes into P and runs P's validation rules.
func decodeProps[P any](raw json.RawMessage, prop string, inner *jsonschema.Schema) (P, error) {
	var props P
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return props, invalid(fmt.Errorf("props must be a JSON object: %w", err))
	}

	payload := raw
	if prop != "" {
		v, ok := top[prop]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return props, invalid(fmt.Errorf("missing required property %q", prop))
		}
		for k := range top {
			if k != prop {
				return props, invalid(fmt.Errorf("unexpected property %q", k))
			}
		}
		payload = v
	}

	if len(inner.Required) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			return props, invalid(fmt.Errorf("%s must be an object: %w", propLabel(prop), err))
		}
		for _, req := range inner.Required {
			if _, ok := fields[req]; !ok {
				return props, invalid(fmt.Errorf("%s: missing required field %q", propLabel(prop), req))
			}
		}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&props); err != nil {
		return props, invalid(err)
	}

	if v, ok := any(props).(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			return props, invalid(err)
		}
	}
	return props, nil
}

func propLabel(prop string) string {
	if prop == "" {
		return "props"
	}
	return prop
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
}
