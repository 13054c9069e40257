package catalog

import (
	"sort"
	"strings"
)

// Parameter describes one argument a tool accepts.
type Parameter struct {
	Type        string   `json:"type"` // "string", "integer", "number", "boolean"
	Description string   `json:"description"`
	Required    bool     `json:"-"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// Definition is one callable tool. Immutable after catalog construction;
// identity is the name.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]Parameter

	// Targeting semantics, consumed by the dispatcher.
	RequiresTarget bool
	MultiTarget    bool     // tool acts on every resolved entity ("all lights")
	ColorParam     string   // name of the color argument, "" if none
	Domains        []string // implicit domain filter, nil = any
}

// Catalog is a fixed, ordered set of tool definitions. It is built once at
// startup and never mutated afterwards.
type Catalog struct {
	defs   []Definition
	byName map[string]Definition
}

// New builds a catalog from the builtin definitions. enabled narrows the
// catalog to the named tools; nil or empty keeps everything.
func New(enabled []string) *Catalog {
	allow := map[string]bool{}
	for _, name := range enabled {
		name = strings.TrimSpace(name)
		if name != "" {
			allow[name] = true
		}
	}

	c := &Catalog{byName: map[string]Definition{}}
	for _, def := range builtinDefinitions() {
		if len(allow) > 0 && !allow[def.Name] {
			continue
		}
		c.defs = append(c.defs, def)
		c.byName[def.Name] = def
	}
	sort.Slice(c.defs, func(i, j int) bool { return c.defs[i].Name < c.defs[j].Name })
	return c
}

// List returns the definitions in a stable order.
func (c *Catalog) List() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get looks a definition up by name.
func (c *Catalog) Get(name string) (Definition, bool) {
	def, ok := c.byName[name]
	return def, ok
}

// JSONSchema renders the parameter schema of a definition in the shape the
// model collaborator expects for function calling.
func (d Definition) JSONSchema() map[string]interface{} {
	properties := map[string]interface{}{}
	var required []string

	names := make([]string, 0, len(d.Parameters))
	for name := range d.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := d.Parameters[name]
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		properties[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
