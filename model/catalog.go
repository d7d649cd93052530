package model

import "strings"

// Capability is one game operation reported by the rule oracle.
type Capability struct {
	Name        string   `json:"name"`
	Args        []string `json:"args"`
	Description string   `json:"description"`
}

// Catalog is the ordered set of capabilities learned in one cycle.
// Order only affects the rendered description.
type Catalog []Capability

// Render formats the catalog as one "- name(args): description" line per
// capability, in catalog order. An empty catalog renders as "".
func (c Catalog) Render() string {
	lines := make([]string, 0, len(c))
	for _, item := range c {
		lines = append(lines, item.String())
	}
	return strings.Join(lines, "\n")
}

// Names returns the capability names in catalog order.
func (c Catalog) Names() []string {
	out := make([]string, len(c))
	for i, item := range c {
		out[i] = item.Name
	}
	return out
}

func (c Capability) String() string {
	return "- " + c.Name + "(" + strings.Join(c.Args, ", ") + "): " + c.Description
}
