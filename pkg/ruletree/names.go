package ruletree

import "strings"

// FinalName returns the first name that is not blank, trimmed. Callers pass the
// target name first, then the predicted or database names in fallback order.
func FinalName(names ...string) string {
	for _, n := range names {
		if t := strings.TrimSpace(n); t != "" {
			return t
		}
	}
	return ""
}

// FinalName returns the schema's target name, else its database name.
func (s *Schema) FinalName() string {
	return FinalName(s.Rule.NewName, s.Rule.SchemaName)
}

// FinalName returns the entity's target name, else its expected generated name,
// else the name predicted from its table.
func (e *Entity) FinalName() string {
	return FinalName(e.Rule.NewName, e.Rule.EntityName, e.predicted, e.Rule.Name)
}

// ExpectedName is the name the translator generates for the entity before any rename.
func (e *Entity) ExpectedName() string {
	return FinalName(e.Rule.EntityName, e.predicted, e.Rule.Name)
}

// FinalName returns the property's target name, else the name predicted from its column.
func (p *Property) FinalName() string {
	return FinalName(p.Rule.NewName, p.predicted, p.Rule.Name)
}

// FinalName returns the navigation's target name, else its predicted name.
func (n *Navigation) FinalName() string {
	return FinalName(n.Rule.NewName, n.Rule.Name, n.Rule.AlternateName)
}

// Path returns a dotted path used as the subject of log messages.
func (e *Entity) Path() string {
	return joinPath(e.schema.Rule.SchemaName, FinalName(e.Rule.Name, e.FinalName()))
}

// Path returns a dotted path used as the subject of log messages.
func (p *Property) Path() string {
	return joinPath(p.entity.Path(), p.Rule.Name)
}

// Path returns a dotted path used as the subject of log messages.
func (n *Navigation) Path() string {
	return joinPath(n.entity.Path(), FinalName(n.Rule.Name, n.Rule.FkName))
}

func joinPath(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}
