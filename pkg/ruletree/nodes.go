package ruletree

import (
	"fmt"

	"github.com/leapstack-labs/ruler/pkg/core"
)

// Level identifies a level of the rule tree.
type Level int

// Tree levels.
const (
	LevelSchema Level = iota
	LevelEntity
	LevelProperty
	LevelNavigation
)

func (l Level) String() string {
	switch l {
	case LevelSchema:
		return "schema"
	case LevelEntity:
		return "entity"
	case LevelProperty:
		return "property"
	case LevelNavigation:
		return "navigation"
	default:
		return "unknown"
	}
}

// Node wraps one rule record for the duration of a resolution pass. The bound
// target is the identity of the catalog object the rule was matched to.
type Node[R any] struct {
	Rule *R

	predicted   string
	target      string
	synthesized bool
}

// Bind records the catalog object this rule matched. Binding the same target twice
// is a no-op; binding a different target is an error.
func (n *Node[R]) Bind(target string) error {
	if n.target != "" && n.target != target {
		return fmt.Errorf("rule already bound to %q, cannot rebind to %q", n.target, target)
	}
	n.target = target
	return nil
}

// Target returns the bound target, or "" when unbound.
func (n *Node[R]) Target() string { return n.target }

// IsBound reports whether the node was matched in this pass.
func (n *Node[R]) IsBound() bool { return n.target != "" }

// Synthesized reports whether the rule was created during resolution.
func (n *Node[R]) Synthesized() bool { return n.synthesized }

// Predicted returns the name the translator is predicted to generate.
func (n *Node[R]) Predicted() string { return n.predicted }

func (n *Node[R]) unbind() { n.target = "" }

// =============================================================================
// Schema
// =============================================================================

// Schema is the node for a SchemaRule.
type Schema struct {
	Node[core.SchemaRule]

	index     *Index
	duplicate bool

	entities    *Lookup[*Entity]
	altEntities *Lookup[*Entity]
	expected    *Lookup[*Entity]
	finals      *Lookup[*Entity]
	list        []*Entity
}

// Index returns the owning tree.
func (s *Schema) Index() *Index { return s.index }

// IsDuplicate reports whether an earlier schema rule has the same name.
func (s *Schema) IsDuplicate() bool { return s.duplicate }

// Entities returns the entity nodes in document order, duplicates included.
func (s *Schema) Entities() []*Entity { return s.list }

// Entity returns the entity rule for a table by exact database name.
func (s *Schema) Entity(table string) (*Entity, bool) { return s.entities.Get(table) }

// MatchTable finds the entity rule for a table: by database name, then by the
// rule's alternate database name, then by the expected entity name of rules that
// name no table.
func (s *Schema) MatchTable(table, predicted string) (*Entity, bool) {
	if e, ok := s.entities.Get(table); ok {
		return e, true
	}
	if e, ok := s.altEntities.Get(table); ok {
		return e, true
	}
	return s.expected.Get(predicted)
}

// EntityByFinalName finds an entity rule by its final name.
func (s *Schema) EntityByFinalName(name string) (*Entity, bool) { return s.finals.Get(name) }

// SynthesizeEntity appends a rule for a table not named in the document. The new
// rule includes every column.
func (s *Schema) SynthesizeEntity(table string) *Entity {
	rule := &core.EntityRule{Name: table, IncludeUnknownColumns: true}
	s.Rule.Entities = append(s.Rule.Entities, rule)
	e := s.addEntity(rule)
	e.synthesized = true
	s.index.synthesized(LevelEntity, e.Path())
	return e
}

func (s *Schema) addEntity(rule *core.EntityRule) *Entity {
	e := &Entity{
		Node:           Node[core.EntityRule]{Rule: rule},
		schema:         s,
		properties:     newLookup[*Property](),
		navigations:    newLookup[*Navigation](),
		altNavigations: newLookup[*Navigation](),
		fkEnds:         newLookup[*Navigation](),
	}
	if rule.Name != "" {
		e.predicted = s.index.predictor.Entity(rule.Name)
	}
	s.list = append(s.list, e)
	switch {
	case rule.Name != "":
		if !s.entities.Add(rule.Name, e) {
			e.duplicate = true
		} else {
			s.altEntities.Add(rule.AltName, e)
		}
	case rule.BaseTypeName == "":
		s.expected.Add(rule.EntityName, e)
	}
	if !e.duplicate {
		s.finals.Add(e.FinalName(), e)
	}
	return e
}

// =============================================================================
// Entity
// =============================================================================

// Entity is the node for an EntityRule.
type Entity struct {
	Node[core.EntityRule]

	schema    *Schema
	base      *Entity
	derived   []*Entity
	duplicate bool

	properties     *Lookup[*Property]
	navigations    *Lookup[*Navigation]
	altNavigations *Lookup[*Navigation]
	fkEnds         *Lookup[*Navigation]
	propList       []*Property
	navList        []*Navigation
}

// Schema returns the owning schema node.
func (e *Entity) Schema() *Schema { return e.schema }

// Base returns the base entity node, or nil.
func (e *Entity) Base() *Entity { return e.base }

// Derived returns the entities whose base is e.
func (e *Entity) Derived() []*Entity { return e.derived }

// Root returns the root of e's hierarchy.
func (e *Entity) Root() *Entity {
	r := e
	for r.base != nil {
		r = r.base
	}
	return r
}

// IsVirtual reports whether the rule names no table. Virtual entities with a base
// type are tableless hierarchy members.
func (e *Entity) IsVirtual() bool { return e.Rule.Name == "" }

// IsDuplicate reports whether an earlier rule in the schema has the same table name.
func (e *Entity) IsDuplicate() bool { return e.duplicate }

// Strategy returns the entity's declared mapping strategy.
func (e *Entity) Strategy() core.MappingStrategy { return e.Rule.MappingStrategy }

// Properties returns the property nodes in document order.
func (e *Entity) Properties() []*Property { return e.propList }

// Navigations returns the navigation nodes in document order.
func (e *Entity) Navigations() []*Navigation { return e.navList }

// Property returns the property rule for a column by exact database name.
func (e *Entity) Property(column string) (*Property, bool) { return e.properties.Get(column) }

// MatchNavigation finds the navigation rule for a relationship end: by foreign key
// end when fkName is given, then by each candidate name against rule names, then by
// each candidate against alternate names.
func (e *Entity) MatchNavigation(fkName string, isPrincipal bool, candidates ...string) (*Navigation, bool) {
	if fkName != "" {
		if n, ok := e.fkEnds.Get(fkEndKey(fkName, isPrincipal)); ok {
			return n, true
		}
	}
	if n, ok := e.navigations.Match(candidates...); ok {
		return n, true
	}
	return e.altNavigations.Match(candidates...)
}

// SynthesizeProperty appends a rule for a column not named in the document.
func (e *Entity) SynthesizeProperty(column string) *Property {
	rule := &core.PropertyRule{Name: column}
	e.Rule.Properties = append(e.Rule.Properties, rule)
	p := e.addProperty(rule)
	p.synthesized = true
	e.schema.index.synthesized(LevelProperty, p.Path())
	return p
}

// SynthesizeNavigation appends a rule for a relationship end not named in the document.
func (e *Entity) SynthesizeNavigation(name, fkName string, isPrincipal bool) *Navigation {
	rule := &core.NavigationRule{Name: name, FkName: fkName, IsPrincipal: isPrincipal}
	e.Rule.Navigations = append(e.Rule.Navigations, rule)
	n := e.addNavigation(rule)
	n.synthesized = true
	e.schema.index.synthesized(LevelNavigation, n.Path())
	return n
}

func (e *Entity) addProperty(rule *core.PropertyRule) *Property {
	p := &Property{
		Node:   Node[core.PropertyRule]{Rule: rule, predicted: e.schema.index.predictor.Property(rule.Name)},
		entity: e,
	}
	e.propList = append(e.propList, p)
	if !e.properties.Add(rule.Name, p) {
		p.duplicate = true
	}
	return p
}

func (e *Entity) addNavigation(rule *core.NavigationRule) *Navigation {
	n := &Navigation{Node: Node[core.NavigationRule]{Rule: rule, predicted: rule.Name}, entity: e}
	e.navList = append(e.navList, n)
	if rule.FkName != "" {
		if !e.fkEnds.Add(fkEndKey(rule.FkName, rule.IsPrincipal), n) {
			n.duplicate = true
		}
		return n
	}
	if !e.navigations.Add(rule.Name, n) && rule.Name != "" {
		n.duplicate = true
		return n
	}
	e.altNavigations.Add(rule.AlternateName, n)
	return n
}

func fkEndKey(fkName string, isPrincipal bool) string {
	if isPrincipal {
		return fkName + "\x00principal"
	}
	return fkName + "\x00dependent"
}

// =============================================================================
// Property and Navigation
// =============================================================================

// Property is the node for a PropertyRule.
type Property struct {
	Node[core.PropertyRule]

	entity    *Entity
	duplicate bool
}

// Entity returns the owning entity node.
func (p *Property) Entity() *Entity { return p.entity }

// IsDuplicate reports whether an earlier rule in the entity names the same column.
func (p *Property) IsDuplicate() bool { return p.duplicate }

// Navigation is the node for a NavigationRule.
type Navigation struct {
	Node[core.NavigationRule]

	entity    *Entity
	duplicate bool
}

// Entity returns the owning entity node.
func (n *Navigation) Entity() *Entity { return n.entity }

// IsDuplicate reports whether an earlier rule in the entity has the same name or end.
func (n *Navigation) IsDuplicate() bool { return n.duplicate }
