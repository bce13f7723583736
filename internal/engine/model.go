package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/ruler/pkg/core"
)

// Model is the object model a host builds while applying decisions. It stands in
// for the code-first model a scaffolder would generate.
type Model struct {
	Name string

	// Schemas maps each bound schema to its final name.
	Schemas map[string]string
	// ManyToManyEntities lists schemas whose simple junctions become entities.
	ManyToManyEntities map[string]bool

	Entities []*Entity

	catalog *core.Catalog
	byTable map[string]*Entity
	byName  map[string]*Entity
	// discriminator values that arrived before their entity was bound
	pendingValues map[string]any
}

// Entity is a generated entity type.
type Entity struct {
	Schema string
	// Table is empty for entities with no physical table.
	Table string
	Name  string

	BaseType string
	Strategy core.MappingStrategy
	// TableMapped is false for hierarchy members sharing their root's table.
	TableMapped bool
	// HasDbSet is false for entities reachable only through their root collection.
	HasDbSet bool

	PrimaryKey  *core.Key
	Properties  []*Property
	Indexes     []*core.Index
	ForeignKeys []*ForeignKey
	Navigations []*Navigation

	Discriminator      *Discriminator
	DiscriminatorValue any

	Annotations map[string]core.AnnotationValue
}

// Property is a generated scalar property.
type Property struct {
	Column string
	Name   string
	Type   string
}

// ForeignKey is a relationship kept in the model.
type ForeignKey struct {
	Name      string
	Columns   []string
	Principal string
}

// Navigation is a generated navigation property.
type Navigation struct {
	ForeignKey string
	Name       string
	Principal  bool
}

// Discriminator designates the property whose value selects a hierarchy member.
type Discriminator struct {
	Column   string
	Property string
	Type     string
}

// NewModel creates an empty model over a catalog snapshot.
func NewModel(name string, catalog *core.Catalog) *Model {
	return &Model{
		Name:               name,
		Schemas:            make(map[string]string),
		ManyToManyEntities: make(map[string]bool),
		catalog:            catalog,
		byTable:            make(map[string]*Entity),
		byName:             make(map[string]*Entity),
		pendingValues:      make(map[string]any),
	}
}

func tableKey(schema, table string) string {
	return strings.ToLower(schema) + "\x00" + strings.ToLower(table)
}

func nameKey(schema, name string) string {
	return strings.ToLower(schema) + "\x00" + name
}

// Entity returns the entity generated for a table.
func (m *Model) Entity(schema, table string) *Entity { return m.byTable[tableKey(schema, table)] }

// EntityByName returns an entity by schema and final name.
func (m *Model) EntityByName(schema, name string) *Entity { return m.byName[nameKey(schema, name)] }

// Apply applies decisions in order.
func (m *Model) Apply(decisions []core.Decision) error {
	for _, d := range decisions {
		if err := m.apply(d); err != nil {
			return fmt.Errorf("failed to apply %s for %s: %w", d.Kind, d.Subject(), err)
		}
	}
	return nil
}

func (m *Model) apply(d core.Decision) error {
	switch d.Kind {
	case core.DecisionBindSchema:
		m.Schemas[d.Schema] = d.Name
	case core.DecisionOmitSchema:
		delete(m.Schemas, d.Schema)
	case core.DecisionForceManyToManyEntity:
		m.ManyToManyEntities[d.Schema] = true
	case core.DecisionBindEntity:
		return m.bindEntity(d)
	case core.DecisionOmitTable:
		m.removeEntity(d.Schema, d.Table)
	case core.DecisionBindForeignKey:
		e, err := m.tableEntity(d)
		if err != nil {
			return err
		}
		fk := m.catalogForeignKey(d)
		if fk == nil {
			return fmt.Errorf("foreign key %s not in catalog", d.ForeignKey)
		}
		e.ForeignKeys = append(e.ForeignKeys, &ForeignKey{Name: fk.Name, Columns: fk.Columns, Principal: d.Name})
	default:
		e, err := m.entityFor(d)
		if err != nil {
			return err
		}
		return m.applyToEntity(e, d)
	}
	return nil
}

func (m *Model) bindEntity(d core.Decision) error {
	e := &Entity{Schema: d.Schema, Table: d.Table, Name: d.Name, TableMapped: d.Table != "", HasDbSet: true}
	if d.Table != "" {
		t := m.catalog.Table(core.TableID{Schema: d.Schema, Name: d.Table})
		if t == nil {
			return fmt.Errorf("table %s.%s not in catalog", d.Schema, d.Table)
		}
		e.PrimaryKey = t.PrimaryKey
		e.Indexes = append(e.Indexes, t.Indexes...)
		m.byTable[tableKey(d.Schema, d.Table)] = e
	}
	if v, ok := m.pendingValues[nameKey(d.Schema, d.Name)]; ok {
		e.DiscriminatorValue = v
		delete(m.pendingValues, nameKey(d.Schema, d.Name))
	}
	m.byName[nameKey(d.Schema, d.Name)] = e
	m.Entities = append(m.Entities, e)
	return nil
}

func (m *Model) removeEntity(schema, table string) {
	e := m.byTable[tableKey(schema, table)]
	if e == nil {
		return
	}
	delete(m.byTable, tableKey(schema, table))
	delete(m.byName, nameKey(e.Schema, e.Name))
	for i, x := range m.Entities {
		if x == e {
			m.Entities = append(m.Entities[:i], m.Entities[i+1:]...)
			break
		}
	}
}

func (m *Model) tableEntity(d core.Decision) (*Entity, error) {
	if e := m.byTable[tableKey(d.Schema, d.Table)]; e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("no entity for table %s.%s", d.Schema, d.Table)
}

// entityFor locates the entity a decision applies to: by table, or by name for
// entities with no table.
func (m *Model) entityFor(d core.Decision) (*Entity, error) {
	if d.Table != "" {
		return m.tableEntity(d)
	}
	if e := m.byName[nameKey(d.Schema, d.Name)]; e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("no entity named %s.%s", d.Schema, d.Name)
}

func (m *Model) catalogForeignKey(d core.Decision) *core.ForeignKey {
	t := m.catalog.Table(core.TableID{Schema: d.Schema, Name: d.Table})
	if t == nil {
		return nil
	}
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.Name, d.ForeignKey) {
			return fk
		}
	}
	return nil
}

func (m *Model) applyToEntity(e *Entity, d core.Decision) error {
	switch d.Kind {
	case core.DecisionSetBaseType:
		e.BaseType = d.BaseType
	case core.DecisionSuppressPrimaryKey:
		e.PrimaryKey = nil
	case core.DecisionSetTableMapping:
		e.Strategy = d.Strategy
		if !d.Keep {
			e.TableMapped = false
			e.HasDbSet = false
		}
	case core.DecisionMergeAnnotations:
		if e.Annotations == nil {
			e.Annotations = make(map[string]core.AnnotationValue)
		}
		for _, a := range d.Annotations {
			if a.Value.IsNull() {
				delete(e.Annotations, a.Key)
				continue
			}
			e.Annotations[a.Key] = a.Value
		}
	case core.DecisionBindProperty:
		p := &Property{Column: d.Column, Name: d.Name}
		if t := m.catalog.Table(core.TableID{Schema: e.Schema, Name: e.Table}); t != nil {
			if c := t.Column(d.Column); c != nil {
				p.Type = core.ParseSQLType(c.DataType).String()
			}
		}
		e.Properties = append(e.Properties, p)
	case core.DecisionRetype:
		p := e.property(d.Column)
		if p == nil {
			return fmt.Errorf("no property for column %s", d.Column)
		}
		p.Type = d.Type
	case core.DecisionExcludeProperty:
		for i, p := range e.Properties {
			if strings.EqualFold(p.Column, d.Column) {
				e.Properties = append(e.Properties[:i], e.Properties[i+1:]...)
				break
			}
		}
	case core.DecisionRemoveIndex:
		for i, ix := range e.Indexes {
			if ix.Name == d.Index {
				e.Indexes = append(e.Indexes[:i], e.Indexes[i+1:]...)
				break
			}
		}
	case core.DecisionRemoveKey:
		e.PrimaryKey = nil
	case core.DecisionOmitForeignKey:
		for i, fk := range e.ForeignKeys {
			if strings.EqualFold(fk.Name, d.ForeignKey) {
				e.ForeignKeys = append(e.ForeignKeys[:i], e.ForeignKeys[i+1:]...)
				break
			}
		}
	case core.DecisionSetDiscriminator:
		e.Discriminator = &Discriminator{Column: d.Column, Property: d.Name, Type: d.Type}
	case core.DecisionDiscriminatorValue:
		if target := m.byName[nameKey(e.Schema, d.Name)]; target != nil {
			target.DiscriminatorValue = d.Value
		} else {
			m.pendingValues[nameKey(e.Schema, d.Name)] = d.Value
		}
	case core.DecisionBindNavigation:
		e.Navigations = append(e.Navigations, &Navigation{ForeignKey: d.ForeignKey, Name: d.Name, Principal: d.Principal})
	case core.DecisionExcludeNavigation:
		// exclusions may name ends that were never bound
		for i, n := range e.Navigations {
			if strings.EqualFold(n.ForeignKey, d.ForeignKey) && n.Principal == d.Principal {
				e.Navigations = append(e.Navigations[:i], e.Navigations[i+1:]...)
				break
			}
		}
	default:
		return fmt.Errorf("unknown decision kind %q", d.Kind)
	}
	return nil
}

func (e *Entity) property(column string) *Property {
	for _, p := range e.Properties {
		if strings.EqualFold(p.Column, column) {
			return p
		}
	}
	return nil
}

// DanglingReferences lists every key, index, foreign key or navigation that refers
// to something no longer in the model. A consistent model has none.
func (m *Model) DanglingReferences() []string {
	var out []string
	for _, e := range m.Entities {
		subject := e.Schema + "." + e.Name
		has := func(cols []string) bool {
			for _, c := range cols {
				if e.property(c) == nil {
					return false
				}
			}
			return true
		}
		if e.PrimaryKey != nil && !has(e.PrimaryKey.Columns) {
			out = append(out, subject+": primary key references a missing property")
		}
		for _, ix := range e.Indexes {
			if !has(ix.Columns) {
				out = append(out, subject+": index "+ix.Name+" references a missing property")
			}
		}
		for _, fk := range e.ForeignKeys {
			if !has(fk.Columns) {
				out = append(out, subject+": foreign key "+fk.Name+" references a missing property")
			}
			// principals outside the catalog are external references
			id := principalID(e.Schema, fk.Principal)
			if m.catalog.Table(id) != nil && m.byTable[tableKey(id.Schema, id.Name)] == nil {
				out = append(out, subject+": foreign key "+fk.Name+" references missing table "+fk.Principal)
			}
		}
		for _, n := range e.Navigations {
			if n.ForeignKey != "" && !m.hasForeignKey(n.ForeignKey) {
				out = append(out, subject+": navigation "+n.Name+" uses removed foreign key "+n.ForeignKey)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (m *Model) hasForeignKey(name string) bool {
	for _, e := range m.Entities {
		for _, fk := range e.ForeignKeys {
			if strings.EqualFold(fk.Name, name) {
				return true
			}
		}
	}
	return false
}

// principalID splits a BindForeignKey principal name ("schema.table").
func principalID(schema, principal string) core.TableID {
	if i := strings.Index(principal, "."); i >= 0 {
		return core.TableID{Schema: principal[:i], Name: principal[i+1:]}
	}
	return core.TableID{Schema: schema, Name: principal}
}
