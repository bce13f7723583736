package core

import (
	"sort"
	"strings"
)

// =============================================================================
// Rule document
// =============================================================================

// MappingStrategy is the inheritance mapping strategy declared on a hierarchy root.
type MappingStrategy string

// Inheritance mapping strategies.
const (
	StrategyNone MappingStrategy = ""
	StrategyTPH  MappingStrategy = "TPH"
	StrategyTPT  MappingStrategy = "TPT"
	StrategyTPC  MappingStrategy = "TPC"
)

// ParseMappingStrategy normalizes a strategy tag. Unknown tags return StrategyNone and false.
func ParseMappingStrategy(s string) (MappingStrategy, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return StrategyNone, true
	case "TPH":
		return StrategyTPH, true
	case "TPT":
		return StrategyTPT, true
	case "TPC":
		return StrategyTPC, true
	default:
		return StrategyNone, false
	}
}

// RuleDocument is the root of a rule set. It is the "context" level of the tree.
type RuleDocument struct {
	// Name is the operator-facing name of the generated model (the context name).
	Name string `yaml:"name" json:"name"`

	// PreserveCasing keeps database casing when predicting generated names.
	PreserveCasing bool `yaml:"preserve_casing,omitempty" json:"preserve_casing,omitempty"`

	// IncludeUnknownSchemas generates entities for schemas not named in this document.
	IncludeUnknownSchemas bool `yaml:"include_unknown_schemas,omitempty" json:"include_unknown_schemas,omitempty"`

	Schemas []*SchemaRule `yaml:"schemas,omitempty" json:"schemas,omitempty"`
}

// DefaultRuleDocument is the behavior used when no rules are found: everything is included.
func DefaultRuleDocument() *RuleDocument {
	return &RuleDocument{IncludeUnknownSchemas: true}
}

// SchemaRule holds the rules for a single database schema.
type SchemaRule struct {
	SchemaName string `yaml:"schema_name" json:"schema_name"`
	NewName    string `yaml:"new_name,omitempty" json:"new_name,omitempty"`
	NotMapped  bool   `yaml:"not_mapped,omitempty" json:"not_mapped,omitempty"`

	IncludeUnknownTables bool `yaml:"include_unknown_tables,omitempty" json:"include_unknown_tables,omitempty"`
	IncludeUnknownViews  bool `yaml:"include_unknown_views,omitempty" json:"include_unknown_views,omitempty"`

	// UseManyToManyEntity forces simple many-to-many junctions to be generated as entities.
	UseManyToManyEntity bool `yaml:"use_many_to_many_entity,omitempty" json:"use_many_to_many_entity,omitempty"`

	Entities []*EntityRule `yaml:"entities,omitempty" json:"entities,omitempty"`
}

// Mapped reports whether the schema should produce entities.
func (r *SchemaRule) Mapped() bool { return !r.NotMapped }

// EntityRule holds the rules for a table, a view, or a tableless hierarchy member.
type EntityRule struct {
	// Name is the database table or view name. Empty for entities with no physical table.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// AltName is a raw alternate database name tried when Name does not match.
	AltName string `yaml:"alt_name,omitempty" json:"alt_name,omitempty"`

	// NewName is the name the entity should have in the generated model.
	NewName string `yaml:"new_name,omitempty" json:"new_name,omitempty"`

	// EntityName is the name the translator is expected to generate for this table.
	EntityName string `yaml:"entity_name,omitempty" json:"entity_name,omitempty"`

	NotMapped bool `yaml:"not_mapped,omitempty" json:"not_mapped,omitempty"`

	MappingStrategy MappingStrategy `yaml:"mapping_strategy,omitempty" json:"mapping_strategy,omitempty"`

	// BaseTypeName names the base entity by its final name.
	BaseTypeName string `yaml:"base_type_name,omitempty" json:"base_type_name,omitempty"`

	// DiscriminatorColumn explicitly designates the discriminator column.
	DiscriminatorColumn string `yaml:"discriminator_column,omitempty" json:"discriminator_column,omitempty"`

	IncludeUnknownColumns bool `yaml:"include_unknown_columns,omitempty" json:"include_unknown_columns,omitempty"`

	Annotations map[string]AnnotationValue `yaml:"annotations,omitempty" json:"annotations,omitempty"`

	Properties  []*PropertyRule   `yaml:"properties,omitempty" json:"properties,omitempty"`
	Navigations []*NavigationRule `yaml:"navigations,omitempty" json:"navigations,omitempty"`
}

// Mapped reports whether the entity should be generated.
func (r *EntityRule) Mapped() bool { return !r.NotMapped }

// AnnotationKeys returns the annotation keys in sorted order.
func (r *EntityRule) AnnotationKeys() []string {
	keys := make([]string, 0, len(r.Annotations))
	for k := range r.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DiscriminatorCondition maps a literal discriminator value to a sub-entity.
type DiscriminatorCondition struct {
	Value        string `yaml:"value" json:"value"`
	ToEntityName string `yaml:"to_entity_name" json:"to_entity_name"`
}

// PropertyRule holds the rules for a single column.
type PropertyRule struct {
	Name      string `yaml:"name" json:"name"`
	NewName   string `yaml:"new_name,omitempty" json:"new_name,omitempty"`
	NewType   string `yaml:"new_type,omitempty" json:"new_type,omitempty"`
	NotMapped bool   `yaml:"not_mapped,omitempty" json:"not_mapped,omitempty"`

	DiscriminatorConditions []DiscriminatorCondition `yaml:"discriminator_conditions,omitempty" json:"discriminator_conditions,omitempty"`
}

// Mapped reports whether the column should produce a property.
func (r *PropertyRule) Mapped() bool { return !r.NotMapped }

// NavigationRule holds the rules for a relationship end generated from a foreign key.
type NavigationRule struct {
	// Name is the predicted navigation name.
	Name    string `yaml:"name" json:"name"`
	NewName string `yaml:"new_name,omitempty" json:"new_name,omitempty"`

	// AlternateName is matched when no rule matches by Name.
	AlternateName string `yaml:"alternate_name,omitempty" json:"alternate_name,omitempty"`

	// FkName and IsPrincipal designate the relationship end directly.
	FkName      string `yaml:"fk_name,omitempty" json:"fk_name,omitempty"`
	IsPrincipal bool   `yaml:"is_principal,omitempty" json:"is_principal,omitempty"`

	NotMapped bool `yaml:"not_mapped,omitempty" json:"not_mapped,omitempty"`
}

// Mapped reports whether the navigation should be generated.
func (r *NavigationRule) Mapped() bool { return !r.NotMapped }
