package core

import "strings"

// =============================================================================
// Decisions
// =============================================================================

// DecisionKind names the action a host must apply to its object model.
type DecisionKind string

// Decision kinds, roughly in lifecycle order.
const (
	DecisionBindSchema            DecisionKind = "bind_schema"
	DecisionOmitSchema            DecisionKind = "omit_schema"
	DecisionForceManyToManyEntity DecisionKind = "force_many_to_many_entity"
	DecisionBindEntity            DecisionKind = "bind_entity"
	DecisionOmitTable             DecisionKind = "omit_table"
	DecisionSetBaseType           DecisionKind = "set_base_type"
	DecisionSuppressPrimaryKey    DecisionKind = "suppress_primary_key"
	DecisionSetTableMapping       DecisionKind = "set_table_mapping"
	DecisionMergeAnnotations      DecisionKind = "merge_annotations"
	DecisionBindProperty          DecisionKind = "bind_property"
	DecisionRetype                DecisionKind = "retype"
	DecisionExcludeProperty       DecisionKind = "exclude_property"
	DecisionRemoveIndex           DecisionKind = "remove_index"
	DecisionRemoveKey             DecisionKind = "remove_key"
	DecisionSetDiscriminator      DecisionKind = "set_discriminator"
	DecisionDiscriminatorValue    DecisionKind = "discriminator_value"
	DecisionBindForeignKey        DecisionKind = "bind_foreign_key"
	DecisionOmitForeignKey        DecisionKind = "omit_foreign_key"
	DecisionBindNavigation        DecisionKind = "bind_navigation"
	DecisionExcludeNavigation     DecisionKind = "exclude_navigation"
)

// IsOmission reports whether the decision removes something from the model.
func (k DecisionKind) IsOmission() bool {
	switch k {
	case DecisionOmitSchema, DecisionOmitTable, DecisionExcludeProperty,
		DecisionRemoveIndex, DecisionRemoveKey, DecisionOmitForeignKey, DecisionExcludeNavigation:
		return true
	}
	return false
}

// Decision is one resolved action. The identity fields locate the catalog object;
// the payload fields carry what to do with it. Field order is fixed so decisions
// encode to identical JSON for identical inputs.
type Decision struct {
	Kind DecisionKind `json:"kind" yaml:"kind"`

	Schema     string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Table      string `json:"table,omitempty" yaml:"table,omitempty"`
	Column     string `json:"column,omitempty" yaml:"column,omitempty"`
	Index      string `json:"index,omitempty" yaml:"index,omitempty"`
	ForeignKey string `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty"`
	Navigation string `json:"navigation,omitempty" yaml:"navigation,omitempty"`
	Principal  bool   `json:"principal,omitempty" yaml:"principal,omitempty"`

	// Name is the final name for bind decisions, or the entity receiving a
	// discriminator value.
	Name     string          `json:"name,omitempty" yaml:"name,omitempty"`
	Type     string          `json:"type,omitempty" yaml:"type,omitempty"`
	BaseType string          `json:"base_type,omitempty" yaml:"base_type,omitempty"`
	Strategy MappingStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Keep is used by SetTableMapping: false removes the physical table mapping
	// and the collection property of a derived entity.
	Keep bool `json:"keep,omitempty" yaml:"keep,omitempty"`

	// Value is the converted discriminator value.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Annotations are sorted by key.
	Annotations []Annotation `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Subject returns a dotted path naming the object the decision applies to.
func (d Decision) Subject() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{d.Schema, d.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	switch {
	case d.Column != "":
		parts = append(parts, d.Column)
	case d.Index != "":
		parts = append(parts, d.Index)
	case d.Navigation != "":
		parts = append(parts, d.Navigation)
	case d.ForeignKey != "":
		parts = append(parts, d.ForeignKey)
	}
	if len(parts) == 0 && d.Name != "" {
		return d.Name
	}
	return strings.Join(parts, ".")
}
