package core

// NavigationEnd is one end of a relationship generated from a foreign key, as
// presented by the host when it creates a navigation.
type NavigationEnd struct {
	// Table is the entity's table that owns this navigation.
	Table *Table
	// Dependent is the table declaring the foreign key. Defaults to Table on the
	// dependent end.
	Dependent *Table
	// ForeignKey is the foreign key behind the relationship. It always belongs to
	// the dependent table.
	ForeignKey *ForeignKey
	// IsPrincipal is true for the navigation on the principal (referenced) side.
	IsPrincipal bool
	// IsManyToMany is true for skip navigations across a junction table.
	IsManyToMany bool
	// PredictedName is the name the translator would generate. Derived when empty.
	PredictedName string
	// AlternateName is a second predicted name tried after PredictedName.
	AlternateName string
}

// FkName returns the foreign key name, or "" when there is none.
func (e NavigationEnd) FkName() string {
	if e.ForeignKey == nil {
		return ""
	}
	return e.ForeignKey.Name
}

// DependentTable returns the table declaring the foreign key, or nil when it is
// unknown.
func (e NavigationEnd) DependentTable() *Table {
	if e.Dependent != nil {
		return e.Dependent
	}
	if !e.IsPrincipal {
		return e.Table
	}
	return nil
}
