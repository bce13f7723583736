package core

import "strings"

// =============================================================================
// Catalog snapshot
// =============================================================================

// Catalog is already-materialized database metadata handed to the engine by a host.
type Catalog struct {
	Schemas []*CatalogSchema `yaml:"schemas" json:"schemas"`
}

// CatalogSchema is one database schema and its tables and views.
type CatalogSchema struct {
	Name   string   `yaml:"name" json:"name"`
	Tables []*Table `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// Table is a table or view in a catalog snapshot.
type Table struct {
	Schema      string        `yaml:"schema,omitempty" json:"schema,omitempty"`
	Name        string        `yaml:"name" json:"name"`
	IsView      bool          `yaml:"is_view,omitempty" json:"is_view,omitempty"`
	Columns     []*Column     `yaml:"columns,omitempty" json:"columns,omitempty"`
	PrimaryKey  *Key          `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	Indexes     []*Index      `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	ForeignKeys []*ForeignKey `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
}

// Column is a column of a table or view.
type Column struct {
	Name     string `yaml:"name" json:"name"`
	DataType string `yaml:"data_type,omitempty" json:"data_type,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Position int    `yaml:"position,omitempty" json:"position,omitempty"`
}

// Key is a primary or unique key.
type Key struct {
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Columns []string `yaml:"columns" json:"columns"`
}

// Index is a table index.
type Index struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
	Unique  bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
}

// ForeignKey is a foreign key from a dependent table to a principal table.
type ForeignKey struct {
	Name             string   `yaml:"name" json:"name"`
	Columns          []string `yaml:"columns" json:"columns"`
	PrincipalSchema  string   `yaml:"principal_schema,omitempty" json:"principal_schema,omitempty"`
	PrincipalTable   string   `yaml:"principal_table" json:"principal_table"`
	PrincipalColumns []string `yaml:"principal_columns,omitempty" json:"principal_columns,omitempty"`
}

// TableID identifies a table by schema and name.
type TableID struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Key returns a case-insensitive lookup key for the table.
func (id TableID) Key() string {
	return strings.ToLower(id.Schema) + "." + strings.ToLower(id.Name)
}

func (id TableID) String() string {
	if id.Schema == "" {
		return id.Name
	}
	return id.Schema + "." + id.Name
}

// ID returns the table identity.
func (t *Table) ID() TableID { return TableID{Schema: t.Schema, Name: t.Name} }

// Column returns the column with the given name, matched case-insensitively.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// PrincipalID returns the identity of the referenced table. An empty principal
// schema means the dependent table's schema.
func (fk *ForeignKey) PrincipalID(dependent *Table) TableID {
	schema := fk.PrincipalSchema
	if schema == "" && dependent != nil {
		schema = dependent.Schema
	}
	return TableID{Schema: schema, Name: fk.PrincipalTable}
}

// References reports whether any of cols is named by the foreign key's dependent columns.
func (fk *ForeignKey) References(cols map[string]bool) bool {
	return anyColumn(fk.Columns, cols)
}

// References reports whether any of cols is part of the key.
func (k *Key) References(cols map[string]bool) bool {
	return k != nil && anyColumn(k.Columns, cols)
}

// References reports whether any of cols is part of the index.
func (ix *Index) References(cols map[string]bool) bool {
	return anyColumn(ix.Columns, cols)
}

// anyColumn reports whether any name is in set. Set keys must be lower-cased.
func anyColumn(names []string, set map[string]bool) bool {
	for _, n := range names {
		if set[strings.ToLower(n)] {
			return true
		}
	}
	return false
}

// IsSimpleJoin reports whether the table is a pure many-to-many junction: exactly two
// foreign keys to distinct tables that together cover every column, with a primary
// key over all of those columns.
func (t *Table) IsSimpleJoin() bool {
	if t.IsView || len(t.ForeignKeys) != 2 || t.PrimaryKey == nil {
		return false
	}
	a, b := t.ForeignKeys[0], t.ForeignKeys[1]
	if a.PrincipalID(t).Key() == b.PrincipalID(t).Key() {
		return false
	}
	fkCols := map[string]bool{}
	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			fkCols[strings.ToLower(c)] = true
		}
	}
	if len(fkCols) != len(t.Columns) {
		return false
	}
	for _, c := range t.Columns {
		if !fkCols[strings.ToLower(c.Name)] {
			return false
		}
	}
	if len(t.PrimaryKey.Columns) != len(fkCols) {
		return false
	}
	for _, c := range t.PrimaryKey.Columns {
		if !fkCols[strings.ToLower(c)] {
			return false
		}
	}
	return true
}

// Normalize fills each table's Schema from its parent schema when empty.
func (c *Catalog) Normalize() {
	for _, s := range c.Schemas {
		for _, t := range s.Tables {
			if t.Schema == "" {
				t.Schema = s.Name
			}
		}
	}
}

// Table finds a table by identity, matched case-insensitively.
func (c *Catalog) Table(id TableID) *Table {
	key := id.Key()
	for _, s := range c.Schemas {
		for _, t := range s.Tables {
			if t.ID().Key() == key {
				return t
			}
		}
	}
	return nil
}
