package core

// NamingDocument is the rename-only rule variant: schemas, tables and columns
// with new names and nothing else.
type NamingDocument struct {
	PreserveCasing bool                `yaml:"preserve_casing,omitempty" json:"preserve_casing,omitempty"`
	Schemas        []*NamingSchemaRule `yaml:"schemas" json:"schemas"`
}

// NamingSchemaRule renames the tables of one schema.
type NamingSchemaRule struct {
	SchemaName string             `yaml:"schema_name" json:"schema_name"`
	NewName    string             `yaml:"new_name,omitempty" json:"new_name,omitempty"`
	Tables     []*NamingTableRule `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// NamingTableRule renames a table and its columns.
type NamingTableRule struct {
	Name    string              `yaml:"name" json:"name"`
	NewName string              `yaml:"new_name,omitempty" json:"new_name,omitempty"`
	Columns []*NamingColumnRule `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// NamingColumnRule renames a column.
type NamingColumnRule struct {
	Name    string `yaml:"name" json:"name"`
	NewName string `yaml:"new_name,omitempty" json:"new_name,omitempty"`
}

// ToRuleDocument converts the naming document into a full rule document. Nothing is
// excluded: every unknown schema, table, view and column stays included.
func (d *NamingDocument) ToRuleDocument() *RuleDocument {
	doc := &RuleDocument{
		PreserveCasing:        d.PreserveCasing,
		IncludeUnknownSchemas: true,
	}
	for _, s := range d.Schemas {
		sr := &SchemaRule{
			SchemaName:           s.SchemaName,
			NewName:              s.NewName,
			IncludeUnknownTables: true,
			IncludeUnknownViews:  true,
		}
		for _, t := range s.Tables {
			er := &EntityRule{
				Name:                  t.Name,
				NewName:               t.NewName,
				IncludeUnknownColumns: true,
			}
			for _, c := range t.Columns {
				er.Properties = append(er.Properties, &PropertyRule{Name: c.Name, NewName: c.NewName})
			}
			sr.Entities = append(sr.Entities, er)
		}
		doc.Schemas = append(doc.Schemas, sr)
	}
	return doc
}
