// Package core defines the shared language of the ruler system.
//
// This package contains:
//   - The rule document (RuleDocument, SchemaRule, EntityRule, PropertyRule, NavigationRule)
//   - The rename-only naming document (NamingDocument)
//   - Catalog snapshot types (Catalog, Table, Column, ForeignKey)
//   - Resolution output (Decision, Message, Log)
//   - Annotation values and the known-annotation whitelist
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
