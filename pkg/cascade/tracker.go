// Package cascade tracks the schemas and tables omitted during a resolution run so
// that foreign keys and navigations referencing them can be removed regardless of
// the order in which the catalog is visited.
package cascade

import (
	"golang.org/x/text/cases"

	"github.com/leapstack-labs/ruler/pkg/core"
)

// Kind is the kind of omitted object.
type Kind int

// Omitted object kinds.
const (
	KindSchema Kind = iota
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// Tracker holds append-only sets of omitted schemas and tables. Omission is
// monotonic within a run: there is no way to un-omit.
type Tracker struct {
	fold    cases.Caser
	omitted map[Kind]map[string]struct{}
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		fold: cases.Fold(),
		omitted: map[Kind]map[string]struct{}{
			KindSchema: {},
			KindTable:  {},
		},
	}
}

// MarkOmitted records id as omitted. It returns true when id was not already marked.
func (t *Tracker) MarkOmitted(kind Kind, id string) bool {
	set, ok := t.omitted[kind]
	if !ok {
		set = make(map[string]struct{})
		t.omitted[kind] = set
	}
	k := t.fold.String(id)
	if _, exists := set[k]; exists {
		return false
	}
	set[k] = struct{}{}
	return true
}

// IsOmitted reports whether id has been marked.
func (t *Tracker) IsOmitted(kind Kind, id string) bool {
	_, ok := t.omitted[kind][t.fold.String(id)]
	return ok
}

// OmitSchema marks a schema as omitted.
func (t *Tracker) OmitSchema(name string) bool { return t.MarkOmitted(KindSchema, name) }

// OmitTable marks a table as omitted.
func (t *Tracker) OmitTable(id core.TableID) bool { return t.MarkOmitted(KindTable, tableKey(id)) }

// SchemaOmitted reports whether a schema was omitted.
func (t *Tracker) SchemaOmitted(name string) bool { return t.IsOmitted(KindSchema, name) }

// TableOmitted reports whether a table was omitted. It does not consult the schema set.
func (t *Tracker) TableOmitted(id core.TableID) bool { return t.IsOmitted(KindTable, tableKey(id)) }

// TableOrSchemaOmitted reports whether a table or its schema was omitted.
func (t *Tracker) TableOrSchemaOmitted(id core.TableID) bool {
	return t.SchemaOmitted(id.Schema) || t.TableOmitted(id)
}

// Count returns the number of omitted objects of a kind.
func (t *Tracker) Count(kind Kind) int { return len(t.omitted[kind]) }

// tableKey joins schema and name with a separator that cannot occur in either.
func tableKey(id core.TableID) string { return id.Schema + "\x00" + id.Name }
