// Package ruletree builds the in-memory index over a rule document: one node per
// rule record, parent links, and case-insensitive lookups by database name at every
// level of the tree.
package ruletree

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ruler/pkg/core"
	"github.com/leapstack-labs/ruler/pkg/naming"
)

// Options configures Build.
type Options struct {
	// Predictor supplies predicted names. Defaults to a predictor honoring the
	// document's PreserveCasing flag.
	Predictor *naming.Predictor

	// OnSynthesize is called whenever a rule is created during resolution.
	OnSynthesize func(level Level, subject string)
}

// Index is the root of the rule tree: the context level.
type Index struct {
	Doc *core.RuleDocument

	opts      Options
	predictor *naming.Predictor

	schemas *Lookup[*Schema]
	list    []*Schema

	// original rule counts, used by Reset to drop synthesized rules
	origSchemas  int
	origEntities map[*core.SchemaRule]int
	origProps    map[*core.EntityRule]int
	origNavs     map[*core.EntityRule]int
}

// Build indexes doc. Annotations are validated in place: unknown keys are dropped
// and known keys are rewritten to their canonical spelling. Base type references are
// linked after every entity is indexed. The returned messages are deterministic for
// a given document.
func Build(doc *core.RuleDocument, opts Options) (*Index, []core.Message) {
	if doc == nil {
		doc = core.DefaultRuleDocument()
	}
	if opts.Predictor == nil {
		opts.Predictor = naming.NewPredictor(doc.PreserveCasing)
	}

	var log core.Log
	validate(doc, &log)

	idx := index(doc, opts, &log)
	idx.snapshot()
	return idx, log.Messages()
}

func index(doc *core.RuleDocument, opts Options, log *core.Log) *Index {
	idx := &Index{
		Doc:       doc,
		opts:      opts,
		predictor: opts.Predictor,
		schemas:   newLookup[*Schema](),
	}

	for _, sr := range doc.Schemas {
		s, added := idx.addSchema(sr)
		if !added {
			log.Warn(core.KindDuplicateRule, sr.SchemaName,
				"duplicate schema rule %q ignored; the first rule with this name is used", sr.SchemaName)
		}
		for _, er := range sr.Entities {
			e := s.addEntity(er)
			if e.duplicate && added {
				log.Warn(core.KindDuplicateRule, e.Path(),
					"duplicate entity rule for table %q ignored; the first rule with this name is used", er.Name)
			}
			for _, pr := range er.Properties {
				p := e.addProperty(pr)
				if p.duplicate && !e.duplicate && added {
					log.Warn(core.KindDuplicateRule, p.Path(),
						"duplicate property rule for column %q ignored; the first rule with this name is used", pr.Name)
				}
			}
			for _, nr := range er.Navigations {
				n := e.addNavigation(nr)
				if n.duplicate && !e.duplicate && added {
					log.Warn(core.KindDuplicateRule, n.Path(),
						"duplicate navigation rule %q ignored; the first matching rule is used", FinalName(nr.Name, nr.FkName))
				}
			}
		}
	}

	idx.linkBaseTypes(log)
	return idx
}

func (i *Index) addSchema(rule *core.SchemaRule) (*Schema, bool) {
	s := &Schema{
		Node:        Node[core.SchemaRule]{Rule: rule},
		index:       i,
		entities:    newLookup[*Entity](),
		altEntities: newLookup[*Entity](),
		expected:    newLookup[*Entity](),
		finals:      newLookup[*Entity](),
	}
	i.list = append(i.list, s)
	s.duplicate = !i.schemas.Add(rule.SchemaName, s)
	return s, !s.duplicate
}

// linkBaseTypes resolves BaseTypeName references by final name, in the same schema
// first and then across the document.
func (i *Index) linkBaseTypes(log *core.Log) {
	for _, s := range i.list {
		if s.duplicate {
			continue
		}
		for _, e := range s.list {
			name := strings.TrimSpace(e.Rule.BaseTypeName)
			if name == "" || e.duplicate {
				continue
			}
			base, ok := s.finals.Get(name)
			if !ok {
				base, ok = i.EntityByFinalName(name)
			}
			switch {
			case !ok:
				log.Warn(core.KindDanglingRule, e.Path(), "base type %q not found", name)
			case base == e || base.inherits(e):
				log.Warn(core.KindDanglingRule, e.Path(), "base type %q would create an inheritance cycle; ignored", name)
			default:
				e.base = base
				base.derived = append(base.derived, e)
			}
		}
	}
}

// inherits reports whether other is e or one of e's ancestors.
func (e *Entity) inherits(other *Entity) bool {
	for b := e.base; b != nil; b = b.base {
		if b == other {
			return true
		}
	}
	return false
}

// validate canonicalizes annotation keys and mapping strategies in place.
func validate(doc *core.RuleDocument, log *core.Log) {
	for _, sr := range doc.Schemas {
		for _, er := range sr.Entities {
			subject := joinPath(sr.SchemaName, FinalName(er.Name, er.NewName, er.EntityName))

			if s, ok := core.ParseMappingStrategy(string(er.MappingStrategy)); ok {
				er.MappingStrategy = s
			} else {
				log.Warn(core.KindInvalidAnnotation, subject, "unknown mapping strategy %q ignored", er.MappingStrategy)
				er.MappingStrategy = core.StrategyNone
			}

			if len(er.Annotations) == 0 {
				continue
			}
			clean := make(map[string]core.AnnotationValue, len(er.Annotations))
			for _, key := range er.AnnotationKeys() {
				canonical, ok := core.CanonicalAnnotation(key)
				if !ok {
					log.Warn(core.KindInvalidAnnotation, subject, "annotation %q is not a known annotation and was dropped", key)
					continue
				}
				if _, dup := clean[canonical]; dup {
					log.Warn(core.KindInvalidAnnotation, subject, "annotation %q repeats %q and was dropped", key, canonical)
					continue
				}
				clean[canonical] = er.Annotations[key]
			}
			er.Annotations = clean
		}
	}
}

func (i *Index) snapshot() {
	i.origSchemas = len(i.Doc.Schemas)
	i.origEntities = make(map[*core.SchemaRule]int, len(i.Doc.Schemas))
	i.origProps = make(map[*core.EntityRule]int)
	i.origNavs = make(map[*core.EntityRule]int)
	for _, sr := range i.Doc.Schemas {
		i.origEntities[sr] = len(sr.Entities)
		for _, er := range sr.Entities {
			i.origProps[er] = len(er.Properties)
			i.origNavs[er] = len(er.Navigations)
		}
	}
}

// Reset drops rules synthesized since Build and clears every binding, leaving the
// index as Build returned it.
func (i *Index) Reset() {
	doc := i.Doc
	doc.Schemas = doc.Schemas[:i.origSchemas]
	for _, sr := range doc.Schemas {
		sr.Entities = sr.Entities[:i.origEntities[sr]]
		for _, er := range sr.Entities {
			er.Properties = er.Properties[:i.origProps[er]]
			er.Navigations = er.Navigations[:i.origNavs[er]]
		}
	}

	var discard core.Log
	fresh := index(doc, i.opts, &discard)
	i.schemas = fresh.schemas
	i.list = fresh.list
	for _, s := range i.list {
		s.index = i
	}
}

// Predictor returns the name predictor in use.
func (i *Index) Predictor() *naming.Predictor { return i.predictor }

// Schemas returns the schema nodes in document order, duplicates included.
func (i *Index) Schemas() []*Schema { return i.list }

// Schema returns the schema rule by exact database name.
func (i *Index) Schema(name string) (*Schema, bool) { return i.schemas.Get(name) }

// EntityByFinalName searches every schema, in document order, for an entity by final name.
func (i *Index) EntityByFinalName(name string) (*Entity, bool) {
	for _, s := range i.list {
		if s.duplicate {
			continue
		}
		if e, ok := s.finals.Get(name); ok {
			return e, true
		}
	}
	return nil, false
}

// SynthesizeSchema appends a rule for a schema not named in the document. The new
// rule includes every table and view.
func (i *Index) SynthesizeSchema(name string) *Schema {
	rule := &core.SchemaRule{SchemaName: name, IncludeUnknownTables: true, IncludeUnknownViews: true}
	i.Doc.Schemas = append(i.Doc.Schemas, rule)
	s, _ := i.addSchema(rule)
	s.synthesized = true
	i.synthesized(LevelSchema, name)
	return s
}

func (i *Index) synthesized(level Level, subject string) {
	if i.opts.OnSynthesize != nil {
		i.opts.OnSynthesize(level, subject)
	}
}

// String summarizes the tree for debugging.
func (i *Index) String() string {
	entities := 0
	for _, s := range i.list {
		entities += len(s.list)
	}
	return fmt.Sprintf("ruletree.Index{schemas: %d, entities: %d}", len(i.list), entities)
}
