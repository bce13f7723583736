package resolve

import (
	"context"

	"github.com/leapstack-labs/ruler/pkg/core"
	"github.com/leapstack-labs/ruler/pkg/naming"
	"github.com/leapstack-labs/ruler/pkg/ruletree"
)

// ResolveSchema binds a live schema to its rule. A schema with no rule is
// synthesized when the document includes unknown schemas and omitted otherwise. The
// host must skip every table of an omitted schema.
func (r *Resolver) ResolveSchema(ctx context.Context, name string) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		_, out := r.resolveSchema(name)
		return out, nil
	})
}

func (r *Resolver) resolveSchema(name string) (*schemaState, []core.Decision) {
	key := r.schemaKey(name)
	if st, ok := r.schemas[key]; ok {
		return st, nil
	}
	st := &schemaState{name: name}
	r.schemas[key] = st
	r.schemaOrder = append(r.schemaOrder, st)

	node, found := r.idx.Schema(name)
	switch {
	case found && !node.Rule.Mapped():
		node = nil
	case !found && r.idx.Doc.IncludeUnknownSchemas:
		node = r.idx.SynthesizeSchema(name)
	case !found:
		node = nil
	}

	if node == nil {
		st.omitted = true
		r.tracker.OmitSchema(name)
		r.logger.Debug("schema omitted", "schema", name)
		return st, []core.Decision{{Kind: core.DecisionOmitSchema, Schema: name}}
	}

	// rule names are matched case-insensitively, so binding to the folded key
	// cannot fail for a schema seen for the first time
	_ = node.Bind(key)
	st.node = node

	out := []core.Decision{{Kind: core.DecisionBindSchema, Schema: name, Name: node.FinalName()}}
	if node.Rule.UseManyToManyEntity {
		r.info(core.KindInformational, name, "simple many-to-many junctions are generated as entities")
		out = append(out, core.Decision{Kind: core.DecisionForceManyToManyEntity, Schema: name})
	}
	return st, out
}

// FinalizeSchema runs once after every table of the schema has been visited. It
// emits the schema's tableless entities, flushes pending navigation exclusions,
// removes foreign keys referencing omitted tables or schemas, and reports mapped
// entity rules that matched no table.
func (r *Resolver) FinalizeSchema(ctx context.Context, name string) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		st, out := r.resolveSchema(name)
		more, err := r.finalizeSchema(st)
		return append(out, more...), err
	})
}

func (r *Resolver) finalizeSchema(st *schemaState) ([]core.Decision, error) {
	if st.finalized {
		return nil, nil
	}
	st.finalized = true

	var out []core.Decision
	for _, ts := range st.tables {
		more, err := r.endTable(ts)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	if st.omitted {
		return out, nil
	}

	out = append(out, r.virtualEntities(st)...)
	out = append(out, r.flushNavigations(st)...)
	out = append(out, r.cascade(st)...)
	r.danglingEntities(st)
	return out, nil
}

// virtualEntities binds rules that name no table but derive from a base entity.
func (r *Resolver) virtualEntities(st *schemaState) []core.Decision {
	var out []core.Decision
	for _, e := range st.node.Entities() {
		// rules matched by expected name are already bound to a table
		if !e.IsVirtual() || e.IsDuplicate() || !e.Rule.Mapped() || e.IsBound() {
			continue
		}
		if e.Base() == nil {
			if e.Rule.BaseTypeName == "" {
				if name := e.FinalName(); name != "" {
					r.info(core.KindInformational, e.Path(),
						"entity %q cannot be generated because no table or base type is defined", name)
				}
			}
			// unresolved base types were reported when the index was built
			continue
		}

		name := ruletree.FinalName(e.Rule.NewName, e.Rule.EntityName)
		if !naming.IsValidSymbol(name) {
			r.warn(core.KindInvalidName, e.Path(), "entity %q cannot be generated because it has an invalid name", name)
			continue
		}
		if !r.entityLive(e.Base()) {
			r.info(core.KindInformational, e.Path(),
				"entity %q is not generated because its base type %q is not generated", name, e.Base().FinalName())
			continue
		}
		if err := e.Bind("\x00virtual\x00" + r.schemaKey(st.name) + "\x00" + name); err != nil {
			continue
		}

		out = append(out,
			core.Decision{Kind: core.DecisionBindEntity, Schema: st.name, Name: name},
			core.Decision{Kind: core.DecisionSetBaseType, Schema: st.name, Name: name, BaseType: e.Base().FinalName()},
		)
		if inheritedStrategy(e) == core.StrategyTPH {
			out = append(out, core.Decision{
				Kind: core.DecisionSetTableMapping, Schema: st.name, Name: name, Strategy: core.StrategyTPH, Keep: false,
			})
		}
		if d, ok := mergeAnnotations(e, st.name, "", name); ok {
			out = append(out, d)
		}
	}
	return out
}

// entityLive reports whether an entity node was bound and its table kept.
func (r *Resolver) entityLive(e *ruletree.Entity) bool {
	if !e.IsBound() {
		return false
	}
	for _, ts := range r.tables {
		if ts.entity == e {
			return !ts.omitted
		}
	}
	return e.IsVirtual()
}

func (r *Resolver) danglingEntities(st *schemaState) {
	var tables []string
	for _, ts := range st.tables {
		tables = append(tables, ts.table.Name)
	}
	for _, e := range st.node.Entities() {
		if e.IsVirtual() || e.IsDuplicate() || e.Synthesized() || !e.Rule.Mapped() || e.IsBound() {
			continue
		}
		r.warn(core.KindDanglingRule, e.Path(),
			"entity for %s.%s cannot be generated because the table cannot be found%s",
			st.name, e.Rule.Name, didYouMean(e.Rule.Name, tables))
	}
}

// Finish ends the run. Schemas not yet finalized are finalized, foreign keys
// referencing tables omitted in schemas visited later are removed, and mapped schema
// rules that matched no live schema are reported.
func (r *Resolver) Finish(ctx context.Context) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		if r.finished {
			return nil, nil
		}
		r.finished = true

		var out []core.Decision
		for _, st := range r.schemaOrder {
			more, err := r.finalizeSchema(st)
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
		for _, st := range r.schemaOrder {
			if !st.omitted {
				out = append(out, r.flushNavigations(st)...)
				out = append(out, r.cascade(st)...)
			}
		}

		var live []string
		for _, st := range r.schemaOrder {
			live = append(live, st.name)
		}
		for _, s := range r.idx.Schemas() {
			if s.IsDuplicate() || s.Synthesized() || !s.Rule.Mapped() || s.IsBound() {
				continue
			}
			r.warn(core.KindDanglingRule, s.Rule.SchemaName,
				"schema %q cannot be found%s", s.Rule.SchemaName, didYouMean(s.Rule.SchemaName, live))
		}
		return out, nil
	})
}
