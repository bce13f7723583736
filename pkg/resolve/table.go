package resolve

import (
	"context"
	"strings"

	"github.com/leapstack-labs/ruler/pkg/core"
	"github.com/leapstack-labs/ruler/pkg/ruletree"
)

// ResolveTable binds a live table or view to its entity rule, or omits it. An
// omitted table is recorded in the cascade tracker before any foreign key can
// reference it. A bound entity also receives its inheritance decisions and
// annotations.
func (r *Resolver) ResolveTable(ctx context.Context, t *core.Table) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		_, out := r.resolveTable(t)
		return out, nil
	})
}

func (r *Resolver) resolveTable(t *core.Table) (*tableState, []core.Decision) {
	if ts := r.tableState(t); ts != nil {
		return ts, nil
	}
	st, out := r.resolveSchema(t.Schema)

	ts := &tableState{
		table:   t,
		schema:  st,
		columns: make(map[string]bool),
		isExcl:  make(map[string]bool),
		fks:     make(map[string]*fkState),
		navs:    make(map[string]*navState),
	}
	r.tables[r.tableKey(t.ID())] = ts
	st.tables = append(st.tables, ts)
	for _, fk := range t.ForeignKeys {
		if _, dup := ts.fks[r.fold.String(fk.Name)]; !dup {
			ts.fks[r.fold.String(fk.Name)] = &fkState{fk: fk, table: t}
		}
	}

	if st.omitted {
		return ts, append(out, r.omitTable(ts))
	}

	e, found := st.node.MatchTable(t.Name, r.idx.Predictor().Entity(t.Name))
	if found {
		if err := e.Bind(r.tableKey(t.ID())); err != nil {
			r.warn(core.KindDuplicateRule, joinSubject(t.Schema, t.Name),
				"entity rule %q already matched another table; ignored for this one", e.FinalName())
			found = false
		}
	}

	switch {
	case found && !e.Rule.Mapped():
		return ts, append(out, r.omitTable(ts))
	case !found && r.unknownAllowed(st, t):
		e = st.node.SynthesizeEntity(t.Name)
		_ = e.Bind(r.tableKey(t.ID()))
	case !found:
		return ts, append(out, r.omitTable(ts))
	}

	ts.entity = e
	name := e.FinalName()
	out = append(out, core.Decision{Kind: core.DecisionBindEntity, Schema: t.Schema, Table: t.Name, Name: name})

	if base := e.Base(); base != nil {
		out = append(out,
			core.Decision{Kind: core.DecisionSetBaseType, Schema: t.Schema, Table: t.Name, Name: name, BaseType: base.FinalName()},
			core.Decision{Kind: core.DecisionSuppressPrimaryKey, Schema: t.Schema, Table: t.Name, Name: name},
		)
		if inheritedStrategy(e) == core.StrategyTPH {
			out = append(out, core.Decision{
				Kind: core.DecisionSetTableMapping, Schema: t.Schema, Table: t.Name, Name: name,
				Strategy: core.StrategyTPH, Keep: false,
			})
		}
	} else if e.Strategy() == core.StrategyTPH {
		out = append(out, core.Decision{
			Kind: core.DecisionSetTableMapping, Schema: t.Schema, Table: t.Name, Name: name,
			Strategy: core.StrategyTPH, Keep: true,
		})
	}
	// TPT and TPC keep the normal per-table mapping

	if d, ok := mergeAnnotations(e, t.Schema, t.Name, name); ok {
		out = append(out, d)
	}
	return ts, out
}

// unknownAllowed applies the schema's unknown-table policy. Simple many-to-many
// junctions are included whenever the document includes any unknown schema, table
// or view.
func (r *Resolver) unknownAllowed(st *schemaState, t *core.Table) bool {
	if t.IsView {
		return st.node.Rule.IncludeUnknownViews
	}
	return st.node.Rule.IncludeUnknownTables || (t.IsSimpleJoin() && r.includesUnknown())
}

func (r *Resolver) includesUnknown() bool {
	doc := r.idx.Doc
	if doc.IncludeUnknownSchemas {
		return true
	}
	for _, s := range doc.Schemas {
		if s.IncludeUnknownTables || s.IncludeUnknownViews {
			return true
		}
	}
	return false
}

func (r *Resolver) omitTable(ts *tableState) core.Decision {
	ts.omitted = true
	ts.ended = true
	r.tracker.OmitTable(ts.table.ID())
	r.logger.Debug("table omitted", "table", ts.table.ID().String())
	return core.Decision{Kind: core.DecisionOmitTable, Schema: ts.table.Schema, Table: ts.table.Name}
}

// inheritedStrategy returns the first strategy declared on e's ancestors.
func inheritedStrategy(e *ruletree.Entity) core.MappingStrategy {
	for b := e.Base(); b != nil; b = b.Base() {
		if s := b.Strategy(); s != core.StrategyNone {
			return s
		}
	}
	return core.StrategyNone
}

func mergeAnnotations(e *ruletree.Entity, schema, table, name string) (core.Decision, bool) {
	keys := e.Rule.AnnotationKeys()
	if len(keys) == 0 {
		return core.Decision{}, false
	}
	anns := make([]core.Annotation, 0, len(keys))
	for _, k := range keys {
		anns = append(anns, core.Annotation{Key: k, Value: e.Rule.Annotations[k]})
	}
	return core.Decision{
		Kind: core.DecisionMergeAnnotations, Schema: schema, Table: table, Name: name, Annotations: anns,
	}, true
}

// ResolveColumn binds a live column to its property rule. Columns without a rule are
// synthesized when the entity includes unknown columns; otherwise they, and columns
// whose rule is not mapped, are excluded when the table ends.
func (r *Resolver) ResolveColumn(ctx context.Context, t *core.Table, c *core.Column) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		ts, out := r.resolveTable(t)
		return append(out, r.resolveColumn(ts, c)...), nil
	})
}

func (r *Resolver) resolveColumn(ts *tableState, c *core.Column) []core.Decision {
	if ts.omitted || ts.ended {
		return nil
	}
	key := r.fold.String(c.Name)
	if ts.columns[key] {
		return nil
	}
	ts.columns[key] = true

	p, found := ts.entity.Property(c.Name)
	if !found && ts.entity.Rule.IncludeUnknownColumns {
		p, found = ts.entity.SynthesizeProperty(c.Name), true
	}
	if found {
		_ = p.Bind(r.tableKey(ts.table.ID()) + "\x00" + key)
	}
	if !found || !p.Rule.Mapped() {
		ts.excluded = append(ts.excluded, c.Name)
		ts.isExcl[strings.ToLower(c.Name)] = true
		return nil
	}

	ts.kept++
	t := ts.table
	out := []core.Decision{{Kind: core.DecisionBindProperty, Schema: t.Schema, Table: t.Name, Column: c.Name, Name: p.FinalName()}}
	if newType := strings.TrimSpace(p.Rule.NewType); newType != "" {
		out = append(out, core.Decision{Kind: core.DecisionRetype, Schema: t.Schema, Table: t.Name, Column: c.Name, Type: newType})
	}
	return out
}

// EndTable closes the table's column pass. Any column not yet visited is resolved
// first. An entity left with no property is omitted retroactively. Otherwise
// excluded properties are removed together with the indexes, keys and foreign keys
// that reference them, in that order, the discriminator is applied, and property
// rules that matched no column are reported.
func (r *Resolver) EndTable(ctx context.Context, t *core.Table) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		ts, out := r.resolveTable(t)
		more, err := r.endTable(ts)
		return append(out, more...), err
	})
}

func (r *Resolver) endTable(ts *tableState) ([]core.Decision, error) {
	if ts.omitted || ts.ended {
		return nil, nil
	}

	var out []core.Decision
	for _, c := range ts.table.Columns {
		out = append(out, r.resolveColumn(ts, c)...)
	}
	ts.ended = true

	t := ts.table
	if ts.kept == 0 {
		r.info(core.KindInformational, joinSubject(t.Schema, t.Name),
			"entity %q has no mapped properties and was omitted", ts.entity.FinalName())
		return append(out, r.omitTable(ts)), nil
	}

	removedIdx := make(map[*core.Index]bool)
	removedFK := make(map[*core.ForeignKey]bool)
	removedKey := false
	if len(ts.excluded) > 0 {
		for _, ix := range t.Indexes {
			if ix.References(ts.isExcl) {
				removedIdx[ix] = true
				out = append(out, core.Decision{Kind: core.DecisionRemoveIndex, Schema: t.Schema, Table: t.Name, Index: ix.Name})
			}
		}
		if t.PrimaryKey.References(ts.isExcl) {
			removedKey = true
			out = append(out, core.Decision{Kind: core.DecisionRemoveKey, Schema: t.Schema, Table: t.Name, Index: t.PrimaryKey.Name})
		}
		for _, fk := range t.ForeignKeys {
			if fk.References(ts.isExcl) {
				removedFK[fk] = true
				if fs := ts.fks[r.fold.String(fk.Name)]; fs != nil {
					fs.omitted = true
				}
				out = append(out, core.Decision{Kind: core.DecisionOmitForeignKey, Schema: t.Schema, Table: t.Name, ForeignKey: fk.Name})
			}
		}
		for _, c := range ts.excluded {
			out = append(out, core.Decision{Kind: core.DecisionExcludeProperty, Schema: t.Schema, Table: t.Name, Column: c})
		}
	}
	if err := assertNoDanglingReferences(ts, removedIdx, removedKey, removedFK); err != nil {
		return nil, err
	}

	out = append(out, r.discriminator(ts)...)
	r.danglingProperties(ts)
	return out, nil
}

// assertNoDanglingReferences checks that no kept index, key or foreign key still
// references an excluded column.
func assertNoDanglingReferences(ts *tableState, removedIdx map[*core.Index]bool, removedKey bool, removedFK map[*core.ForeignKey]bool) error {
	if len(ts.excluded) == 0 {
		return nil
	}
	t := ts.table
	subject := joinSubject(t.Schema, t.Name)
	for _, ix := range t.Indexes {
		if !removedIdx[ix] && ix.References(ts.isExcl) {
			return &InvariantError{Subject: subject, Detail: "index " + ix.Name + " still references an excluded property"}
		}
	}
	if !removedKey && t.PrimaryKey.References(ts.isExcl) {
		return &InvariantError{Subject: subject, Detail: "primary key still references an excluded property"}
	}
	for _, fk := range t.ForeignKeys {
		if !removedFK[fk] && fk.References(ts.isExcl) {
			return &InvariantError{Subject: subject, Detail: "foreign key " + fk.Name + " still references an excluded property"}
		}
	}
	return nil
}

// discriminator binds the discriminator property and converts each condition value
// to the property's value type. A value that cannot be converted skips only its
// own condition.
func (r *Resolver) discriminator(ts *tableState) []core.Decision {
	e, t := ts.entity, ts.table

	column := strings.TrimSpace(e.Rule.DiscriminatorColumn)
	if column == "" {
		for _, p := range e.Properties() {
			if !p.IsDuplicate() && len(p.Rule.DiscriminatorConditions) > 0 {
				column = p.Rule.Name
				break
			}
		}
	}
	if column == "" {
		return nil
	}

	subject := joinSubject(t.Schema, t.Name)
	col := t.Column(column)
	if col == nil {
		r.warn(core.KindDanglingRule, subject, "discriminator column %q not found", column)
		return nil
	}
	p, ok := e.Property(col.Name)
	if !ok || !p.Rule.Mapped() || ts.isExcl[strings.ToLower(col.Name)] {
		r.warn(core.KindDanglingRule, subject, "discriminator column %q is not mapped to a property", col.Name)
		return nil
	}

	vt := core.PropertyValueType(col, p.Rule.NewType)
	out := []core.Decision{{
		Kind: core.DecisionSetDiscriminator, Schema: t.Schema, Table: t.Name, Column: col.Name,
		Name: p.FinalName(), Type: vt.String(),
	}}
	for _, cond := range p.Rule.DiscriminatorConditions {
		target := strings.TrimSpace(cond.ToEntityName)
		if target == "" {
			r.warn(core.KindDanglingRule, subject, "discriminator value %q names no entity; skipped", cond.Value)
			continue
		}
		v, err := ConvertValue(vt, cond.Value)
		if err != nil {
			r.warn(core.KindUnconvertibleDiscriminatorValue, subject,
				"discriminator value %q could not be converted to %s; skipped", cond.Value, vt)
			continue
		}
		out = append(out, core.Decision{
			Kind: core.DecisionDiscriminatorValue, Schema: t.Schema, Table: t.Name, Column: col.Name,
			Name: target, Value: v,
		})
	}
	return out
}

// danglingProperties reports mapped property rules that matched no column.
func (r *Resolver) danglingProperties(ts *tableState) {
	var columns []string
	for _, c := range ts.table.Columns {
		columns = append(columns, c.Name)
	}
	for _, p := range ts.entity.Properties() {
		if p.IsDuplicate() || p.Synthesized() || p.IsBound() || !p.Rule.Mapped() || strings.TrimSpace(p.Rule.Name) == "" {
			continue
		}
		r.warn(core.KindDanglingRule, p.Path(),
			"property for column %q cannot be generated because the column cannot be found%s",
			p.Rule.Name, didYouMean(p.Rule.Name, columns))
	}
}

func joinSubject(schema, name string) string {
	return core.TableID{Schema: schema, Name: name}.String()
}
