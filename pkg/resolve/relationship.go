package resolve

import (
	"context"

	"github.com/leapstack-labs/ruler/pkg/core"
)

// ResolveForeignKey binds a foreign key of a bound table, or omits it when its
// principal table or schema is already omitted or it was removed with an excluded
// column. Foreign keys to tables omitted later are removed by FinalizeSchema.
func (r *Resolver) ResolveForeignKey(ctx context.Context, t *core.Table, fk *core.ForeignKey) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		ts, out := r.resolveTable(t)
		more, err := r.endTable(ts)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
		if ts.omitted {
			return out, nil
		}

		fs := ts.fks[r.fold.String(fk.Name)]
		if fs == nil || fs.omitted {
			return out, nil
		}
		if r.tracker.TableOrSchemaOmitted(fk.PrincipalID(t)) {
			fs.omitted = true
			return append(out, core.Decision{Kind: core.DecisionOmitForeignKey, Schema: t.Schema, Table: t.Name, ForeignKey: fk.Name}), nil
		}
		return append(out, core.Decision{
			Kind: core.DecisionBindForeignKey, Schema: t.Schema, Table: t.Name, ForeignKey: fk.Name,
			Name: fk.PrincipalID(t).String(),
		}), nil
	})
}

// ResolveNavigation binds a relationship end to its navigation rule. The rule is
// matched by foreign key end first, then by predicted name, then by alternate name.
// An unmatched end is synthesized when the entity includes unknown columns and
// excluded otherwise; exclusions are emitted by FinalizeSchema.
func (r *Resolver) ResolveNavigation(ctx context.Context, end core.NavigationEnd) ([]core.Decision, error) {
	return r.run(ctx, func() ([]core.Decision, error) {
		ts, out := r.resolveTable(end.Table)
		more, err := r.endTable(ts)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
		if ts.omitted {
			return out, nil
		}

		fs := r.foreignKeyState(end)
		if (fs != nil && fs.omitted) || r.endOmitted(end) {
			return out, nil
		}

		fkName := end.FkName()
		predicted := end.PredictedName
		if predicted == "" {
			predicted = r.defaultNavigationName(end)
		}
		key := r.fold.String(fkName) + "\x00" + r.fold.String(predicted)
		if end.IsPrincipal {
			key += "\x00p"
		}
		if _, seen := ts.navs[key]; seen {
			return out, nil
		}
		ns := &navState{owner: ts, end: end, fkName: fkName, principal: end.IsPrincipal, predicted: predicted}
		ts.navs[key] = ns
		ts.navList = append(ts.navList, ns)
		if fs != nil {
			fs.ends = append(fs.ends, ns)
		}

		e := ts.entity
		n, found := e.MatchNavigation(fkName, end.IsPrincipal, predicted, end.AlternateName)
		if found {
			if err := n.Bind(r.tableKey(ts.table.ID()) + "\x00" + key); err != nil {
				found = false
			}
		}
		if !found && e.Rule.IncludeUnknownColumns {
			n, found = e.SynthesizeNavigation(predicted, fkName, end.IsPrincipal), true
			_ = n.Bind(r.tableKey(ts.table.ID()) + "\x00" + key)
		}
		if !found || !n.Rule.Mapped() {
			ns.excluded = true
			return out, nil
		}

		t := ts.table
		return append(out, core.Decision{
			Kind: core.DecisionBindNavigation, Schema: t.Schema, Table: t.Name, ForeignKey: fkName,
			Navigation: predicted, Principal: end.IsPrincipal, Name: n.FinalName(),
		}), nil
	})
}

// endOmitted reports whether the table on the other side of the relationship is
// already omitted.
func (r *Resolver) endOmitted(end core.NavigationEnd) bool {
	if end.ForeignKey == nil {
		return false
	}
	dep := end.DependentTable()
	if dep == nil {
		return false
	}
	if end.IsPrincipal {
		return r.tracker.TableOrSchemaOmitted(dep.ID())
	}
	return r.tracker.TableOrSchemaOmitted(end.ForeignKey.PrincipalID(dep))
}

// foreignKeyState finds the state of the foreign key behind a relationship end.
func (r *Resolver) foreignKeyState(end core.NavigationEnd) *fkState {
	if end.ForeignKey == nil {
		return nil
	}
	name := r.fold.String(end.ForeignKey.Name)
	if dep := end.DependentTable(); dep != nil {
		if ts := r.tableState(dep); ts != nil {
			return ts.fks[name]
		}
		return nil
	}
	// principal end without a dependent table: search visited tables in order
	for _, st := range r.schemaOrder {
		for _, ts := range st.tables {
			if fs := ts.fks[name]; fs != nil && fs.fk == end.ForeignKey {
				return fs
			}
		}
	}
	return nil
}

// defaultNavigationName names a dependent end after the principal entity and a
// principal end after the dependent entity.
func (r *Resolver) defaultNavigationName(end core.NavigationEnd) string {
	var other core.TableID
	switch {
	case end.ForeignKey == nil:
		return ""
	case end.IsPrincipal:
		dep := end.DependentTable()
		if dep == nil {
			return ""
		}
		other = dep.ID()
	default:
		other = end.ForeignKey.PrincipalID(end.Table)
	}
	if ts := r.tables[r.tableKey(other)]; ts != nil && ts.entity != nil {
		return ts.entity.FinalName()
	}
	return r.idx.Predictor().Entity(other.Name)
}

// flushNavigations emits the exclusions recorded by ResolveNavigation, table by table
// in visit order.
func (r *Resolver) flushNavigations(st *schemaState) []core.Decision {
	var out []core.Decision
	for _, ts := range st.tables {
		if ts.omitted {
			continue
		}
		for _, ns := range ts.navList {
			if ns.excluded && !ns.flushed {
				out = append(out, excludeNavigation(ns))
			}
		}
	}
	return out
}

// orphaned reports whether the relationship behind a resolved end was removed or the
// table on its other side is omitted.
func (r *Resolver) orphaned(ns *navState) bool {
	if ns.end.ForeignKey == nil {
		return false
	}
	fs := r.foreignKeyState(ns.end)
	if fs != nil && fs.omitted {
		return true
	}
	if ns.end.IsPrincipal && ns.end.Dependent == nil {
		return fs != nil && r.tracker.TableOrSchemaOmitted(fs.table.ID())
	}
	return r.endOmitted(ns.end)
}

// cascade removes every foreign key of the schema's kept tables whose principal table
// or schema is omitted, with the navigations resolved on it. Navigations resolved
// before the table on their other side was omitted are excluded as well.
func (r *Resolver) cascade(st *schemaState) []core.Decision {
	var out []core.Decision
	for _, ts := range st.tables {
		if ts.omitted {
			continue
		}
		t := ts.table
		for _, fk := range t.ForeignKeys {
			fs := ts.fks[r.fold.String(fk.Name)]
			if fs == nil || fs.fk != fk || fs.omitted || !r.tracker.TableOrSchemaOmitted(fk.PrincipalID(t)) {
				continue
			}
			fs.omitted = true
			out = append(out, core.Decision{Kind: core.DecisionOmitForeignKey, Schema: t.Schema, Table: t.Name, ForeignKey: fk.Name})
			for _, ns := range fs.ends {
				if ns.excluded || ns.owner.omitted {
					continue
				}
				ns.excluded = true
				out = append(out, excludeNavigation(ns))
			}
		}
		for _, ns := range ts.navList {
			if ns.excluded || !r.orphaned(ns) {
				continue
			}
			ns.excluded = true
			out = append(out, excludeNavigation(ns))
		}
	}
	return out
}

func excludeNavigation(ns *navState) core.Decision {
	ns.flushed = true
	t := ns.owner.table
	return core.Decision{
		Kind: core.DecisionExcludeNavigation, Schema: t.Schema, Table: t.Name, ForeignKey: ns.fkName,
		Navigation: ns.predicted, Principal: ns.principal,
	}
}
