package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/ruler/pkg/core"
	"github.com/leapstack-labs/ruler/pkg/resolve"
)

// Drive walks a catalog through the resolver hooks in the order a scaffolder
// visits it and applies every decision to a new model:
//
//	schema -> tables (columns, EndTable) -> foreign keys and navigations -> FinalizeSchema
//
// followed by Finish. Principal-end navigations of cross-schema relationships are
// presented after every schema has been finalized, once both tables are known.
func Drive(ctx context.Context, r *resolve.Resolver, catalog *core.Catalog) (*Model, error) {
	name := r.Document().Name
	if name == "" {
		name = "Model"
	}
	m := NewModel(name, catalog)
	var deferred []core.NavigationEnd

	apply := func(ds []core.Decision, err error) ([]core.Decision, error) {
		if err != nil {
			return nil, err
		}
		if err := m.Apply(ds); err != nil {
			return nil, err
		}
		return ds, nil
	}

	for _, s := range catalog.Schemas {
		ds, err := apply(r.ResolveSchema(ctx, s.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve schema %s: %w", s.Name, err)
		}
		if omitted(ds, core.DecisionOmitSchema) {
			if _, err := apply(r.FinalizeSchema(ctx, s.Name)); err != nil {
				return nil, fmt.Errorf("failed to finalize schema %s: %w", s.Name, err)
			}
			continue
		}

		for _, t := range s.Tables {
			if err := driveTable(ctx, r, t, apply); err != nil {
				return nil, err
			}
		}
		for _, t := range s.Tables {
			for _, fk := range t.ForeignKeys {
				end, err := driveRelationship(ctx, r, catalog, s.Name, t, fk, apply)
				if err != nil {
					return nil, err
				}
				if end != nil {
					deferred = append(deferred, *end)
				}
			}
		}

		if _, err := apply(r.FinalizeSchema(ctx, s.Name)); err != nil {
			return nil, fmt.Errorf("failed to finalize schema %s: %w", s.Name, err)
		}
	}

	for _, end := range deferred {
		if r.Tracker().TableOrSchemaOmitted(end.Table.ID()) {
			continue
		}
		if _, err := apply(r.ResolveNavigation(ctx, end)); err != nil {
			return nil, fmt.Errorf("failed to resolve inverse navigation %s: %w", end.ForeignKey.Name, err)
		}
	}

	if _, err := apply(r.Finish(ctx)); err != nil {
		return nil, fmt.Errorf("failed to finish resolution: %w", err)
	}
	return m, nil
}

type applyFunc func([]core.Decision, error) ([]core.Decision, error)

func driveTable(ctx context.Context, r *resolve.Resolver, t *core.Table, apply applyFunc) error {
	ds, err := apply(r.ResolveTable(ctx, t))
	if err != nil {
		return fmt.Errorf("failed to resolve table %s: %w", t.ID(), err)
	}
	if omitted(ds, core.DecisionOmitTable) {
		return nil
	}
	for _, c := range t.Columns {
		if _, err := apply(r.ResolveColumn(ctx, t, c)); err != nil {
			return fmt.Errorf("failed to resolve column %s.%s: %w", t.ID(), c.Name, err)
		}
	}
	if _, err := apply(r.EndTable(ctx, t)); err != nil {
		return fmt.Errorf("failed to end table %s: %w", t.ID(), err)
	}
	return nil
}

// driveRelationship presents a foreign key with both of its ends. The principal end
// of a cross-schema relationship is returned for later instead.
func driveRelationship(ctx context.Context, r *resolve.Resolver, catalog *core.Catalog, schema string, t *core.Table, fk *core.ForeignKey, apply applyFunc) (*core.NavigationEnd, error) {
	if _, err := apply(r.ResolveForeignKey(ctx, t, fk)); err != nil {
		return nil, fmt.Errorf("failed to resolve foreign key %s: %w", fk.Name, err)
	}
	if _, err := apply(r.ResolveNavigation(ctx, core.NavigationEnd{Table: t, ForeignKey: fk})); err != nil {
		return nil, fmt.Errorf("failed to resolve navigation %s: %w", fk.Name, err)
	}

	pid := fk.PrincipalID(t)
	principal := catalog.Table(pid)
	if principal == nil {
		return nil, nil
	}
	end := core.NavigationEnd{Table: principal, Dependent: t, ForeignKey: fk, IsPrincipal: true}
	if !strings.EqualFold(pid.Schema, schema) {
		return &end, nil
	}
	if _, err := apply(r.ResolveNavigation(ctx, end)); err != nil {
		return nil, fmt.Errorf("failed to resolve inverse navigation %s: %w", fk.Name, err)
	}
	return nil, nil
}

func omitted(ds []core.Decision, kind core.DecisionKind) bool {
	for _, d := range ds {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
