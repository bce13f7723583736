package resolve

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ruler/pkg/core"
)

func customerOrder() (*core.Table, *core.Table) {
	cat := shopCatalog()
	return cat.Table(core.TableID{Schema: "dbo", Name: "Customer"}), cat.Table(core.TableID{Schema: "dbo", Name: "Order"})
}

func unmappedCustomerDoc() *core.RuleDocument {
	return schemaDoc(&core.SchemaRule{
		SchemaName:           "dbo",
		IncludeUnknownTables: true,
		Entities:             []*core.EntityRule{{Name: "Customer", NotMapped: true}},
	})
}

func TestCascade_PrincipalOmittedAfterDependent(t *testing.T) {
	customer, order := customerOrder()
	fk := order.ForeignKeys[0]
	r := New(unmappedCustomerDoc())
	ctx := context.Background()

	_, err := r.ResolveTable(ctx, order)
	require.NoError(t, err)
	_, err = r.EndTable(ctx, order)
	require.NoError(t, err)

	ds, err := r.ResolveForeignKey(ctx, order, fk)
	require.NoError(t, err)
	assert.Equal(t, []core.DecisionKind{core.DecisionBindForeignKey}, kinds(ds), "the principal is not known to be omitted yet")

	ds, err = r.ResolveNavigation(ctx, core.NavigationEnd{Table: order, ForeignKey: fk})
	require.NoError(t, err)
	assert.Equal(t, []core.Decision{{
		Kind: core.DecisionBindNavigation, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer",
		Navigation: "Customer", Name: "Customer",
	}}, ds)

	ds, err = r.ResolveTable(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, []core.Decision{{Kind: core.DecisionOmitTable, Schema: "dbo", Table: "Customer"}}, ds)

	ds, err = r.FinalizeSchema(ctx, "dbo")
	require.NoError(t, err)
	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionOmitForeignKey, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer"},
		{Kind: core.DecisionExcludeNavigation, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer", Navigation: "Customer"},
	}, ds)

	ds, err = r.Finish(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds, "the foreign key is removed once")
}

func TestCascade_PrincipalOmittedBeforeDependent(t *testing.T) {
	customer, order := customerOrder()
	fk := order.ForeignKeys[0]
	r := New(unmappedCustomerDoc())
	ctx := context.Background()

	_, err := r.ResolveTable(ctx, customer)
	require.NoError(t, err)
	_, err = r.ResolveTable(ctx, order)
	require.NoError(t, err)

	ds, err := r.ResolveForeignKey(ctx, order, fk)
	require.NoError(t, err)
	assert.Equal(t, []core.DecisionKind{core.DecisionBindProperty, core.DecisionBindProperty, core.DecisionBindProperty, core.DecisionOmitForeignKey}, kinds(ds),
		"the table is ended implicitly before its foreign keys")

	ds, err = r.ResolveNavigation(ctx, core.NavigationEnd{Table: order, ForeignKey: fk})
	require.NoError(t, err)
	assert.Empty(t, ds)
	ds, err = r.ResolveNavigation(ctx, core.NavigationEnd{Table: customer, Dependent: order, ForeignKey: fk, IsPrincipal: true})
	require.NoError(t, err)
	assert.Empty(t, ds)

	ds, err = r.FinalizeSchema(ctx, "dbo")
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestCascade_DependentOmittedAfterPrincipalNavigation(t *testing.T) {
	tests := []struct {
		name          string
		withDependent bool
	}{
		{name: "dependent table given", withDependent: true},
		{name: "dependent table found by foreign key", withDependent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customer, order := customerOrder()
			fk := order.ForeignKeys[0]
			r := New(schemaDoc(&core.SchemaRule{
				SchemaName:           "dbo",
				IncludeUnknownTables: true,
				Entities:             []*core.EntityRule{{Name: "Order", NotMapped: true}},
			}))
			ctx := context.Background()

			_, err := r.ResolveTable(ctx, customer)
			require.NoError(t, err)
			_, err = r.EndTable(ctx, customer)
			require.NoError(t, err)

			end := core.NavigationEnd{Table: customer, ForeignKey: fk, IsPrincipal: true, PredictedName: "Orders"}
			if tt.withDependent {
				end.Dependent = order
			}
			ds, err := r.ResolveNavigation(ctx, end)
			require.NoError(t, err)
			assert.Equal(t, []core.DecisionKind{core.DecisionBindNavigation}, kinds(ds), "the dependent is not known to be omitted yet")

			ds, err = r.ResolveTable(ctx, order)
			require.NoError(t, err)
			assert.Equal(t, []core.Decision{{Kind: core.DecisionOmitTable, Schema: "dbo", Table: "Order"}}, ds)

			ds, err = r.FinalizeSchema(ctx, "dbo")
			require.NoError(t, err)
			assert.Equal(t, []core.Decision{{
				Kind: core.DecisionExcludeNavigation, Schema: "dbo", Table: "Customer", ForeignKey: "FK_Order_Customer",
				Navigation: "Orders", Principal: true,
			}}, ds)

			ds, err = r.Finish(ctx)
			require.NoError(t, err)
			assert.Empty(t, ds, "the navigation is excluded once")
		})
	}
}

func TestCascade_SameOutcomeInEitherOrder(t *testing.T) {
	omitted := func(tables ...string) []core.Decision {
		cat := shopCatalog()
		var ordered []*core.Table
		for _, name := range tables {
			ordered = append(ordered, cat.Table(core.TableID{Schema: "dbo", Name: name}))
		}
		cat.Schemas[0].Tables = ordered

		var out []core.Decision
		for _, d := range drive(t, New(unmappedCustomerDoc()), cat) {
			if d.Kind.IsOmission() {
				out = append(out, d)
			}
		}
		return out
	}

	forward := omitted("Customer", "Order")
	backward := omitted("Order", "Customer")
	assert.ElementsMatch(t, forward, backward)
	assert.Contains(t, forward, core.Decision{Kind: core.DecisionOmitForeignKey, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer"})
}

func TestCascade_AcrossSchemasAtFinish(t *testing.T) {
	order := &core.Table{
		Schema:  "dbo",
		Name:    "Order",
		Columns: []*core.Column{{Name: "Id"}, {Name: "CustomerId"}},
		ForeignKeys: []*core.ForeignKey{
			{Name: "FK_Order_Customer", Columns: []string{"CustomerId"}, PrincipalSchema: "sales", PrincipalTable: "Customer"},
		},
	}
	customer := &core.Table{Schema: "sales", Name: "Customer", Columns: []*core.Column{{Name: "Id"}}}
	cat := &core.Catalog{Schemas: []*core.CatalogSchema{
		{Name: "dbo", Tables: []*core.Table{order}},
		{Name: "sales", Tables: []*core.Table{customer}},
	}}
	doc := &core.RuleDocument{Schemas: []*core.SchemaRule{
		{SchemaName: "dbo", IncludeUnknownTables: true},
		{SchemaName: "sales", NotMapped: true},
	}}

	r := New(doc)
	ds := drive(t, r, cat)

	require.GreaterOrEqual(t, len(ds), 2)
	tail := ds[len(ds)-2:]
	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionOmitForeignKey, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer"},
		{Kind: core.DecisionExcludeNavigation, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer", Navigation: "Customer"},
	}, tail, "Finish removes foreign keys into schemas omitted later")
	assert.Contains(t, ds, core.Decision{Kind: core.DecisionBindForeignKey, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer", Name: "sales.Customer"})
}

func TestResolveNavigation_MatchPrecedence(t *testing.T) {
	order := &core.Table{Schema: "dbo", Name: "Order", Columns: []*core.Column{{Name: "Id"}}}
	item := &core.Table{
		Schema:      "dbo",
		Name:        "OrderItem",
		Columns:     []*core.Column{{Name: "Id"}, {Name: "OrderId"}},
		ForeignKeys: []*core.ForeignKey{{Name: "FK_OrderItem_Order", Columns: []string{"OrderId"}, PrincipalTable: "Order"}},
	}
	fk := item.ForeignKeys[0]
	principalEnd := core.NavigationEnd{
		Table: order, Dependent: item, ForeignKey: fk, IsPrincipal: true,
		PredictedName: "OrderOrderItem", AlternateName: "Items",
	}

	tests := []struct {
		name  string
		rules []*core.NavigationRule
		want  string
	}{
		{
			name: "predicted name before alternate name",
			rules: []*core.NavigationRule{
				{Name: "Items", NewName: "ByAlternate"},
				{Name: "OrderOrderItem", NewName: "ByPrimary"},
			},
			want: "ByPrimary",
		},
		{
			name:  "alternate name",
			rules: []*core.NavigationRule{{Name: "Lines", AlternateName: "Items", NewName: "ByAlternate"}},
			want:  "ByAlternate",
		},
		{
			name: "foreign key end first",
			rules: []*core.NavigationRule{
				{Name: "OrderOrderItem", NewName: "ByPrimary"},
				{Name: "Whatever", FkName: "fk_orderitem_order", IsPrincipal: true, NewName: "ByForeignKey"},
			},
			want: "ByForeignKey",
		},
		{
			name:  "dependent end rule does not match the principal end",
			rules: []*core.NavigationRule{{Name: "Order", FkName: "FK_OrderItem_Order", NewName: "Parent"}},
			want:  "OrderOrderItem",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := schemaDoc(&core.SchemaRule{
				SchemaName:           "dbo",
				IncludeUnknownTables: true,
				Entities:             []*core.EntityRule{{Name: "Order", IncludeUnknownColumns: true, Navigations: tt.rules}},
			})
			r := New(doc)

			ds, err := r.ResolveNavigation(context.Background(), principalEnd)
			require.NoError(t, err)
			navs := ofKind(ds, core.DecisionBindNavigation)
			require.Len(t, navs, 1)
			assert.Equal(t, tt.want, navs[0].Name)
			assert.True(t, navs[0].Principal)
			assert.Equal(t, "OrderOrderItem", navs[0].Navigation)

			again, err := r.ResolveNavigation(context.Background(), principalEnd)
			require.NoError(t, err)
			assert.Empty(t, again, "a relationship end is resolved once")
		})
	}
}

func TestResolveNavigation_Exclusions(t *testing.T) {
	tests := []struct {
		name   string
		entity *core.EntityRule
	}{
		{
			name:   "unmapped rule",
			entity: &core.EntityRule{Name: "Order", IncludeUnknownColumns: true, Navigations: []*core.NavigationRule{{Name: "Customer", NotMapped: true}}},
		},
		{
			name:   "no rule and unknown columns excluded",
			entity: &core.EntityRule{Name: "Order", Properties: []*core.PropertyRule{{Name: "Id"}, {Name: "CustomerId"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := schemaDoc(&core.SchemaRule{
				SchemaName:           "dbo",
				IncludeUnknownTables: true,
				Entities:             []*core.EntityRule{tt.entity},
			})
			r := New(doc)
			ds := drive(t, r, shopCatalog())

			exclude := core.Decision{
				Kind: core.DecisionExcludeNavigation, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer", Navigation: "Customer",
			}
			assert.Contains(t, ds, exclude)
			assert.Contains(t, ds, core.Decision{
				Kind: core.DecisionBindForeignKey, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer", Name: "dbo.Customer",
			}, "excluding a navigation keeps its foreign key")

			count := 0
			for _, d := range ds {
				if reflect.DeepEqual(d, exclude) {
					count++
				}
				if d.Kind == core.DecisionBindNavigation && d.Table == "Order" {
					assert.NotEqual(t, "FK_Order_Customer", d.ForeignKey)
				}
			}
			assert.Equal(t, 1, count, "exclusions are emitted once")
			assert.Empty(t, r.Log().Warnings())
		})
	}
}
