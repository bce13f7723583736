package resolve

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ruler/pkg/core"
)

func lineItemTable() *core.Table {
	return &core.Table{
		Schema: "dbo",
		Name:   "OrderLine",
		Columns: []*core.Column{
			{Name: "OrderId", DataType: "int"},
			{Name: "ProductId", DataType: "int"},
			{Name: "Note", DataType: "nvarchar(200)"},
		},
		PrimaryKey: &core.Key{Name: "PK_OrderLine", Columns: []string{"OrderId", "ProductId"}},
		Indexes: []*core.Index{
			{Name: "IX_OrderLine_Product", Columns: []string{"ProductId"}},
			{Name: "IX_OrderLine_Note", Columns: []string{"Note"}},
		},
		ForeignKeys: []*core.ForeignKey{
			{Name: "FK_OrderLine_Order", Columns: []string{"OrderId"}, PrincipalTable: "Order"},
			{Name: "FK_OrderLine_Product", Columns: []string{"ProductId"}, PrincipalTable: "Product"},
		},
	}
}

func TestEndTable_RemovalOrder(t *testing.T) {
	doc := schemaDoc(&core.SchemaRule{
		SchemaName: "dbo",
		Entities: []*core.EntityRule{{
			Name:                  "OrderLine",
			IncludeUnknownColumns: true,
			Properties:            []*core.PropertyRule{{Name: "ProductId", NotMapped: true}},
		}},
	})
	r := New(doc)
	ctx := context.Background()
	tbl := lineItemTable()

	_, err := r.ResolveTable(ctx, tbl)
	require.NoError(t, err)
	ds, err := r.EndTable(ctx, tbl)
	require.NoError(t, err)

	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionBindProperty, Schema: "dbo", Table: "OrderLine", Column: "OrderId", Name: "OrderId"},
		{Kind: core.DecisionBindProperty, Schema: "dbo", Table: "OrderLine", Column: "Note", Name: "Note"},
		{Kind: core.DecisionRemoveIndex, Schema: "dbo", Table: "OrderLine", Index: "IX_OrderLine_Product"},
		{Kind: core.DecisionRemoveKey, Schema: "dbo", Table: "OrderLine", Index: "PK_OrderLine"},
		{Kind: core.DecisionOmitForeignKey, Schema: "dbo", Table: "OrderLine", ForeignKey: "FK_OrderLine_Product"},
		{Kind: core.DecisionExcludeProperty, Schema: "dbo", Table: "OrderLine", Column: "ProductId"},
	}, ds)

	// a removed foreign key is not resolved again
	ds, err = r.ResolveForeignKey(ctx, tbl, tbl.ForeignKeys[1])
	require.NoError(t, err)
	assert.Empty(t, ds)

	ds, err = r.ResolveForeignKey(ctx, tbl, tbl.ForeignKeys[0])
	require.NoError(t, err)
	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionBindForeignKey, Schema: "dbo", Table: "OrderLine", ForeignKey: "FK_OrderLine_Order", Name: "dbo.Order"},
	}, ds)

	// ending twice is a no-op
	ds, err = r.EndTable(ctx, tbl)
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.Empty(t, r.Log().Warnings())
}

func TestResolveColumn(t *testing.T) {
	tests := []struct {
		name       string
		entity     *core.EntityRule
		column     *core.Column
		want       []core.Decision
		wantExcl   bool
		wantSynthd bool
	}{
		{
			name:   "renamed",
			entity: &core.EntityRule{Name: "Customer", Properties: []*core.PropertyRule{{Name: "Name", NewName: "FullName"}}},
			column: &core.Column{Name: "name", DataType: "nvarchar"},
			want:   []core.Decision{{Kind: core.DecisionBindProperty, Schema: "dbo", Table: "Customer", Column: "name", Name: "FullName"}},
		},
		{
			name:   "retyped",
			entity: &core.EntityRule{Name: "Customer", Properties: []*core.PropertyRule{{Name: "Id", NewType: " long "}}},
			column: &core.Column{Name: "Id", DataType: "int"},
			want: []core.Decision{
				{Kind: core.DecisionBindProperty, Schema: "dbo", Table: "Customer", Column: "Id", Name: "Id"},
				{Kind: core.DecisionRetype, Schema: "dbo", Table: "Customer", Column: "Id", Type: "long"},
			},
		},
		{
			name:       "unknown column synthesized",
			entity:     &core.EntityRule{Name: "Customer", IncludeUnknownColumns: true},
			column:     &core.Column{Name: "first_name", DataType: "nvarchar"},
			want:       []core.Decision{{Kind: core.DecisionBindProperty, Schema: "dbo", Table: "Customer", Column: "first_name", Name: "FirstName"}},
			wantSynthd: true,
		},
		{
			name:     "unknown column excluded",
			entity:   &core.EntityRule{Name: "Customer"},
			column:   &core.Column{Name: "Extra"},
			wantExcl: true,
		},
		{
			name:     "unmapped column excluded",
			entity:   &core.EntityRule{Name: "Customer", Properties: []*core.PropertyRule{{Name: "Extra", NotMapped: true}}},
			column:   &core.Column{Name: "Extra"},
			wantExcl: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(schemaDoc(&core.SchemaRule{SchemaName: "dbo", Entities: []*core.EntityRule{tt.entity}}))
			tbl := &core.Table{Schema: "dbo", Name: "Customer", Columns: []*core.Column{tt.column}}
			ctx := context.Background()

			_, err := r.ResolveTable(ctx, tbl)
			require.NoError(t, err)
			got, err := r.ResolveColumn(ctx, tbl, tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := r.ResolveColumn(ctx, tbl, tt.column)
			require.NoError(t, err)
			assert.Empty(t, again, "a column is resolved once")

			ts := r.tableState(tbl)
			assert.Equal(t, tt.wantExcl, ts.isExcl[strings.ToLower(tt.column.Name)])
			_, ok := ts.entity.Property(tt.column.Name)
			if tt.wantSynthd {
				assert.True(t, ok)
				assert.Len(t, r.Document().Schemas[0].Entities[0].Properties, 1)
			}
		})
	}
}

func TestEndTable_RetroactiveOmission(t *testing.T) {
	cat := shopCatalog()
	cat.Schemas[0].Tables = []*core.Table{
		cat.Table(core.TableID{Schema: "dbo", Name: "Customer"}),
		cat.Table(core.TableID{Schema: "dbo", Name: "Order"}),
	}
	doc := schemaDoc(&core.SchemaRule{
		SchemaName:           "dbo",
		IncludeUnknownTables: true,
		Entities:             []*core.EntityRule{{Name: "Customer"}},
	})

	r := New(doc)
	ds := drive(t, r, cat)

	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionBindEntity, Schema: "dbo", Table: "Customer", Name: "Customer"},
		{Kind: core.DecisionOmitTable, Schema: "dbo", Table: "Customer"},
	}, forTable(ds, "Customer"))
	assert.Contains(t, ds, core.Decision{Kind: core.DecisionOmitForeignKey, Schema: "dbo", Table: "Order", ForeignKey: "FK_Order_Customer"})
	assert.True(t, r.Tracker().TableOmitted(core.TableID{Schema: "dbo", Name: "Customer"}))

	infos := r.Log().Infos()
	require.Len(t, infos, 1)
	assert.Equal(t, "dbo.Customer", infos[0].Subject)
	assert.Empty(t, r.Log().Warnings())
}

func TestResolveTable_UnknownPolicy(t *testing.T) {
	view := &core.Table{Schema: "dbo", Name: "vw_Sales", IsView: true, Columns: []*core.Column{{Name: "Total"}}}
	table := &core.Table{Schema: "dbo", Name: "Scratch", Columns: []*core.Column{{Name: "Id"}}}
	junction := &core.Table{
		Schema:     "dbo",
		Name:       "ProductTag",
		Columns:    []*core.Column{{Name: "ProductId"}, {Name: "TagId"}},
		PrimaryKey: &core.Key{Columns: []string{"ProductId", "TagId"}},
		ForeignKeys: []*core.ForeignKey{
			{Name: "FK_ProductTag_Product", Columns: []string{"ProductId"}, PrincipalTable: "Product"},
			{Name: "FK_ProductTag_Tag", Columns: []string{"TagId"}, PrincipalTable: "Tag"},
		},
	}

	tests := []struct {
		name  string
		rule  *core.SchemaRule
		table *core.Table
		want  core.DecisionKind
	}{
		{"view included", &core.SchemaRule{SchemaName: "dbo", IncludeUnknownViews: true}, view, core.DecisionBindEntity},
		{"view omitted", &core.SchemaRule{SchemaName: "dbo", IncludeUnknownTables: true}, view, core.DecisionOmitTable},
		{"table included", &core.SchemaRule{SchemaName: "dbo", IncludeUnknownTables: true}, table, core.DecisionBindEntity},
		{"table omitted", &core.SchemaRule{SchemaName: "dbo", IncludeUnknownViews: true}, table, core.DecisionOmitTable},
		{"junction included with views", &core.SchemaRule{SchemaName: "dbo", IncludeUnknownViews: true}, junction, core.DecisionBindEntity},
		{"junction omitted when nothing unknown is included", &core.SchemaRule{SchemaName: "dbo"}, junction, core.DecisionOmitTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(schemaDoc(tt.rule))
			ds, err := r.ResolveTable(context.Background(), tt.table)
			require.NoError(t, err)
			require.Len(t, ds, 2, "implicit schema binding plus the table decision")
			assert.Equal(t, core.DecisionBindSchema, ds[0].Kind)
			assert.Equal(t, tt.want, ds[1].Kind)
			assert.Empty(t, r.Log().Messages())
		})
	}
}

func TestResolveTable_MatchByAlternateAndExpectedName(t *testing.T) {
	doc := schemaDoc(&core.SchemaRule{
		SchemaName: "dbo",
		Entities: []*core.EntityRule{
			{Name: "tbl_people", AltName: "People", NewName: "Person", IncludeUnknownColumns: true},
			{EntityName: "OrderHeader", NewName: "Order", IncludeUnknownColumns: true},
		},
	})
	r := New(doc)
	ctx := context.Background()

	ds, err := r.ResolveTable(ctx, &core.Table{Schema: "dbo", Name: "People"})
	require.NoError(t, err)
	assert.Contains(t, ds, core.Decision{Kind: core.DecisionBindEntity, Schema: "dbo", Table: "People", Name: "Person"})

	ds, err = r.ResolveTable(ctx, &core.Table{Schema: "dbo", Name: "order_header"})
	require.NoError(t, err)
	assert.Equal(t, []core.Decision{{Kind: core.DecisionBindEntity, Schema: "dbo", Table: "order_header", Name: "Order"}}, ds)
}

// =============================================================================
// Inheritance
// =============================================================================

func vehicleTables() (*core.Table, *core.Table) {
	vehicle := &core.Table{
		Schema:     "dbo",
		Name:       "Vehicle",
		Columns:    []*core.Column{{Name: "Id", DataType: "int"}, {Name: "Kind", DataType: "int"}},
		PrimaryKey: &core.Key{Name: "PK_Vehicle", Columns: []string{"Id"}},
	}
	car := &core.Table{
		Schema:     "dbo",
		Name:       "Car",
		Columns:    []*core.Column{{Name: "Id", DataType: "int"}, {Name: "Doors", DataType: "tinyint"}},
		PrimaryKey: &core.Key{Name: "PK_Car", Columns: []string{"Id"}},
	}
	return vehicle, car
}

func TestInheritance_TableBacked(t *testing.T) {
	tests := []struct {
		name        string
		strategy    core.MappingStrategy
		wantVehicle []core.Decision
		wantCar     []core.Decision
	}{
		{
			name:     "TPH",
			strategy: core.StrategyTPH,
			wantVehicle: []core.Decision{
				{Kind: core.DecisionBindEntity, Schema: "dbo", Table: "Vehicle", Name: "Vehicle"},
				{Kind: core.DecisionSetTableMapping, Schema: "dbo", Table: "Vehicle", Name: "Vehicle", Strategy: core.StrategyTPH, Keep: true},
			},
			wantCar: []core.Decision{
				{Kind: core.DecisionBindEntity, Schema: "dbo", Table: "Car", Name: "Car"},
				{Kind: core.DecisionSetBaseType, Schema: "dbo", Table: "Car", Name: "Car", BaseType: "Vehicle"},
				{Kind: core.DecisionSuppressPrimaryKey, Schema: "dbo", Table: "Car", Name: "Car"},
				{Kind: core.DecisionSetTableMapping, Schema: "dbo", Table: "Car", Name: "Car", Strategy: core.StrategyTPH, Keep: false},
			},
		},
		{
			name:     "TPT",
			strategy: core.StrategyTPT,
			wantVehicle: []core.Decision{
				{Kind: core.DecisionBindEntity, Schema: "dbo", Table: "Vehicle", Name: "Vehicle"},
			},
			wantCar: []core.Decision{
				{Kind: core.DecisionBindEntity, Schema: "dbo", Table: "Car", Name: "Car"},
				{Kind: core.DecisionSetBaseType, Schema: "dbo", Table: "Car", Name: "Car", BaseType: "Vehicle"},
				{Kind: core.DecisionSuppressPrimaryKey, Schema: "dbo", Table: "Car", Name: "Car"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := schemaDoc(&core.SchemaRule{
				SchemaName: "dbo",
				Entities: []*core.EntityRule{
					{Name: "Vehicle", MappingStrategy: tt.strategy, IncludeUnknownColumns: true},
					{Name: "Car", BaseTypeName: "Vehicle", IncludeUnknownColumns: true},
				},
			})
			r := New(doc)
			vehicle, car := vehicleTables()
			ctx := context.Background()

			_, err := r.ResolveSchema(ctx, "dbo")
			require.NoError(t, err)
			got, err := r.ResolveTable(ctx, vehicle)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVehicle, got)
			got, err = r.ResolveTable(ctx, car)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCar, got)
		})
	}
}

func TestInheritance_VirtualEntitiesAndDiscriminator(t *testing.T) {
	vehicle, _ := vehicleTables()
	cat := &core.Catalog{Schemas: []*core.CatalogSchema{{Name: "dbo", Tables: []*core.Table{vehicle}}}}
	doc := schemaDoc(&core.SchemaRule{
		SchemaName: "dbo",
		Entities: []*core.EntityRule{
			{
				Name:                  "Vehicle",
				MappingStrategy:       core.StrategyTPH,
				IncludeUnknownColumns: true,
				Properties: []*core.PropertyRule{{
					Name: "Kind",
					DiscriminatorConditions: []core.DiscriminatorCondition{
						{Value: "1", ToEntityName: "Car"},
						{Value: "oops", ToEntityName: "Truck"},
						{Value: " 2 ", ToEntityName: "Bike"},
					},
				}},
			},
			{NewName: "Car", BaseTypeName: "Vehicle"},
			{NewName: "Truck", BaseTypeName: "Vehicle"},
			{NewName: "Bike", BaseTypeName: "Vehicle", Annotations: map[string]core.AnnotationValue{"Relational:Comment": core.StringAnnotation("two wheels")}},
		},
	})

	r := New(doc)
	ds := drive(t, r, cat)

	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionSetDiscriminator, Schema: "dbo", Table: "Vehicle", Column: "Kind", Name: "Kind", Type: "int"},
	}, ofKind(ds, core.DecisionSetDiscriminator))
	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionDiscriminatorValue, Schema: "dbo", Table: "Vehicle", Column: "Kind", Name: "Car", Value: int64(1)},
		{Kind: core.DecisionDiscriminatorValue, Schema: "dbo", Table: "Vehicle", Column: "Kind", Name: "Bike", Value: int64(2)},
	}, ofKind(ds, core.DecisionDiscriminatorValue))

	warnings := r.Log().Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, core.KindUnconvertibleDiscriminatorValue, warnings[0].Kind)
	assert.Contains(t, warnings[0].Text, `"oops"`)

	var virtual []core.Decision
	for _, d := range ds {
		if d.Table == "" && d.Name != "" && d.Kind != core.DecisionBindSchema {
			virtual = append(virtual, d)
		}
	}
	assert.Equal(t, []core.Decision{
		{Kind: core.DecisionBindEntity, Schema: "dbo", Name: "Car"},
		{Kind: core.DecisionSetBaseType, Schema: "dbo", Name: "Car", BaseType: "Vehicle"},
		{Kind: core.DecisionSetTableMapping, Schema: "dbo", Name: "Car", Strategy: core.StrategyTPH},
		{Kind: core.DecisionBindEntity, Schema: "dbo", Name: "Truck"},
		{Kind: core.DecisionSetBaseType, Schema: "dbo", Name: "Truck", BaseType: "Vehicle"},
		{Kind: core.DecisionSetTableMapping, Schema: "dbo", Name: "Truck", Strategy: core.StrategyTPH},
		{Kind: core.DecisionBindEntity, Schema: "dbo", Name: "Bike"},
		{Kind: core.DecisionSetBaseType, Schema: "dbo", Name: "Bike", BaseType: "Vehicle"},
		{Kind: core.DecisionSetTableMapping, Schema: "dbo", Name: "Bike", Strategy: core.StrategyTPH},
		{Kind: core.DecisionMergeAnnotations, Schema: "dbo", Name: "Bike", Annotations: []core.Annotation{
			{Key: "Relational:Comment", Value: core.StringAnnotation("two wheels")},
		}},
	}, virtual)
}

func TestVirtualEntityProblems(t *testing.T) {
	vehicle, _ := vehicleTables()
	cat := &core.Catalog{Schemas: []*core.CatalogSchema{{Name: "dbo", Tables: []*core.Table{vehicle}}}}
	doc := schemaDoc(&core.SchemaRule{
		SchemaName: "dbo",
		Entities: []*core.EntityRule{
			{Name: "Vehicle", NotMapped: true},
			{NewName: "Bad Name", BaseTypeName: "Vehicle"},
			{NewName: "Car", BaseTypeName: "Vehicle"},
			{NewName: "Floating"},
		},
	})

	r := New(doc)
	ds := drive(t, r, cat)

	assert.Empty(t, ofKind(ds, core.DecisionBindEntity))

	invalid := r.Log().OfKind(core.KindInvalidName)
	require.Len(t, invalid, 1)
	assert.Contains(t, invalid[0].Text, `"Bad Name"`)

	infos := r.Log().Infos()
	require.Len(t, infos, 2)
	assert.Contains(t, infos[0].Text, `base type "Vehicle" is not generated`)
	assert.Contains(t, infos[1].Text, "no table or base type")
}

func TestDiscriminatorProblems(t *testing.T) {
	tests := []struct {
		name     string
		entity   *core.EntityRule
		wantKind core.MessageKind
		wantText string
	}{
		{
			name:     "explicit column missing",
			entity:   &core.EntityRule{Name: "Vehicle", IncludeUnknownColumns: true, DiscriminatorColumn: "Type"},
			wantKind: core.KindDanglingRule,
			wantText: `discriminator column "Type" not found`,
		},
		{
			name: "column excluded",
			entity: &core.EntityRule{Name: "Vehicle", IncludeUnknownColumns: true, Properties: []*core.PropertyRule{{
				Name: "Kind", NotMapped: true, DiscriminatorConditions: []core.DiscriminatorCondition{{Value: "1", ToEntityName: "Car"}},
			}}},
			wantKind: core.KindDanglingRule,
			wantText: "is not mapped to a property",
		},
		{
			name: "condition names no entity",
			entity: &core.EntityRule{Name: "Vehicle", IncludeUnknownColumns: true, Properties: []*core.PropertyRule{{
				Name: "Kind", DiscriminatorConditions: []core.DiscriminatorCondition{{Value: "1", ToEntityName: " "}},
			}}},
			wantKind: core.KindDanglingRule,
			wantText: "names no entity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(schemaDoc(&core.SchemaRule{SchemaName: "dbo", Entities: []*core.EntityRule{tt.entity}}))
			vehicle, _ := vehicleTables()

			ds, err := r.EndTable(context.Background(), vehicle)
			require.NoError(t, err)
			assert.Empty(t, ofKind(ds, core.DecisionDiscriminatorValue))

			warnings := r.Log().Warnings()
			require.Len(t, warnings, 1)
			assert.Equal(t, tt.wantKind, warnings[0].Kind)
			assert.Contains(t, warnings[0].Text, tt.wantText)
		})
	}
}
