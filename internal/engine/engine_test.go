package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ruler/internal/loader"
	"github.com/leapstack-labs/ruler/internal/state"
	"github.com/leapstack-labs/ruler/internal/testutil"
	"github.com/leapstack-labs/ruler/pkg/core"
)

const shopCatalog = `{
  "schemas": [
    {
      "name": "dbo",
      "tables": [
        {
          "name": "Customer",
          "columns": [
            {"name": "Id", "data_type": "int"},
            {"name": "Name", "data_type": "nvarchar(100)"},
            {"name": "Secret", "data_type": "varbinary(64)"}
          ],
          "primary_key": {"name": "PK_Customer", "columns": ["Id"]},
          "indexes": [{"name": "IX_Customer_Secret", "columns": ["Secret"]}]
        },
        {
          "name": "Order",
          "columns": [
            {"name": "Id", "data_type": "int"},
            {"name": "CustomerId", "data_type": "int"},
            {"name": "Total", "data_type": "decimal(18,2)"}
          ],
          "primary_key": {"name": "PK_Order", "columns": ["Id"]},
          "foreign_keys": [
            {"name": "FK_Order_Customer", "columns": ["CustomerId"], "principal_table": "Customer", "principal_columns": ["Id"]}
          ]
        },
        {
          "name": "OrderItem",
          "columns": [
            {"name": "Id", "data_type": "int"},
            {"name": "OrderId", "data_type": "int"},
            {"name": "Quantity", "data_type": "int"}
          ],
          "primary_key": {"name": "PK_OrderItem", "columns": ["Id"]},
          "foreign_keys": [
            {"name": "FK_OrderItem_Order", "columns": ["OrderId"], "principal_table": "Order", "principal_columns": ["Id"]}
          ]
        },
        {
          "name": "AuditLog",
          "columns": [{"name": "Id", "data_type": "bigint"}, {"name": "Message", "data_type": "nvarchar(max)"}]
        }
      ]
    }
  ]
}`

const shopRules = `name: Shop
schemas:
  - schema_name: dbo
    entities:
      - name: Customer
        new_name: Client
        include_unknown_columns: true
        properties:
          - name: Secret
            not_mapped: true
      - name: Order
        include_unknown_columns: true
      - name: OrderItem
        not_mapped: true
`

type fixture struct {
	rules   string
	catalog string
	state   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		rules:   testutil.WriteFile(t, dir, "rules.yaml", shopRules),
		catalog: testutil.WriteFile(t, dir, "catalog.json", shopCatalog),
		state:   filepath.Join(dir, "state.db"),
	}
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func propertyNames(e *Entity) []string {
	out := make([]string, 0, len(e.Properties))
	for _, p := range e.Properties {
		out = append(out, p.Name)
	}
	return out
}

func TestNew_RequiresCatalog(t *testing.T) {
	_, err := New(Config{RulesPath: "rules.yaml"})
	require.Error(t, err)
}

func TestEngine_Run(t *testing.T) {
	f := newFixture(t)
	e := newEngine(t, Config{RulesPath: f.rules, CatalogPath: f.catalog})

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Run)
	assert.False(t, res.HasErrors())
	assert.NotEmpty(t, res.Digest)
	assert.Positive(t, res.Synthesized)

	m := res.Model
	assert.Equal(t, "Shop", m.Name)
	require.Len(t, m.Entities, 2)
	assert.Nil(t, m.Entity("dbo", "OrderItem"))
	assert.Nil(t, m.Entity("dbo", "AuditLog"))

	client := m.Entity("dbo", "Customer")
	require.NotNil(t, client)
	assert.Equal(t, "Client", client.Name)
	assert.Equal(t, []string{"Id", "Name"}, propertyNames(client))
	assert.Empty(t, client.Indexes, "index over the excluded column is removed")
	require.NotNil(t, client.PrimaryKey)
	require.Len(t, client.Navigations, 1)
	assert.True(t, client.Navigations[0].Principal)

	order := m.EntityByName("dbo", "Order")
	require.NotNil(t, order)
	assert.Equal(t, []string{"Id", "CustomerId", "Total"}, propertyNames(order))
	require.Len(t, order.ForeignKeys, 1)
	assert.Equal(t, "FK_Order_Customer", order.ForeignKeys[0].Name)
	assert.Equal(t, "dbo.Customer", order.ForeignKeys[0].Principal)
	require.Len(t, order.Navigations, 1, "the inverse of the omitted OrderItem relationship is not generated")
	assert.False(t, order.Navigations[0].Principal)
	assert.Equal(t, "decimal", order.Properties[2].Type)

	assert.Empty(t, m.DanglingReferences())
}

func TestEngine_Run_MissingRulesIncludesEverything(t *testing.T) {
	f := newFixture(t)
	e := newEngine(t, Config{RulesPath: filepath.Join(t.TempDir(), "absent.yaml"), CatalogPath: f.catalog})

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Model.Entities, 4)
	assert.Empty(t, res.Model.DanglingReferences())
	for _, d := range res.Decisions {
		assert.False(t, d.Kind.IsOmission(), "unexpected %s for %s", d.Kind, d.Subject())
	}
}

func TestEngine_Run_RecordsHistory(t *testing.T) {
	f := newFixture(t)
	e := newEngine(t, Config{RulesPath: f.rules, CatalogPath: f.catalog, StatePath: f.state})
	ctx := context.Background()

	first, err := e.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, first.Run)
	assert.Nil(t, first.Previous)
	assert.False(t, first.Idempotent)
	assert.Equal(t, state.RunStatusCompleted, first.Run.Status)
	assert.Equal(t, first.Digest, first.Run.Digest)
	assert.Equal(t, len(first.Decisions), first.Run.Decisions)

	second, err := e.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, second.Previous)
	assert.Equal(t, first.Run.ID, second.Previous.ID)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Digest, second.Digest)

	stored, err := e.Store().GetDecisions(ctx, second.Run.ID)
	require.NoError(t, err)
	require.Len(t, stored, len(second.Decisions))
	for i := range stored {
		assert.Equal(t, second.Decisions[i].Kind, stored[i].Kind)
		assert.Equal(t, second.Decisions[i].Subject(), stored[i].Subject())
	}

	runs, err := e.Store().ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestEngine_Run_CancelledContext(t *testing.T) {
	f := newFixture(t)
	e := newEngine(t, Config{RulesPath: f.rules, CatalogPath: f.catalog})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Decisions)
}

func TestEngine_WriteBack(t *testing.T) {
	f := newFixture(t)
	e := newEngine(t, Config{RulesPath: f.rules, CatalogPath: f.catalog})

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.WriteBack(res))

	doc, err := loader.LoadRules(f.rules)
	require.NoError(t, err)
	require.Len(t, doc.Schemas, 1)

	var order *core.EntityRule
	for _, er := range doc.Schemas[0].Entities {
		if er.Name == "Order" {
			order = er
		}
	}
	require.NotNil(t, order)
	assert.Len(t, order.Properties, 3, "synthesized property rules are written back")

	// resolving with the written-back rules changes nothing
	again, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Digest, again.Digest)
}

func TestValidateRules(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "rules.yaml", `schemas:
  - schema_name: dbo
    entities:
      - name: Customer
      - name: customer
        annotations:
          Bogus: 1
`)

	doc, msgs, err := ValidateRules(path)
	require.NoError(t, err)
	require.NotNil(t, doc)

	var got []core.MessageKind
	for _, m := range msgs {
		got = append(got, m.Kind)
	}
	assert.Contains(t, got, core.KindDuplicateRule)
	assert.Contains(t, got, core.KindInvalidAnnotation)

	_, _, err = ValidateRules(filepath.Join(t.TempDir(), "rules.toml"))
	require.Error(t, err)
}
