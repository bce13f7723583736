// Package testutil provides fixtures and renderer helpers for CLI tests.
package testutil

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/ruler/internal/cli/output"
	roottestutil "github.com/leapstack-labs/ruler/internal/testutil"
)

// CatalogJSON is a small shop catalog: customers, orders, order items and an
// audit log without a primary key.
const CatalogJSON = `{
  "schemas": [
    {
      "name": "dbo",
      "tables": [
        {
          "name": "Customer",
          "columns": [
            {"name": "Id", "data_type": "int"},
            {"name": "Name", "data_type": "nvarchar(100)"}
          ],
          "primary_key": {"name": "PK_Customer", "columns": ["Id"]}
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
          "name": "AuditLog",
          "columns": [{"name": "Id", "data_type": "bigint"}, {"name": "Message", "data_type": "nvarchar(max)"}]
        }
      ]
    }
  ]
}`

// RulesYAML renames Customer to Client and leaves AuditLog to the policies.
const RulesYAML = `name: Shop
schemas:
  - schema_name: dbo
    include_unknown_tables: true
    entities:
      - name: Customer
        new_name: Client
        include_unknown_columns: true
      - name: Order
        include_unknown_columns: true
`

// ConfigYAML points the project at its rules, catalog and history.
const ConfigYAML = `rules_path: rules.yaml
catalog_path: catalog.json
state_path: .ruler/state.db
`

// Project is a temporary ruler project.
type Project struct {
	Dir         string
	ConfigPath  string
	RulesPath   string
	CatalogPath string
	StatePath   string
}

// SetupTestProject creates a temporary project with a config file, a rule
// document and a catalog snapshot.
func SetupTestProject(t testing.TB) Project {
	t.Helper()
	dir := t.TempDir()
	return Project{
		Dir:         dir,
		ConfigPath:  roottestutil.WriteFile(t, dir, "ruler.yaml", ConfigYAML),
		RulesPath:   roottestutil.WriteFile(t, dir, "rules.yaml", RulesYAML),
		CatalogPath: roottestutil.WriteFile(t, dir, "catalog.json", CatalogJSON),
		StatePath:   filepath.Join(dir, ".ruler", "state.db"),
	}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a test renderer with the given mode and terminal state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a text renderer on a simulated terminal.
func NewTestRendererText() *TestRenderer { return NewTestRenderer(output.ModeText, true) }

// NewTestRendererMarkdown creates a markdown renderer.
func NewTestRendererMarkdown() *TestRenderer { return NewTestRenderer(output.ModeMarkdown, false) }

// NewTestRendererJSON creates a JSON renderer.
func NewTestRendererJSON() *TestRenderer { return NewTestRenderer(output.ModeJSON, false) }

// Output returns the captured standard output.
func (tr *TestRenderer) Output() string { return tr.Out.String() }

// ErrorOutput returns the captured error output.
func (tr *TestRenderer) ErrorOutput() string { return tr.ErrOut.String() }

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that s contains no ANSI escape codes.
func AssertNoANSI(t testing.TB, s string) {
	t.Helper()
	assert.False(t, ansiPattern.MatchString(s), "unexpected ANSI escape codes in %q", s)
}

// AssertValidMarkdown checks for balanced code fences and non-empty headers.
func AssertValidMarkdown(t testing.TB, md string) {
	t.Helper()
	assert.Equal(t, 0, strings.Count(md, "```")%2, "unbalanced code fences")
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			assert.NotEmpty(t, strings.TrimLeft(trimmed, "# "), "empty header at line %d", i+1)
		}
	}
}
