//go:build governance

package core_test

import (
	"go/types"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/leapstack-labs/ruler"

// =============================================================================
// COHESION - report core types nothing outside pkg/core uses
// =============================================================================

// TestGovernance_CoreUsage lists exported core types and the packages using
// them. Types used by no other package are reported as candidates for removal.
func TestGovernance_CoreUsage(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	coreDefs := make(map[types.Object]string)
	for _, p := range pkgs {
		if p.PkgPath != modulePath+"/pkg/core" {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			if obj := scope.Lookup(name); obj.Exported() {
				if _, ok := obj.(*types.TypeName); ok {
					coreDefs[obj] = name
				}
			}
		}
	}
	if len(coreDefs) == 0 {
		t.Fatal("Could not find pkg/core")
	}

	usage := make(map[string]map[string]bool)
	for _, p := range pkgs {
		if p.PkgPath == modulePath+"/pkg/core" || p.TypesInfo == nil {
			continue
		}
		for _, obj := range p.TypesInfo.Uses {
			if name, ok := coreDefs[obj]; ok {
				if usage[name] == nil {
					usage[name] = make(map[string]bool)
				}
				usage[name][strings.TrimPrefix(p.PkgPath, modulePath+"/")] = true
			}
		}
	}

	var unused []string
	for _, name := range coreDefs {
		if len(usage[name]) == 0 {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	for _, name := range unused {
		t.Logf("WARNING: Unused core type: %s (consider deleting)", name)
	}
}

// =============================================================================
// PURITY - no type alias re-exports of core types
// =============================================================================

// TestGovernance_NoCoreAliases ensures no package re-exports a core type under
// its own name. Hosts must see one spelling of RuleDocument, Catalog and Decision.
func TestGovernance_NoCoreAliases(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 || pkg.PkgPath == modulePath+"/pkg/core" {
			continue
		}
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			typeName, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !typeName.IsAlias() {
				continue
			}
			named, ok := types.Unalias(typeName.Type()).(*types.Named)
			if !ok || named.Obj().Pkg() == nil {
				continue
			}
			if named.Obj().Pkg().Path() == modulePath+"/pkg/core" {
				t.Errorf("PURITY VIOLATION: Package '%s' re-exports core.%s as '%s'.\n"+
					"   Fix: Remove the alias. Consumers should use core.%s directly.",
					strings.TrimPrefix(pkg.PkgPath, modulePath+"/"), named.Obj().Name(), name, named.Obj().Name())
			}
		}
	}
}
