package engine

import (
	"fmt"

	"github.com/leapstack-labs/ruler/internal/loader"
	"github.com/leapstack-labs/ruler/pkg/core"
	"github.com/leapstack-labs/ruler/pkg/ruletree"
)

// ValidateRules loads a rule document and indexes it without a catalog, returning
// the document-level problems: duplicate rules, invalid names, unknown annotations
// and unresolvable base types.
func ValidateRules(path string) (*core.RuleDocument, []core.Message, error) {
	doc, err := loader.LoadRuleDocument(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	_, msgs := ruletree.Build(doc, ruletree.Options{})
	return doc, msgs, nil
}
