package ruletree

import (
	"strings"

	"golang.org/x/text/cases"
)

// Lookup is a case-insensitive map from database name to node. Keys are compared
// with Unicode case folding. The first node added under a key wins.
type Lookup[N any] struct {
	fold cases.Caser
	m    map[string]N
}

func newLookup[N any]() *Lookup[N] {
	return &Lookup[N]{fold: cases.Fold(), m: make(map[string]N)}
}

func (l *Lookup[N]) key(name string) string {
	return l.fold.String(strings.TrimSpace(name))
}

// Add indexes n under name. It returns false, leaving the existing entry in place,
// when the name is blank or already present.
func (l *Lookup[N]) Add(name string, n N) bool {
	k := l.key(name)
	if k == "" {
		return false
	}
	if _, exists := l.m[k]; exists {
		return false
	}
	l.m[k] = n
	return true
}

// Has reports whether name is indexed.
func (l *Lookup[N]) Has(name string) bool {
	_, ok := l.m[l.key(name)]
	return ok
}

// Get returns the node indexed under name.
func (l *Lookup[N]) Get(name string) (N, bool) {
	n, ok := l.m[l.key(name)]
	return n, ok
}

// Match tries each candidate in order and returns the first hit. Blank candidates
// are skipped. Callers pass candidates in priority order.
func (l *Lookup[N]) Match(candidates ...string) (N, bool) {
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if n, ok := l.Get(c); ok {
			return n, true
		}
	}
	var zero N
	return zero, false
}

// Len returns the number of indexed names.
func (l *Lookup[N]) Len() int { return len(l.m) }
