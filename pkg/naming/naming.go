// Package naming predicts the identifiers a reverse-engineering translator generates
// for database names.
//
// Rule documents are written against these predictions: an entity rule without an
// explicit entity name, a property rule, and the default navigation names all match
// by the candidate produced here.
package naming

import (
	"strings"
	"sync"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCacheSize is the number of predictions memoised per Predictor.
const DefaultCacheSize = 4096

// Predictor generates candidate identifiers for database names.
type Predictor struct {
	preserveCasing bool

	mu    sync.Mutex
	title cases.Caser

	cache *lru.Cache[string, string]
}

// NewPredictor creates a predictor. When preserveCasing is set, the database casing of
// each word is kept and only its first letter is raised.
func NewPredictor(preserveCasing bool) *Predictor {
	cache, _ := lru.New[string, string](DefaultCacheSize)
	return &Predictor{
		preserveCasing: preserveCasing,
		title:          cases.Title(language.Und),
		cache:          cache,
	}
}

// PreserveCasing reports the casing mode.
func (p *Predictor) PreserveCasing() bool { return p.preserveCasing }

// Entity predicts the entity name for a table or view.
func (p *Predictor) Entity(table string) string { return p.Candidate(table) }

// Property predicts the property name for a column.
func (p *Predictor) Property(column string) string { return p.Candidate(column) }

// Candidate converts a database name into an identifier: words are split at
// non-alphanumeric characters and at lower-to-upper transitions, then each word is
// title-cased. A leading digit gets an underscore prefix.
func (p *Predictor) Candidate(name string) string {
	if v, ok := p.cache.Get(name); ok {
		return v
	}

	words := splitWords(name)
	var b strings.Builder
	p.mu.Lock()
	for _, w := range words {
		if p.preserveCasing {
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			b.WriteString(string(r))
			continue
		}
		b.WriteString(p.title.String(w))
	}
	p.mu.Unlock()

	out := b.String()
	if out != "" && unicode.IsDigit([]rune(out)[0]) {
		out = "_" + out
	}
	p.cache.Add(name, out)
	return out
}

// splitWords splits a database name into words.
func splitWords(name string) []string {
	var words []string
	var cur []rune
	prevLower := false
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			prevLower = false
			continue
		}
		if prevLower && unicode.IsUpper(r) {
			flush()
		}
		cur = append(cur, r)
		prevLower = unicode.IsLower(r)
	}
	flush()
	return words
}

// IsValidSymbol reports whether name is a usable identifier: a letter or underscore
// followed by letters, digits or underscores.
func IsValidSymbol(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// Cleanse turns name into a valid identifier by replacing invalid characters with
// underscores.
func Cleanse(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			if i == 0 && unicode.IsDigit(r) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
