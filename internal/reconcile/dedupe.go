package reconcile

import (
	"strings"
	"unicode"

	"github.com/hugh/go-assess/internal/database/models"
)

// DefaultSimilarity is the name-token Jaccard score at or above which two
// risks sharing an affected element are treated as the same risk.
const DefaultSimilarity = 0.5

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "for": {}, "on": {},
	"in": {}, "and": {}, "to": {}, "with": {}, "is": {}, "via": {},
}

// signature is the comparable form of a risk.
type signature struct {
	name     string
	tokens   map[string]struct{}
	elements map[string]struct{}
}

func newSignature(name string, elements []string) signature {
	s := signature{
		name:     normalize(name),
		tokens:   make(map[string]struct{}),
		elements: make(map[string]struct{}, len(elements)),
	}
	for _, tok := range strings.Fields(s.name) {
		if _, skip := stopwords[tok]; !skip {
			s.tokens[tok] = struct{}{}
		}
	}
	for _, e := range elements {
		if n := normalize(e); n != "" {
			s.elements[n] = struct{}{}
		}
	}
	return s
}

func riskSignature(r models.Risk) signature {
	return newSignature(r.Name, r.Elements())
}

func findingSignature(f Finding) signature {
	return newSignature(f.Name, f.AffectedElements)
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func overlaps(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

func (s signature) matches(o signature, threshold float64) bool {
	if s.name != "" && s.name == o.name {
		return true
	}
	return jaccard(s.tokens, o.tokens) >= threshold && overlaps(s.elements, o.elements)
}

// filterKnown drops findings equivalent to an existing risk or to an
// earlier finding in the same batch. Order of survivors is preserved.
func filterKnown(findings []Finding, existing []models.Risk, threshold float64) (kept []Finding, dropped []string) {
	seen := make([]signature, 0, len(existing)+len(findings))
	for _, r := range existing {
		seen = append(seen, riskSignature(r))
	}

	for _, f := range findings {
		sig := findingSignature(f)
		dup := false
		for _, s := range seen {
			if sig.matches(s, threshold) {
				dup = true
				break
			}
		}
		if dup {
			dropped = append(dropped, f.Name)
			continue
		}
		seen = append(seen, sig)
		kept = append(kept, f)
	}
	return kept, dropped
}
