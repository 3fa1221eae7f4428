package resolver

import "strings"

// stopwords mirrors the common English stopword set every TF-IDF
// preprocessing pipeline strips before vectorization.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "that": {}, "the": {}, "their": {}, "this": {},
	"to": {}, "was": {}, "were": {}, "with": {}, "inc": {}, "llc": {}, "ltd": {},
	"corp": {}, "co": {},
}

// tokenize lowercases, strips non-letters, drops stopwords and single
// characters, and stems what remains (spec.md §4.7 preprocessing).
func tokenize(text string) []string {
	text = strings.ToLower(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, stem(f))
	}
	return tokens
}

// stem applies a small set of common-suffix-stripping rules. It is not
// a full Porter stemmer, just enough normalization (plurals, -ing,
// -ed) to let "companies" and "company" land on the same token.
func stem(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "ing") && len(word) > 5:
		return word[:len(word)-3]
	case strings.HasSuffix(word, "ed") && len(word) > 4:
		return word[:len(word)-2]
	case strings.HasSuffix(word, "es") && len(word) > 4:
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && len(word) > 3:
		return word[:len(word)-1]
	default:
		return word
	}
}

// ngrams builds unigrams through trigrams from a token sequence, the
// feature space spec.md §4.7 calls "unigram through trigram".
func ngrams(tokens []string) []string {
	out := make([]string, 0, len(tokens)*3)
	for n := 1; n <= 3; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// documentText composes one entity's searchable corpus text from its
// name, description, industry, type, and aliases (spec.md §4.7).
func documentText(e Entity) string {
	parts := make([]string, 0, 4+len(e.Aliases))
	if e.Name != "" {
		parts = append(parts, e.Name)
	}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	if e.Industry != "" {
		parts = append(parts, e.Industry)
	}
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	parts = append(parts, e.Aliases...)
	return strings.Join(parts, " ")
}
