package resolver

import "math"

// tfidfModel is the immutable, fitted state one Resolver swaps
// wholesale on refit (spec.md §4.7 "the fitted model is immutable;
// swap pointer on refit").
type tfidfModel struct {
	entities []Entity
	docs     []map[string]float64
	df       map[string]int
	total    int
}

func fit(entities []Entity) *tfidfModel {
	docsTokens := make([][]string, len(entities))
	df := map[string]int{}

	for i, e := range entities {
		terms := ngrams(tokenize(documentText(e)))
		docsTokens[i] = terms

		seen := map[string]struct{}{}
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	m := &tfidfModel{entities: entities, df: df, total: len(entities)}
	m.docs = make([]map[string]float64, len(entities))
	for i, terms := range docsTokens {
		m.docs[i] = m.vectorize(terms)
	}
	return m
}

// vectorize computes an L2-normalized TF-IDF vector over arbitrary
// terms (unigram through trigram strings) against this model's
// document-frequency table.
func (m *tfidfModel) vectorize(terms []string) map[string]float64 {
	tf := map[string]int{}
	for _, t := range terms {
		tf[t]++
	}

	vec := make(map[string]float64, len(tf))
	var normSq float64
	for term, count := range tf {
		docFreq := m.df[term]
		if docFreq == 0 || m.total == 0 {
			continue
		}
		idf := 1.0 + math.Log(float64(m.total)/float64(docFreq))
		w := float64(count) * idf
		vec[term] = w
		normSq += w * w
	}
	if normSq == 0 {
		return vec
	}
	norm := math.Sqrt(normSq)
	for term, w := range vec {
		vec[term] = w / norm
	}
	return vec
}

// cosine computes cosine similarity between two sparse vectors
// already L2-normalized, so this reduces to a dot product over the
// sparser vector's keys.
func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for k, v := range a {
		if bv, ok := b[k]; ok {
			dot += v * bv
		}
	}
	return dot
}
