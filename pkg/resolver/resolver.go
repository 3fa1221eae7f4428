// Package resolver implements C7, the Account Resolver: mapping
// free-text entity mentions into canonical IDs via TF-IDF similarity,
// filtered through the caller's Access Scope.
package resolver

import (
	"sort"
	"sync/atomic"

	"github.com/corebridge/agentcore/pkg/rbac"
)

// Entity is one row of the resolvable corpus (spec.md §4.7: "a corpus
// composed of {name, description, industry, type, aliases...}").
type Entity struct {
	ID          string
	Name        string
	Description string
	Industry    string
	Type        string
	Aliases     []string
}

// Match is one candidate returned from Resolve, carrying the
// similarity score that produced it.
type Match struct {
	EntityID   string
	Name       string
	Similarity float64
}

// Result is the outcome of one Resolve call. When Confident is true,
// Match names the single accepted entity; otherwise Candidates holds
// the disambiguation list (possibly empty, if nothing cleared the
// floor or nothing survived the Access Scope filter).
type Result struct {
	Confident  bool
	Match      *Match
	Candidates []Match
}

// Config tunes one Resolver.
type Config struct {
	// MinSimilarity is the floor below which a match is not returned
	// at all, confident or otherwise.
	MinSimilarity float64
	// MaxCandidates bounds the disambiguation list size.
	MaxCandidates int
	// ConfidentThreshold is the similarity above which a single,
	// unambiguous top match is returned directly (spec.md §4.7
	// default 0.7).
	ConfidentThreshold float64
}

func (c Config) withDefaults() Config {
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = 0.3
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 10
	}
	if c.ConfidentThreshold <= 0 {
		c.ConfidentThreshold = 0.7
	}
	return c
}

// Resolver holds one fitted TF-IDF model behind an atomic pointer, so
// Resolve never blocks on Refit and never observes a half-built model
// (spec.md §4.7 "swap pointer on refit").
type Resolver struct {
	cfg   Config
	model atomic.Pointer[tfidfModel]
}

// New builds an unfitted Resolver; call Refit before the first
// Resolve, or Resolve will simply find nothing.
func New(cfg Config) *Resolver {
	return &Resolver{cfg: cfg.withDefaults()}
}

// Refit rebuilds the corpus vectorization from scratch and swaps it in
// atomically. The previous model continues serving any Resolve call
// already in flight.
func (r *Resolver) Refit(entities []Entity) {
	r.model.Store(fit(entities))
}

// Resolve maps a free-text query to the entities it best matches,
// filtered through rbacCtx's Access Scope (spec.md §4.7).
func (r *Resolver) Resolve(query string, rbacCtx rbac.Context) Result {
	model := r.model.Load()
	if model == nil || len(model.entities) == 0 {
		return Result{}
	}

	queryVec := model.vectorize(ngrams(tokenize(query)))
	if len(queryVec) == 0 {
		return Result{}
	}

	type scored struct {
		idx int
		sim float64
	}
	scoredAll := make([]scored, 0, len(model.entities))
	for i := range model.entities {
		sim := cosine(queryVec, model.docs[i])
		// A query naming the entity verbatim matches its name-only
		// vector exactly, however much else its document carries.
		if nameSim := cosine(queryVec, model.vectorize(ngrams(tokenize(model.entities[i].Name)))); nameSim > sim {
			sim = nameSim
		}
		if sim >= r.cfg.MinSimilarity {
			scoredAll = append(scoredAll, scored{idx: i, sim: sim})
		}
	}

	sort.Slice(scoredAll, func(i, j int) bool {
		if scoredAll[i].sim != scoredAll[j].sim {
			return scoredAll[i].sim > scoredAll[j].sim
		}
		return model.entities[scoredAll[i].idx].Name < model.entities[scoredAll[j].idx].Name
	})

	accessible := make([]Match, 0, len(scoredAll))
	for _, s := range scoredAll {
		e := model.entities[s.idx]
		if !rbacCtx.CanAccessEntity(e.ID) {
			continue
		}
		accessible = append(accessible, Match{EntityID: e.ID, Name: e.Name, Similarity: s.sim})
		if len(accessible) >= r.cfg.MaxCandidates {
			break
		}
	}

	if len(accessible) == 0 {
		return Result{}
	}

	top := accessible[0]
	uniqueTop := len(accessible) == 1 || accessible[1].Similarity < top.Similarity
	if top.Similarity >= r.cfg.ConfidentThreshold && uniqueTop {
		m := top
		return Result{Confident: true, Match: &m}
	}

	return Result{Candidates: accessible}
}
