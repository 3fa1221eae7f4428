package main

import "sort"

// vertex is one node in the in-memory relationship graph: an account
// or a contact, grounded on original_source's Account model (owner,
// aliases) and the Gremlin client's vertex/edge shape, reimplemented
// as plain Go maps since no graph server exists in this deployment.
type vertex struct {
	id         string
	label      string // "account" or "contact"
	properties map[string]any
	ownerEmail string
	accountID  string // for contact vertices: the account they belong to
}

type edge struct {
	from, to, label string
}

// graph is a small directed multigraph seeded at startup. Reads are
// lock-free: the graph is immutable after seed() populates it.
type graph struct {
	vertices map[string]vertex
	outEdges map[string][]edge
}

func newGraph() *graph {
	return &graph{vertices: map[string]vertex{}, outEdges: map[string][]edge{}}
}

func (g *graph) addVertex(v vertex) {
	g.vertices[v.id] = v
}

func (g *graph) addEdge(from, to, label string) {
	g.outEdges[from] = append(g.outEdges[from], edge{from: from, to: to, label: label})
}

// relatedVertices walks out-edges from id up to maxDepth hops,
// optionally restricted to one edge label, returning deduplicated
// vertices in a stable order (mirrors find_related_vertices'
// repeat(out()).times(max_depth).dedup() traversal).
func (g *graph) relatedVertices(id string, edgeLabel string, maxDepth int) []vertex {
	seen := map[string]bool{id: true}
	frontier := []string{id}
	var out []vertex

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, v := range frontier {
			for _, e := range g.outEdges[v] {
				if edgeLabel != "" && e.label != edgeLabel {
					continue
				}
				if seen[e.to] {
					continue
				}
				seen[e.to] = true
				next = append(next, e.to)
				if target, ok := g.vertices[e.to]; ok {
					out = append(out, target)
				}
			}
		}
		frontier = next
	}

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// vertexByID returns the vertex, if any, for direct lookups.
func (g *graph) vertexByID(id string) (vertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}
