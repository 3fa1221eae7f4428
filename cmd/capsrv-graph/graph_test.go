package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphRelatedVerticesContacts(t *testing.T) {
	g := seed()
	related := g.relatedVertices("acc-001", "has_contact", 1)

	ids := make([]string, len(related))
	for i, v := range related {
		ids[i] = v.id
	}
	assert.ElementsMatch(t, []string{"contact-101", "contact-102"}, ids)
}

func TestGraphRelatedVerticesNoLabelFilterReturnsEverything(t *testing.T) {
	g := seed()
	related := g.relatedVertices("acc-001", "", 1)

	ids := make([]string, len(related))
	for i, v := range related {
		ids[i] = v.id
	}
	assert.ElementsMatch(t, []string{"contact-101", "contact-102", "acc-003", "acc-002"}, ids)
}

func TestGraphRelatedVerticesDedupesAcrossDepth(t *testing.T) {
	g := seed()
	g.addEdge("acc-003", "acc-002", "shared_vendor")

	related := g.relatedVertices("acc-001", "", 2)
	seen := map[string]int{}
	for _, v := range related {
		seen[v.id]++
	}
	assert.Equal(t, 1, seen["acc-002"])
}

func TestGraphVertexByID(t *testing.T) {
	g := seed()
	v, ok := g.vertexByID("acc-001")
	assert.True(t, ok)
	assert.Equal(t, "account", v.label)

	_, ok = g.vertexByID("acc-999")
	assert.False(t, ok)
}

func TestGraphRelatedVerticesUnknownSource(t *testing.T) {
	g := seed()
	related := g.relatedVertices("acc-999", "has_contact", 2)
	assert.Empty(t, related)
}
