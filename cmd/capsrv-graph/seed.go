package main

// seed populates the in-memory graph with the same three accounts
// capsrv-sales ships, plus contacts and a couple of account-to-account
// referral edges, so query_graph has something to traverse.
func seed() *graph {
	g := newGraph()

	g.addVertex(vertex{id: "acc-001", label: "account", ownerEmail: "alice@example.com",
		properties: map[string]any{"name": "Northwind Traders"}})
	g.addVertex(vertex{id: "acc-002", label: "account", ownerEmail: "bob@example.com",
		properties: map[string]any{"name": "Contoso Logistics"}})
	g.addVertex(vertex{id: "acc-003", label: "account", ownerEmail: "alice@example.com",
		properties: map[string]any{"name": "Fabrikam Robotics"}})

	g.addVertex(vertex{id: "contact-101", label: "contact", accountID: "acc-001",
		properties: map[string]any{"name": "Jordan Reyes", "title": "Procurement Lead"}})
	g.addVertex(vertex{id: "contact-102", label: "contact", accountID: "acc-001",
		properties: map[string]any{"name": "Sam Patel", "title": "VP Operations"}})
	g.addVertex(vertex{id: "contact-201", label: "contact", accountID: "acc-002",
		properties: map[string]any{"name": "Morgan Lee", "title": "Fleet Manager"}})
	g.addVertex(vertex{id: "contact-301", label: "contact", accountID: "acc-003",
		properties: map[string]any{"name": "Riley Chen", "title": "Plant Manager"}})

	g.addEdge("acc-001", "contact-101", "has_contact")
	g.addEdge("acc-001", "contact-102", "has_contact")
	g.addEdge("acc-002", "contact-201", "has_contact")
	g.addEdge("acc-003", "contact-301", "has_contact")

	// Referral relationships between accounts (e.g. Northwind referred
	// Fabrikam in, Contoso is a shared-vendor relationship).
	g.addEdge("acc-001", "acc-003", "referred")
	g.addEdge("acc-001", "acc-002", "shared_vendor")

	return g
}
