// Package ingest drives bulk knowledge graph construction: documents are
// chunked, each chunk goes through the extractor, and the candidates are
// persisted through the entity and relationship stores.
package ingest

// IdentityResolver maps extracted entity names to their persisted ids within
// a single ingestion run. It is owned by exactly one run and is never shared
// across concurrent runs, so it needs no synchronization.
//
// Names are bound only as entities are successfully written; resolving a
// relationship endpoint never creates an entity implicitly.
type IdentityResolver struct {
	byName map[string]string
}

// NewIdentityResolver creates an empty run-scoped resolver.
func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{byName: make(map[string]string)}
}

// Bind records the persisted id for an entity name.
func (r *IdentityResolver) Bind(name, id string) {
	r.byName[name] = id
}

// Resolve returns the id previously bound to name, or ok=false if the name
// has not been seen in this run.
func (r *IdentityResolver) Resolve(name string) (string, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Len returns the number of bound names.
func (r *IdentityResolver) Len() int {
	return len(r.byName)
}
