// Package vectorstore persists embedded chunks and answers nearest-neighbour
// queries.
//
// Two backends implement Store:
//
//   - chromem (default): embedded, persisted as gob files under a local
//     directory, no external service.
//   - qdrant: native gRPC client against a Qdrant server.
//
// Both report Distance as squared Euclidean distance between unit vectors,
// 2*(1 - cosine similarity), in the range [0, 4]. Lower is closer.
//
// Each collection belongs to exactly one embedding model. EnsureCollection
// returns ErrEmbeddingMismatch when an existing collection was built with a
// different model or dimension; delete it and re-ingest to switch models.
package vectorstore
