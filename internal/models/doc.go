// Package models defines the transient domain types passed between resolvers, the orchestration engine,
// and the HTTP layer.
//
// Nothing here is persisted:
//   - [MediaRecord] : Resolver output for one source, carrying the time-limited direct URL
//   - [StreamResponse] : The envelope returned to clients after a successful resolution
//   - [SearchResult] : A single YouTube search hit
//   - [ResolveAttempt] : One entry in the in-memory resolution log
//
// [SourceRef] is a normalised source reference produced from a raw id or platform URL.
package models
