// Package registry implements the symbol table of one load session:
// namespace-scoped stores for statements, result shapes, parameter shapes,
// caches, key generators, and reusable fragments, plus the three deferred
// work queues retried by the fixpoint loop.
package registry
