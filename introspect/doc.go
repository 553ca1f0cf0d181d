// Package introspect provides the type-introspection collaborator: a registry
// resolving document type names to Go types, and a narrow capability interface
// answering readable/writable slot queries used by result-shape resolution.
package introspect
