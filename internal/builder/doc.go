// Package builder resolves parsed mapping documents into registered
// descriptors: it stamps namespaces, expands included fragments, lifts
// selectKey declarations into synthesized statements, links result and
// parameter shapes, and parks work that references entities not yet
// registered.
package builder
