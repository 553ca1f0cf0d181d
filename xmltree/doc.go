// Package xmltree parses mapping documents into a mutable element tree with
// typed attribute coercion, placeholder-aware value access, and deterministic
// value-based identifiers for unlabeled elements.
package xmltree
