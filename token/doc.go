// Package token provides the placeholder expander: a single-pass, escape-aware
// scanner that substitutes ${name} and ${name:default} tokens against a
// variable table.
package token
