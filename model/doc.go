// Package model defines the immutable descriptors the resolution engine
// produces: statements, result shapes, parameter shapes, discriminators, and
// key-generation strategies.
package model
