// Package sqlmapper resolves declarative XML mapping documents into fully
// linked statement, shape, and cache descriptors.
//
// Resolution pipeline:
//  1. Load documents in any order → parse XML, stamp namespace
//  2. Register caches, fragments, result/parameter shapes, statements
//  3. Park forward references (shapes, cache-refs, statements) for retry
//  4. Finish → retry queues to a fixed point, report anything dangling
//
// A Session owns one load: register Go types on its Types registry, Load
// each document, then call Finish. Lookups return immutable descriptors.
package sqlmapper
