// Package registry is the central table of build tasks.
//
// Modules register their leaf steps, the application registers the composite
// pipelines, and the registry is validated once at startup: every reference
// must resolve to a defined task and the composition must be acyclic. After
// validation the registry is read-only and safe for concurrent lookups.
package registry
