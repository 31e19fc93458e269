// Package dag holds the dependency graph used to validate task composition.
// Composite tasks become edges from each sub-task to the composite that
// references it; the registry asks the graph for cycles and for a
// dependency-first ordering before any task runs.
package dag
