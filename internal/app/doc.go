// Package app wires the build together. NewApp loads the configuration,
// constructs the transformation collaborators, registers every module and the
// composite pipelines, and validates the task graph. Run executes one task by
// name; the serve task hands control to the watch/serve loop in serve.go.
package app
