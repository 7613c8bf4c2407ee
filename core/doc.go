// Package core implements the actor runtime for Jina programs.
//
// Actors own a private heap of reference-counted cells and communicate only
// through messages. A fixed pool of workers runs ready actors, while actors
// spawned with SpawnOptions.UI are served exclusively by a dedicated UI loop
// so compute-heavy actors can never delay them.
//
// Generated code talks to the runtime through System (from outside any
// actor) and Context (from inside a behavior while it processes a batch).
package core
