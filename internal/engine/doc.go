// Package engine composes the repository manager, buffer store and commit
// pipeline into the two operations callers use: OpenOrReconcileRepo and
// SyncBuffer.
//
// Each SyncBuffer request walks
//
//	idle -> repo-ready -> buffer-modified -> staged -> committed -> pushed
//
// and stops at the first failure with a *PipelineError naming the stage it
// could not reach. The whole walk runs inside a single-writer gate: a mutex
// for requests in this process and a lock file for other simpletext
// processes using the same mirror.
package engine
