// Package worker runs stateless tasks in independently scheduled goroutines.
// A worker handles one work item at a time and either replies with a result
// or terminates, in which case its watcher receives a WorkerFailed
// notification instead of a reply.
package worker
