// Package progress keeps aggregated counters of a coordinator's lifetime:
// rounds completed, work items dispatched, results received, worker faults
// and replacements. Counters are updated by the coordinator loop and read by
// any goroutine.
package progress
