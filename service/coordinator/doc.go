// Package coordinator runs supervised scatter/gather rounds over a pool of
// workers.
//
// The coordinator owns the pool and the state of the current round, and
// mutates both from a single goroutine draining its inbox, one envelope at a
// time:
//
//   - Start dispatches one work item to every live worker and records the
//     requester. A Start received while a round is active is rejected.
//   - Result from an outstanding worker is added to the round sum; results
//     from anybody else are ignored.
//   - WorkerFailed, the termination notification of a watched worker, removes
//     the worker from the round and the pool and spawns a replacement that
//     joins from the next round on.
//
// A round completes, exactly once, when no worker is outstanding; the sum is
// then sent to the requester. Worker faults are contained until they exceed
// the supervision policy, at which point the coordinator stops and reports
// ErrSupervisionExhausted through Err.
package coordinator
