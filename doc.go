// Package fanout runs supervised scatter/gather rounds over a pool of workers.
//
// A single coordinator hands one work item to every worker, sums the partial
// results and replies to whoever asked for the round. Workers that fail are
// discarded and replaced so the pool keeps its size; the round still completes
// once every live worker has answered.
//
//	srv, _ := fanout.New(fanout.WithWorkers(100))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	defer rt.Shutdown(ctx)
//	sum, err := rt.RunRound(ctx, 5*time.Second)
//
// The coordinator, workers and mailboxes live in service/ sub-packages; this
// package wires them together and adds the blocking round-trip call.
package fanout
