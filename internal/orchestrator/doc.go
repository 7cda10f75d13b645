// Package orchestrator turns one brief into one stored report.
//
// For each request it:
//   - Creates one queued job per specialist role plus a queued integration job
//   - Runs the specialist jobs on a bounded worker pool, independently of each other
//   - Waits for every specialist job to finish, then runs the integration job
//     over the successful outputs in role declaration order
//   - Saves the assembled body as the next report version for the brief
//
// All job state lives in a tracker.Tracker; callers poll it through a Handle
// or subscribe to its events. A Manager keeps the handles of in-flight and
// recently finished requests so they can be looked up by ID.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.RequiredConfig{Client: client, Store: reports},
//		orchestrator.WithWorkers(3))
//	h, err := orch.Generate(ctx, "Solar powered irrigation drones", orchestrator.GenerateOptions{})
//	req, err := h.Wait(ctx)
package orchestrator
