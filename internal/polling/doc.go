// Package polling provides an adaptive polling controller.
//
// A Controller repeatedly invokes a caller-supplied fetch function and picks
// the delay before the next call from three signals:
//
//   - Active work: while HasActiveWork reports true, the fastest cadence
//     (Strategy.ActiveInterval) is used.
//   - Recent activity: within Strategy.IdleThreshold of the last observed
//     activity, the baseline cadence (Strategy.InitialInterval) is used.
//   - Backoff: otherwise consecutive failures and idle time each push the
//     interval up geometrically; the larger pressure wins and the result is
//     capped at Strategy.MaxInterval.
//
// # Lifecycle
//
//	c, err := polling.New(polling.Options{
//		Name:          "downloads",
//		HasActiveWork: store.HasActiveDownloads,
//		Fetch:         refreshDownloads,
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	c.Start()
//
// Start and Stop are idempotent. PollNow runs an immediate cycle and then
// resumes the cadence. Reset clears the error count and restarts.
//
// # Failure handling
//
// Fetch errors are never returned to callers. They increment
// ConsecutiveErrors and surface through State. Once MaxConsecutiveErrors is
// reached the controller stops arming timers (the circuit opens, IsPaused
// reports true) until Reset or a successful PollNow.
//
// Each cycle gets its own context. Starting a new cycle, Stop, and Close
// cancel the previous context, and the result of a cancelled cycle is
// discarded without touching state. Fetch functions should return an error
// wrapping context.Canceled when interrupted.
//
// # Observing state
//
// Subscribe delivers a State after every transition so renderers can react
// without polling the controller. A minimum gap (DefaultMinPollGap) between
// cycles guards against timer drift and bursts of PollNow calls.
package polling
