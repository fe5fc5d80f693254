// Package ui provides the Bubble Tea terminal interface for tankobon.
//
// # Views
//
// Three views share one header and command bar:
//
//   - Downloads: the chapter download queue, running jobs first. Failed jobs
//     show their error under the list and can be retried; running jobs can
//     be cancelled.
//   - Notifications: unread first. Entries can be marked read one at a time
//     or all at once.
//   - Logs: the tail of tankobon's own JSON log file, parsed by logtail and
//     filtered by level.
//
// # Pollers
//
// The UI never fetches on its own schedule. It subscribes to each polling
// controller and renders the latest State as a header indicator coloured by
// mode (live, active, idle, backoff, paused, stopped, off). Keys drive the
// controllers of the current view:
//
//   - Space runs a cycle now
//   - r resets the error count, which is the way out of paused
//   - p flips the master switch and remembers it in prefs
//
// Server actions (retry, cancel, mark read) run as commands and trigger an
// immediate cycle of the affected poller when they succeed.
//
// The store snapshot is re-read once a second, so counts and relative times
// stay current between cycles.
package ui
