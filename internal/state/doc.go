// Package state provides thread-safe state management for the tankobon client.
//
// # Overview
//
// The Store holds the latest download queue and notification list fetched
// from the manga server. Two polling controllers write to it and the UI reads
// snapshots from it:
//
//	downloads poller ─┐
//	                  ├─→ store.Update*() ──(mutex)──→ store.Snapshot() → render
//	notifications ────┘
//
// # Feeds
//
// Each collection carries a Feed with its own timestamp, last error and
// consecutive failure count. A failed update keeps the previous items and
// records the error:
//
//	store.UpdateDownloads(items, nil)  // replace items, clear error
//	store.UpdateDownloads(nil, err)    // keep items, record err
//
// # Active Work
//
// HasActiveDownloads and HasUnreadNotifications read the stored data and
// are handed to the polling controllers as their active-work predicates.
// They take the read lock only, so a controller may call them while a UI
// render holds a snapshot.
//
// # Copies
//
// Snapshot clones both slices and wraps stored errors, so callers can keep
// or mutate a snapshot without racing the pollers.
//
// The zero Store is ready to use.
package state
