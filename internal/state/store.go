package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/tankobon/internal/library"
)

// Feed tracks one polled collection: when it last updated and whether the
// last fetch failed.
type Feed struct {
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
	Loaded              bool
}

// IsOffline returns true when the feed has been unreachable for multiple polls.
func (f Feed) IsOffline() bool {
	return f.ConsecutiveFailures >= 2
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Downloads     []library.Download
	Notifications []library.Notification

	DownloadsFeed     Feed
	NotificationsFeed Feed
}

// ActiveDownloads counts queued or running jobs.
func (s Snapshot) ActiveDownloads() int {
	n := 0
	for _, d := range s.Downloads {
		if d.Status.IsActive() {
			n++
		}
	}
	return n
}

// FailedDownloads counts failed jobs.
func (s Snapshot) FailedDownloads() int {
	n := 0
	for _, d := range s.Downloads {
		if d.Status.IsFailed() {
			n++
		}
	}
	return n
}

// UnreadNotifications counts unread notifications.
func (s Snapshot) UnreadNotifications() int {
	n := 0
	for _, item := range s.Notifications {
		if !item.Read {
			n++
		}
	}
	return n
}

// LastUpdated is the most recent update across both feeds.
func (s Snapshot) LastUpdated() time.Time {
	if s.NotificationsFeed.LastUpdated.After(s.DownloadsFeed.LastUpdated) {
		return s.NotificationsFeed.LastUpdated
	}
	return s.DownloadsFeed.LastUpdated
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// UpdateDownloads replaces the download list. When err is non-nil the
// previous list is kept but the error is recorded for visibility.
func (s *Store) UpdateDownloads(items []library.Download, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if recordFeed(&s.snapshot.DownloadsFeed, s.timestamp(), err) {
		s.snapshot.Downloads = cloneSlice(items)
	}
}

// UpdateNotifications replaces the notification list. When err is non-nil
// the previous list is kept but the error is recorded for visibility.
func (s *Store) UpdateNotifications(items []library.Notification, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if recordFeed(&s.snapshot.NotificationsFeed, s.timestamp(), err) {
		s.snapshot.Notifications = cloneSlice(items)
	}
}

// MarkNotificationsRead flags the given notifications read locally so the
// UI reflects the change before the next poll. No ids marks all.
func (s *Store) MarkNotificationsRead(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range s.snapshot.Notifications {
		if _, ok := want[s.snapshot.Notifications[i].ID]; ok || len(ids) == 0 {
			s.snapshot.Notifications[i].Read = true
		}
	}
}

// HasActiveDownloads reports whether any download is queued or running.
func (s *Store) HasActiveDownloads() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.snapshot.Downloads {
		if d.Status.IsActive() {
			return true
		}
	}
	return false
}

// HasUnreadNotifications reports whether any notification is unread.
func (s *Store) HasUnreadNotifications() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.snapshot.Notifications {
		if !n.Read {
			return true
		}
	}
	return false
}

// HasFreshUnreadNotifications reports whether an unread notification arrived
// within window. Notifications without a parseable timestamp never count.
// A window of zero or less counts every unread notification.
func (s *Store) HasFreshUnreadNotifications(window time.Duration) bool {
	if window <= 0 {
		return s.HasUnreadNotifications()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.timestamp().Add(-window)
	for _, n := range s.snapshot.Notifications {
		if n.Read {
			continue
		}
		if at := n.ParsedCreatedAt(); !at.IsZero() && at.After(cutoff) {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Downloads = cloneSlice(s.snapshot.Downloads)
	snap.Notifications = cloneSlice(s.snapshot.Notifications)
	snap.DownloadsFeed.LastError = cloneErr(s.snapshot.DownloadsFeed.LastError)
	snap.NotificationsFeed.LastError = cloneErr(s.snapshot.NotificationsFeed.LastError)
	return snap
}

func (s *Store) timestamp() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// recordFeed applies a fetch outcome and reports whether the data should be
// replaced.
func recordFeed(f *Feed, now time.Time, err error) bool {
	f.LastUpdated = now
	if err != nil {
		f.LastError = err
		f.ConsecutiveFailures++
		return false
	}
	f.LastError = nil
	f.ConsecutiveFailures = 0
	f.Loaded = true
	return true
}

func cloneErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w", err)
}

func cloneSlice[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	dup := make([]T, len(items))
	copy(dup, items)
	return dup
}
