package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/tankobon/internal/library"
)

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	downloads := []library.Download{{ID: 1, Status: library.StatusDownloading}, {ID: 2, Status: library.StatusCompleted}}

	before := time.Now()
	s.UpdateDownloads(downloads, nil)

	snap := s.Snapshot()
	if len(snap.Downloads) != 2 || snap.Downloads[0].ID != 1 {
		t.Fatalf("snapshot downloads = %#v, want 2 items", snap.Downloads)
	}
	if !snap.DownloadsFeed.Loaded {
		t.Fatal("DownloadsFeed.Loaded = false, want true")
	}
	if snap.DownloadsFeed.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.DownloadsFeed.LastUpdated, before)
	}
	if snap.ActiveDownloads() != 1 {
		t.Fatalf("ActiveDownloads = %d, want 1", snap.ActiveDownloads())
	}

	// Returned snapshot should be independent of the stored one.
	snap.Downloads[0].ID = 999
	downloads[1].ID = 500
	snap2 := s.Snapshot()
	if snap2.Downloads[0].ID != 1 || snap2.Downloads[1].ID != 2 {
		t.Fatalf("Snapshot should clone downloads; got %#v", snap2.Downloads)
	}
}

func TestStore_UpdateErrorKeepsPreviousData(t *testing.T) {
	var s Store

	s.UpdateNotifications([]library.Notification{{ID: 1}}, nil)

	origErr := errors.New("boom")
	s.UpdateNotifications(nil, origErr)

	snap := s.Snapshot()
	if len(snap.Notifications) != 1 || snap.Notifications[0].ID != 1 {
		t.Fatalf("notifications changed on error: got %#v", snap.Notifications)
	}
	if snap.NotificationsFeed.LastError == nil || snap.NotificationsFeed.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.NotificationsFeed.LastError)
	}
	if reflect.ValueOf(snap.NotificationsFeed.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
	if snap.DownloadsFeed.LastError != nil {
		t.Fatalf("downloads feed should be untouched, got %v", snap.DownloadsFeed.LastError)
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	if s.Snapshot().DownloadsFeed.IsOffline() {
		t.Fatal("IsOffline() = true, want false with 0 failures")
	}

	s.UpdateDownloads(nil, errors.New("fail 1"))
	if feed := s.Snapshot().DownloadsFeed; feed.ConsecutiveFailures != 1 || feed.IsOffline() {
		t.Fatalf("after 1 failure: %+v", feed)
	}

	s.UpdateDownloads(nil, errors.New("fail 2"))
	if feed := s.Snapshot().DownloadsFeed; feed.ConsecutiveFailures != 2 || !feed.IsOffline() {
		t.Fatalf("after 2 failures: %+v", feed)
	}

	s.UpdateDownloads([]library.Download{}, nil)
	if feed := s.Snapshot().DownloadsFeed; feed.ConsecutiveFailures != 0 || feed.IsOffline() {
		t.Fatalf("after success: %+v", feed)
	}
}

func TestStore_ActiveWorkPredicates(t *testing.T) {
	var s Store

	if s.HasActiveDownloads() || s.HasUnreadNotifications() {
		t.Fatal("empty store should report no active work")
	}

	s.UpdateDownloads([]library.Download{{ID: 1, Status: library.StatusCompleted}, {ID: 2, Status: library.StatusFailed}}, nil)
	if s.HasActiveDownloads() {
		t.Fatal("HasActiveDownloads = true with only finished jobs")
	}
	s.UpdateDownloads([]library.Download{{ID: 3, Status: "Queued"}}, nil)
	if !s.HasActiveDownloads() {
		t.Fatal("HasActiveDownloads = false with a queued job")
	}

	s.UpdateNotifications([]library.Notification{{ID: 1, Read: true}, {ID: 2}}, nil)
	if !s.HasUnreadNotifications() {
		t.Fatal("HasUnreadNotifications = false with an unread item")
	}
	if got := s.Snapshot().UnreadNotifications(); got != 1 {
		t.Fatalf("UnreadNotifications = %d, want 1", got)
	}
}

func TestStore_HasFreshUnreadNotifications(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Store{now: func() time.Time { return now }}

	s.UpdateNotifications([]library.Notification{
		{ID: 1, CreatedAt: now.Add(-2 * time.Hour).Format(time.RFC3339)},
		{ID: 2},
		{ID: 3, Read: true, CreatedAt: now.Add(-time.Minute).Format(time.RFC3339)},
	}, nil)
	if s.HasFreshUnreadNotifications(15 * time.Minute) {
		t.Fatal("stale or undated unread notifications should not count as fresh")
	}
	if !s.HasFreshUnreadNotifications(0) {
		t.Fatal("zero window should count any unread notification")
	}

	s.UpdateNotifications([]library.Notification{
		{ID: 4, CreatedAt: now.Add(-5 * time.Minute).Format(time.RFC3339)},
	}, nil)
	if !s.HasFreshUnreadNotifications(15 * time.Minute) {
		t.Fatal("HasFreshUnreadNotifications = false with a recent unread item")
	}

	s.MarkNotificationsRead(4)
	if s.HasFreshUnreadNotifications(15 * time.Minute) {
		t.Fatal("HasFreshUnreadNotifications = true after marking read")
	}
}

func TestStore_MarkNotificationsRead(t *testing.T) {
	var s Store
	s.UpdateNotifications([]library.Notification{{ID: 1}, {ID: 2}, {ID: 3}}, nil)

	s.MarkNotificationsRead(2)
	if got := s.Snapshot().UnreadNotifications(); got != 2 {
		t.Fatalf("UnreadNotifications = %d, want 2", got)
	}

	s.MarkNotificationsRead()
	if s.HasUnreadNotifications() {
		t.Fatal("HasUnreadNotifications = true after marking all read")
	}
}

func TestSnapshot_LastUpdated(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Store{now: func() time.Time { return base }}
	s.UpdateDownloads(nil, nil)
	base = base.Add(time.Minute)
	s.UpdateNotifications(nil, nil)

	snap := s.Snapshot()
	if !snap.LastUpdated().Equal(base) {
		t.Fatalf("LastUpdated = %v, want %v", snap.LastUpdated(), base)
	}
}
