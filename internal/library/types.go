package library

import (
	"strings"
	"time"
)

const serverTimestampLayout = "2006-01-02 15:04:05"

// DownloadStatus is the lifecycle state of a chapter download job.
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "queued"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
)

// Normalize lowercases and trims the status.
func (s DownloadStatus) Normalize() DownloadStatus {
	return DownloadStatus(strings.ToLower(strings.TrimSpace(string(s))))
}

// IsActive reports whether the job is waiting or running.
func (s DownloadStatus) IsActive() bool {
	switch s.Normalize() {
	case StatusQueued, StatusDownloading:
		return true
	}
	return false
}

// IsFailed reports whether the job ended in error.
func (s DownloadStatus) IsFailed() bool {
	return s.Normalize() == StatusFailed
}

// Download mirrors an entry of /api/v1/downloads.
type Download struct {
	ID            int64          `json:"id"`
	MangaID       int64          `json:"mangaId"`
	MangaTitle    string         `json:"mangaTitle"`
	ChapterID     int64          `json:"chapterId"`
	ChapterTitle  string         `json:"chapterTitle"`
	ChapterNumber float64        `json:"chapterNumber"`
	Source        string         `json:"source"`
	Status        DownloadStatus `json:"status"`
	Progress      float64        `json:"progress"`
	PagesDone     int            `json:"pagesDone"`
	PagesTotal    int            `json:"pagesTotal"`
	Error         string         `json:"error"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
}

// DownloadListResponse mirrors /api/v1/downloads.
type DownloadListResponse struct {
	Items []Download `json:"items"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (d Download) ParsedCreatedAt() time.Time {
	return parseTime(d.CreatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (d Download) ParsedUpdatedAt() time.Time {
	return parseTime(d.UpdatedAt)
}

// Percent returns progress in [0, 100], deriving it from page counts when
// the server omits it.
func (d Download) Percent() float64 {
	p := d.Progress
	if p == 0 && d.PagesTotal > 0 {
		p = float64(d.PagesDone) / float64(d.PagesTotal) * 100
	}
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// NotificationKind classifies a notification.
type NotificationKind string

const (
	KindNewChapter     NotificationKind = "new_chapter"
	KindDownloadFailed NotificationKind = "download_failed"
	KindLibraryUpdate  NotificationKind = "library_update"
	KindSystem         NotificationKind = "system"
)

// Notification mirrors an entry of /api/v1/notifications.
type Notification struct {
	ID        int64            `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	MangaID   int64            `json:"mangaId"`
	Read      bool             `json:"read"`
	CreatedAt string           `json:"createdAt"`
}

// NotificationListResponse mirrors /api/v1/notifications.
type NotificationListResponse struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (n Notification) ParsedCreatedAt() time.Time {
	return parseTime(n.CreatedAt)
}

// HealthResponse mirrors /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(serverTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
