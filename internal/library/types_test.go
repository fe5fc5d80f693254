package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDownloadStatus(t *testing.T) {
	assert.True(t, DownloadStatus(" Downloading ").IsActive())
	assert.True(t, StatusQueued.IsActive())
	assert.False(t, StatusCompleted.IsActive())
	assert.True(t, DownloadStatus("FAILED").IsFailed())
	assert.False(t, StatusCancelled.IsFailed())
}

func TestDownloadPercent(t *testing.T) {
	assert.Equal(t, 40.0, Download{Progress: 40}.Percent())
	assert.Equal(t, 25.0, Download{PagesDone: 5, PagesTotal: 20}.Percent())
	assert.Equal(t, 100.0, Download{Progress: 140}.Percent())
	assert.Equal(t, 0.0, Download{Progress: -3}.Percent())
	assert.Equal(t, 0.0, Download{}.Percent())
}

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2025, 12, 13, 10, 11, 12, 0, time.UTC)
	assert.True(t, parseTime("2025-12-13T10:11:12Z").Equal(want))
	assert.True(t, parseTime("2025-12-13T10:11:12.000Z").Equal(want))

	local := parseTime("2025-12-13 10:11:12")
	assert.Equal(t, time.Local, local.Location())
	assert.Equal(t, 10, local.Hour())

	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
}
