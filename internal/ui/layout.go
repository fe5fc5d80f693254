package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutProgressWidth is the minimum width to show progress bars.
	LayoutProgressWidth = 120

	// LayoutSourceWidth is the minimum width to show the download source.
	LayoutSourceWidth = 150
)

// Log display limits.
const (
	// LogBufferLimit is the maximum number of log entries kept in memory.
	LogBufferLimit = 2000
)

// Timing constants.
const (
	// DefaultUIInterval is how often the store snapshot is re-read.
	DefaultUIInterval = time.Second

	// LogRefreshInterval is how often the log file is re-read while the
	// logs view follows it.
	LogRefreshInterval = 2 * time.Second

	// ActionTimeout bounds retry, cancel, and mark-read requests.
	ActionTimeout = 10 * time.Second

	// FlashDuration is how long an action result stays in the header.
	FlashDuration = 5 * time.Second
)
