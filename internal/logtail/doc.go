// Package logtail reads the tail of tankobon's own log file for the Logs view.
//
// # Reading
//
// Read uses a ring buffer of maxLines entries, so it makes a single pass over
// the file and holds O(maxLines) memory regardless of file size. Lines come
// back in chronological order. A missing file yields no lines and no error,
// since the file only appears after the first record is written.
//
// # Parsing
//
// In TUI mode the application logs through slog.JSONHandler, one object per
// line. Parse lifts the standard time, level and msg keys plus the "poller"
// attribute into an Entry and keeps everything else in Attrs. Lines that are
// not JSON (for example a log file written by an older build) are returned
// as INFO entries carrying the raw text.
//
//	entries, err := logtail.ReadEntries(cfg.LogPath(), 400, slog.LevelInfo)
package logtail
