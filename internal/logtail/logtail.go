package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one structured log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	// Poller is the "poller" attribute, empty when absent.
	Poller string
	// Attrs holds the remaining attributes, rendered as strings.
	Attrs map[string]string
	// Raw is the original line, kept for lines that are not JSON.
	Raw string
}

// Parse decodes a JSON line written by slog.JSONHandler. Lines that are not
// JSON objects come back as an INFO entry carrying only Raw.
func Parse(line string) Entry {
	trimmed := strings.TrimSpace(line)
	entry := Entry{Level: slog.LevelInfo, Raw: line}
	if !strings.HasPrefix(trimmed, "{") {
		entry.Message = trimmed
		return entry
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		entry.Message = trimmed
		return entry
	}

	for key, value := range fields {
		switch key {
		case slog.TimeKey:
			if s, ok := value.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					entry.Time = t
				}
			}
		case slog.LevelKey:
			if s, ok := value.(string); ok {
				var lvl slog.Level
				if err := lvl.UnmarshalText([]byte(s)); err == nil {
					entry.Level = lvl
				}
			}
		case slog.MessageKey:
			entry.Message = fmt.Sprint(value)
		case "poller":
			entry.Poller = fmt.Sprint(value)
		default:
			if entry.Attrs == nil {
				entry.Attrs = make(map[string]string)
			}
			entry.Attrs[key] = fmt.Sprint(value)
		}
	}
	return entry
}

// AttrString renders the attributes as sorted key=value pairs.
func (e Entry) AttrString() string {
	if len(e.Attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Attrs[k])
	}
	return strings.Join(parts, " ")
}

// ReadEntries returns up to maxLines parsed entries from the end of path,
// dropping records below minLevel.
func ReadEntries(path string, maxLines int, minLevel slog.Level) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := Parse(line)
		if entry.Level < minLevel {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
