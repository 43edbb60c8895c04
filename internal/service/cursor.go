package service

import (
	"fmt"
	"strings"
	"time"

	"shopsync/internal/model"
)

// cursorSentinel is the wire value meaning "from the beginning".
// Clients send it on first sync and on full resync.
const cursorSentinel = "0"

// Cursor is the change-feed watermark: the modified_at of the last
// delivered record plus its id as a tie-breaker. Several records can
// share one modified_at (a push batch is stamped from one clock read,
// and timestamptz truncates to microseconds), so the timestamp alone
// cannot say where inside such a run a page ended.
type Cursor struct {
	At time.Time
	ID string
}

func (c Cursor) IsZero() bool {
	return c.At.IsZero() && c.ID == ""
}

// ParseCursor turns the client's watermark into a resume point. Absent
// or sentinel cursors map to the zero cursor, which every stored
// record is strictly after. A bare timestamp (no id part) is accepted
// for clients resuming from an older watermark; tied rows at that
// exact timestamp are re-delivered rather than lost.
func ParseCursor(raw string) (Cursor, error) {
	if raw == "" || raw == cursorSentinel {
		return Cursor{}, nil
	}

	stamp, id, _ := strings.Cut(raw, ",")

	at, err := parseCursorTime(stamp)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: invalid cursor %q", model.ErrValidation, raw)
	}
	return Cursor{At: at, ID: id}, nil
}

func parseCursorTime(stamp string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
		return value.UTC(), nil
	}
	value, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}

// FormatCursor is the inverse of ParseCursor: the zero cursor renders
// as the sentinel so a client that received nothing resumes from
// scratch.
func FormatCursor(c Cursor) string {
	if c.IsZero() {
		return cursorSentinel
	}

	stamp := c.At.UTC().Format(time.RFC3339Nano)
	if c.ID == "" {
		return stamp
	}
	return stamp + "," + c.ID
}
