package models

import (
	"sync"
	"time"
)

// TimeInstant captures the moment a record was created. It is generated
// once and never recomputed, so that retried uploads carry the original
// timestamps.
type TimeInstant struct {
	Timestamp int64 `json:"timestamp"`
	Hour      int   `json:"hour"`
	Dow       int   `json:"dow"`
	// Timezone is the UTC offset in minutes.
	Timezone int `json:"tz"`
}

// TimeSource hands out unique, monotonically non-decreasing millisecond
// timestamps. Two records created within the same millisecond get
// consecutive values, which keeps insertion order and timestamp order
// aligned inside a queue.
type TimeSource struct {
	mu       sync.Mutex
	lastUnix int64
	now      func() time.Time
}

func NewTimeSource() *TimeSource {
	return &TimeSource{now: time.Now}
}

// NewTimeSourceAt is used by tests to pin the clock.
func NewTimeSourceAt(now func() time.Time) *TimeSource {
	return &TimeSource{now: now}
}

func (t *TimeSource) UniqueUnixMillis() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	millis := t.now().UnixMilli()
	if t.lastUnix >= millis {
		t.lastUnix++
	} else {
		t.lastUnix = millis
	}
	return t.lastUnix
}

func (t *TimeSource) Instant() TimeInstant {
	now := t.now()
	_, offset := now.Zone()

	return TimeInstant{
		Timestamp: t.UniqueUnixMillis(),
		Hour:      now.Hour(),
		Dow:       int(now.Weekday()),
		Timezone:  offset / 60,
	}
}
