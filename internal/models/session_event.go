package models

type SessionKind int

const (
	SessionBegin SessionKind = iota
	SessionUpdate
	SessionEnd
)

// SessionEvent is one session-lifecycle record. Content holds the full
// request path+query, built at enqueue time, so a record enqueued
// before a device-id change keeps referencing the old identity.
type SessionEvent struct {
	Kind    SessionKind `json:"kind"`
	Content string      `json:"content"`
}
