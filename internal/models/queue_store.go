package models

import "sync"

// Collection names double as durable storage keys.
const (
	CollectionEvents     = "events"
	CollectionSessions   = "sessions"
	CollectionExceptions = "exceptions"
	CollectionRequests   = "requests"
	CollectionProfile    = "userdetails"
	CollectionDevice     = "device"
	CollectionUnhandled  = "unhandled"
)

// QueueStore owns the four ordered record queues and the single user
// profile slot. All mutations happen under one lock; the lock covers
// only the in-memory change, never I/O. After each mutation the store
// notifies an external persister with the name of the touched
// collection; the persister reads a fresh snapshot when it gets
// around to saving, so dropped notifications coalesce instead of
// losing data.
type QueueStore struct {
	mu           sync.Mutex
	events       []Event
	sessions     []SessionEvent
	exceptions   []ExceptionRecord
	requests     []StoredRequest
	profile      UserProfile
	profileDirty bool
	onChange     func(collection string)
}

func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

// SetOnChange installs the persister notification hook. Must be called
// before the store is shared between goroutines.
func (s *QueueStore) SetOnChange(fn func(collection string)) {
	s.onChange = fn
}

func (s *QueueStore) notify(collection string) {
	if s.onChange != nil {
		s.onChange(collection)
	}
}

func (s *QueueStore) AppendEvent(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	s.notify(CollectionEvents)
}

func (s *QueueStore) AppendSession(e SessionEvent) {
	s.mu.Lock()
	s.sessions = append(s.sessions, e)
	s.mu.Unlock()
	s.notify(CollectionSessions)
}

func (s *QueueStore) AppendException(e ExceptionRecord) {
	s.mu.Lock()
	s.exceptions = append(s.exceptions, e)
	s.mu.Unlock()
	s.notify(CollectionExceptions)
}

func (s *QueueStore) AppendRequest(r StoredRequest) {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()
	s.notify(CollectionRequests)
}

// SnapshotEvents returns a point-in-time copy; appends racing with the
// caller do not show up in it.
func (s *QueueStore) SnapshotEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *QueueStore) SnapshotSessions() []SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionEvent, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *QueueStore) SnapshotExceptions() []ExceptionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExceptionRecord, len(s.exceptions))
	copy(out, s.exceptions)
	return out
}

func (s *QueueStore) SnapshotRequests() []StoredRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RemoveEvents drops the first n events, the prefix just confirmed
// uploaded. Records appended after the upload snapshot are preserved.
// Removing from an empty or shorter queue is a safe no-op for the
// excess, which covers the Halt/in-flight-upload race.
func (s *QueueStore) RemoveEvents(n int) {
	s.mu.Lock()
	s.events = removePrefix(s.events, n)
	s.mu.Unlock()
	s.notify(CollectionEvents)
}

func (s *QueueStore) RemoveSessions(n int) {
	s.mu.Lock()
	s.sessions = removePrefix(s.sessions, n)
	s.mu.Unlock()
	s.notify(CollectionSessions)
}

func (s *QueueStore) RemoveExceptions(n int) {
	s.mu.Lock()
	s.exceptions = removePrefix(s.exceptions, n)
	s.mu.Unlock()
	s.notify(CollectionExceptions)
}

func (s *QueueStore) RemoveRequests(n int) {
	s.mu.Lock()
	s.requests = removePrefix(s.requests, n)
	s.mu.Unlock()
	s.notify(CollectionRequests)
}

func removePrefix[T any](q []T, n int) []T {
	if n <= 0 || len(q) == 0 {
		return q
	}
	if n >= len(q) {
		return q[:0]
	}
	// Shift instead of reslicing so the removed prefix does not pin
	// the backing array.
	remaining := copy(q, q[n:])
	return q[:remaining]
}

func (s *QueueStore) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *QueueStore) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *QueueStore) ExceptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exceptions)
}

func (s *QueueStore) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Profile returns a copy of the user profile slot and its dirty flag.
func (s *QueueStore) Profile() (UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile
	p.Custom = copyMap(s.profile.Custom)
	return p, s.profileDirty
}

// UpdateProfile applies fn to the profile slot under the lock and
// raises the dirty flag.
func (s *QueueStore) UpdateProfile(fn func(*UserProfile)) {
	s.mu.Lock()
	fn(&s.profile)
	s.profileDirty = true
	s.mu.Unlock()
	s.notify(CollectionProfile)
}

// RestoreProfile loads a previously persisted profile without marking
// it dirty.
func (s *QueueStore) RestoreProfile(p UserProfile, dirty bool) {
	s.mu.Lock()
	s.profile = p
	s.profileDirty = dirty
	s.mu.Unlock()
}

// MarkProfileClean clears the dirty flag after a confirmed upload.
func (s *QueueStore) MarkProfileClean() {
	s.mu.Lock()
	s.profileDirty = false
	s.mu.Unlock()
	s.notify(CollectionProfile)
}

// Restore installs queues loaded from durable storage on start.
func (s *QueueStore) Restore(events []Event, sessions []SessionEvent, exceptions []ExceptionRecord, requests []StoredRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
	s.sessions = sessions
	s.exceptions = exceptions
	s.requests = requests
}

// ClearAll empties every queue and the profile slot in one critical
// section. Durable deletion is the caller's concern (best effort).
func (s *QueueStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.sessions = nil
	s.exceptions = nil
	s.requests = nil
	s.profile = UserProfile{}
	s.profileDirty = false
}

// Payload returns a copy of the named collection for persistence. The
// bool is false for unknown collections.
func (s *QueueStore) Payload(collection string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch collection {
	case CollectionEvents:
		out := make([]Event, len(s.events))
		copy(out, s.events)
		return out, true
	case CollectionSessions:
		out := make([]SessionEvent, len(s.sessions))
		copy(out, s.sessions)
		return out, true
	case CollectionExceptions:
		out := make([]ExceptionRecord, len(s.exceptions))
		copy(out, s.exceptions)
		return out, true
	case CollectionRequests:
		out := make([]StoredRequest, len(s.requests))
		copy(out, s.requests)
		return out, true
	case CollectionProfile:
		p := s.profile
		p.Custom = copyMap(s.profile.Custom)
		return p, true
	}
	return nil, false
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
