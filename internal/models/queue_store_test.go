package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueStore_AppendEvent_PreservesOrder(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "a"})
	s.AppendEvent(Event{Key: "b"})
	s.AppendEvent(Event{Key: "c"})

	snapshot := s.SnapshotEvents()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "a", snapshot[0].Key)
	assert.Equal(t, "b", snapshot[1].Key)
	assert.Equal(t, "c", snapshot[2].Key)
}

func TestQueueStore_Snapshot_IsDetached(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "a"})

	snapshot := s.SnapshotEvents()
	snapshot[0].Key = "mutated"

	assert.Equal(t, "a", s.SnapshotEvents()[0].Key)
}

func TestQueueStore_RemoveEvents_RemovesFromFront(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "a"})
	s.AppendEvent(Event{Key: "b"})
	s.AppendEvent(Event{Key: "c"})

	s.RemoveEvents(2)

	snapshot := s.SnapshotEvents()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "c", snapshot[0].Key)
}

func TestQueueStore_RemoveEvents_SurvivesConcurrentAppend(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "uploaded"})

	// simulates an append landing between snapshot and removal
	s.AppendEvent(Event{Key: "late"})
	s.RemoveEvents(1)

	snapshot := s.SnapshotEvents()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "late", snapshot[0].Key)
}

func TestQueueStore_RemoveEvents_PastLengthIsNoop(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "a"})

	s.RemoveEvents(10)
	assert.Equal(t, 0, s.EventCount())

	s.RemoveEvents(1)
	assert.Equal(t, 0, s.EventCount())
}

func TestQueueStore_AppendSession_KeepsKindAndContent(t *testing.T) {
	s := NewQueueStore()
	s.AppendSession(SessionEvent{Kind: SessionBegin, Content: "/i?begin"})
	s.AppendSession(SessionEvent{Kind: SessionEnd, Content: "/i?end"})

	snapshot := s.SnapshotSessions()
	require.Len(t, snapshot, 2)
	assert.Equal(t, SessionBegin, snapshot[0].Kind)
	assert.Equal(t, "/i?end", snapshot[1].Content)
}

func TestQueueStore_Notify_FiresPerAppend(t *testing.T) {
	s := NewQueueStore()
	var touched []string
	s.SetOnChange(func(collection string) {
		touched = append(touched, collection)
	})

	s.AppendEvent(Event{Key: "a"})
	s.AppendSession(SessionEvent{})
	s.AppendException(ExceptionRecord{Name: "x"})
	s.AppendRequest(StoredRequest{Request: "/i?x"})

	assert.Equal(t, []string{
		CollectionEvents, CollectionSessions, CollectionExceptions, CollectionRequests,
	}, touched)
}

func TestQueueStore_Profile_DirtyLifecycle(t *testing.T) {
	s := NewQueueStore()

	_, dirty := s.Profile()
	assert.False(t, dirty)

	s.UpdateProfile(func(p *UserProfile) {
		p.Name = "Jo"
	})
	profile, dirty := s.Profile()
	assert.True(t, dirty)
	assert.Equal(t, "Jo", profile.Name)

	s.MarkProfileClean()
	_, dirty = s.Profile()
	assert.False(t, dirty)
}

func TestQueueStore_RestoreProfile_DoesNotMarkDirty(t *testing.T) {
	s := NewQueueStore()
	s.RestoreProfile(UserProfile{Name: "restored"}, false)

	profile, dirty := s.Profile()
	assert.False(t, dirty)
	assert.Equal(t, "restored", profile.Name)
}

func TestQueueStore_Restore_ReplacesQueues(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "stale"})

	s.Restore(
		[]Event{{Key: "a"}, {Key: "b"}},
		[]SessionEvent{{Kind: SessionBegin}},
		nil,
		[]StoredRequest{{Request: "/i?loc"}},
	)

	assert.Equal(t, 2, s.EventCount())
	assert.Equal(t, 1, s.SessionCount())
	assert.Equal(t, 0, s.ExceptionCount())
	assert.Equal(t, 1, s.RequestCount())
}

func TestQueueStore_ClearAll_EmptiesEverything(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "a"})
	s.AppendSession(SessionEvent{})
	s.AppendException(ExceptionRecord{Name: "x"})
	s.AppendRequest(StoredRequest{Request: "/i?x"})
	s.UpdateProfile(func(p *UserProfile) { p.Name = "Jo" })

	s.ClearAll()

	assert.Equal(t, 0, s.EventCount())
	assert.Equal(t, 0, s.SessionCount())
	assert.Equal(t, 0, s.ExceptionCount())
	assert.Equal(t, 0, s.RequestCount())
	profile, dirty := s.Profile()
	assert.False(t, dirty)
	assert.True(t, profile.IsEmpty())
}

func TestQueueStore_Payload_KnownCollections(t *testing.T) {
	s := NewQueueStore()
	s.AppendEvent(Event{Key: "a"})

	payload, ok := s.Payload(CollectionEvents)
	require.True(t, ok)
	assert.Len(t, payload.([]Event), 1)

	_, ok = s.Payload("nonsense")
	assert.False(t, ok)
}

func TestQueueStore_ConcurrentAppendAndRemove(t *testing.T) {
	s := NewQueueStore()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.AppendEvent(Event{Key: "k"})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			if n := len(s.SnapshotEvents()); n > 0 {
				s.RemoveEvents(1)
			}
		}
	}()
	wg.Wait()

	// every removal matched an observed element, so the count adds up
	assert.GreaterOrEqual(t, s.EventCount(), 8*200-200)
}
