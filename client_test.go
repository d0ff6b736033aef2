package countly

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countly/internal/api"
	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/structures"
	"countly/internal/testutil"
)

func testInternalConfig() *structures.Config {
	conf := &structures.Config{
		Connection: structures.Connection{
			ServerURL: "https://collector.example.com",
			AppKey:    "test-key",
		},
		Logger: structures.LoggerConfig{Level: "error"},
		Cache:  structures.CacheConfig{Enabled: true},
	}
	conf.ApplyDefaults()
	return conf
}

func newTestClient(t *testing.T, mutate func(*structures.Config)) (*Client, *testutil.MockTransport, *testutil.MockStorage) {
	t.Helper()
	conf := testInternalConfig()
	if mutate != nil {
		mutate(conf)
	}
	require.NoError(t, providers.ValidateConfig(conf))

	transport := &testutil.MockTransport{}
	storage := testutil.NewMockStorage()
	client, err := newClient(conf, transport, storage)
	require.NoError(t, err)
	client.deviceMetrics = models.Metrics{OS: "linux", OSVersion: "6.1", AppVersion: "1.0.0"}
	t.Cleanup(func() { client.Close() })
	return client, transport, storage
}

func failingResponse() api.Response {
	return api.Response{Code: 500, Body: "busy"}
}

func TestClient_RecordEvent_QueuesWithoutUploading(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	require.NoError(t, c.RecordEvent("click"))
	require.NoError(t, c.RecordEvent("scroll"))
	require.NoError(t, c.RecordEvent("click"))

	assert.Equal(t, 0, transport.CallCount())
	assert.Equal(t, 3, c.store.EventCount())
}

func TestClient_Flush_BatchesQueuedEventsIntoOneRequest(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, c.RecordEvent(key))
	}

	assert.True(t, c.Flush())

	require.Equal(t, 1, transport.CallCount())
	assert.Contains(t, transport.URLs()[0], "events=")
	assert.Equal(t, 0, c.store.EventCount())
}

func TestClient_Flush_FailureRetainsQueueUntilSuccess(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)
	transport.Script(failingResponse(), nil)
	transport.Script(testutil.OKResponse(), nil)

	require.NoError(t, c.RecordEvent("click"))

	assert.False(t, c.Flush())
	assert.Equal(t, 1, c.store.EventCount(), "failed upload must keep the record")

	assert.True(t, c.Flush())
	assert.Equal(t, 0, c.store.EventCount())
}

func TestClient_RecordEventWith_ValidatesKey(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	assert.Error(t, c.RecordEvent(""))

	sum := 9.99
	require.NoError(t, c.RecordEventWith("purchase", EventOptions{Count: 2, Sum: &sum,
		Segmentation: map[string]string{"sku": "X1"}}))

	events := c.store.SnapshotEvents()
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Count)
	require.NotNil(t, events[0].Sum)
	assert.Equal(t, 9.99, *events[0].Sum)
	assert.Equal(t, "X1", events[0].Segmentation["sku"])
}

func TestClient_RecordEvent_TrimsOverlongKey(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	require.NoError(t, c.RecordEvent(strings.Repeat("k", 300)))

	events := c.store.SnapshotEvents()
	require.Len(t, events, 1)
	assert.Len(t, events[0].Key, 128)
}

func TestClient_BeginSession_SendsMetricsImmediately(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	require.NoError(t, c.BeginSession())

	require.Equal(t, 1, transport.CallCount())
	url := transport.URLs()[0]
	assert.Contains(t, url, "begin_session=1")
	assert.Contains(t, url, "metrics=")
	assert.Equal(t, 0, c.store.SessionCount())

	// starting again while running is a no-op
	require.NoError(t, c.BeginSession())
	assert.Equal(t, 1, transport.CallCount())
}

func TestClient_EndSession_SendsDuration(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	require.NoError(t, c.BeginSession())
	require.NoError(t, c.EndSession())

	urls := transport.URLs()
	require.Len(t, urls, 2)
	assert.Contains(t, urls[1], "end_session=1")
	assert.Contains(t, urls[1], "session_duration=")

	// ending without a session is a no-op
	require.NoError(t, c.EndSession())
	assert.Equal(t, 2, transport.CallCount())
}

func TestClient_UpdateSession_SendsDurationSlice(t *testing.T) {
	c, transport, _ := newTestClient(t, func(conf *structures.Config) {})

	require.NoError(t, c.BeginSession())
	require.NoError(t, c.UpdateSession())

	urls := transport.URLs()
	require.Len(t, urls, 2)
	assert.Contains(t, urls[1], "session_duration=")
	assert.NotContains(t, urls[1], "begin_session")
	assert.Equal(t, 0, c.store.SessionCount())

	// the update is retained when the collector is unreachable
	transport.Script(api.Response{}, assert.AnError)
	require.NoError(t, c.UpdateSession())
	sessions := c.store.SnapshotSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionUpdate, sessions[0].Kind)
	assert.Contains(t, sessions[0].Content, "session_duration=")
}

func TestClient_ChangeDeviceID_NoMerge_FreezesOldIdentityInQueue(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)
	transport.Script(api.Response{}, assert.AnError) // collector unreachable

	oldID := c.DeviceID()
	require.NoError(t, c.BeginSession())
	require.NoError(t, c.ChangeDeviceID("user-42", false))

	sessions := c.store.SnapshotSessions()
	require.Len(t, sessions, 3)
	assert.Equal(t, models.SessionBegin, sessions[0].Kind)
	assert.Contains(t, sessions[0].Content, "device_id="+oldID)
	assert.Equal(t, models.SessionEnd, sessions[1].Kind)
	assert.Contains(t, sessions[1].Content, "device_id="+oldID)
	assert.Equal(t, models.SessionBegin, sessions[2].Kind)
	assert.Contains(t, sessions[2].Content, "device_id=user-42")

	assert.Equal(t, "user-42", c.DeviceID())
}

func TestClient_ChangeDeviceID_Merge_QueuesMergeRequest(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	oldID := c.DeviceID()
	require.NoError(t, c.ChangeDeviceID("user-42", true))

	assert.Equal(t, "user-42", c.DeviceID())
	urls := transport.URLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "device_id=user-42")
	assert.Contains(t, urls[0], "old_device_id="+oldID)
}

func TestClient_ChangeDeviceID_SameIdIsNoop(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	id := c.DeviceID()
	require.NoError(t, c.ChangeDeviceID(id, true))
	assert.Equal(t, 0, transport.CallCount())

	assert.Error(t, c.ChangeDeviceID("", false))
}

func TestClient_ConsentRequired_SilentlyDropsRecording(t *testing.T) {
	c, transport, _ := newTestClient(t, func(conf *structures.Config) {
		conf.Consent.Required = true
	})

	require.NoError(t, c.RecordEvent("click"))
	require.NoError(t, c.BeginSession())
	require.NoError(t, c.RecordException("boom", "stack"))
	require.NoError(t, c.SetUserDetails(UserProfile{Name: "Jo"}))

	assert.Equal(t, 0, c.store.EventCount())
	assert.Equal(t, 0, c.store.SessionCount())
	assert.Equal(t, 0, c.store.ExceptionCount())
	_, dirty := c.store.Profile()
	assert.False(t, dirty)
	assert.Equal(t, 0, transport.CallCount())
}

func TestClient_SetConsent_GrantStartsAttemptedSession(t *testing.T) {
	c, transport, _ := newTestClient(t, func(conf *structures.Config) {
		conf.Consent.Required = true
	})

	require.NoError(t, c.BeginSession()) // denied but remembered
	require.NoError(t, c.SetConsent(map[Feature]bool{
		FeatureSessions: true,
		FeatureEvents:   true,
	}))

	urls := transport.URLs()
	var sawConsent, sawBegin bool
	for _, u := range urls {
		if strings.Contains(u, "consent=") {
			sawConsent = true
		}
		if strings.Contains(u, "begin_session=1") {
			sawBegin = true
		}
	}
	assert.True(t, sawConsent, "consent change must be reported")
	assert.True(t, sawBegin, "attempted session must begin on grant")

	require.NoError(t, c.RecordEvent("click"))
	assert.Equal(t, 1, c.store.EventCount())
}

func TestClient_SetConsent_RevokeSessionsEndsRunningSession(t *testing.T) {
	c, transport, _ := newTestClient(t, func(conf *structures.Config) {
		conf.Consent.Required = true
		conf.Consent.Given = map[string]bool{"sessions": true}
	})

	require.NoError(t, c.BeginSession())
	require.NoError(t, c.SetConsent(map[Feature]bool{FeatureSessions: false}))

	var sawEnd bool
	for _, u := range transport.URLs() {
		if strings.Contains(u, "end_session=1") {
			sawEnd = true
		}
	}
	assert.True(t, sawEnd)

	c.mu.Lock()
	active := c.sessionActive
	c.mu.Unlock()
	assert.False(t, active)
}

func TestClient_SetConsent_NoopWhenNotRequired(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	require.NoError(t, c.SetConsent(map[Feature]bool{FeatureEvents: false}))
	assert.Equal(t, 0, transport.CallCount())
	assert.True(t, c.IsConsentGiven(FeatureEvents))
}

func TestClient_RecordView_TracksVisitStartAndDuration(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	require.NoError(t, c.BeginSession())
	require.NoError(t, c.RecordView("home"))
	require.NoError(t, c.RecordView("settings"))

	events := c.store.SnapshotEvents()
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "[CLY]_view", first.Key)
	assert.Equal(t, "home", first.Segmentation["name"])
	assert.Equal(t, "1", first.Segmentation["visit"])
	assert.Equal(t, "1", first.Segmentation["start"])

	closing := events[1]
	assert.Equal(t, "home", closing.Segmentation["name"])
	assert.NotContains(t, closing.Segmentation, "visit")
	require.NotNil(t, closing.Duration)

	second := events[2]
	assert.Equal(t, "settings", second.Segmentation["name"])
	assert.Equal(t, "1", second.Segmentation["visit"])
	assert.NotContains(t, second.Segmentation, "start")
}

func TestClient_TimedEvents_MeasureDuration(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	require.NoError(t, c.StartEvent("load"))
	assert.Error(t, c.StartEvent("load"), "double start must be rejected")

	require.NoError(t, c.EndEvent("load", EventOptions{}))
	assert.Error(t, c.EndEvent("load", EventOptions{}), "event already ended")

	events := c.store.SnapshotEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "load", events[0].Key)
	require.NotNil(t, events[0].Duration)
	assert.GreaterOrEqual(t, *events[0].Duration, 0.0)
}

func TestClient_SetUserDetails_PiggybacksOnNextUpload(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	require.NoError(t, c.SetUserDetails(UserProfile{Name: "Jo", Email: "jo@example.com"}))
	_, dirty := c.store.Profile()
	assert.True(t, dirty)

	assert.True(t, c.Flush())

	require.Equal(t, 1, transport.CallCount())
	assert.Contains(t, transport.URLs()[0], "user_details=")
	_, dirty = c.store.Profile()
	assert.False(t, dirty)
}

func TestClient_OnUserDetailsChanged_Fires(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	fired := 0
	c.OnUserDetailsChanged(func() { fired++ })
	require.NoError(t, c.SetUserDetails(UserProfile{Name: "Jo"}))
	assert.Equal(t, 1, fired)
}

func TestClient_RecordException_CarriesBreadcrumbsAndMetrics(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	c.AddBreadcrumb("opened settings")
	c.AddBreadcrumb("pressed save")
	require.NoError(t, c.RecordException("SaveFailed", "save()\nmain()"))

	records := c.store.SnapshotExceptions()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "SaveFailed", r.Name)
	assert.True(t, r.Nonfatal)
	assert.Contains(t, r.Logs, "opened settings\npressed save\n")
	assert.Equal(t, "linux", r.OS)
	assert.GreaterOrEqual(t, r.Run, int64(0))
}

func TestClient_RecordException_TrimsStack(t *testing.T) {
	c, _, _ := newTestClient(t, nil)

	lines := make([]string, 40)
	for i := range lines {
		lines[i] = strings.Repeat("f", 300)
	}
	require.NoError(t, c.RecordException("Deep", strings.Join(lines, "\n")))

	records := c.store.SnapshotExceptions()
	require.Len(t, records, 1)
	got := strings.Split(records[0].Error, "\n")
	assert.Len(t, got, 30)
	assert.Len(t, got[0], 200)
}

func TestClient_RecordUnhandledException_SurvivesRestart(t *testing.T) {
	c, _, storage := newTestClient(t, nil)

	require.NoError(t, c.RecordUnhandledException("FatalCrash", "boom()", nil))

	// bypasses the queue and lands straight in durable storage
	assert.Equal(t, 0, c.store.ExceptionCount())
	assert.True(t, storage.Has(models.CollectionUnhandled))
	require.NoError(t, c.Close())

	restarted, err := newClient(testInternalConfig(), &testutil.MockTransport{}, storage)
	require.NoError(t, err)
	defer restarted.Close()

	assert.Equal(t, 1, restarted.store.ExceptionCount())
	assert.False(t, storage.Has(models.CollectionUnhandled))
	records := restarted.store.SnapshotExceptions()
	assert.Equal(t, "FatalCrash", records[0].Name)
	assert.False(t, records[0].Nonfatal)
}

func TestClient_Close_PersistsQueuesForNextRun(t *testing.T) {
	c, transport, storage := newTestClient(t, nil)
	transport.Script(failingResponse(), nil)

	require.NoError(t, c.RecordEvent("click"))
	c.Flush() // fails, record stays queued
	require.NoError(t, c.Close())

	restarted, err := newClient(testInternalConfig(), &testutil.MockTransport{}, storage)
	require.NoError(t, err)
	defer restarted.Close()

	assert.Equal(t, 1, restarted.store.EventCount())
	events := restarted.store.SnapshotEvents()
	assert.Equal(t, "click", events[0].Key)
}

func TestClient_Halt_DiscardsAllState(t *testing.T) {
	c, _, storage := newTestClient(t, nil)

	require.NoError(t, c.BeginSession())
	require.NoError(t, c.RecordEvent("click"))
	require.NoError(t, c.SetUserDetails(UserProfile{Name: "Jo"}))
	oldID := c.DeviceID()

	c.Halt()

	assert.Equal(t, 0, c.store.EventCount())
	assert.Equal(t, 0, c.store.SessionCount())
	assert.False(t, storage.Has(models.CollectionEvents))
	assert.False(t, storage.Has(models.CollectionDevice))

	// recording after halt is inert
	require.NoError(t, c.RecordEvent("late"))
	assert.Equal(t, 0, c.store.EventCount())
	assert.False(t, c.Flush())

	restarted, err := newClient(testInternalConfig(), &testutil.MockTransport{}, storage)
	require.NoError(t, err)
	defer restarted.Close()
	assert.NotEqual(t, oldID, restarted.DeviceID())
}

func TestClient_SetLocation_TravelsThroughRequestQueue(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	require.NoError(t, c.SetLocation("52.5,13.4", "", "DE", "Berlin"))

	urls := transport.URLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "location=52.5%2C13.4")
	assert.Contains(t, urls[0], "country_code=DE")
	assert.Contains(t, urls[0], "city=Berlin")
	assert.NotContains(t, urls[0], "ip=")
}

func TestClient_DisableLocation_SendsExplicitEmptyFields(t *testing.T) {
	c, transport, _ := newTestClient(t, nil)

	require.NoError(t, c.DisableLocation())

	urls := transport.URLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "location=&")
	assert.Contains(t, urls[0], "country_code=&")
}

func TestNew_ValidatesPublicConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{AppKey: "key"}) // missing server url
	assert.Error(t, err)

	_, err = New(&Config{ServerURL: "https://collector.example.com"}) // missing app key
	assert.Error(t, err)
}

type publicFakeTransport struct {
	calls int
}

func (f *publicFakeTransport) Send(url string, body []byte) (Response, error) {
	f.calls++
	return Response{StatusCode: 200, Body: `{"result":"Success"}`}, nil
}

func TestNew_BuildsWorkingClientFromPublicConfig(t *testing.T) {
	transport := &publicFakeTransport{}
	c, err := New(&Config{
		ServerURL:  "https://collector.example.com",
		AppKey:     "key",
		AppVersion: "2.0.0",
		StorageDir: t.TempDir(),
		LogLevel:   "error",
		DeviceMetrics: Metrics{
			OS: "linux",
		},
		Transport: transport,
	})
	require.NoError(t, err)
	defer c.Close()

	assert.Len(t, c.DeviceID(), 32)

	require.NoError(t, c.BeginSession())
	assert.Equal(t, 1, transport.calls)
}
