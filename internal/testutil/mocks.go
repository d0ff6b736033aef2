package testutil

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"countly/internal/api"
	"countly/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// HasLog reports whether any recorded entry at the given level contains
// substr in its rendered message.
func (m *MockLogger) HasLog(level, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Logs {
		if e.Level != level {
			continue
		}
		if strings.Contains(fmt.Sprintf(e.Format, e.Args...), substr) {
			return true
		}
	}
	return false
}

// MockTransport implements interfaces.Transport. Responses are served
// from the scripted list in order; after the list runs out it keeps
// returning the last entry (or OK when none were scripted).
type MockTransport struct {
	mu        sync.Mutex
	Responses []api.Response
	Errs      []error
	Calls     []TransportCall

	next int
}

type TransportCall struct {
	URL  string
	Body []byte
}

// OKResponse is what a healthy server answers with.
func OKResponse() api.Response {
	return api.Response{Code: 200, Body: `{"result":"Success"}`}
}

// Script appends a response (and optional error) to the playback list.
func (m *MockTransport) Script(resp api.Response, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	m.Errs = append(m.Errs, err)
}

func (m *MockTransport) Send(url string, body []byte) (*api.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, TransportCall{URL: url, Body: body})
	if len(m.Responses) == 0 {
		r := OKResponse()
		return &r, nil
	}
	i := m.next
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	} else {
		m.next++
	}
	if m.Errs[i] != nil {
		return nil, m.Errs[i]
	}
	r := m.Responses[i]
	return &r, nil
}

func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// URLs returns the full request line of every call, query tail
// reattached for the calls that were split into a POST body.
func (m *MockTransport) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		u := c.URL
		if len(c.Body) > 0 {
			u += "?" + string(c.Body)
		}
		out = append(out, u)
	}
	return out
}

// MockStorage implements interfaces.Storage in memory. Payloads round
// trip through JSON so Load hands back detached copies, like the real
// file store does.
type MockStorage struct {
	mu       sync.Mutex
	data     map[string][]byte
	SaveErr  error
	LoadErr  error
	SaveLog  []string
	failures map[string]error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{data: map[string][]byte{}, failures: map[string]error{}}
}

// FailCollection makes Save return err for one collection only.
func (m *MockStorage) FailCollection(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[collection] = err
}

func (m *MockStorage) Save(collection string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if err := m.failures[collection]; err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.data[collection] = raw
	m.SaveLog = append(m.SaveLog, collection)
	return nil
}

func (m *MockStorage) Load(collection string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return m.LoadErr
	}
	raw, ok := m.data[collection]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (m *MockStorage) Delete(collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, collection)
	return nil
}

func (m *MockStorage) Has(collection string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[collection]
	return ok
}

// NopMetrics satisfies providers.MetricsProviderInterface without
// touching the global prometheus registry, which tolerates only one
// registration per process.
type NopMetrics struct{}

func (NopMetrics) IncUploadsTotal(string, int)                 {}
func (NopMetrics) ObserveUploadDuration(string, time.Duration) {}
func (NopMetrics) IncRecordsDropped(string)                    {}
func (NopMetrics) IncCacheHits()                               {}
func (NopMetrics) IncCacheMisses()                             {}
func (NopMetrics) ObservePersistenceDuration(time.Duration)    {}
