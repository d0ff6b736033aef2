// Package countly is the portable core of an analytics client: it
// queues events, session lifecycle records, crash reports and user
// profile changes, persists them across restarts and drains them to a
// Countly-compatible collector on a fixed cadence. Host platforms
// supply device metrics and, optionally, their own transport and
// storage implementations.
package countly

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"countly/internal/api"
	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/queue"
	"countly/internal/queue/interfaces"
	"countly/internal/services"
	"countly/internal/structures"
)

// Client is the SDK entry point. All methods are safe for concurrent
// use. Recording methods never fail on network or storage trouble;
// they only return errors for invalid arguments.
type Client struct {
	conf      *structures.Config
	logger    providers.Logger
	store     *models.QueueStore
	storage   interfaces.Storage
	persister *queue.Persister
	scheduler interfaces.SchedulerInterface
	builder   *api.RequestBuilder
	time      *models.TimeSource
	device    *services.DeviceService
	consent   *services.ConsentService
	cache     providers.CacheProviderInterface
	metrics   providers.MetricsProviderInterface

	halted atomic.Bool
	closed atomic.Bool

	mu                sync.Mutex
	deviceMetrics     models.Metrics
	startedAt         time.Time
	sessionActive     bool
	sessionAttempted  bool
	lastSessionUpdate time.Time
	breadcrumb        string
	lastView          string
	lastViewStart     time.Time
	firstView         bool

	sessionStartedSubs []func()
	userDetailsSubs    []func()
}

// New builds a client from an in-code config and starts the background
// upload scheduler. Configuration problems are the only loud errors;
// after New returns, the client degrades gracefully instead of
// failing.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	conf := cfg.toInternal()
	if err := providers.ValidateConfig(conf); err != nil {
		return nil, err
	}

	var transport interfaces.Transport
	if cfg.Transport != nil {
		transport = &transportAdapter{inner: cfg.Transport}
	} else {
		transport = api.NewHTTPTransport(cfg.RequestTimeout)
	}

	c, err := newClient(conf, transport, cfg.Storage)
	if err != nil {
		return nil, err
	}
	c.deviceMetrics = cfg.DeviceMetrics.toModel(conf.AppVersion)
	return c, nil
}

// NewFromFile builds a client from a yaml config file, with
// COUNTLY_* environment variables taking precedence. Device metrics
// are not part of the file format; set them with SetDeviceMetrics
// before beginning a session.
func NewFromFile(configPath string) (*Client, error) {
	conf, err := providers.NewConfigProvider(configPath)
	if err != nil {
		return nil, err
	}
	return newClient(conf, nil, nil)
}

func newClient(conf *structures.Config, transport interfaces.Transport, storage interfaces.Storage) (*Client, error) {
	logger, err := providers.NewLogProvider(conf)
	if err != nil {
		return nil, err
	}

	if storage == nil {
		compressor, err := queue.NewZstdCompressor()
		if err != nil {
			return nil, err
		}
		fs, err := queue.NewFileStore(conf.Persistence.Dir, compressor, logger)
		if err != nil {
			return nil, err
		}
		storage = fs
	}

	store := models.NewQueueStore()
	metrics := providers.NewMetricsProvider(conf, store)
	cache := providers.NewInstrumentedCacheProvider(conf, logger, metrics)
	timeSource := models.NewTimeSource()
	builder := api.NewRequestBuilder(conf.Connection.AppKey, timeSource)
	device := services.NewDeviceService(conf, storage, logger)
	consent := consentFromConf(conf)

	if transport == nil {
		transport = api.NewHTTPTransport(0)
	}

	c := &Client{
		conf:      conf,
		logger:    logger,
		store:     store,
		storage:   storage,
		builder:   builder,
		time:      timeSource,
		device:    device,
		consent:   consent,
		cache:     cache,
		metrics:   metrics,
		startedAt: time.Now(),
		firstView: true,
	}

	// restore before the persister hook is installed so loading does
	// not immediately write everything back
	requeued := c.restore()

	c.persister = queue.NewPersister(store, storage, logger, metrics)
	store.SetOnChange(c.persister.Notify)
	if requeued {
		c.persister.Notify(models.CollectionExceptions)
	}

	sched := queue.NewScheduler(conf, logger, metrics, store, transport, builder, device, consent)
	sched.SetSessionJob(c.sessionTick)
	sched.Init()
	c.scheduler = sched

	return c, nil
}

// restore loads every persisted queue into memory. A crash report that
// was saved by RecordUnhandledException on the previous run is moved
// into the exception queue; it reports true so the caller can schedule
// a persist of the merged queue.
func (c *Client) restore() bool {
	var (
		events     []models.Event
		sessions   []models.SessionEvent
		exceptions []models.ExceptionRecord
		requests   []models.StoredRequest
		profile    models.UserProfile
		unhandled  []models.ExceptionRecord
	)

	c.loadCollection(models.CollectionEvents, &events)
	c.loadCollection(models.CollectionSessions, &sessions)
	c.loadCollection(models.CollectionExceptions, &exceptions)
	c.loadCollection(models.CollectionRequests, &requests)
	c.loadCollection(models.CollectionProfile, &profile)
	c.loadCollection(models.CollectionUnhandled, &unhandled)

	c.store.Restore(events, sessions, exceptions, requests)
	if !profile.IsEmpty() {
		c.store.RestoreProfile(profile, false)
	}

	if len(unhandled) == 0 {
		return false
	}
	for _, record := range unhandled {
		c.store.AppendException(record)
	}
	if err := c.storage.Delete(models.CollectionUnhandled); err != nil {
		c.logger.Warnf(providers.TypeStorage, "Failed to clear requeued crash reports: %s", err)
	}
	c.logger.Infof(providers.TypeStorage, "Requeued %d crash report(s) from previous run", len(unhandled))
	return true
}

func (c *Client) loadCollection(collection string, out interface{}) {
	if err := c.storage.Load(collection, out); err != nil {
		// corrupt state is dropped, not fatal; the queue restarts empty
		c.logger.Warnf(providers.TypeStorage, "Failed to restore collection %s: %s", collection, err)
		c.metrics.IncRecordsDropped(collection)
	}
}

// Flush runs one synchronous upload cycle. Returns true when every
// queue drained completely.
func (c *Client) Flush() bool {
	if c.halted.Load() || c.closed.Load() {
		return false
	}
	return c.scheduler.FlushAll()
}

// Close shuts the client down gracefully: the scheduler and the
// background persister stop, and every queue is written to durable
// storage one last time. Queued records are not uploaded; they are
// picked up on the next start.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.scheduler.Stop()
	if c.persister != nil {
		c.persister.Stop()
		if !c.halted.Load() {
			c.persister.Flush()
		}
	}
	c.logger.Close()
	return nil
}

// Halt discards all client state: queues, persisted files, the device
// identity and any granted consent. An in-flight upload is left to
// finish on its own. After Halt the client is inert; build a new one
// to continue reporting.
func (c *Client) Halt() {
	if !c.halted.CompareAndSwap(false, true) {
		return
	}
	c.scheduler.Stop()
	c.persister.Stop()

	c.mu.Lock()
	c.sessionActive = false
	c.sessionAttempted = false
	c.breadcrumb = ""
	c.lastView = ""
	c.lastViewStart = time.Time{}
	c.firstView = true
	c.mu.Unlock()

	c.store.ClearAll()
	for _, collection := range []string{
		models.CollectionEvents,
		models.CollectionSessions,
		models.CollectionExceptions,
		models.CollectionRequests,
		models.CollectionProfile,
		models.CollectionDevice,
		models.CollectionUnhandled,
	} {
		if err := c.storage.Delete(collection); err != nil {
			c.logger.Warnf(providers.TypeStorage, "Failed to delete collection %s during halt: %s", collection, err)
		}
	}
	c.device.Reset()
	c.consent.Reset()
	c.logger.Infof(providers.TypeApp, "Client halted, all state discarded")
}

// SetDeviceMetrics installs the device snapshot used by session begin
// requests and crash reports. Call it before BeginSession.
func (c *Client) SetDeviceMetrics(m Metrics) {
	c.mu.Lock()
	c.deviceMetrics = m.toModel(c.conf.AppVersion)
	c.mu.Unlock()
}

// OnSessionStarted registers a callback fired after a session begin
// record is enqueued.
func (c *Client) OnSessionStarted(fn func()) {
	c.mu.Lock()
	c.sessionStartedSubs = append(c.sessionStartedSubs, fn)
	c.mu.Unlock()
}

// OnUserDetailsChanged registers a callback fired after SetUserDetails
// stores a new profile.
func (c *Client) OnUserDetailsChanged(fn func()) {
	c.mu.Lock()
	c.userDetailsSubs = append(c.userDetailsSubs, fn)
	c.mu.Unlock()
}

func (c *Client) inactive() bool {
	return c.halted.Load() || c.closed.Load()
}

// transportAdapter bridges the public Transport to the internal one.
type transportAdapter struct {
	inner Transport
}

func (a *transportAdapter) Send(url string, body []byte) (*api.Response, error) {
	resp, err := a.inner.Send(url, body)
	if err != nil {
		return nil, err
	}
	return &api.Response{Code: resp.StatusCode, Body: resp.Body}, nil
}
