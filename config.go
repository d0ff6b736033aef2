package countly

import (
	"time"

	"countly/internal/models"
	"countly/internal/services"
	"countly/internal/structures"
)

// Feature is a data category the end user can allow or deny
// independently when consent is required.
type Feature string

const (
	FeatureSessions Feature = "sessions"
	FeatureEvents   Feature = "events"
	FeatureLocation Feature = "location"
	FeatureCrashes  Feature = "crashes"
	FeatureUsers    Feature = "users"
	FeatureViews    Feature = "views"
)

// DeviceIDMethod selects how the client obtains its device identity.
type DeviceIDMethod string

const (
	// DeviceIDGenerated makes the client mint a GUID on first start and
	// persist it. This is the default.
	DeviceIDGenerated DeviceIDMethod = "guid"
	// DeviceIDHardware derives the identity from the hardware id the
	// host supplies in Config.HardwareDeviceID, falling back to a GUID
	// when none is available.
	DeviceIDHardware DeviceIDMethod = "hardware"
	// DeviceIDTemporary uses a fixed placeholder identity.
	DeviceIDTemporary DeviceIDMethod = "temporary"
	// DeviceIDDeveloper uses the identity the host application supplies
	// in Config.DeveloperDeviceID.
	DeviceIDDeveloper DeviceIDMethod = "developer"
)

// Metrics is the device snapshot sent with every session begin. The
// host application fills in whatever it knows; empty fields are
// omitted from the wire format.
type Metrics struct {
	OS         string
	OSVersion  string
	Device     string
	Resolution string
	Carrier    string
	AppVersion string
	Locale     string
}

func (m Metrics) toModel(appVersion string) models.Metrics {
	v := m.AppVersion
	if v == "" {
		v = appVersion
	}
	return models.Metrics{
		OS:         m.OS,
		OSVersion:  m.OSVersion,
		Device:     m.Device,
		Resolution: m.Resolution,
		Carrier:    m.Carrier,
		AppVersion: v,
		Locale:     m.Locale,
	}
}

// Response is what a Transport hands back for one exchange.
type Response struct {
	StatusCode int
	Body       string
}

// Transport performs a single network exchange. body is nil for plain
// GET requests and carries the url-encoded query tail when the request
// was too long for one URL. Implementations must not retry; the upload
// scheduler owns all retry policy.
type Transport interface {
	Send(url string, body []byte) (Response, error)
}

// Storage is a durable key-value store for the client's queues: named
// collections with whole-payload overwrite semantics. Load of a
// collection that was never saved must leave out untouched and return
// nil. Supplying one replaces the built-in compressed file store.
type Storage interface {
	Save(collection string, payload interface{}) error
	Load(collection string, out interface{}) error
	Delete(collection string) error
}

// Config is the in-code client configuration. ServerURL and AppKey are
// the only required fields; everything else has a working default.
type Config struct {
	// ServerURL is the collector base URL, e.g. "https://try.count.ly".
	ServerURL string
	// AppKey identifies the application on the collector.
	AppKey     string
	AppVersion string

	DeviceIDMethod    DeviceIDMethod
	DeveloperDeviceID string
	HardwareDeviceID  string

	// DeviceMetrics is attached to session begin requests and crash
	// reports.
	DeviceMetrics Metrics

	// UploadInterval is the cadence of the background upload cycle.
	// Default 60s.
	UploadInterval time.Duration
	// SessionUpdateInterval is the cadence of automatic session
	// duration updates while a session is running. Default 60s.
	SessionUpdateInterval time.Duration
	// MaxRequestURLLength is the threshold above which a request is
	// sent as a POST with the query in the body. Default 2000.
	MaxRequestURLLength int
	// EventBatchSize caps how many events travel in one request.
	// Default 100.
	EventBatchSize int

	// StorageDir is where the built-in file store keeps queue state.
	// Default "countly-data". Ignored when Storage is supplied.
	StorageDir string

	// ConsentRequired switches every recording API to deny-by-default.
	// Consent holds the initially granted features.
	ConsentRequired bool
	Consent         map[Feature]bool

	LogLevel string
	// LogDir makes the logger write a file instead of stderr.
	LogDir string

	// EnablePrometheusMetrics registers upload and queue gauges with
	// the default prometheus registry.
	EnablePrometheusMetrics bool

	// DisableTimedEventCache turns off the in-memory cache backing
	// StartEvent/EndEvent tracking.
	DisableTimedEventCache bool
	TimedEventCacheSize    int
	TimedEventTTL          time.Duration

	// RequestTimeout bounds one network exchange. Default 30s. Ignored
	// when Transport is supplied.
	RequestTimeout time.Duration

	// Transport replaces the built-in HTTP transport. Useful for
	// platforms with their own network stack and in tests.
	Transport Transport
	// Storage replaces the built-in compressed file store.
	Storage Storage
}

func (c *Config) toInternal() *structures.Config {
	given := make(map[string]bool, len(c.Consent))
	for f, v := range c.Consent {
		given[string(f)] = v
	}

	dir := c.StorageDir
	if dir == "" {
		dir = "countly-data"
	}

	return &structures.Config{
		AppVersion: c.AppVersion,
		Connection: structures.Connection{
			ServerURL: c.ServerURL,
			AppKey:    c.AppKey,
		},
		Device: structures.Device{
			IdMethod:    string(c.DeviceIDMethod),
			DeveloperId: c.DeveloperDeviceID,
			HardwareId:  c.HardwareDeviceID,
		},
		Upload: structures.Upload{
			Interval:        c.UploadInterval,
			SessionInterval: c.SessionUpdateInterval,
			MaxURLLength:    c.MaxRequestURLLength,
			EventBatchSize:  c.EventBatchSize,
		},
		Persistence: structures.Persistence{Dir: dir},
		Logger: structures.LoggerConfig{
			Level: c.LogLevel,
			Dir:   c.LogDir,
		},
		Consent: structures.ConsentConfig{
			Required: c.ConsentRequired,
			Given:    given,
		},
		Cache: structures.CacheConfig{
			Enabled: !c.DisableTimedEventCache,
			Size:    c.TimedEventCacheSize,
			TTL:     c.TimedEventTTL,
		},
		Metrics: structures.MetricsConfig{Enabled: c.EnablePrometheusMetrics},
	}
}

func consentFromConf(conf *structures.Config) *services.ConsentService {
	given := make(map[services.Feature]bool, len(conf.Consent.Given))
	for f, v := range conf.Consent.Given {
		given[services.Feature(f)] = v
	}
	return services.NewConsentService(conf.Consent.Required, given)
}
