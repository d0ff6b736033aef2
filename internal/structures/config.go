package structures

import "time"

type Connection struct {
	ServerURL string `yaml:"serverUrl" validate:"required|fullUrl"`
	AppKey    string `yaml:"appKey" validate:"required"`
}

type Device struct {
	// IdMethod selects how a device id is generated when none was
	// persisted: guid, hardware, temporary or developer.
	IdMethod    string `yaml:"idMethod" validate:"in:guid,hardware,temporary,developer"`
	DeveloperId string `yaml:"developerId"`
	// HardwareId is supplied by the host platform layer, opaque to the core.
	HardwareId string `yaml:"hardwareId"`
}

type Upload struct {
	Interval        time.Duration `yaml:"interval"`
	SessionInterval time.Duration `yaml:"sessionInterval"`
	// MaxURLLength is the threshold beyond which a request is rewritten
	// as POST with the query tail moved into the body.
	MaxURLLength int `yaml:"maxUrlLength"`
	// EventBatchSize caps how many events go into one batched request.
	EventBatchSize int `yaml:"eventBatchSize"`
}

type Persistence struct {
	Dir string `yaml:"dir"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode"`
	Dir   string `yaml:"dir"`
}

type ConsentConfig struct {
	Required bool            `yaml:"required"`
	Given    map[string]bool `yaml:"given"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
	// TTL bounds how long a started timed event may stay open.
	TTL time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Limits struct {
	MaxKeyLength            int `yaml:"maxKeyLength"`
	MaxValueSize            int `yaml:"maxValueSize"`
	MaxSegmentationValues   int `yaml:"maxSegmentationValues"`
	MaxStackTraceLines      int `yaml:"maxStackTraceLines"`
	MaxStackTraceLineLength int `yaml:"maxStackTraceLineLength"`
	MaxBreadcrumbLength     int `yaml:"maxBreadcrumbLength"`
}

type Config struct {
	AppName     string
	AppVersion  string `yaml:"appVersion"`
	Debug       bool
	Path        string
	Connection  Connection    `yaml:"connection"`
	Device      Device        `yaml:"device"`
	Upload      Upload        `yaml:"upload"`
	Persistence Persistence   `yaml:"persistence"`
	Logger      LoggerConfig  `yaml:"logger"`
	Consent     ConsentConfig `yaml:"consent"`
	Cache       CacheConfig   `yaml:"cache"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Limits      Limits        `yaml:"limits"`
}

// ApplyDefaults fills zero-valued tunables with the values the collector
// protocol was designed around.
func (c *Config) ApplyDefaults() {
	if c.Upload.Interval <= 0 {
		c.Upload.Interval = 60 * time.Second
	}
	if c.Upload.SessionInterval <= 0 {
		c.Upload.SessionInterval = 60 * time.Second
	}
	if c.Upload.MaxURLLength <= 0 {
		c.Upload.MaxURLLength = 2000
	}
	if c.Upload.EventBatchSize <= 0 {
		c.Upload.EventBatchSize = 100
	}
	if c.Device.IdMethod == "" {
		c.Device.IdMethod = "guid"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Limits.MaxKeyLength <= 0 {
		c.Limits.MaxKeyLength = 128
	}
	if c.Limits.MaxValueSize <= 0 {
		c.Limits.MaxValueSize = 256
	}
	if c.Limits.MaxSegmentationValues <= 0 {
		c.Limits.MaxSegmentationValues = 30
	}
	if c.Limits.MaxStackTraceLines <= 0 {
		c.Limits.MaxStackTraceLines = 30
	}
	if c.Limits.MaxStackTraceLineLength <= 0 {
		c.Limits.MaxStackTraceLineLength = 200
	}
	if c.Limits.MaxBreadcrumbLength <= 0 {
		c.Limits.MaxBreadcrumbLength = 4096
	}
}
