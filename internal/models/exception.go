package models

// ExceptionRecord carries one reported crash or handled error. Field
// names follow the collector's crash ingestion format.
type ExceptionRecord struct {
	OS         string            `json:"_os,omitempty"`
	OSVersion  string            `json:"_os_version,omitempty"`
	Device     string            `json:"_device,omitempty"`
	Resolution string            `json:"_resolution,omitempty"`
	AppVersion string            `json:"_app_version,omitempty"`
	Name       string            `json:"_name"`
	Error      string            `json:"_error"`
	Nonfatal   bool              `json:"_nonfatal"`
	Logs       string            `json:"_logs,omitempty"`
	// Run is the number of seconds the app had been running when the
	// exception was recorded.
	Run    int64             `json:"_run"`
	Custom map[string]string `json:"_custom,omitempty"`
}
