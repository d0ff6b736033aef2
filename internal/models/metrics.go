package models

// Metrics is the device snapshot attached to a session begin. The host
// platform layer fills it; the core treats it as plain data.
type Metrics struct {
	OS         string `json:"_os,omitempty"`
	OSVersion  string `json:"_os_version,omitempty"`
	Device     string `json:"_device,omitempty"`
	Resolution string `json:"_resolution,omitempty"`
	Carrier    string `json:"_carrier,omitempty"`
	AppVersion string `json:"_app_version,omitempty"`
	Locale     string `json:"_locale,omitempty"`
}
