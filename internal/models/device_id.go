package models

import "strings"

// IdMethod records how the active device id was produced.
type IdMethod int

const (
	IdMethodNone IdMethod = iota
	IdMethodGeneratedGUID
	IdMethodGeneratedFromHardware
	IdMethodTemporary
	IdMethodDeveloperSupplied IdMethod = 100
)

// ParseIdMethod maps the config spelling to the internal enum. Unknown
// values fall back to GUID generation.
func ParseIdMethod(s string) IdMethod {
	switch strings.ToLower(s) {
	case "developer":
		return IdMethodDeveloperSupplied
	case "hardware":
		return IdMethodGeneratedFromHardware
	case "temporary":
		return IdMethodTemporary
	default:
		return IdMethodGeneratedGUID
	}
}

// DeviceId is persisted independently of the queues. Exactly one is
// active per client.
type DeviceId struct {
	Id     string   `json:"deviceId"`
	Method IdMethod `json:"deviceIdMethod"`
}
