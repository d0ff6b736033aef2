package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"countly/internal/models"
)

const (
	// SdkVersion is reported with every request.
	SdkVersion = "1.0.0"
	// SdkName identifies this client implementation to the collector.
	SdkName = "go-core"
)

// RequestBuilder produces the path+query request content understood by
// the collector's /i endpoint. Optional JSON fields that are unset are
// omitted from the payload entirely, never sent as empty values.
type RequestBuilder struct {
	appKey string
	time   *models.TimeSource
}

func NewRequestBuilder(appKey string, time *models.TimeSource) *RequestBuilder {
	return &RequestBuilder{appKey: appKey, time: time}
}

// Base builds the parameter prefix shared by every request kind.
func (b *RequestBuilder) Base(deviceId string) string {
	at := b.time.Instant()
	return fmt.Sprintf("/i?app_key=%s&device_id=%s&timestamp=%d&sdk_version=%s&sdk_name=%s&hour=%d&dow=%d&tz=%d",
		url.QueryEscape(b.appKey), url.QueryEscape(deviceId), at.Timestamp,
		SdkVersion, SdkName, at.Hour, at.Dow, at.Timezone)
}

func (b *RequestBuilder) BeginSession(deviceId string, metrics models.Metrics) (string, error) {
	metricsJson, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	return b.Base(deviceId) + "&begin_session=1&metrics=" + url.QueryEscape(string(metricsJson)), nil
}

func (b *RequestBuilder) UpdateSession(deviceId string, durationSeconds int) string {
	return b.Base(deviceId) + "&session_duration=" + strconv.Itoa(durationSeconds)
}

func (b *RequestBuilder) EndSession(deviceId string, durationSeconds int) string {
	return b.Base(deviceId) + "&end_session=1&session_duration=" + strconv.Itoa(durationSeconds)
}

func (b *RequestBuilder) Events(deviceId string, events []models.Event) (string, error) {
	eventsJson, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return b.Base(deviceId) + "&events=" + url.QueryEscape(string(eventsJson)), nil
}

func (b *RequestBuilder) Crash(deviceId string, record models.ExceptionRecord) (string, error) {
	crashJson, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal exception record: %w", err)
	}
	return b.Base(deviceId) + "&crash=" + url.QueryEscape(string(crashJson)), nil
}

func (b *RequestBuilder) UserDetails(deviceId string, profile models.UserProfile) (string, error) {
	profileJson, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("marshal user profile: %w", err)
	}
	return b.Base(deviceId) + "&user_details=" + url.QueryEscape(string(profileJson)), nil
}

// UserDetailsParam renders the profile as an extra parameter attached
// to a session or events request.
func UserDetailsParam(profile models.UserProfile) (string, error) {
	profileJson, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("marshal user profile: %w", err)
	}
	return "&user_details=" + url.QueryEscape(string(profileJson)), nil
}

// Location appends only the arguments that are set; empty strings are
// sent deliberately when the caller wants to erase server-side state.
func (b *RequestBuilder) Location(deviceId string, gps, ip, countryCode, city *string) string {
	var sb strings.Builder
	sb.WriteString(b.Base(deviceId))
	appendOpt := func(name string, v *string) {
		if v != nil {
			sb.WriteString("&" + name + "=" + url.QueryEscape(*v))
		}
	}
	appendOpt("location", gps)
	appendOpt("ip", ip)
	appendOpt("country_code", countryCode)
	appendOpt("city", city)
	return sb.String()
}

func (b *RequestBuilder) ConsentChanges(deviceId string, changes map[string]bool) (string, error) {
	consentJson, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("marshal consent changes: %w", err)
	}
	return b.Base(deviceId) + "&consent=" + url.QueryEscape(string(consentJson)), nil
}

// DeviceIdMerge is built under the NEW device id and names the old one,
// asking the collector to fold the old identity into the new.
func (b *RequestBuilder) DeviceIdMerge(newDeviceId, oldDeviceId string) string {
	return b.Base(newDeviceId) + "&old_device_id=" + url.QueryEscape(oldDeviceId)
}

// SplitOverlongURL rewrites a request whose URL exceeds max characters
// into a POST: the URL is cut back to the path and the query becomes
// the request body. Requests at or under the limit pass through with a
// nil body.
func SplitOverlongURL(fullURL string, max int) (string, []byte) {
	if len(fullURL) <= max {
		return fullURL, nil
	}
	idx := strings.IndexByte(fullURL, '?')
	if idx < 0 {
		return fullURL, nil
	}
	return fullURL[:idx], []byte(fullURL[idx+1:])
}
