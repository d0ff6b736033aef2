package countly

import (
	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/services"
)

// SetLocation reports the user's location. Empty arguments are simply
// not sent; gpsCoordinates uses the "lat,lon" form. The update travels
// through the stored-request queue, so it survives restarts and
// retries like any other record.
func (c *Client) SetLocation(gpsCoordinates, ipAddress, countryCode, city string) error {
	if c.inactive() {
		return nil
	}
	if !c.consent.IsGiven(services.FeatureLocation) {
		c.logger.Debugf(providers.TypeApp, "Location skipped, consent not given")
		return nil
	}
	if gpsCoordinates == "" && ipAddress == "" && countryCode == "" && city == "" {
		return nil
	}

	content := c.builder.Location(c.device.DeviceID(),
		optional(gpsCoordinates), optional(ipAddress), optional(countryCode), optional(city))
	c.store.AppendRequest(models.StoredRequest{Request: content})
	c.Flush()
	return nil
}

// DisableLocation sends explicit empty location fields, which tells
// the collector to erase what it has. Not consent gated: it runs as
// the cleanup side of a consent revocation.
func (c *Client) DisableLocation() error {
	if c.inactive() {
		return nil
	}

	empty := ""
	content := c.builder.Location(c.device.DeviceID(), &empty, &empty, &empty, &empty)
	c.store.AppendRequest(models.StoredRequest{Request: content})
	c.Flush()
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
