package countly

import (
	"fmt"

	"countly/internal/models"
	"countly/internal/providers"
)

// DeviceID returns the active device identity, generating and
// persisting one on first use.
func (c *Client) DeviceID() string {
	return c.device.DeviceID()
}

// ChangeDeviceID switches to a new identity, typically on login or
// logout. Changing to the current id is a no-op.
//
// With merge=false the identities stay separate: the running session
// is ended under the old id and a fresh one begins under the new id.
// With merge=true the collector is asked to fold the old identity's
// server-side data into the new one; queued records keep the id they
// were recorded under.
func (c *Client) ChangeDeviceID(newID string, merge bool) error {
	if c.inactive() {
		return nil
	}
	if newID == "" {
		return fmt.Errorf("device id cannot be empty")
	}

	oldID := c.device.DeviceID()
	if newID == oldID {
		c.logger.Debugf(providers.TypeApp, "Device id unchanged, ignoring")
		return nil
	}

	if !merge {
		c.EndSession()
		c.device.SetID(newID, models.IdMethodDeveloperSupplied)
		c.logger.Infof(providers.TypeApp, "Device id changed without merge")
		return c.BeginSession()
	}

	c.device.SetID(newID, models.IdMethodDeveloperSupplied)
	content := c.builder.DeviceIdMerge(newID, oldID)
	c.store.AppendRequest(models.StoredRequest{Request: content, IdMerge: true})
	c.logger.Infof(providers.TypeApp, "Device id changed with merge")
	c.Flush()
	return nil
}
