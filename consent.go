package countly

import (
	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/services"
)

// IsConsentGiven reports whether the feature may currently record
// data. With ConsentRequired=false everything is allowed.
func (c *Client) IsConsentGiven(feature Feature) bool {
	return c.consent.IsGiven(services.Feature(feature))
}

// SetConsent grants or revokes features. Only actual state changes are
// reported to the collector. Granting session consent starts a session
// when one was attempted earlier; revoking it ends the running
// session; revoking location consent erases the stored location.
func (c *Client) SetConsent(changes map[Feature]bool) error {
	if c.inactive() || len(changes) == 0 {
		return nil
	}
	if !c.conf.Consent.Required {
		c.logger.Debugf(providers.TypeApp, "Consent not required, ignoring consent change")
		return nil
	}

	internal := make(map[services.Feature]bool, len(changes))
	for f, v := range changes {
		internal[services.Feature(f)] = v
	}
	updated := c.consent.Apply(internal)
	if len(updated) == 0 {
		return nil
	}

	wire := make(map[string]bool, len(updated))
	for f, v := range updated {
		wire[string(f)] = v
	}
	content, err := c.builder.ConsentChanges(c.device.DeviceID(), wire)
	if err != nil {
		c.logger.Errorf(providers.TypeApp, "Failed to build consent request: %s", err)
	} else {
		c.store.AppendRequest(models.StoredRequest{Request: content})
	}

	if granted, ok := updated[services.FeatureSessions]; ok {
		if granted {
			c.mu.Lock()
			attempted := c.sessionAttempted && !c.sessionActive
			c.mu.Unlock()
			if attempted {
				c.BeginSession()
			}
		} else {
			c.EndSession()
		}
	}
	if granted, ok := updated[services.FeatureLocation]; ok && !granted {
		c.DisableLocation()
	}

	c.Flush()
	return nil
}
