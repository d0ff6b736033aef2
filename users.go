package countly

import (
	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/services"
)

// UserProfile describes the current user. It is a slot, not a stream:
// setting it overwrites the previous value and marks the profile for
// upload with the next flush, piggybacked on a session request when
// one is pending.
type UserProfile struct {
	Name         string
	Username     string
	Email        string
	Organization string
	Phone        string
	// Picture is a URL to the user's avatar.
	Picture   string
	Gender    string
	BirthYear int
	Custom    map[string]string
}

// SetUserDetails stores the profile and schedules it for upload.
func (c *Client) SetUserDetails(profile UserProfile) error {
	if c.inactive() {
		return nil
	}
	if !c.consent.IsGiven(services.FeatureUsers) {
		c.logger.Debugf(providers.TypeApp, "User details skipped, consent not given")
		return nil
	}

	p := models.UserProfile{
		Name:         c.trimValue("name", profile.Name),
		Username:     c.trimValue("username", profile.Username),
		Email:        c.trimValue("email", profile.Email),
		Organization: c.trimValue("organization", profile.Organization),
		Phone:        c.trimValue("phone", profile.Phone),
		Picture:      profile.Picture,
		Gender:       c.trimValue("gender", profile.Gender),
		BirthYear:    profile.BirthYear,
		Custom:       c.trimSegmentation(profile.Custom),
	}

	c.store.UpdateProfile(func(slot *models.UserProfile) {
		*slot = p
	})

	c.mu.Lock()
	subs := append([]func(){}, c.userDetailsSubs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
	return nil
}
