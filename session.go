package countly

import (
	"fmt"
	"time"

	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/services"
)

// viewEventKey is the reserved event key the collector treats as a
// view navigation.
const viewEventKey = "[CLY]_view"

// BeginSession enqueues a session begin carrying the device metrics
// and triggers an immediate upload attempt. Starting an already
// running session is a no-op. Without session consent nothing is
// recorded, but the attempt is remembered: granting consent later
// starts the session retroactively.
func (c *Client) BeginSession() error {
	if c.inactive() {
		return nil
	}

	c.mu.Lock()
	if c.sessionActive {
		c.mu.Unlock()
		return nil
	}
	c.sessionAttempted = true
	if !c.consent.IsGiven(services.FeatureSessions) {
		c.mu.Unlock()
		c.logger.Debugf(providers.TypeSession, "Session begin skipped, consent not given")
		return nil
	}

	content, err := c.builder.BeginSession(c.device.DeviceID(), c.deviceMetrics)
	if err != nil {
		c.mu.Unlock()
		c.logger.Errorf(providers.TypeSession, "Failed to build session begin request: %s", err)
		return nil
	}

	now := time.Now()
	c.sessionActive = true
	c.lastSessionUpdate = now
	c.firstView = true
	subs := append([]func(){}, c.sessionStartedSubs...)
	c.mu.Unlock()

	c.store.AppendSession(models.SessionEvent{Kind: models.SessionBegin, Content: content})
	c.logger.Infof(providers.TypeSession, "Session started")

	for _, fn := range subs {
		fn()
	}

	c.Flush()
	return nil
}

// UpdateSession enqueues a session duration update covering the time
// since the last session record and triggers an upload attempt. The
// background scheduler calls this
// automatically on the configured cadence; hosts only need it for
// manual control.
func (c *Client) UpdateSession() error {
	if c.inactive() {
		return nil
	}

	// no consent check: sessionActive can only be set while session
	// consent was in force, and revocation ends the session
	c.mu.Lock()
	if !c.sessionActive {
		c.mu.Unlock()
		return nil
	}
	now := time.Now()
	elapsed := int(now.Sub(c.lastSessionUpdate).Seconds())
	c.lastSessionUpdate = now
	c.mu.Unlock()

	content := c.builder.UpdateSession(c.device.DeviceID(), elapsed)
	c.store.AppendSession(models.SessionEvent{Kind: models.SessionUpdate, Content: content})

	c.Flush()
	return nil
}

// EndSession closes the running session, reporting the final duration
// slice and the duration of the view that was on screen. Ending when
// no session runs is a no-op.
func (c *Client) EndSession() error {
	if c.inactive() {
		return nil
	}

	c.mu.Lock()
	if !c.sessionActive {
		c.mu.Unlock()
		return nil
	}
	now := time.Now()
	elapsed := int(now.Sub(c.lastSessionUpdate).Seconds())
	c.sessionActive = false
	c.lastSessionUpdate = now
	viewEvent, hasView := c.takeViewDurationLocked(now)
	c.mu.Unlock()

	if hasView {
		c.store.AppendEvent(viewEvent)
	}

	content := c.builder.EndSession(c.device.DeviceID(), elapsed)
	c.store.AppendSession(models.SessionEvent{Kind: models.SessionEnd, Content: content})
	c.logger.Infof(providers.TypeSession, "Session ended after %ds", elapsed)

	c.Flush()
	return nil
}

// RecordView reports a view navigation. The previous view, if any,
// gets a closing duration event; the new view is recorded with a visit
// marker and, for the first view of a session, a start marker.
func (c *Client) RecordView(name string) error {
	if c.inactive() {
		return nil
	}
	if name == "" {
		return fmt.Errorf("view name cannot be empty")
	}
	if !c.consent.IsGiven(services.FeatureViews) {
		c.logger.Debugf(providers.TypeApp, "View skipped, consent not given")
		return nil
	}

	name = c.trimKey(name)

	c.mu.Lock()
	now := time.Now()
	prevEvent, hasPrev := c.takeViewDurationLocked(now)
	segmentation := map[string]string{
		"name":    name,
		"visit":   "1",
		"segment": c.deviceMetrics.OS,
	}
	if c.firstView {
		segmentation["start"] = "1"
		c.firstView = false
	}
	c.lastView = name
	c.lastViewStart = now
	c.mu.Unlock()

	if hasPrev {
		c.store.AppendEvent(prevEvent)
	}

	c.store.AppendEvent(models.NewEvent(viewEventKey, 1, nil, nil, segmentation, c.time.Instant()))
	return nil
}

// takeViewDurationLocked closes out the currently open view, returning
// the duration event to enqueue. Caller holds c.mu.
func (c *Client) takeViewDurationLocked(now time.Time) (models.Event, bool) {
	if c.lastView == "" || c.lastViewStart.IsZero() {
		return models.Event{}, false
	}
	duration := now.Sub(c.lastViewStart).Seconds()
	segmentation := map[string]string{
		"name":    c.lastView,
		"segment": c.deviceMetrics.OS,
	}
	c.lastView = ""
	c.lastViewStart = time.Time{}
	return models.NewEvent(viewEventKey, 1, nil, &duration, segmentation, c.time.Instant()), true
}

// sessionTick is the periodic session update installed on the
// scheduler.
func (c *Client) sessionTick() {
	if err := c.UpdateSession(); err != nil {
		c.logger.Errorf(providers.TypeSession, "Periodic session update failed: %s", err)
	}
}
