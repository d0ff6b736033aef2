package countly

import (
	"fmt"
	"sort"
	"strconv"

	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/services"
)

// EventOptions carries the optional parts of an event. Count defaults
// to 1. Sum and Duration are pointers because the collector
// distinguishes an absent value from zero.
type EventOptions struct {
	Count        int
	Sum          *float64
	Duration     *float64
	Segmentation map[string]string
}

// RecordEvent enqueues a simple counted event. The event is uploaded
// by the next scheduled or explicit flush, not immediately.
func (c *Client) RecordEvent(key string) error {
	return c.RecordEventWith(key, EventOptions{})
}

// RecordEventWith enqueues an event with the full option set.
func (c *Client) RecordEventWith(key string, opts EventOptions) error {
	return c.recordEvent(key, opts, services.FeatureEvents)
}

func (c *Client) recordEvent(key string, opts EventOptions, feature services.Feature) error {
	if c.inactive() {
		return nil
	}
	if key == "" {
		return fmt.Errorf("event key cannot be empty")
	}
	if !c.consent.IsGiven(feature) {
		c.logger.Debugf(providers.TypeApp, "Event %q skipped, consent not given", key)
		return nil
	}
	if opts.Count <= 0 {
		opts.Count = 1
	}

	key = c.trimKey(key)
	segmentation := c.trimSegmentation(opts.Segmentation)

	c.store.AppendEvent(models.NewEvent(key, opts.Count, opts.Sum, opts.Duration, segmentation, c.time.Instant()))
	return nil
}

// StartEvent marks the start of a timed event. The start instant lives
// in the in-memory cache; a start that is never ended expires with the
// cache TTL instead of leaking.
func (c *Client) StartEvent(key string) error {
	if c.inactive() {
		return nil
	}
	if key == "" {
		return fmt.Errorf("event key cannot be empty")
	}
	if !c.consent.IsGiven(services.FeatureEvents) {
		return nil
	}

	cacheKey := timedEventKey(key)
	if _, ok := c.cache.Get(cacheKey); ok {
		return fmt.Errorf("timed event %q already started", key)
	}
	c.cache.Set(cacheKey, strconv.AppendInt(nil, c.time.UniqueUnixMillis(), 10))
	return nil
}

// EndEvent closes a timed event started with StartEvent and enqueues
// it with the measured duration in seconds. Any duration already set
// in opts is overwritten.
func (c *Client) EndEvent(key string, opts EventOptions) error {
	if c.inactive() {
		return nil
	}
	if key == "" {
		return fmt.Errorf("event key cannot be empty")
	}

	cacheKey := timedEventKey(key)
	raw, ok := c.cache.Get(cacheKey)
	if !ok {
		return fmt.Errorf("timed event %q was not started", key)
	}
	c.cache.Del(cacheKey)

	startMillis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt timed event entry for %q: %w", key, err)
	}
	duration := float64(c.time.UniqueUnixMillis()-startMillis) / 1000.0
	if duration < 0 {
		duration = 0
	}
	opts.Duration = &duration

	return c.recordEvent(key, opts, services.FeatureEvents)
}

func timedEventKey(key string) string {
	return "timed:" + key
}

// trimKey enforces the configured key length limit.
func (c *Client) trimKey(key string) string {
	max := c.conf.Limits.MaxKeyLength
	if len(key) <= max {
		return key
	}
	c.logger.Warnf(providers.TypeApp, "Key %q exceeds %d characters, truncated", key, max)
	return key[:max]
}

func (c *Client) trimValue(label, value string) string {
	max := c.conf.Limits.MaxValueSize
	if len(value) <= max {
		return value
	}
	c.logger.Warnf(providers.TypeApp, "Value for %q exceeds %d characters, truncated", label, max)
	return value[:max]
}

// trimSegmentation applies the key, value and entry-count limits. When
// too many entries are present the keep set is chosen by sorted key
// order so the result is deterministic.
func (c *Client) trimSegmentation(segmentation map[string]string) map[string]string {
	if len(segmentation) == 0 {
		return nil
	}

	keys := make([]string, 0, len(segmentation))
	for k := range segmentation {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	max := c.conf.Limits.MaxSegmentationValues
	if len(keys) > max {
		c.logger.Warnf(providers.TypeApp, "Segmentation has %d entries, keeping first %d", len(keys), max)
		keys = keys[:max]
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[c.trimKey(k)] = c.trimValue(k, segmentation[k])
	}
	return out
}
