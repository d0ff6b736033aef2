package countly

import (
	"fmt"
	"strings"
	"time"

	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/services"
)

// AddBreadcrumb appends a line to the crash breadcrumb trail. The
// trail is bounded; old lines fall off the front. It is attached to
// every exception recorded afterwards.
func (c *Client) AddBreadcrumb(log string) {
	if c.inactive() || log == "" {
		return
	}

	c.mu.Lock()
	c.breadcrumb += log + "\n"
	if max := c.conf.Limits.MaxBreadcrumbLength; len(c.breadcrumb) > max {
		trimmed := c.breadcrumb[len(c.breadcrumb)-max:]
		// cut at the next newline so the oldest surviving line is whole
		if i := strings.IndexByte(trimmed, '\n'); i >= 0 && i < len(trimmed)-1 {
			trimmed = trimmed[i+1:]
		}
		c.breadcrumb = trimmed
	}
	c.mu.Unlock()
}

// RecordException enqueues a handled (non-fatal) exception report.
func (c *Client) RecordException(name, stackTrace string) error {
	return c.RecordExceptionWith(name, stackTrace, nil, true)
}

// RecordExceptionWith enqueues an exception report with custom
// key/value details. nonfatal=false marks a crash the app survived
// anyway, e.g. a panic recovered at the top level.
func (c *Client) RecordExceptionWith(name, stackTrace string, custom map[string]string, nonfatal bool) error {
	if c.inactive() {
		return nil
	}
	record, err := c.buildException(name, stackTrace, custom, nonfatal)
	if err != nil {
		return err
	}
	if !c.consent.IsGiven(services.FeatureCrashes) {
		c.logger.Debugf(providers.TypeApp, "Exception %q skipped, consent not given", name)
		return nil
	}

	c.store.AppendException(record)
	return nil
}

// RecordUnhandledException writes a fatal crash report straight to
// durable storage, bypassing the in-memory queue: the process is
// assumed to be dying and the background persister may never run
// again. The report is moved into the exception queue on the next
// start.
func (c *Client) RecordUnhandledException(name, stackTrace string, custom map[string]string) error {
	if c.inactive() {
		return nil
	}
	record, err := c.buildException(name, stackTrace, custom, false)
	if err != nil {
		return err
	}
	if !c.consent.IsGiven(services.FeatureCrashes) {
		return nil
	}

	var pending []models.ExceptionRecord
	if err := c.storage.Load(models.CollectionUnhandled, &pending); err != nil {
		c.logger.Warnf(providers.TypeStorage, "Failed to load pending crash reports: %s", err)
		pending = nil
	}
	pending = append(pending, record)
	if err := c.storage.Save(models.CollectionUnhandled, pending); err != nil {
		c.logger.Errorf(providers.TypeStorage, "Failed to save crash report: %s", err)
	}
	return nil
}

func (c *Client) buildException(name, stackTrace string, custom map[string]string, nonfatal bool) (models.ExceptionRecord, error) {
	if name == "" {
		return models.ExceptionRecord{}, fmt.Errorf("exception name cannot be empty")
	}

	c.mu.Lock()
	breadcrumb := c.breadcrumb
	metrics := c.deviceMetrics
	run := int64(time.Since(c.startedAt).Seconds())
	c.mu.Unlock()

	return models.ExceptionRecord{
		OS:         metrics.OS,
		OSVersion:  metrics.OSVersion,
		Device:     metrics.Device,
		Resolution: metrics.Resolution,
		AppVersion: metrics.AppVersion,
		Name:       c.trimKey(name),
		Error:      c.trimStackTrace(stackTrace),
		Nonfatal:   nonfatal,
		Logs:       breadcrumb,
		Run:        run,
		Custom:     c.trimSegmentation(custom),
	}, nil
}

// trimStackTrace bounds both the number of stack lines and the length
// of each line.
func (c *Client) trimStackTrace(stackTrace string) string {
	if stackTrace == "" {
		return ""
	}

	lines := strings.Split(stackTrace, "\n")
	if max := c.conf.Limits.MaxStackTraceLines; len(lines) > max {
		lines = lines[:max]
	}
	maxLen := c.conf.Limits.MaxStackTraceLineLength
	for i, line := range lines {
		if len(line) > maxLen {
			lines[i] = line[:maxLen]
		}
	}
	return strings.Join(lines, "\n")
}
