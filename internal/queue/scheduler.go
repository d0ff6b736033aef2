package queue

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"

	"countly/internal/api"
	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/queue/interfaces"
	"countly/internal/services"
	"countly/internal/structures"
)

// Scheduler drains the queues on a fixed cadence and on demand. One
// upload cycle runs at a time; a tick that finds a cycle in flight is
// skipped, not queued, so a slow network cannot stack requests.
//
// Queue priority inside a cycle: session lifecycle first (session
// boundaries must not wait behind an event backlog), then events as a
// single batched request, then exceptions, then the profile slot, then
// stored requests. A failure anywhere stops the cycle; everything
// still queued is retried on the next tick, with no backoff.
type Scheduler struct {
	conf      *structures.Config
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface
	store     *models.QueueStore
	transport interfaces.Transport
	builder   *api.RequestBuilder
	device    *services.DeviceService
	consent   *services.ConsentService

	cron       *cron.Cron
	inFlight   atomic.Bool
	sessionJob func()
}

func NewScheduler(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface,
	store *models.QueueStore, transport interfaces.Transport, builder *api.RequestBuilder,
	device *services.DeviceService, consent *services.ConsentService) *Scheduler {
	return &Scheduler{
		conf:      conf,
		logger:    logger,
		metrics:   metrics,
		store:     store,
		transport: transport,
		builder:   builder,
		device:    device,
		consent:   consent,
	}
}

// SetSessionJob installs the periodic session-duration update. Must be
// called before Init.
func (s *Scheduler) SetSessionJob(fn func()) {
	s.sessionJob = fn
}

func (s *Scheduler) Init() {
	s.cron = cron.New()

	s.cron.AddFunc("@every "+s.conf.Upload.Interval.String(), func() {
		s.FlushAll()
	})

	if s.sessionJob != nil {
		s.cron.AddFunc("@every "+s.conf.Upload.SessionInterval.String(), s.sessionJob)
	}

	s.cron.Start()
}

// Stop prevents any further cycles from starting. An in-flight cycle
// is allowed to complete.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// FlushAll runs one upload cycle. Returns true when every queue was
// drained completely.
func (s *Scheduler) FlushAll() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debugf(providers.TypeUpload, "Upload already in progress, skipping cycle")
		return false
	}
	defer s.inFlight.Store(false)

	ok := s.flushSessions()
	if ok {
		ok = s.flushEvents()
	}
	if ok {
		ok = s.flushExceptions()
	}
	if ok {
		ok = s.flushProfile()
	}
	if ok {
		ok = s.flushRequests()
	}
	return ok
}

// send performs one exchange. A nil return means transient failure.
func (s *Scheduler) send(queueName, content string) *api.Response {
	full := s.conf.Connection.ServerURL + content
	url, body := api.SplitOverlongURL(full, s.conf.Upload.MaxURLLength)

	started := time.Now()
	resp, err := s.transport.Send(url, body)
	s.metrics.ObserveUploadDuration(queueName, time.Since(started))
	if err != nil {
		s.logger.Warnf(providers.TypeUpload, "%s upload failed: %s", queueName, err)
		s.metrics.IncUploadsTotal(queueName, 0)
		return nil
	}
	s.metrics.IncUploadsTotal(queueName, resp.Code)
	return resp
}

// handleOutcome classifies a response. Rejected (400/404) requests are
// logged loudly but stay queued: dropping them silently would lose
// data the app believes it recorded.
func (s *Scheduler) handleOutcome(queueName string, resp *api.Response) bool {
	if resp.IsSuccess() {
		return true
	}
	if resp.IsBadRequest() {
		s.logger.Warnf(providers.TypeUpload, "%s request rejected by collector (status %d), left queued", queueName, resp.Code)
	}
	return false
}

// flushSessions sends session records one at a time in insertion
// order. The request content was frozen at enqueue time, so records
// created before a device-id change keep the identity they were
// recorded under. A dirty profile piggybacks on the session request.
func (s *Scheduler) flushSessions() bool {
	for {
		snapshot := s.store.SnapshotSessions()
		if len(snapshot) == 0 {
			return true
		}

		content := snapshot[0].Content
		profile, dirty := s.store.Profile()
		if dirty && !profile.IsEmpty() {
			param, err := api.UserDetailsParam(profile)
			if err != nil {
				s.logger.Errorf(providers.TypeUpload, "Failed to encode user profile: %s", err)
				dirty = false
			} else {
				content += param
			}
		}

		resp := s.send(models.CollectionSessions, content)
		if resp == nil || !s.handleOutcome(models.CollectionSessions, resp) {
			return false
		}

		if dirty {
			s.store.MarkProfileClean()
		}
		s.store.RemoveSessions(1)
	}
}

// flushEvents uploads the whole current snapshot as one batched
// request per cycle iteration, bounded by the configured batch size.
func (s *Scheduler) flushEvents() bool {
	for {
		snapshot := s.store.SnapshotEvents()
		if len(snapshot) == 0 {
			return true
		}

		batch := snapshot
		if len(batch) > s.conf.Upload.EventBatchSize {
			batch = batch[:s.conf.Upload.EventBatchSize]
		}

		content, err := s.builder.Events(s.device.DeviceID(), batch)
		if err != nil {
			s.logger.Errorf(providers.TypeUpload, "Failed to build events request: %s", err)
			return false
		}

		resp := s.send(models.CollectionEvents, content)
		if resp == nil || !s.handleOutcome(models.CollectionEvents, resp) {
			return false
		}

		s.store.RemoveEvents(len(batch))
	}
}

func (s *Scheduler) flushExceptions() bool {
	for {
		snapshot := s.store.SnapshotExceptions()
		if len(snapshot) == 0 {
			return true
		}

		content, err := s.builder.Crash(s.device.DeviceID(), snapshot[0])
		if err != nil {
			s.logger.Errorf(providers.TypeUpload, "Failed to build crash request: %s", err)
			return false
		}

		resp := s.send(models.CollectionExceptions, content)
		if resp == nil || !s.handleOutcome(models.CollectionExceptions, resp) {
			return false
		}

		s.store.RemoveExceptions(1)
	}
}

func (s *Scheduler) flushProfile() bool {
	profile, dirty := s.store.Profile()
	if !dirty {
		return true
	}
	if !s.consent.IsGiven(services.FeatureUsers) {
		return true
	}

	content, err := s.builder.UserDetails(s.device.DeviceID(), profile)
	if err != nil {
		s.logger.Errorf(providers.TypeUpload, "Failed to build user details request: %s", err)
		return false
	}

	resp := s.send(models.CollectionProfile, content)
	if resp == nil || !s.handleOutcome(models.CollectionProfile, resp) {
		return false
	}

	s.store.MarkProfileClean()
	return true
}

func (s *Scheduler) flushRequests() bool {
	for {
		snapshot := s.store.SnapshotRequests()
		if len(snapshot) == 0 {
			return true
		}

		resp := s.send(models.CollectionRequests, snapshot[0].Request)
		if resp == nil || !s.handleOutcome(models.CollectionRequests, resp) {
			return false
		}

		s.store.RemoveRequests(1)
	}
}
