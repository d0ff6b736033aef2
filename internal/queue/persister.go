package queue

import (
	"sync"
	"time"

	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/queue/interfaces"
)

// Persister saves touched collections to durable storage off the
// caller's goroutine. Notifications carry only the collection name; the
// payload is snapshotted when the save actually runs, so bursts of
// appends coalesce into one write of the latest state.
type Persister struct {
	store   *models.QueueStore
	storage interfaces.Storage
	logger  providers.Logger
	metrics providers.MetricsProviderInterface

	ch   chan string
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewPersister(store *models.QueueStore, storage interfaces.Storage, logger providers.Logger, metrics providers.MetricsProviderInterface) *Persister {
	p := &Persister{
		store:   store,
		storage: storage,
		logger:  logger,
		metrics: metrics,
		ch:      make(chan string, 64),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Notify never blocks the recording caller. A full channel drop is
// fine: a later save of the same collection writes the newest state
// anyway, and the pending notifications cover the interim.
func (p *Persister) Notify(collection string) {
	select {
	case p.ch <- collection:
	case <-p.done:
	default:
	}
}

func (p *Persister) run() {
	defer p.wg.Done()
	for {
		select {
		case collection := <-p.ch:
			p.save(collection)
		case <-p.done:
			return
		}
	}
}

func (p *Persister) save(collection string) {
	payload, ok := p.store.Payload(collection)
	if !ok {
		return
	}

	started := time.Now()
	if err := p.storage.Save(collection, payload); err != nil {
		// in-memory state stays authoritative; the next save attempt
		// will carry the latest state
		p.logger.Errorf(providers.TypeStorage, "Failed to persist collection %s: %s", collection, err)
		return
	}
	p.metrics.ObservePersistenceDuration(time.Since(started))
}

// Flush synchronously persists every queue collection. Used on
// shutdown after the channel is drained.
func (p *Persister) Flush() {
	for _, c := range []string{
		models.CollectionEvents,
		models.CollectionSessions,
		models.CollectionExceptions,
		models.CollectionRequests,
		models.CollectionProfile,
	} {
		p.save(c)
	}
}

// Stop halts the background loop. Notifications still buffered are
// dropped; callers that need durability run Flush afterwards. Safe to
// call more than once.
func (p *Persister) Stop() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
