package interfaces

import "countly/internal/api"

// Storage is the durable store adapter: named logical collections with
// whole-payload overwrite semantics. Load of a missing collection must
// leave out untouched and return nil. Delete is best effort.
type Storage interface {
	Save(collection string, payload interface{}) error
	Load(collection string, out interface{}) error
	Delete(collection string) error
}

// Transport performs one network exchange. No internal retries; the
// scheduler owns all retry policy.
type Transport interface {
	Send(url string, body []byte) (*api.Response, error)
}

type CompressorInterface interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
}

type SchedulerInterface interface {
	Init()
	Stop()
	FlushAll() bool
}
