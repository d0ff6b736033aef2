package queue

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"countly/internal/providers"
	"countly/internal/queue/interfaces"
)

// FileStore is the default durable store adapter: one compressed JSON
// file per logical collection, overwritten whole on every save. Saves
// go through a tmp-file-and-rename so a crash mid-write never corrupts
// the previous good state.
type FileStore struct {
	dir        string
	compressor interfaces.CompressorInterface
	logger     providers.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileStore(dir string, compressor interfaces.CompressorInterface, logger providers.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{
		dir:        dir,
		compressor: compressor,
		logger:     logger,
		locks:      map[string]*sync.Mutex{},
	}, nil
}

// lockFor serializes saves per collection so late writes cannot land
// under earlier ones.
func (f *FileStore) lockFor(collection string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		f.locks[collection] = l
	}
	return l
}

func (f *FileStore) path(collection string) string {
	return filepath.Join(f.dir, collection+".dat")
}

func (f *FileStore) Save(collection string, payload interface{}) error {
	l := f.lockFor(collection)
	l.Lock()
	defer l.Unlock()

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	fileName := f.path(collection)
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

// Load decodes the named collection into out. A collection that was
// never saved leaves out untouched and returns nil; callers start from
// their zero value.
func (f *FileStore) Load(collection string, out interface{}) error {
	l := f.lockFor(collection)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(f.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressed, err := f.compressor.Decompress(data)
	if err != nil {
		return err
	}

	return json.Unmarshal(decompressed, out)
}

// Delete is best effort; a missing file is not an error.
func (f *FileStore) Delete(collection string) error {
	l := f.lockFor(collection)
	l.Lock()
	defer l.Unlock()

	err := os.Remove(f.path(collection))
	if err != nil && !os.IsNotExist(err) {
		f.logger.Warnf(providers.TypeStorage, "Failed to delete collection %s: %s", collection, err)
		return err
	}
	return nil
}
