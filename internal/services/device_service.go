package services

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/queue/interfaces"
	"countly/internal/structures"
)

// DeviceService owns the active device identity. The id is persisted
// separately from the queues; identity durability is best effort: a
// failed persist keeps the in-memory change, accepting that a crash
// before the next successful save may revert the id on restart.
type DeviceService struct {
	conf    *structures.Config
	storage interfaces.Storage
	logger  providers.Logger

	mu      sync.Mutex
	current *models.DeviceId
}

func NewDeviceService(conf *structures.Config, storage interfaces.Storage, logger providers.Logger) *DeviceService {
	return &DeviceService{
		conf:    conf,
		storage: storage,
		logger:  logger,
	}
}

// DeviceID returns the active id, loading it from storage or
// generating a fresh one on first use. A generated id is persisted
// before it is handed out.
func (d *DeviceService) DeviceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceIDLocked()
}

// Current returns the id together with its generation method.
func (d *DeviceService) Current() models.DeviceId {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deviceIDLocked()
	return *d.current
}

func (d *DeviceService) deviceIDLocked() string {
	if d.current != nil {
		return d.current.Id
	}

	var stored models.DeviceId
	if err := d.storage.Load(models.CollectionDevice, &stored); err != nil {
		d.logger.Warnf(providers.TypeStorage, "Failed to load device id: %s", err)
	}
	if stored.Id != "" {
		d.current = &stored
		return d.current.Id
	}

	d.current = d.generate()
	d.persistLocked()
	return d.current.Id
}

func (d *DeviceService) generate() *models.DeviceId {
	method := models.ParseIdMethod(d.conf.Device.IdMethod)
	switch method {
	case models.IdMethodDeveloperSupplied:
		return &models.DeviceId{Id: d.conf.Device.DeveloperId, Method: method}
	case models.IdMethodGeneratedFromHardware:
		if d.conf.Device.HardwareId != "" {
			return &models.DeviceId{Id: d.conf.Device.HardwareId, Method: method}
		}
		// no hardware id supplied by the platform layer, fall back to GUID
		return &models.DeviceId{Id: newGUID(), Method: models.IdMethodGeneratedGUID}
	case models.IdMethodTemporary:
		return &models.DeviceId{Id: "CLYTemporaryDeviceID", Method: method}
	default:
		return &models.DeviceId{Id: newGUID(), Method: models.IdMethodGeneratedGUID}
	}
}

func newGUID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// SetID replaces the active identity. The in-memory change wins even
// when persistence fails.
func (d *DeviceService) SetID(id string, method models.IdMethod) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = &models.DeviceId{Id: id, Method: method}
	d.persistLocked()
}

// Reset drops the cached identity and its durable copy; the next
// DeviceID call generates a new one. Used by Halt.
func (d *DeviceService) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = nil
	_ = d.storage.Delete(models.CollectionDevice)
}

func (d *DeviceService) persistLocked() {
	if err := d.storage.Save(models.CollectionDevice, d.current); err != nil {
		d.logger.Warnf(providers.TypeStorage, "Failed to persist device id: %s", err)
	}
}
