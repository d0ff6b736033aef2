//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"countly/internal/api"
	"countly/internal/models"
	"countly/internal/providers"
	"countly/internal/queue"
	"countly/internal/queue/interfaces"
	"countly/internal/services"
	"countly/internal/structures"
)

func provideStorageDir(conf *structures.Config) string {
	return conf.Persistence.Dir
}

func provideRequestBuilder(conf *structures.Config, ts *models.TimeSource) *api.RequestBuilder {
	return api.NewRequestBuilder(conf.Connection.AppKey, ts)
}

func provideConsentService(conf *structures.Config) *services.ConsentService {
	given := make(map[services.Feature]bool, len(conf.Consent.Given))
	for f, v := range conf.Consent.Given {
		given[services.Feature(f)] = v
	}
	return services.NewConsentService(conf.Consent.Required, given)
}

func provideTransport() interfaces.Transport {
	return api.NewHTTPTransport(0)
}

// InitScheduler assembles the upload pipeline for a file-based config.
func InitScheduler(configPath string) (*queue.Scheduler, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,

		models.NewQueueStore,
		models.NewTimeSource,

		queue.NewZstdCompressor,
		queue.NewFileStore,
		queue.NewScheduler,

		services.NewDeviceService,

		provideStorageDir,
		provideRequestBuilder,
		provideConsentService,
		provideTransport,

		wire.Bind(new(interfaces.Storage), new(*queue.FileStore)),
		wire.Bind(new(providers.QueueSizer), new(*models.QueueStore)),
	)

	return nil, nil
}
