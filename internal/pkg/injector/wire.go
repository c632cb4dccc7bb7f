//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"

	"github.com/lk2023060901/padel-media-backend/internal/cache"
	"github.com/lk2023060901/padel-media-backend/internal/conf"
	"github.com/lk2023060901/padel-media-backend/internal/media/biz"
	mediaservice "github.com/lk2023060901/padel-media-backend/internal/media/service"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/server"
)

// ProviderSet is the Wire provider set for all dependencies
var ProviderSet = wire.NewSet(
	// Data layer
	dataProviderSet,

	// Repositories and adapters
	repositoryProviderSet,

	// Use cases
	useCaseProviderSet,

	// HTTP services
	httpServiceProviderSet,

	// Servers
	serverProviderSet,
)

// Data layer providers
var dataProviderSet = wire.NewSet(
	provideData,
	provideRedisClient,
	provideHealthChecker,
	provideSSEHub,
	provideJWTManager,
	provideVideoClient,
)

// Repository providers
var repositoryProviderSet = wire.NewSet(
	provideMediaRepo,
	provideAttachmentRepo,
	provideLocalSink,
	provideVideoProvider,
	provideAuditRecorder,
	provideFolderCache,
	provideInvalidator,
	provideLocker,
	wire.Bind(new(biz.Invalidator), new(*cache.Invalidator)),
)

// Use case providers
var useCaseProviderSet = wire.NewSet(
	biz.NewTransferRegistry,
	provideReconciler,
	provideRefresher,
	wire.Bind(new(biz.Kicker), new(*biz.Refresher)),
	biz.NewMediaUseCase,
	provideUploadUseCase,
	biz.NewFolderUseCase,
)

// HTTP service providers
var httpServiceProviderSet = wire.NewSet(
	mediaservice.NewMediaService,
	mediaservice.NewWebhookService,
)

// Server providers
var serverProviderSet = wire.NewSet(
	server.NewHTTPServer,
)

// InitializeApp initializes the application with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet, newApp)
	return nil, nil, nil
}
