//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"labsos-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideGenAIClient,
	ProvideEmbedder,
	ProvideTextGenerator,
	ProvideDataSourceFactory,
	ProvideAuthenticator,
	ProvideTuningStore,
	ProvideTracer,
	ProvideCollector,
	ProvideSearchMetrics,
	ProvideContextSelector,
	ProvideAnswerGenerator,
	ProvidePermissionService,
	ProvideRateLimitPolicy,
	ProvideEventPublisher,
	ProvideAISearchHandler,
	ProvideUpdateNodeReferencesHandler,
	ProvideQueryBus,
	ProvideCommandBus,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
