package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/genai"

	"labsos-backend/application/commands"
	"labsos-backend/application/commands/bus"
	commandhandlers "labsos-backend/application/commands/handlers"
	"labsos-backend/application/ports"
	"labsos-backend/application/queries"
	querybus "labsos-backend/application/queries/bus"
	queryhandlers "labsos-backend/application/queries/handlers"
	"labsos-backend/application/services"
	"labsos-backend/domain/search"
	"labsos-backend/infrastructure/config"
	"labsos-backend/infrastructure/identity"
	"labsos-backend/infrastructure/llm"
	"labsos-backend/infrastructure/messaging"
	infraobs "labsos-backend/infrastructure/observability"
	"labsos-backend/infrastructure/persistence/memory"
	"labsos-backend/infrastructure/persistence/supabase"
	"labsos-backend/interfaces/http/rest"
	"labsos-backend/pkg/auth"
	"labsos-backend/pkg/observability"
)

const serviceName = "labsos-ai-search"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideGenAIClient creates the Gemini client, or nil when no API key is
// configured.
func ProvideGenAIClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, nil
	}
	return llm.NewGenAIClient(ctx, cfg.GoogleAPIKey)
}

func genAIConfig(cfg *config.Config) llm.GenAIConfig {
	return llm.GenAIConfig{
		APIKey:              cfg.GoogleAPIKey,
		GenerationModel:     cfg.GenerationModel,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Timeout:             cfg.GenerationTimeout,
	}
}

func breakerConfig(cfg *config.Config, name string) llm.BreakerConfig {
	return llm.BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		Failures:    uint32(cfg.BreakerFailures),
	}
}

// ProvideEmbedder creates the query embedder. Without a Gemini client the
// deterministic hashing embedder is used, which only makes sense against a
// fixture embedded the same way.
func ProvideEmbedder(client *genai.Client, cfg *config.Config, logger *zap.Logger) ports.Embedder {
	if client == nil {
		logger.Warn("No GenAI API key, using the offline hashing embedder")
		return llm.HashEmbedder{Dimensions: cfg.EmbeddingDimensions}
	}
	return llm.NewBreakerEmbedder(llm.NewGenAIEmbedder(client, genAIConfig(cfg)), breakerConfig(cfg, "genai-embed"), logger)
}

// ProvideTextGenerator creates the answer model, or nil when answers are
// not configured.
func ProvideTextGenerator(client *genai.Client, cfg *config.Config, logger *zap.Logger) ports.TextGenerator {
	if client == nil {
		if cfg.EchoAnswers {
			return llm.EchoGenerator{}
		}
		logger.Warn("No GenAI API key, answer generation is disabled")
		return nil
	}
	return llm.NewBreakerGenerator(llm.NewGenAIGenerator(client, genAIConfig(cfg)), breakerConfig(cfg, "genai-generate"), logger)
}

// ProvideDataSourceFactory selects the fixture store or Supabase
func ProvideDataSourceFactory(ctx context.Context, cfg *config.Config, embedder ports.Embedder, logger *zap.Logger) (ports.DataSourceFactory, error) {
	if cfg.FixtureFile != "" {
		store, err := memory.LoadFile(ctx, cfg.FixtureFile, embedder)
		if err != nil {
			return nil, err
		}
		logger.Info("Serving trees from fixture", zap.String("file", cfg.FixtureFile))
		return memory.Factory{Store: store}, nil
	}
	if cfg.UseSupabase() {
		return supabase.NewFactory(supabase.FactoryConfig{
			URL:            cfg.SupabaseURL,
			AnonKey:        cfg.SupabaseAnonKey,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
		})
	}
	return nil, errors.New("no data source configured: set FIXTURE_FILE or SUPABASE_URL")
}

// ProvideAuthenticator verifies tokens with the JWT secret when set and
// falls back to the Supabase auth server.
func ProvideAuthenticator(cfg *config.Config, factory ports.DataSourceFactory, logger *zap.Logger) (ports.Authenticator, error) {
	var validator *auth.JWTValidator
	if cfg.JWTSecret != "" {
		v, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
		if err != nil {
			return nil, err
		}
		validator = v
	}

	var lookup identity.UserLookup
	if validator == nil && cfg.UseSupabase() {
		l, err := supabase.NewUserLookup(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return nil, err
		}
		lookup = l
	}

	if validator == nil && lookup == nil {
		logger.Warn("No token verifier configured, private trees are unreachable")
	}

	return identity.NewAuthenticator(validator, lookup, factory, logger), nil
}

// ProvideTuningStore loads the tuning file, or the defaults
func ProvideTuningStore(cfg *config.Config, logger *zap.Logger) (*services.TuningStore, error) {
	tuning := search.DefaultTuning()
	if cfg.TuningFile != "" {
		t, err := config.LoadTuning(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		tuning = t
	}
	return services.NewTuningStore(tuning, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *infraobs.Collector {
	return infraobs.NewCollector("labsos")
}

// ProvideSearchMetrics fans search measurements out to Prometheus and, on
// Lambda where nothing scrapes /metrics, to CloudWatch.
func ProvideSearchMetrics(cfg *config.Config, collector *infraobs.Collector, awsCfg aws.Config, logger *zap.Logger) ports.SearchMetrics {
	var sinks infraobs.MultiMetrics
	if cfg.EnableMetrics {
		sinks = append(sinks, collector)
	}
	if cfg.IsLambda {
		sinks = append(sinks, infraobs.NewCostReporter(cfg.MetricsNamespace, awscloudwatch.NewFromConfig(awsCfg), logger))
	}
	if len(sinks) == 0 {
		return infraobs.NopMetrics{}
	}
	return sinks
}

// ProvideContextSelector creates the strategy selector
func ProvideContextSelector(
	embedder ports.Embedder,
	tuning *services.TuningStore,
	metrics ports.SearchMetrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *services.ContextSelector {
	return services.NewContextSelector(
		search.NewRuleClassifier(),
		services.NewTreeContextFetcher(logger),
		services.NewSemanticFetcher(embedder, logger),
		tuning,
		metrics,
		tracer,
		logger,
	)
}

// ProvideAnswerGenerator creates the answer generator
func ProvideAnswerGenerator(generator ports.TextGenerator, cfg *config.Config, logger *zap.Logger) *services.AnswerGenerator {
	return services.NewAnswerGenerator(generator, services.GeneratorSettings{
		Temperature:     float32(cfg.Temperature),
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
		MaxHistory:      queries.MaxHistoryMessages,
	}, logger)
}

// ProvidePermissionService creates the permission checker
func ProvidePermissionService(logger *zap.Logger) *services.PermissionService {
	return services.NewPermissionService(logger)
}

// ProvideRateLimitPolicy limits ai-search per user and per IP. A
// configured table makes the limit hold across Lambda instances.
func ProvideRateLimitPolicy(cfg *config.Config, awsCfg aws.Config) *queryhandlers.RateLimitPolicy {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	var limiter auth.RateLimiter
	if cfg.RateLimitTable != "" {
		limiter = auth.NewDistributedRateLimiter(
			awsdynamodb.NewFromConfig(awsCfg),
			cfg.RateLimitTable,
			cfg.RateLimitPerMinute,
			time.Minute,
			"AISEARCH",
		)
	} else {
		limiter = auth.NewSlidingWindowLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	return queryhandlers.NewRateLimitPolicy(limiter, cfg.RateLimitPerMinute, time.Minute)
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return messaging.NewLoggingPublisher(logger)
	}
	return messaging.NewEventBridgePublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, "", logger)
}

// ProvideAISearchHandler creates the ai-search query handler
func ProvideAISearchHandler(
	factory ports.DataSourceFactory,
	authenticator ports.Authenticator,
	permissions *services.PermissionService,
	selector *services.ContextSelector,
	answers *services.AnswerGenerator,
	tuning *services.TuningStore,
	limits *queryhandlers.RateLimitPolicy,
	publisher ports.EventPublisher,
	metrics ports.SearchMetrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *queryhandlers.AISearchHandler {
	return queryhandlers.NewAISearchHandler(
		factory,
		authenticator,
		permissions,
		selector,
		answers,
		tuning,
		limits,
		publisher,
		metrics,
		tracer,
		logger,
	)
}

// ProvideUpdateNodeReferencesHandler creates the references command handler
func ProvideUpdateNodeReferencesHandler(
	factory ports.DataSourceFactory,
	authenticator ports.Authenticator,
	permissions *services.PermissionService,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *commandhandlers.UpdateNodeReferencesHandler {
	return commandhandlers.NewUpdateNodeReferencesHandler(factory, authenticator, permissions, publisher, logger)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(aiSearch *queryhandlers.AISearchHandler, logger *zap.Logger) (*querybus.QueryBus, error) {
	qb := querybus.NewQueryBus(querybus.LoggingMiddleware(logger))
	if err := qb.Register(queries.AISearchQuery{}, aiSearch.AsBusHandler()); err != nil {
		return nil, fmt.Errorf("failed to register ai-search handler: %w", err)
	}
	return qb, nil
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(refs *commandhandlers.UpdateNodeReferencesHandler, logger *zap.Logger) (*bus.CommandBus, error) {
	cb := bus.NewCommandBus(bus.LoggingMiddleware(logger))
	if err := cb.Register(commands.UpdateNodeReferencesCommand{}, refs.AsBusHandler()); err != nil {
		return nil, fmt.Errorf("failed to register references handler: %w", err)
	}
	return cb, nil
}

// ProvideRouter creates the HTTP handler
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *infraobs.Collector,
	factory ports.DataSourceFactory,
	tracer *observability.Tracer,
	logger *zap.Logger,
) http.Handler {
	ready := func(ctx context.Context) error {
		if factory.Service() == nil {
			return errors.New("data source unavailable")
		}
		return nil
	}

	return rest.NewRouter(rest.RouterConfig{
		ServiceName:    tracer.ServiceName(),
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		EnableMetrics:  cfg.EnableMetrics,
		EnableTracing:  cfg.EnableTracing,
		Debug:          cfg.IsDevelopment(),
		RequestTimeout: cfg.GenerationTimeout + 15*time.Second,
	}, commandBus, queryBus, collector, ready, logger).Setup()
}
