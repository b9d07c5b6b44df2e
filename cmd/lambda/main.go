// Command lambda serves the ai-search REST API behind API Gateway HTTP APIs.
package main

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"labsos-backend/infrastructure/config"
	"labsos-backend/infrastructure/di"
)

// app lives for the whole execution environment. Containers are reused
// across invocations, so everything expensive is built once.
type app struct {
	proxy   *chiadapter.ChiLambdaV2
	logger  *zap.Logger
	invoked atomic.Bool
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.IsLambda = true

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mux, ok := container.Router.(*chi.Mux)
	if !ok {
		return nil, errors.New("router is not a *chi.Mux")
	}
	return &app{proxy: chiadapter.NewV2(mux), logger: container.Logger}, nil
}

func (a *app) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if a.invoked.CompareAndSwap(false, true) {
		a.logger.Info("First invocation after cold start", zap.String("requestID", req.RequestContext.RequestID))
	}
	defer func() { _ = a.logger.Sync() }()

	resp, err := a.proxy.ProxyWithContextV2(ctx, req)
	if err != nil {
		a.logger.Error("Lambda proxy failed",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.Error(err),
		)
	}
	return resp, err
}

func main() {
	started := time.Now()
	a, err := newApp(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	a.logger.Info("Lambda cold start completed", zap.Duration("duration", time.Since(started)))

	lambda.Start(a.handle)
}
