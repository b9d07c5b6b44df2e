package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/domain/search"
)

// CloudWatchAPI is the part of the CloudWatch client the reporter needs
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CostReporter pushes per-search metrics to CloudWatch. It is used on Lambda
// where nothing scrapes /metrics.
type CostReporter struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
	now       func() time.Time
}

// NewCostReporter creates a new reporter
func NewCostReporter(namespace string, client CloudWatchAPI, logger *zap.Logger) *CostReporter {
	return &CostReporter{
		namespace: namespace,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordSearch implements ports.SearchMetrics
func (r *CostReporter) RecordSearch(ctx context.Context, rec ports.SearchRecord) {
	if r.client == nil {
		return
	}

	now := aws.Time(r.now())
	dims := []types.Dimension{
		{Name: aws.String("Strategy"), Value: aws.String(rec.Executed.String())},
	}

	r.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("EstimatedCost"),
			Dimensions: dims,
			Value:      aws.Float64(rec.EstimatedCost),
			Unit:       types.StandardUnitNone,
			Timestamp:  now,
		},
		{
			MetricName: aws.String("ContextNodes"),
			Dimensions: dims,
			Value:      aws.Float64(float64(rec.ContextNodes)),
			Unit:       types.StandardUnitCount,
			Timestamp:  now,
		},
		{
			MetricName: aws.String("SearchLatency"),
			Dimensions: dims,
			Value:      aws.Float64(float64(rec.Duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  now,
		},
	})
}

// RecordFallback implements ports.SearchMetrics
func (r *CostReporter) RecordFallback(reason search.Strategy) {
	if r.client == nil {
		return
	}
	r.put(context.Background(), []types.MetricDatum{
		{
			MetricName: aws.String("StrategyFallback"),
			Dimensions: []types.Dimension{
				{Name: aws.String("Reason"), Value: aws.String(reason.String())},
			},
			Value:     aws.Float64(1),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(r.now()),
		},
	})
}

// RecordTruncation implements ports.SearchMetrics
func (r *CostReporter) RecordTruncation(dropped int) {
	if r.client == nil {
		return
	}
	r.put(context.Background(), []types.MetricDatum{
		{
			MetricName: aws.String("TruncatedNodes"),
			Value:      aws.Float64(float64(dropped)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(r.now()),
		},
	})
}

func (r *CostReporter) put(ctx context.Context, data []types.MetricDatum) {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	})
	if err != nil {
		// Metrics never fail the request
		r.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}
