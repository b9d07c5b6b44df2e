package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/domain/search"
	"labsos-backend/domain/tree"
	"labsos-backend/pkg/observability"
)

// ErrTreeNotFound is returned when the tree vanished between the visibility
// check and the context fetch.
var ErrTreeNotFound = errors.New("tree not found")

// FullContextFetcher loads a whole tree.
type FullContextFetcher interface {
	FetchFull(ctx context.Context, ds ports.TreeDataSource, treeID string) (*tree.ContextPayload, error)
}

// SemanticContextFetcher loads the nodes most similar to a query.
type SemanticContextFetcher interface {
	Fetch(ctx context.Context, ds ports.TreeDataSource, treeID, query string, opts search.SearchOptions) (*tree.ContextPayload, error)
}

// SelectionRequest is the input of one strategy decision.
type SelectionRequest struct {
	TreeID     string
	Query      string
	TotalNodes int
}

// Selection is the context chosen for a query and how it was obtained.
// Selected is the strategy picked up front; Executed is the one that
// actually produced Payload and differs from Selected after a fallback.
type Selection struct {
	Payload            *tree.ContextPayload
	Selected           search.Strategy
	Executed           search.Strategy
	Classification     search.Classification
	UsedSemanticSearch bool
	ContextNodes       int
	TruncatedNodes     int
}

// ContextSelector decides between full and semantic context.
type ContextSelector struct {
	classifier search.Classifier
	full       FullContextFetcher
	semantic   SemanticContextFetcher
	tuning     TuningProvider
	metrics    ports.SearchMetrics
	tracer     *observability.Tracer
	logger     *zap.Logger
}

// NewContextSelector creates a new selector
func NewContextSelector(
	classifier search.Classifier,
	full FullContextFetcher,
	semantic SemanticContextFetcher,
	tuning TuningProvider,
	metrics ports.SearchMetrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *ContextSelector {
	return &ContextSelector{
		classifier: classifier,
		full:       full,
		semantic:   semantic,
		tuning:     tuning,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger,
	}
}

// Select picks and runs a strategy, in priority order:
//
//  1. total nodes at or under the small tree threshold: full context
//  2. accuracy critical query: full context whatever the size
//  3. simple query: semantic context, small budget, no dependencies
//  4. anything else: semantic context, larger budget, with dependencies
//
// A semantic attempt that errors falls back to full context as
// full_fallback_error, one that finds nothing as full_fallback_empty.
func (s *ContextSelector) Select(ctx context.Context, ds ports.TreeDataSource, req SelectionRequest) (*Selection, error) {
	tuning := s.tuning.Current()

	classification, err := search.Classify(ctx, s.classifier, req.Query)
	if err != nil {
		s.logger.Warn("Query classifier failed, treating failed judgment as negative",
			zap.String("treeID", req.TreeID),
			zap.Error(err),
		)
	}

	sel := &Selection{Classification: classification}

	switch {
	case req.TotalNodes <= tuning.SmallTreeThreshold:
		sel.Selected = search.StrategyFullSmallTree
	case classification == search.ClassificationAccuracyCritical:
		sel.Selected = search.StrategyFullAccuracyCritical
	case classification == search.ClassificationSimple:
		sel.Selected = search.StrategySemantic
	default:
		sel.Selected = search.StrategySemanticConservative
	}

	s.logger.Info("Context strategy selected",
		zap.String("treeID", req.TreeID),
		zap.String("strategy", sel.Selected.String()),
		zap.String("classification", string(classification)),
		zap.Int("totalNodes", req.TotalNodes),
	)

	if !sel.Selected.IsSemantic() {
		payload, err := s.fetchFull(ctx, ds, req.TreeID)
		if err != nil {
			return nil, err
		}
		sel.Executed = sel.Selected
		return sel.finish(payload), nil
	}

	opts := tuning.AmbiguousQuery
	if sel.Selected == search.StrategySemantic {
		opts = tuning.SimpleQuery
	}

	var payload *tree.ContextPayload
	err = s.tracer.TraceFunction(ctx, "ContextSelector.FetchSemantic", func(ctx context.Context) error {
		var ferr error
		payload, ferr = s.semantic.Fetch(ctx, ds, req.TreeID, req.Query, opts)
		return ferr
	})

	switch {
	case err != nil:
		s.logger.Warn("Semantic search failed, falling back to full context",
			zap.String("treeID", req.TreeID),
			zap.String("strategy", sel.Selected.String()),
			zap.Error(err),
		)
		sel.Executed = search.StrategyFullFallbackError
	case payload.Empty():
		s.logger.Info("Semantic search found no nodes, falling back to full context",
			zap.String("treeID", req.TreeID),
			zap.String("strategy", sel.Selected.String()),
			zap.Float64("threshold", opts.SimilarityThreshold),
		)
		sel.Executed = search.StrategyFullFallbackEmpty
	default:
		sel.Executed = sel.Selected
		sel.UsedSemanticSearch = true
		if before := payload.NodeCount(); before > opts.MaxNodes {
			dropped := payload.Truncate(opts.MaxNodes)
			sel.TruncatedNodes = dropped
			s.metrics.RecordTruncation(dropped)
			s.logger.Warn("Semantic context exceeded node budget, truncated",
				zap.String("treeID", req.TreeID),
				zap.Int("before", before),
				zap.Int("after", payload.NodeCount()),
				zap.Int("maxNodes", opts.MaxNodes),
			)
		}
		return sel.finish(payload), nil
	}

	s.metrics.RecordFallback(sel.Executed)

	payload, err = s.fetchFull(ctx, ds, req.TreeID)
	if err != nil {
		return nil, err
	}
	return sel.finish(payload), nil
}

func (s *ContextSelector) fetchFull(ctx context.Context, ds ports.TreeDataSource, treeID string) (*tree.ContextPayload, error) {
	var payload *tree.ContextPayload
	err := s.tracer.TraceFunction(ctx, "ContextSelector.FetchFull", func(ctx context.Context) error {
		var ferr error
		payload, ferr = s.full.FetchFull(ctx, ds, treeID)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tree context: %w", err)
	}
	if payload == nil {
		return nil, ErrTreeNotFound
	}
	return payload, nil
}

func (sel *Selection) finish(payload *tree.ContextPayload) *Selection {
	sel.Payload = payload
	sel.ContextNodes = payload.NodeCount()
	return sel
}
