package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/application/queries"
	"labsos-backend/application/queries/bus"
	"labsos-backend/application/services"
	"labsos-backend/domain/events"
	"labsos-backend/domain/tree"
	"labsos-backend/pkg/auth"
	apperrors "labsos-backend/pkg/errors"
	"labsos-backend/pkg/observability"
)

const answerNotConfigured = "Answer generation is not configured"

// RateLimitPolicy limits ai-search calls per user, or per client IP for
// anonymous readers of public trees.
type RateLimitPolicy struct {
	Users  auth.RateLimiter
	IPs    auth.RateLimiter
	Limit  int
	Window time.Duration
}

// NewRateLimitPolicy keys one limiter by user ID and client IP.
func NewRateLimitPolicy(limiter auth.RateLimiter, limit int, window time.Duration) *RateLimitPolicy {
	return &RateLimitPolicy{
		Users:  auth.NewUserRateLimiter(limiter),
		IPs:    auth.NewIPRateLimiter(limiter),
		Limit:  limit,
		Window: window,
	}
}

// ContextSelector picks the context for a query.
type ContextSelector interface {
	Select(ctx context.Context, ds ports.TreeDataSource, req services.SelectionRequest) (*services.Selection, error)
}

// AISearchHandler answers a question about a tree:
//
//	resolve tree and project, check visibility, authenticate and authorize
//	private trees, count nodes, select context, generate, assemble.
//
// Not found, auth and validation failures end the request before context
// selection. Generation failures degrade to a placeholder answer.
type AISearchHandler struct {
	factory       ports.DataSourceFactory
	authenticator ports.Authenticator
	permissions   ports.PermissionChecker
	selector      ContextSelector
	answers       *services.AnswerGenerator
	tuning        services.TuningProvider
	limits        *RateLimitPolicy
	publisher     ports.EventPublisher
	metrics       ports.SearchMetrics
	tracer        *observability.Tracer
	logger        *zap.Logger
	now           func() time.Time
}

// NewAISearchHandler creates a new handler. limits may be nil.
func NewAISearchHandler(
	factory ports.DataSourceFactory,
	authenticator ports.Authenticator,
	permissions ports.PermissionChecker,
	selector ContextSelector,
	answers *services.AnswerGenerator,
	tuning services.TuningProvider,
	limits *RateLimitPolicy,
	publisher ports.EventPublisher,
	metrics ports.SearchMetrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *AISearchHandler {
	return &AISearchHandler{
		factory:       factory,
		authenticator: authenticator,
		permissions:   permissions,
		selector:      selector,
		answers:       answers,
		tuning:        tuning,
		limits:        limits,
		publisher:     publisher,
		metrics:       metrics,
		tracer:        tracer,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle executes the ai-search query
func (h *AISearchHandler) Handle(ctx context.Context, q queries.AISearchQuery) (*queries.AISearchResult, error) {
	start := h.now()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(q.TreeID); err != nil {
		return nil, apperrors.NewNotFoundError("Tree")
	}

	svc := h.factory.Service()

	t, err := svc.GetTree(ctx, q.TreeID)
	if err != nil {
		return nil, notFoundOr(err, "Tree", "get tree")
	}
	project, err := svc.GetProject(ctx, t.ProjectID)
	if err != nil {
		return nil, notFoundOr(err, "Project", "get project")
	}

	ds, userID, err := h.authorize(ctx, q, t, project)
	if err != nil {
		return nil, err
	}

	if err := h.rateLimit(ctx, userID, q.ClientIP); err != nil {
		return nil, err
	}

	totalNodes, err := ds.CountNodes(ctx, t.ID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count nodes", err)
	}

	h.tracer.AddAnnotation(ctx, "treeID", t.ID)

	sel, err := h.selector.Select(ctx, ds, services.SelectionRequest{
		TreeID:     t.ID,
		Query:      q.Query,
		TotalNodes: totalNodes,
	})
	if err != nil {
		if errors.Is(err, services.ErrTreeNotFound) {
			return nil, apperrors.NewNotFoundError("Tree")
		}
		return nil, apperrors.NewInternalError("context selection failed").WithCause(err)
	}

	result := &queries.AISearchResult{
		Query:       q.Query,
		TreeName:    t.Name,
		TreeContext: sel.Payload,
		Metadata: queries.AISearchMetadata{
			UsedSemanticSearch:  sel.UsedSemanticSearch,
			ContextStrategy:     sel.Executed,
			TotalNodes:          totalNodes,
			ContextNodes:        sel.ContextNodes,
			QueryClassification: sel.Classification,
			EstimatedCost: h.tuning.Current().EstimateCost(
				sel.Payload.Characters(),
				len(q.Query),
				queries.HistoryChars(q.History),
			),
		},
	}

	h.answer(ctx, q, sel, result)
	result.Metadata.Timestamp = h.now().UTC()

	h.record(ctx, userID, sel, result, h.now().Sub(start))

	return result, nil
}

// authorize returns the data source to read through. Public trees use the
// service source; everything else needs a caller with read access.
func (h *AISearchHandler) authorize(ctx context.Context, q queries.AISearchQuery, t *tree.Tree, project *tree.Project) (ports.TreeDataSource, string, error) {
	if project.Visibility.IsPublic() {
		userID := ""
		if q.Token != "" {
			// Only used to attribute the request; a bad token on a public
			// tree is not an error
			if principal, err := h.authenticator.Authenticate(ctx, q.Token); err == nil {
				userID = principal.User.UserID
			}
		}
		return h.factory.Service(), userID, nil
	}

	principal, err := h.authenticator.Authenticate(ctx, q.Token)
	if err != nil {
		if authErr, ok := auth.AsAuthError(err); ok {
			return nil, "", authErr.ToAppError()
		}
		return nil, "", apperrors.NewInternalError("authentication failed").WithCause(err)
	}

	access, err := h.permissions.CheckTreeAccess(ctx, principal.DataSource, principal.User.UserID, t.ID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			// Row level security hid the tree from this caller
			return nil, "", apperrors.NewForbiddenError("Access denied")
		}
		return nil, "", apperrors.NewInternalError("permission check failed").WithCause(err)
	}
	if !access.CanRead {
		h.logger.Info("Tree access denied",
			zap.String("treeID", t.ID),
			zap.String("userID", principal.User.UserID),
		)
		return nil, "", apperrors.NewForbiddenError("Access denied")
	}

	return principal.DataSource, principal.User.UserID, nil
}

func (h *AISearchHandler) rateLimit(ctx context.Context, userID, clientIP string) error {
	if h.limits == nil {
		return nil
	}

	limiter, key := h.limits.Users, userID
	if userID == "" {
		limiter, key = h.limits.IPs, clientIP
	}
	if limiter == nil || key == "" {
		return nil
	}

	allowed, err := limiter.Allow(ctx, key)
	if err != nil {
		h.logger.Warn("Rate limiter error", zap.String("key", key), zap.Error(err))
	}
	if !allowed {
		return apperrors.NewRateLimitError(h.limits.Limit, h.limits.Window.String())
	}
	return nil
}

func (h *AISearchHandler) answer(ctx context.Context, q queries.AISearchQuery, sel *services.Selection, result *queries.AISearchResult) {
	if !h.answers.Configured() {
		msg := answerNotConfigured
		result.AnswerError = &msg
		return
	}

	var answer string
	err := h.tracer.TraceFunction(ctx, "AnswerGenerator.Generate", func(ctx context.Context) error {
		var gerr error
		answer, gerr = h.answers.Generate(ctx, q.Query, sel.Payload, q.History)
		return gerr
	})
	if err != nil {
		h.logger.Warn("Answer generation failed, returning placeholder",
			zap.String("treeID", sel.Payload.Tree.ID),
			zap.String("strategy", sel.Executed.String()),
			zap.Error(err),
		)
		placeholder := services.PlaceholderAnswer(err)
		msg := err.Error()
		result.Answer = &placeholder
		result.AnswerError = &msg
		return
	}

	result.Answer = &answer
	result.AnswerGenerated = true
}

func (h *AISearchHandler) record(ctx context.Context, userID string, sel *services.Selection, result *queries.AISearchResult, elapsed time.Duration) {
	md := result.Metadata

	h.metrics.RecordSearch(ctx, ports.SearchRecord{
		TreeID:         sel.Payload.Tree.ID,
		Selected:       sel.Selected,
		Executed:       sel.Executed,
		Classification: sel.Classification,
		TotalNodes:     md.TotalNodes,
		ContextNodes:   md.ContextNodes,
		EstimatedCost:  md.EstimatedCost,
		AnswerOK:       result.AnswerGenerated,
		Duration:       elapsed,
	})

	event := events.NewSearchCompleted(
		sel.Payload.Tree.ID,
		userID,
		sel.Executed.String(),
		string(sel.Classification),
		md.TotalNodes,
		md.ContextNodes,
		md.EstimatedCost,
		result.AnswerGenerated,
		md.Timestamp,
	)
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("Failed to publish search event", zap.Error(err))
	}

	h.logger.Info("AI search answered",
		zap.String("treeID", sel.Payload.Tree.ID),
		zap.String("selected", sel.Selected.String()),
		zap.String("strategy", sel.Executed.String()),
		zap.String("classification", string(sel.Classification)),
		zap.Int("totalNodes", md.TotalNodes),
		zap.Int("contextNodes", md.ContextNodes),
		zap.Float64("estimatedCost", md.EstimatedCost),
		zap.Bool("answerGenerated", result.AnswerGenerated),
		zap.Duration("duration", elapsed),
	)
}

// AsBusHandler adapts the handler to the query bus.
func (h *AISearchHandler) AsBusHandler() bus.QueryHandler {
	return bus.Typed(h.Handle)
}

func notFoundOr(err error, resource, operation string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return apperrors.NewNotFoundError(resource)
	}
	return apperrors.NewDatabaseError(operation, err)
}
