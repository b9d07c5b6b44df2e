package handlers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"labsos-backend/application/commands"
	"labsos-backend/application/commands/bus"
	"labsos-backend/application/ports"
	"labsos-backend/domain/events"
	"labsos-backend/domain/tree"
	"labsos-backend/pkg/auth"
	apperrors "labsos-backend/pkg/errors"
)

// UpdateNodeReferencesHandler handles the UpdateNodeReferencesCommand
type UpdateNodeReferencesHandler struct {
	factory       ports.DataSourceFactory
	authenticator ports.Authenticator
	permissions   ports.PermissionChecker
	publisher     ports.EventPublisher
	logger        *zap.Logger
}

// NewUpdateNodeReferencesHandler creates a new handler instance
func NewUpdateNodeReferencesHandler(
	factory ports.DataSourceFactory,
	authenticator ports.Authenticator,
	permissions ports.PermissionChecker,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *UpdateNodeReferencesHandler {
	return &UpdateNodeReferencesHandler{
		factory:       factory,
		authenticator: authenticator,
		permissions:   permissions,
		publisher:     publisher,
		logger:        logger,
	}
}

// Handle validates and stores the node's referenced trees. Referenced trees
// are resolved with the service source so that a tree hidden from the
// caller is still reported as cross-project rather than unknown.
func (h *UpdateNodeReferencesHandler) Handle(ctx context.Context, cmd commands.UpdateNodeReferencesCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	principal, err := h.authenticator.Authenticate(ctx, cmd.Token)
	if err != nil {
		if authErr, ok := auth.AsAuthError(err); ok {
			return authErr.ToAppError()
		}
		return apperrors.NewInternalError("authentication failed").WithCause(err)
	}
	ds := principal.DataSource

	node, err := ds.GetNode(ctx, cmd.NodeID)
	if err != nil {
		return lookupError(err, "Node", "get node")
	}
	owner, err := ds.GetTree(ctx, node.TreeID)
	if err != nil {
		return lookupError(err, "Tree", "get tree")
	}

	access, err := h.permissions.CheckTreeAccess(ctx, ds, principal.User.UserID, owner.ID)
	if err != nil {
		return lookupError(err, "Tree", "check tree access")
	}
	if !access.CanWrite {
		return apperrors.NewForbiddenError("You do not have permission to edit this node")
	}

	refs := cmd.ReferencedTreeIDs
	if refs == nil {
		refs = []string{}
	}

	referenced, err := h.factory.Service().GetTrees(ctx, refs)
	if err != nil {
		return apperrors.NewDatabaseError("get referenced trees", err)
	}
	projectOf := make(map[string]string, len(referenced))
	for _, t := range referenced {
		projectOf[t.ID] = t.ProjectID
	}

	if err := tree.ValidateReferences(owner.ID, owner.ProjectID, refs, projectOf); err != nil {
		return apperrors.NewValidationError(err.Error()).WithCause(err)
	}

	if err := ds.UpdateNodeReferences(ctx, node.ID, refs); err != nil {
		return lookupError(err, "Node", "update node references")
	}

	h.logger.Info("Node references updated",
		zap.String("nodeID", node.ID),
		zap.String("treeID", owner.ID),
		zap.Int("references", len(refs)),
	)

	event := events.NewNodeReferencesUpdated(node.ID, owner.ID, principal.User.UserID, refs, time.Now().UTC())
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("Failed to publish references event", zap.Error(err))
	}

	return nil
}

// AsBusHandler adapts the handler to the command bus.
func (h *UpdateNodeReferencesHandler) AsBusHandler() bus.CommandHandler {
	return bus.Typed(h.Handle)
}

func lookupError(err error, resource, operation string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return apperrors.NewNotFoundError(resource)
	}
	return apperrors.NewDatabaseError(operation, err)
}
