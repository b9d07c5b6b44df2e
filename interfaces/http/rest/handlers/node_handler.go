package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"labsos-backend/application/commands"
	"labsos-backend/application/commands/bus"
	apperrors "labsos-backend/pkg/errors"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	commandBus *bus.CommandBus
	errors     *apperrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(commandBus *bus.CommandBus, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// UpdateReferencesRequest is the body of a references update
type UpdateReferencesRequest struct {
	ReferencedTreeIDs []string `json:"referenced_tree_ids"`
}

// UpdateReferencesResponse echoes the stored references
type UpdateReferencesResponse struct {
	NodeID            string   `json:"node_id"`
	ReferencedTreeIDs []string `json:"referenced_tree_ids"`
}

// UpdateReferences handles PUT /nodes/{nodeID}/references
func (h *NodeHandler) UpdateReferences(w http.ResponseWriter, r *http.Request) {
	var req UpdateReferencesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		respondError(w, r, h.errors, apperrors.NewValidationError("Invalid request body").WithCause(err))
		return
	}
	if req.ReferencedTreeIDs == nil {
		req.ReferencedTreeIDs = []string{}
	}

	cmd := commands.UpdateNodeReferencesCommand{
		NodeID:            chi.URLParam(r, "nodeID"),
		ReferencedTreeIDs: req.ReferencedTreeIDs,
		Token:             r.Header.Get("Authorization"),
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		respondError(w, r, h.errors, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, UpdateReferencesResponse{
		NodeID:            cmd.NodeID,
		ReferencedTreeIDs: cmd.ReferencedTreeIDs,
	})
}
