package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/domain/tree"
)

// PermissionService resolves what a user may do with a tree from project
// ownership and membership.
type PermissionService struct {
	logger *zap.Logger
}

// NewPermissionService creates a new permission service
func NewPermissionService(logger *zap.Logger) *PermissionService {
	return &PermissionService{logger: logger}
}

// CheckTreeAccess implements ports.PermissionChecker. The owner is an admin;
// members get their stored role; anyone else may read only public trees.
func (s *PermissionService) CheckTreeAccess(ctx context.Context, ds ports.TreeDataSource, userID, treeID string) (*ports.Access, error) {
	t, err := ds.GetTree(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	project, err := ds.GetProject(ctx, t.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if userID != "" && project.OwnerID == userID {
		return roleAccess(tree.RoleAdmin), nil
	}

	if userID != "" {
		member, err := ds.GetProjectMember(ctx, project.ID, userID)
		switch {
		case err == nil:
			return roleAccess(member.Role), nil
		case !errors.Is(err, ports.ErrNotFound):
			return nil, fmt.Errorf("failed to get project member: %w", err)
		}
	}

	s.logger.Debug("No membership for tree",
		zap.String("treeID", treeID),
		zap.String("userID", userID),
	)

	return &ports.Access{CanRead: project.Visibility.IsPublic()}, nil
}

func roleAccess(role tree.Role) *ports.Access {
	switch role {
	case tree.RoleAdmin, tree.RoleEditor:
		return &ports.Access{CanRead: true, CanWrite: true, Role: string(role)}
	case tree.RoleViewer:
		return &ports.Access{CanRead: true, Role: string(role)}
	default:
		return &ports.Access{Role: string(role)}
	}
}
