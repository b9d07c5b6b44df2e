package ports

import (
	"context"
	"errors"

	"labsos-backend/domain/tree"
)

// ErrNotFound is returned by data sources when a row does not exist or is
// hidden from the caller by row level security.
var ErrNotFound = errors.New("not found")

// TreeReader reads tree structure.
type TreeReader interface {
	GetTree(ctx context.Context, treeID string) (*tree.Tree, error)
	GetTrees(ctx context.Context, treeIDs []string) ([]tree.Tree, error)
	GetProject(ctx context.Context, projectID string) (*tree.Project, error)
	ListBlocks(ctx context.Context, treeID string) ([]tree.Block, error)
	GetBlock(ctx context.Context, blockID string) (*tree.Block, error)
}

// NodeReader reads nodes and their dependency edges.
type NodeReader interface {
	ListNodes(ctx context.Context, treeID string) ([]tree.Node, error)
	CountNodes(ctx context.Context, treeID string) (int, error)
	GetNode(ctx context.Context, nodeID string) (*tree.Node, error)
	GetNodes(ctx context.Context, nodeIDs []string) ([]tree.Node, error)
	ListDependencies(ctx context.Context, nodeIDs []string) ([]tree.Dependency, error)
}

// NodeMatcher ranks a tree's nodes against a query embedding. Results are
// sorted by similarity descending and hold at most limit rows.
type NodeMatcher interface {
	MatchNodes(ctx context.Context, treeID string, embedding []float32, threshold float64, limit int) ([]tree.ScoredNode, error)
}

// MembershipReader resolves project membership.
type MembershipReader interface {
	GetProjectMember(ctx context.Context, projectID, userID string) (*tree.ProjectMember, error)
}

// NodeWriter persists node changes.
type NodeWriter interface {
	UpdateNodeReferences(ctx context.Context, nodeID string, referencedTreeIDs []string) error
}

// TreeDataSource is the row-filtered data access used for one request.
type TreeDataSource interface {
	TreeReader
	NodeReader
	NodeMatcher
	MembershipReader
	NodeWriter
}

// DataSourceFactory hands out data sources. Service bypasses row level
// security and is only used for public trees and visibility lookups;
// ForUser is scoped to the caller's access token.
type DataSourceFactory interface {
	Service() TreeDataSource
	ForUser(accessToken string) (TreeDataSource, error)
}
