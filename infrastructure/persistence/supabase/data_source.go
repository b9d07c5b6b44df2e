// Package supabase reads and writes experiment trees through the Supabase
// PostgREST API.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/supabase-community/postgrest-go"

	"labsos-backend/application/ports"
	"labsos-backend/domain/tree"
)

// DataSource implements ports.TreeDataSource over one PostgREST client.
// Which rows it sees depends on the key and token the client carries.
type DataSource struct {
	client *postgrest.Client
	// Rpc reports failures through the shared ClientError field
	rpcMu sync.Mutex
}

var _ ports.TreeDataSource = (*DataSource)(nil)

// NewDataSource creates a data source for restURL authorised by apiKey and,
// when set, the caller's access token.
func NewDataSource(restURL, apiKey, accessToken string) *DataSource {
	bearer := apiKey
	if accessToken != "" {
		bearer = accessToken
	}
	headers := map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + bearer,
	}
	return &DataSource{client: postgrest.NewClient(restURL, "public", headers)}
}

func byID() *postgrest.OrderOpts {
	return &postgrest.OrderOpts{Ascending: true}
}

// GetTree implements ports.TreeReader
func (d *DataSource) GetTree(ctx context.Context, treeID string) (*tree.Tree, error) {
	var rows []treeRow
	_, err := d.client.From(tableTrees).
		Select(treeColumns, "", false).
		Eq("id", treeID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree %s: %w", treeID, err)
	}
	if len(rows) == 0 {
		return nil, ports.ErrNotFound
	}
	t := rows[0].toDomain()
	return &t, nil
}

// GetTrees implements ports.TreeReader
func (d *DataSource) GetTrees(ctx context.Context, treeIDs []string) ([]tree.Tree, error) {
	if len(treeIDs) == 0 {
		return []tree.Tree{}, nil
	}
	var rows []treeRow
	_, err := d.client.From(tableTrees).
		Select(treeColumns, "", false).
		In("id", treeIDs).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get trees: %w", err)
	}
	out := make([]tree.Tree, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetProject implements ports.TreeReader
func (d *DataSource) GetProject(ctx context.Context, projectID string) (*tree.Project, error) {
	var rows []projectRow
	_, err := d.client.From(tableProjects).
		Select("id,name,created_by,visibility", "", false).
		Eq("id", projectID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}
	if len(rows) == 0 {
		return nil, ports.ErrNotFound
	}
	p := rows[0].toDomain()
	return &p, nil
}

// ListBlocks implements ports.TreeReader
func (d *DataSource) ListBlocks(ctx context.Context, treeID string) ([]tree.Block, error) {
	var rows []blockRow
	_, err := d.client.From(tableBlocks).
		Select(blockColumns, "", false).
		Eq("tree_id", treeID).
		Order("position", byID()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	out := make([]tree.Block, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	tree.SortBlocks(out)
	return out, nil
}

// GetBlock implements ports.TreeReader
func (d *DataSource) GetBlock(ctx context.Context, blockID string) (*tree.Block, error) {
	var rows []blockRow
	_, err := d.client.From(tableBlocks).
		Select(blockColumns, "", false).
		Eq("id", blockID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", blockID, err)
	}
	if len(rows) == 0 {
		return nil, ports.ErrNotFound
	}
	b := rows[0].toDomain()
	return &b, nil
}

// ListNodes implements ports.NodeReader
func (d *DataSource) ListNodes(ctx context.Context, treeID string) ([]tree.Node, error) {
	var rows []nodeRow
	_, err := d.client.From(tableNodes).
		Select(nodeColumns, "", false).
		Eq("tree_id", treeID).
		Order("position", byID()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return toNodes(rows), nil
}

// CountNodes implements ports.NodeReader
func (d *DataSource) CountNodes(ctx context.Context, treeID string) (int, error) {
	_, count, err := d.client.From(tableNodes).
		Select("id", "exact", true).
		Eq("tree_id", treeID).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return int(count), nil
}

// GetNode implements ports.NodeReader
func (d *DataSource) GetNode(ctx context.Context, nodeID string) (*tree.Node, error) {
	var rows []nodeRow
	_, err := d.client.From(tableNodes).
		Select(nodeColumns, "", false).
		Eq("id", nodeID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", nodeID, err)
	}
	if len(rows) == 0 {
		return nil, ports.ErrNotFound
	}
	n := rows[0].toDomain()
	return &n, nil
}

// GetNodes implements ports.NodeReader
func (d *DataSource) GetNodes(ctx context.Context, nodeIDs []string) ([]tree.Node, error) {
	if len(nodeIDs) == 0 {
		return []tree.Node{}, nil
	}
	var rows []nodeRow
	_, err := d.client.From(tableNodes).
		Select(nodeColumns, "", false).
		In("id", nodeIDs).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	return toNodes(rows), nil
}

// ListDependencies implements ports.NodeReader
func (d *DataSource) ListDependencies(ctx context.Context, nodeIDs []string) ([]tree.Dependency, error) {
	if len(nodeIDs) == 0 {
		return []tree.Dependency{}, nil
	}
	var rows []dependencyRow
	_, err := d.client.From(tableDependencies).
		Select("node_id,depends_on_node_id", "", false).
		In("node_id", nodeIDs).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	out := make([]tree.Dependency, 0, len(rows))
	for _, r := range rows {
		out = append(out, tree.Dependency{NodeID: r.NodeID, DependsOnID: r.DependsOnID})
	}
	return out, nil
}

// MatchNodes implements ports.NodeMatcher with the match_tree_nodes
// function, which filters on the tree and orders by cosine similarity.
func (d *DataSource) MatchNodes(ctx context.Context, treeID string, embedding []float32, threshold float64, limit int) ([]tree.ScoredNode, error) {
	d.rpcMu.Lock()
	d.client.ClientError = nil
	body := d.client.Rpc(rpcMatchNodes, "", matchParams{
		QueryEmbedding: embedding,
		TreeID:         treeID,
		Threshold:      threshold,
		Count:          limit,
	})
	rpcErr := d.client.ClientError
	d.rpcMu.Unlock()

	if rpcErr != nil {
		return nil, fmt.Errorf("match_tree_nodes failed: %w", rpcErr)
	}

	rows, err := decodeMatches(body)
	if err != nil {
		return nil, err
	}

	out := make([]tree.ScoredNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, tree.ScoredNode{Node: r.toDomain(), Similarity: r.Similarity})
	}
	return out, nil
}

// GetProjectMember implements ports.MembershipReader
func (d *DataSource) GetProjectMember(ctx context.Context, projectID, userID string) (*tree.ProjectMember, error) {
	var rows []memberRow
	_, err := d.client.From(tableMembers).
		Select("project_id,user_id,role", "", false).
		Eq("project_id", projectID).
		Eq("user_id", userID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get project member: %w", err)
	}
	if len(rows) == 0 {
		return nil, ports.ErrNotFound
	}
	return &tree.ProjectMember{
		ProjectID: rows[0].ProjectID,
		UserID:    rows[0].UserID,
		Role:      tree.Role(rows[0].Role),
	}, nil
}

// UpdateNodeReferences implements ports.NodeWriter
func (d *DataSource) UpdateNodeReferences(ctx context.Context, nodeID string, referencedTreeIDs []string) error {
	if referencedTreeIDs == nil {
		referencedTreeIDs = []string{}
	}
	var rows []nodeRow
	_, err := d.client.From(tableNodes).
		Update(map[string]interface{}{"referenced_tree_ids": referencedTreeIDs}, "representation", "").
		Eq("id", nodeID).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to update node references: %w", err)
	}
	if len(rows) == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeMatches parses an RPC body, which is either the result rows or a
// PostgREST error object.
func decodeMatches(body string) ([]nodeRow, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, errors.New("match_tree_nodes returned an empty body")
	}
	if strings.HasPrefix(trimmed, "{") {
		var re restError
		if err := json.Unmarshal([]byte(trimmed), &re); err == nil && re.Message != "" {
			return nil, fmt.Errorf("match_tree_nodes failed: (%s) %s", re.Code, re.Message)
		}
	}
	var rows []nodeRow
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode match_tree_nodes result: %w", err)
	}
	return rows, nil
}

func toNodes(rows []nodeRow) []tree.Node {
	out := make([]tree.Node, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	tree.SortNodes(out)
	return out
}
