package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"labsos-backend/application/ports"
	"labsos-backend/domain/tree"
)

// TreeContextFetcher materialises a whole tree. It is only used for small
// trees and for queries that need every node.
type TreeContextFetcher struct {
	logger *zap.Logger
}

// NewTreeContextFetcher creates a new full-context fetcher
func NewTreeContextFetcher(logger *zap.Logger) *TreeContextFetcher {
	return &TreeContextFetcher{logger: logger}
}

// FetchFull returns every block and node of the tree ordered by stored
// position. A missing tree yields (nil, nil); access is checked upstream.
func (f *TreeContextFetcher) FetchFull(ctx context.Context, ds ports.TreeDataSource, treeID string) (*tree.ContextPayload, error) {
	var (
		t      *tree.Tree
		blocks []tree.Block
		nodes  []tree.Node
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = ds.GetTree(gctx, treeID)
		return err
	})
	g.Go(func() error {
		var err error
		blocks, err = ds.ListBlocks(gctx, treeID)
		if err != nil {
			return fmt.Errorf("failed to list blocks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		nodes, err = ds.ListNodes(gctx, treeID)
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	payload := assemble(t, blocks, nodes)

	f.logger.Debug("Fetched full tree context",
		zap.String("treeID", treeID),
		zap.Int("blocks", len(payload.Blocks)),
		zap.Int("nodes", payload.NodeCount()),
	)

	return payload, nil
}

// assemble groups nodes under their blocks, both in position order. Every
// block is kept, empty ones included. Nodes whose block is not part of the
// tree are dropped.
func assemble(t *tree.Tree, blocks []tree.Block, nodes []tree.Node) *tree.ContextPayload {
	payload := tree.NewContextPayload(t)

	sorted := append([]tree.Block(nil), blocks...)
	tree.SortBlocks(sorted)

	byBlock := make(map[string][]tree.Node, len(sorted))
	for _, n := range nodes {
		n.Normalize()
		byBlock[n.BlockID] = append(byBlock[n.BlockID], n)
	}

	for _, b := range sorted {
		blockNodes := byBlock[b.ID]
		tree.SortNodes(blockNodes)
		if blockNodes == nil {
			blockNodes = []tree.Node{}
		}
		payload.Blocks = append(payload.Blocks, tree.ContextBlock{Block: b, Nodes: blockNodes})
	}

	return payload
}
