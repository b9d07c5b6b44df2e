package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/domain/search"
	"labsos-backend/domain/tree"
)

// SemanticFetcher narrows a tree to the nodes most similar to a query.
type SemanticFetcher struct {
	embedder ports.Embedder
	logger   *zap.Logger
}

// NewSemanticFetcher creates a new semantic fetcher
func NewSemanticFetcher(embedder ports.Embedder, logger *zap.Logger) *SemanticFetcher {
	return &SemanticFetcher{
		embedder: embedder,
		logger:   logger,
	}
}

// Fetch returns the nodes whose similarity to the query exceeds the
// threshold, best first, at most opts.MaxNodes of them. With
// IncludeDependencies the nodes they depend on are added as well, which can
// push the count past MaxNodes; callers cap the result.
//
// Blocks are ordered by the best rank among their nodes. Inside a block
// matched nodes come first by rank, dependencies after in position order.
func (f *SemanticFetcher) Fetch(ctx context.Context, ds ports.TreeDataSource, treeID, query string, opts search.SearchOptions) (*tree.ContextPayload, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search options: %w", err)
	}

	t, err := ds.GetTree(ctx, treeID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	// One embedding per call
	embedding, err := f.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := ds.MatchNodes(ctx, treeID, embedding, opts.SimilarityThreshold, opts.MaxNodes)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	matched := rankCandidates(candidates, treeID, opts)
	payload := tree.NewContextPayload(t)
	if len(matched) == 0 {
		return payload, nil
	}

	var deps []tree.Node
	if opts.IncludeDependencies {
		deps, err = f.dependencies(ctx, ds, treeID, matched)
		if err != nil {
			return nil, err
		}
	}

	blocks, err := ds.ListBlocks(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}

	payload.Blocks = groupByRank(blocks, matched, deps)

	f.logger.Debug("Fetched semantic tree context",
		zap.String("treeID", treeID),
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", len(matched)),
		zap.Int("dependencies", len(deps)),
	)

	return payload, nil
}

// rankCandidates keeps candidates of this tree strictly above the
// threshold, sorted by similarity descending, capped at MaxNodes.
func rankCandidates(candidates []tree.ScoredNode, treeID string, opts search.SearchOptions) []tree.ScoredNode {
	seen := make(map[string]bool, len(candidates))
	ranked := make([]tree.ScoredNode, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity <= opts.SimilarityThreshold || seen[c.Node.ID] {
			continue
		}
		if c.Node.TreeID != "" && c.Node.TreeID != treeID {
			continue
		}
		seen[c.Node.ID] = true
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].Node.ID < ranked[j].Node.ID
	})

	if len(ranked) > opts.MaxNodes {
		ranked = ranked[:opts.MaxNodes]
	}
	return ranked
}

// dependencies loads the nodes the matched nodes depend on, in one round
// trip for the edges and one for the nodes.
func (f *SemanticFetcher) dependencies(ctx context.Context, ds ports.TreeDataSource, treeID string, matched []tree.ScoredNode) ([]tree.Node, error) {
	have := make(map[string]bool, len(matched))
	ids := make([]string, 0, len(matched))
	for _, m := range matched {
		have[m.Node.ID] = true
		ids = append(ids, m.Node.ID)
	}

	edges, err := ds.ListDependencies(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}

	var wanted []string
	for _, e := range edges {
		if have[e.DependsOnID] {
			continue
		}
		have[e.DependsOnID] = true
		wanted = append(wanted, e.DependsOnID)
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	nodes, err := ds.GetNodes(ctx, wanted)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependency nodes: %w", err)
	}

	deps := nodes[:0]
	for _, n := range nodes {
		if n.TreeID == treeID {
			deps = append(deps, n)
		}
	}
	tree.SortNodes(deps)
	return deps, nil
}

func groupByRank(blocks []tree.Block, matched []tree.ScoredNode, deps []tree.Node) []tree.ContextBlock {
	sortedBlocks := append([]tree.Block(nil), blocks...)
	tree.SortBlocks(sortedBlocks)

	index := make(map[string]*tree.ContextBlock, len(sortedBlocks))
	var order []string

	add := func(n tree.Node) {
		cb, ok := index[n.BlockID]
		if !ok {
			return
		}
		if len(cb.Nodes) == 0 {
			order = append(order, n.BlockID)
		}
		n.Normalize()
		cb.Nodes = append(cb.Nodes, n)
	}

	for i := range sortedBlocks {
		index[sortedBlocks[i].ID] = &tree.ContextBlock{Block: sortedBlocks[i]}
	}
	for _, m := range matched {
		add(m.Node)
	}
	// Blocks reached only through dependencies follow in block position order
	blockPos := make(map[string]int, len(sortedBlocks))
	for i, b := range sortedBlocks {
		blockPos[b.ID] = i
	}
	sort.SliceStable(deps, func(i, j int) bool {
		return blockPos[deps[i].BlockID] < blockPos[deps[j].BlockID]
	})
	for _, n := range deps {
		add(n)
	}

	out := make([]tree.ContextBlock, 0, len(order))
	for _, id := range order {
		out = append(out, *index[id])
	}
	return out
}
