package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"labsos-backend/domain/tree"
	"labsos-backend/infrastructure/persistence/memory"
)

const (
	testProject = "11111111-1111-4111-8111-111111111111"
	testOwner   = "99999999-9999-4999-8999-999999999999"
	testTree    = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
)

var (
	towardQuery = []float32{1, 0}
	awayQuery   = []float32{0, 1}
)

// seedTree stores a tree of blocks*perBlock nodes. Node i gets the
// embedding returned by vec(i).
func seedTree(s *memory.Store, blocks, perBlock int, vec func(i int) []float32) {
	s.AddProject(tree.Project{ID: testProject, Name: "P", OwnerID: testOwner, Visibility: tree.VisibilityPrivate})
	s.AddTree(tree.Tree{ID: testTree, ProjectID: testProject, Name: "Assay"})

	i := 0
	// Insert blocks in reverse so ordering comes from position, not insertion
	for b := blocks - 1; b >= 0; b-- {
		s.AddBlock(tree.Block{ID: blockID(b), TreeID: testTree, Name: fmt.Sprintf("Block %d", b), Position: b})
	}
	for b := 0; b < blocks; b++ {
		for p := 0; p < perBlock; p++ {
			s.AddNode(tree.Node{
				ID:       nodeID(i),
				BlockID:  blockID(b),
				TreeID:   testTree,
				Title:    fmt.Sprintf("Step %d", i),
				Content:  "content",
				Position: p,
			}, vec(i))
			i++
		}
	}
}

func blockID(b int) string { return fmt.Sprintf("block-%02d", b) }
func nodeID(i int) string  { return fmt.Sprintf("node-%04d", i) }

func allToward(int) []float32 { return towardQuery }
func allAway(int) []float32   { return awayQuery }

// firstToward makes the first n nodes match the query.
func firstToward(n int) func(int) []float32 {
	return func(i int) []float32 {
		if i < n {
			return towardQuery
		}
		return awayQuery
	}
}

type countingEmbedder struct {
	calls atomic.Int32
	vec   []float32
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

// failingStore breaks selected reads of an otherwise working store.
type failingStore struct {
	*memory.Store
	matchErr error
	nodesErr error
}

func (f *failingStore) MatchNodes(ctx context.Context, treeID string, embedding []float32, threshold float64, limit int) ([]tree.ScoredNode, error) {
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	return f.Store.MatchNodes(ctx, treeID, embedding, threshold, limit)
}

func (f *failingStore) ListNodes(ctx context.Context, treeID string) ([]tree.Node, error) {
	if f.nodesErr != nil {
		return nil, f.nodesErr
	}
	return f.Store.ListNodes(ctx, treeID)
}

var errStoreDown = errors.New("store unavailable")

func payloadIDs(p *tree.ContextPayload) []string {
	var ids []string
	for _, b := range p.Blocks {
		for _, n := range b.Nodes {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
