// Package memory is an in-process tree store with cosine similarity
// matching. It backs the offline CLI and the tests.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"labsos-backend/application/ports"
	"labsos-backend/domain/tree"
)

type memberKey struct {
	projectID string
	userID    string
}

// Store implements ports.TreeDataSource in memory
type Store struct {
	mu         sync.RWMutex
	projects   map[string]tree.Project
	trees      map[string]tree.Tree
	blocks     map[string]tree.Block
	nodes      map[string]tree.Node
	embeddings map[string][]float32
	deps       []tree.Dependency
	members    map[memberKey]tree.ProjectMember
}

var _ ports.TreeDataSource = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		projects:   make(map[string]tree.Project),
		trees:      make(map[string]tree.Tree),
		blocks:     make(map[string]tree.Block),
		nodes:      make(map[string]tree.Node),
		embeddings: make(map[string][]float32),
		members:    make(map[memberKey]tree.ProjectMember),
	}
}

// AddProject stores p
func (s *Store) AddProject(p tree.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// AddTree stores t
func (s *Store) AddTree(t tree.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[t.ID] = t
}

// AddBlock stores b
func (s *Store) AddBlock(b tree.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.ID] = b
}

// AddNode stores n with its embedding, which may be nil.
func (s *Store) AddNode(n tree.Node, embedding []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = n
	if embedding != nil {
		s.embeddings[n.ID] = embedding
	}
}

// AddDependency records that nodeID depends on dependsOnID
func (s *Store) AddDependency(nodeID, dependsOnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps = append(s.deps, tree.Dependency{NodeID: nodeID, DependsOnID: dependsOnID})
}

// AddMember stores a project membership
func (s *Store) AddMember(m tree.ProjectMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{m.ProjectID, m.UserID}] = m
}

// GetTree returns the tree with its project's visibility.
func (s *Store) GetTree(ctx context.Context, treeID string) (*tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trees[treeID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if p, ok := s.projects[t.ProjectID]; ok {
		t.Visibility = p.Visibility
	}
	return &t, nil
}

func (s *Store) GetTrees(ctx context.Context, treeIDs []string) ([]tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tree.Tree, 0, len(treeIDs))
	for _, id := range treeIDs {
		if t, ok := s.trees[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (*tree.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListBlocks(ctx context.Context, treeID string) ([]tree.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tree.Block
	for _, b := range s.blocks {
		if b.TreeID == treeID {
			out = append(out, b)
		}
	}
	tree.SortBlocks(out)
	return out, nil
}

func (s *Store) GetBlock(ctx context.Context, blockID string) (*tree.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[blockID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &b, nil
}

func (s *Store) ListNodes(ctx context.Context, treeID string) ([]tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tree.Node
	for _, n := range s.nodes {
		if n.TreeID == treeID {
			out = append(out, copyNode(n))
		}
	}
	tree.SortNodes(out)
	return out, nil
}

func (s *Store) CountNodes(ctx context.Context, treeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.nodes {
		if n.TreeID == treeID {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetNode(ctx context.Context, nodeID string) (*tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	n = copyNode(n)
	return &n, nil
}

func (s *Store) GetNodes(ctx context.Context, nodeIDs []string) ([]tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tree.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if n, ok := s.nodes[id]; ok {
			out = append(out, copyNode(n))
		}
	}
	return out, nil
}

func (s *Store) ListDependencies(ctx context.Context, nodeIDs []string) ([]tree.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		want[id] = true
	}
	var out []tree.Dependency
	for _, d := range s.deps {
		if want[d.NodeID] {
			out = append(out, d)
		}
	}
	return out, nil
}

// MatchNodes ranks the tree's embedded nodes by cosine similarity.
func (s *Store) MatchNodes(ctx context.Context, treeID string, embedding []float32, threshold float64, limit int) ([]tree.ScoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tree.ScoredNode
	for id, vec := range s.embeddings {
		n, ok := s.nodes[id]
		if !ok || n.TreeID != treeID {
			continue
		}
		sim := Cosine(embedding, vec)
		if sim > threshold {
			out = append(out, tree.ScoredNode{Node: copyNode(n), Similarity: sim})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Node.ID < out[j].Node.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetProjectMember(ctx context.Context, projectID, userID string) (*tree.ProjectMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey{projectID, userID}]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &m, nil
}

func (s *Store) UpdateNodeReferences(ctx context.Context, nodeID string, referencedTreeIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return ports.ErrNotFound
	}
	n.ReferencedTreeIDs = append([]string(nil), referencedTreeIDs...)
	s.nodes[nodeID] = n
	return nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is zero
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func copyNode(n tree.Node) tree.Node {
	n.Attachments = append([]tree.Attachment(nil), n.Attachments...)
	n.Links = append([]tree.Link(nil), n.Links...)
	n.ReferencedTreeIDs = append([]string(nil), n.ReferencedTreeIDs...)
	return n
}

// Factory hands out the same store for every caller; the memory store has
// no row level security.
type Factory struct {
	Store *Store
}

func (f Factory) Service() ports.TreeDataSource { return f.Store }

func (f Factory) ForUser(string) (ports.TreeDataSource, error) { return f.Store, nil }
