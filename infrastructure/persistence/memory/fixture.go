package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"labsos-backend/application/ports"
	"labsos-backend/domain/tree"
)

// Fixture is the YAML layout of an offline workspace.
type Fixture struct {
	Projects []FixtureProject `yaml:"projects"`
	Trees    []FixtureTree    `yaml:"trees"`
	Blocks   []FixtureBlock   `yaml:"blocks"`
	Nodes    []FixtureNode    `yaml:"nodes"`
	Members  []FixtureMember  `yaml:"members"`
}

type FixtureProject struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	OwnerID    string `yaml:"owner_id"`
	Visibility string `yaml:"visibility"`
}

type FixtureTree struct {
	ID          string `yaml:"id"`
	ProjectID   string `yaml:"project_id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type FixtureBlock struct {
	ID       string `yaml:"id"`
	TreeID   string `yaml:"tree_id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Position int    `yaml:"position"`
}

type FixtureNode struct {
	ID          string    `yaml:"id"`
	BlockID     string    `yaml:"block_id"`
	TreeID      string    `yaml:"tree_id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Content     string    `yaml:"content"`
	Position    int       `yaml:"position"`
	DependsOn   []string  `yaml:"depends_on"`
	References  []string  `yaml:"referenced_tree_ids"`
	Embedding   []float32 `yaml:"embedding"`
}

type FixtureMember struct {
	ProjectID string `yaml:"project_id"`
	UserID    string `yaml:"user_id"`
	Role      string `yaml:"role"`
}

// LoadFile reads a YAML fixture from path.
func LoadFile(ctx context.Context, path string, embedder ports.Embedder) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	return Load(ctx, f, embedder)
}

// Load builds a store from a YAML fixture. Nodes without an embedding are
// embedded with embedder when one is given; otherwise they are left out of
// similarity matching.
func Load(ctx context.Context, r io.Reader, embedder ports.Embedder) (*Store, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}

	s := NewStore()
	for _, p := range fx.Projects {
		s.AddProject(tree.Project{
			ID:         p.ID,
			Name:       p.Name,
			OwnerID:    p.OwnerID,
			Visibility: tree.ParseVisibility(p.Visibility),
		})
	}
	for _, t := range fx.Trees {
		s.AddTree(tree.Tree{ID: t.ID, ProjectID: t.ProjectID, Name: t.Name, Description: t.Description})
	}

	blockTree := make(map[string]string, len(fx.Blocks))
	for _, b := range fx.Blocks {
		blockTree[b.ID] = b.TreeID
		s.AddBlock(tree.Block{ID: b.ID, TreeID: b.TreeID, Name: b.Name, Type: b.Type, Position: b.Position})
	}

	for _, n := range fx.Nodes {
		treeID := n.TreeID
		if treeID == "" {
			treeID = blockTree[n.BlockID]
		}
		node := tree.Node{
			ID:                n.ID,
			BlockID:           n.BlockID,
			TreeID:            treeID,
			Title:             n.Title,
			Description:       n.Description,
			Content:           n.Content,
			Position:          n.Position,
			ReferencedTreeIDs: n.References,
		}
		node.Normalize()

		vec := n.Embedding
		if vec == nil && embedder != nil {
			var err error
			vec, err = embedder.Embed(ctx, NodeText(node))
			if err != nil {
				return nil, fmt.Errorf("failed to embed node %s: %w", n.ID, err)
			}
		}
		s.AddNode(node, vec)

		for _, dep := range n.DependsOn {
			s.AddDependency(n.ID, dep)
		}
	}

	for _, m := range fx.Members {
		s.AddMember(tree.ProjectMember{ProjectID: m.ProjectID, UserID: m.UserID, Role: tree.Role(m.Role)})
	}

	return s, nil
}

// NodeText is the text a node is embedded from.
func NodeText(n tree.Node) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Title, n.Description, n.Content} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
