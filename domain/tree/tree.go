// Package tree holds the experiment-tree data model: projects, trees, the
// ordered blocks inside a tree and the nodes inside each block.
package tree

import (
	"sort"
	"strings"
)

// Visibility controls who may read a project's trees. Trees inherit it from
// their project.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityStealth Visibility = "stealth"
)

// ParseVisibility maps a stored value onto a Visibility. Unknown or empty
// values are treated as private so that nothing is exposed by accident.
func ParseVisibility(s string) Visibility {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case VisibilityPublic:
		return VisibilityPublic
	case VisibilityStealth:
		return VisibilityStealth
	default:
		return VisibilityPrivate
	}
}

// IsPublic reports whether anonymous readers are allowed.
func (v Visibility) IsPublic() bool {
	return v == VisibilityPublic
}

// Project owns trees and carries the visibility they inherit.
type Project struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	OwnerID    string     `json:"owner_id"`
	Visibility Visibility `json:"visibility"`
}

// Tree is a structured experimental workflow.
type Tree struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility,omitempty"`
}

// Block is an ordered grouping of nodes within a tree.
type Block struct {
	ID       string `json:"id"`
	TreeID   string `json:"tree_id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Position int    `json:"position"`
}

// Attachment is a file attached to a node.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Link is an external link on a node.
type Link struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Node is the atomic content unit of a tree.
type Node struct {
	ID                string       `json:"id"`
	BlockID           string       `json:"block_id"`
	TreeID            string       `json:"tree_id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Content           string       `json:"content"`
	Position          int          `json:"position"`
	Attachments       []Attachment `json:"attachments"`
	Links             []Link       `json:"links"`
	ReferencedTreeIDs []string     `json:"referenced_tree_ids"`
}

// Normalize replaces nil collections with empty ones so the node serialises
// the same way whatever the store returned.
func (n *Node) Normalize() {
	if n.Attachments == nil {
		n.Attachments = []Attachment{}
	}
	if n.Links == nil {
		n.Links = []Link{}
	}
	if n.ReferencedTreeIDs == nil {
		n.ReferencedTreeIDs = []string{}
	}
}

// ScoredNode is a semantic search candidate.
type ScoredNode struct {
	Node       Node
	Similarity float64
}

// Dependency records that NodeID structurally depends on DependsOnID.
type Dependency struct {
	NodeID      string `json:"node_id"`
	DependsOnID string `json:"depends_on_node_id"`
}

// Role of a project member.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
}

// SortBlocks orders blocks by stored position, ID breaking ties.
func SortBlocks(blocks []Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Position != blocks[j].Position {
			return blocks[i].Position < blocks[j].Position
		}
		return blocks[i].ID < blocks[j].ID
	})
}

// SortNodes orders nodes by stored position, ID breaking ties.
func SortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Position != nodes[j].Position {
			return nodes[i].Position < nodes[j].Position
		}
		return nodes[i].ID < nodes[j].ID
	})
}
