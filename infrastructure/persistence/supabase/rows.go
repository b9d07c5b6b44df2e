package supabase

import (
	"labsos-backend/domain/tree"
)

// Table names in the public schema
const (
	tableProjects     = "projects"
	tableTrees        = "experiment_trees"
	tableBlocks       = "tree_blocks"
	tableNodes        = "tree_nodes"
	tableDependencies = "node_dependencies"
	tableMembers      = "project_members"

	rpcMatchNodes = "match_tree_nodes"
)

const (
	treeColumns  = "id,project_id,name,description,projects(visibility)"
	blockColumns = "id,tree_id,name,block_type,position"
	nodeColumns  = "id,block_id,tree_id,name,description,content,position,referenced_tree_ids," +
		"node_attachments(id,name,file_type,file_url),node_links(id,name,url)"
)

type projectRef struct {
	Visibility string `json:"visibility"`
}

type treeRow struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	Project     *projectRef `json:"projects"`
}

func (r treeRow) toDomain() tree.Tree {
	t := tree.Tree{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: deref(r.Description),
	}
	if r.Project != nil {
		t.Visibility = tree.ParseVisibility(r.Project.Visibility)
	}
	return t
}

type projectRow struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedBy  string `json:"created_by"`
	Visibility string `json:"visibility"`
}

func (r projectRow) toDomain() tree.Project {
	return tree.Project{
		ID:         r.ID,
		Name:       r.Name,
		OwnerID:    r.CreatedBy,
		Visibility: tree.ParseVisibility(r.Visibility),
	}
}

type blockRow struct {
	ID        string  `json:"id"`
	TreeID    string  `json:"tree_id"`
	Name      string  `json:"name"`
	BlockType *string `json:"block_type"`
	Position  int     `json:"position"`
}

func (r blockRow) toDomain() tree.Block {
	return tree.Block{
		ID:       r.ID,
		TreeID:   r.TreeID,
		Name:     r.Name,
		Type:     deref(r.BlockType),
		Position: r.Position,
	}
}

type attachmentRow struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	FileType *string `json:"file_type"`
	FileURL  *string `json:"file_url"`
}

type linkRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type nodeRow struct {
	ID                string          `json:"id"`
	BlockID           string          `json:"block_id"`
	TreeID            string          `json:"tree_id"`
	Name              string          `json:"name"`
	Description       *string         `json:"description"`
	Content           *string         `json:"content"`
	Position          int             `json:"position"`
	ReferencedTreeIDs []string        `json:"referenced_tree_ids"`
	Attachments       []attachmentRow `json:"node_attachments"`
	Links             []linkRow       `json:"node_links"`
	Similarity        float64         `json:"similarity,omitempty"`
}

func (r nodeRow) toDomain() tree.Node {
	n := tree.Node{
		ID:                r.ID,
		BlockID:           r.BlockID,
		TreeID:            r.TreeID,
		Title:             r.Name,
		Description:       deref(r.Description),
		Content:           deref(r.Content),
		Position:          r.Position,
		ReferencedTreeIDs: r.ReferencedTreeIDs,
	}
	for _, a := range r.Attachments {
		n.Attachments = append(n.Attachments, tree.Attachment{
			ID:   a.ID,
			Name: a.Name,
			Type: deref(a.FileType),
			URL:  deref(a.FileURL),
		})
	}
	for _, l := range r.Links {
		n.Links = append(n.Links, tree.Link{ID: l.ID, Title: l.Name, URL: l.URL})
	}
	n.Normalize()
	return n
}

type dependencyRow struct {
	NodeID      string `json:"node_id"`
	DependsOnID string `json:"depends_on_node_id"`
}

type memberRow struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

type matchParams struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	TreeID         string    `json:"match_tree_id"`
	Threshold      float64   `json:"match_threshold"`
	Count          int       `json:"match_count"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
