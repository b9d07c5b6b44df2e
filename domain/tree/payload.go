package tree

// TreeSummary is the tree metadata carried in a context payload.
type TreeSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ContextBlock is a block together with the nodes selected from it.
type ContextBlock struct {
	Block
	Nodes []Node `json:"nodes"`
}

// ContextPayload is the subset of a tree assembled to ground an answer.
// It is built per request and never persisted.
type ContextPayload struct {
	Tree   TreeSummary    `json:"tree"`
	Blocks []ContextBlock `json:"blocks"`
}

// NewContextPayload returns an empty payload for t.
func NewContextPayload(t *Tree) *ContextPayload {
	return &ContextPayload{
		Tree: TreeSummary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
		},
		Blocks: []ContextBlock{},
	}
}

// NodeCount returns the number of nodes across all blocks.
func (p *ContextPayload) NodeCount() int {
	if p == nil {
		return 0
	}
	count := 0
	for _, b := range p.Blocks {
		count += len(b.Nodes)
	}
	return count
}

// Empty reports whether the payload holds no nodes.
func (p *ContextPayload) Empty() bool {
	return p.NodeCount() == 0
}

// Truncate keeps the first max nodes walking blocks in order and nodes in
// order inside each block. Blocks left without nodes are removed. It
// returns how many nodes were dropped; afterwards NodeCount() equals
// min(max, count before the call).
func (p *ContextPayload) Truncate(max int) int {
	if p == nil {
		return 0
	}
	if max < 0 {
		max = 0
	}
	before := p.NodeCount()
	if before <= max {
		return 0
	}

	remaining := max
	kept := make([]ContextBlock, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		if remaining == 0 {
			break
		}
		if len(b.Nodes) == 0 {
			continue
		}
		if len(b.Nodes) > remaining {
			b.Nodes = b.Nodes[:remaining]
		}
		remaining -= len(b.Nodes)
		kept = append(kept, b)
	}
	p.Blocks = kept

	return before - p.NodeCount()
}

// Characters is a rough size of the payload's text, used for cost estimates.
func (p *ContextPayload) Characters() int {
	if p == nil {
		return 0
	}
	total := len(p.Tree.Name) + len(p.Tree.Description)
	for _, b := range p.Blocks {
		total += len(b.Name)
		for _, n := range b.Nodes {
			total += len(n.Title) + len(n.Description) + len(n.Content)
		}
	}
	return total
}
