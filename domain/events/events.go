package events

import (
	"time"

	"github.com/google/uuid"
)

// SourceBackend is the event source name used on the bus.
const SourceBackend = "labsos.backend"

// DomainEvent is something that has happened in the past
type DomainEvent interface {
	GetEventID() string
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetEventID() string      { return e.EventID }
func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		EventID:     uuid.NewString(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
	}
}

// SearchCompleted is raised after an ai-search answer has been assembled.
type SearchCompleted struct {
	BaseEvent
	TreeID          string  `json:"tree_id"`
	UserID          string  `json:"user_id,omitempty"`
	Strategy        string  `json:"context_strategy"`
	Classification  string  `json:"query_classification"`
	TotalNodes      int     `json:"total_nodes"`
	ContextNodes    int     `json:"context_nodes"`
	EstimatedCost   float64 `json:"estimated_cost"`
	AnswerGenerated bool    `json:"answer_generated"`
}

// NewSearchCompleted creates a SearchCompleted event
func NewSearchCompleted(treeID, userID, strategy, classification string, totalNodes, contextNodes int, cost float64, answered bool, timestamp time.Time) SearchCompleted {
	return SearchCompleted{
		BaseEvent:       newBase(treeID, "ai_search.completed", timestamp),
		TreeID:          treeID,
		UserID:          userID,
		Strategy:        strategy,
		Classification:  classification,
		TotalNodes:      totalNodes,
		ContextNodes:    contextNodes,
		EstimatedCost:   cost,
		AnswerGenerated: answered,
	}
}

// NodeReferencesUpdated is raised when a node's referenced trees change.
type NodeReferencesUpdated struct {
	BaseEvent
	NodeID            string   `json:"node_id"`
	TreeID            string   `json:"tree_id"`
	UserID            string   `json:"user_id"`
	ReferencedTreeIDs []string `json:"referenced_tree_ids"`
}

// NewNodeReferencesUpdated creates a NodeReferencesUpdated event
func NewNodeReferencesUpdated(nodeID, treeID, userID string, refs []string, timestamp time.Time) NodeReferencesUpdated {
	return NodeReferencesUpdated{
		BaseEvent:         newBase(nodeID, "node.references_updated", timestamp),
		NodeID:            nodeID,
		TreeID:            treeID,
		UserID:            userID,
		ReferencedTreeIDs: refs,
	}
}
