// Package messaging publishes integration events.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/domain/events"
)

// EventBridgeAPI is the subset of the EventBridge client used here
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgePublisher implements ports.EventPublisher using AWS EventBridge
type EventBridgePublisher struct {
	client   EventBridgeAPI
	eventBus string
	source   string
	logger   *zap.Logger
}

var _ ports.EventPublisher = (*EventBridgePublisher)(nil)

// NewEventBridgePublisher creates a new EventBridge publisher
func NewEventBridgePublisher(client EventBridgeAPI, eventBus, source string, logger *zap.Logger) *EventBridgePublisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if source == "" {
		source = events.SourceBackend
	}
	return &EventBridgePublisher{
		client:   client,
		eventBus: eventBus,
		source:   source,
		logger:   logger,
	}
}

// Publish sends one event
func (p *EventBridgePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	entry, err := p.createEventEntry(event)
	if err != nil {
		return err
	}

	output, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("failed to put events: %w", err)
	}

	if output.FailedEntryCount > 0 {
		for _, e := range output.Entries {
			if e.ErrorCode != nil {
				p.logger.Error("EventBridge rejected event",
					zap.String("eventType", event.GetEventType()),
					zap.String("code", aws.ToString(e.ErrorCode)),
					zap.String("message", aws.ToString(e.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", output.FailedEntryCount)
	}

	p.logger.Debug("Event published",
		zap.String("eventType", event.GetEventType()),
		zap.String("eventID", event.GetEventID()),
	)
	return nil
}

func (p *EventBridgePublisher) createEventEntry(event events.DomainEvent) (types.PutEventsRequestEntry, error) {
	detail, err := json.Marshal(event)
	if err != nil {
		return types.PutEventsRequestEntry{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	occurred := event.GetTimestamp()
	if occurred.IsZero() {
		occurred = time.Now()
	}

	return types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBus),
		Source:       aws.String(p.source),
		DetailType:   aws.String(event.GetEventType()),
		Detail:       aws.String(string(detail)),
		Time:         aws.Time(occurred),
		Resources:    []string{event.GetAggregateID()},
	}, nil
}

// LoggingPublisher writes events to the log. Used when no event bus is
// configured.
type LoggingPublisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*LoggingPublisher)(nil)

// NewLoggingPublisher creates a new logging publisher
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

// Publish logs the event at debug level
func (p *LoggingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Debug("Event raised",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
	)
	return nil
}
