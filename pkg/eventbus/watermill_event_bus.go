package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/custodia-hq/custodia/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if _, exists := eb.subscriptions[eventType]; exists {
		return fmt.Errorf("handler already registered for event type %s", eventType)
	}

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := newEvent(eventType)
			if event == nil {
				msg.Ack()

				continue
			}

			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

// newEvent maps a wire event type back to a decodable struct.
func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.CycleStartedEvent:
		return &events.CycleStarted{}
	case events.CyclePausedEvent:
		return &events.CyclePaused{}
	case events.CycleResumedEvent:
		return &events.CycleResumed{}
	case events.CycleCompletedEvent:
		return &events.CycleCompleted{}
	case events.AgentTriggeredEvent:
		return &events.AgentTriggered{}
	case events.AgentCompletedEvent:
		return &events.AgentCompleted{}
	case events.AgentFailedEvent:
		return &events.AgentFailed{}
	case events.TaskCreatedEvent:
		return &events.TaskCreated{}
	case events.TaskCompletedEvent:
		return &events.TaskCompleted{}
	case events.TaskEscalatedEvent:
		return &events.TaskEscalated{}
	case events.IssueCreatedEvent:
		return &events.IssueCreated{}
	case events.IssueAssignedEvent:
		return &events.IssueAssigned{}
	case events.IssueEscalatedEvent:
		return &events.IssueEscalated{}
	case events.IssueResolvedEvent:
		return &events.IssueResolved{}
	case events.AuditRecordedEvent:
		return &events.AuditRecorded{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}

var _ EventBus = (*WatermillEventBus)(nil)
