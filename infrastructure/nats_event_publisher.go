package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"investor/domain/events"
	"investor/domain/interfaces"
	"investor/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const sourceService = "investor"

// EventEnvelope wraps every event published to NATS
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

type localHandler func(context.Context, events.Event) error

// NATSEventPublisher runs local handlers for an event and then publishes it to NATS.
// With a nil bus only the local handlers run.
type NATSEventPublisher struct {
	bus           MessagePublisher
	subjectMapper *EventSubjectMapper
	metrics       *observability.MetricsProvider

	mu            sync.RWMutex
	localHandlers map[events.EventType][]localHandler
}

var _ interfaces.EventPublisher = (*NATSEventPublisher)(nil)

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(bus MessagePublisher, subjectMapper *EventSubjectMapper, metrics *observability.MetricsProvider) *NATSEventPublisher {
	return &NATSEventPublisher{
		bus:           bus,
		subjectMapper: subjectMapper,
		metrics:       metrics,
		localHandlers: make(map[events.EventType][]localHandler),
	}
}

// Publish publishes an event to NATS using the appropriate subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx := context.Background()
	eventType := event.Type()

	p.mu.RLock()
	handlers := p.localHandlers[eventType]
	p.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			// Local handler errors shouldn't stop other handlers or NATS publishing
			log.WithFields(log.Fields{
				"eventType": eventType,
				"error":     err,
			}).Error("Local event handler failed")
		}
	}

	if p.bus == nil {
		return nil
	}

	subject := p.subjectMapper.MapEventToSubject(event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(eventType),
		Timestamp:     time.Now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}

	envelopeData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.bus.Publish(publishCtx, subject, envelopeData); err != nil {
		// No stream bound to the subject; nobody is listening
		if strings.Contains(err.Error(), "no response from stream") {
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}
	p.metrics.RecordNATSMessagePublished(string(eventType))

	log.WithFields(log.Fields{
		"eventType": eventType,
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}

// RegisterLocalHandler registers a handler that will be invoked locally for events
// This allows handling events in the same process that publishes them
func (p *NATSEventPublisher) RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.localHandlers[eventType] = append(p.localHandlers[eventType], handler)
	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(p.localHandlers[eventType]),
	}).Debug("Registered local event handler")
}

// EnsureEventStream ensures the investment event stream exists with the correct subjects
func (p *NATSEventPublisher) EnsureEventStream(client *NATSClient) error {
	return client.EnsureStream(StreamName, p.subjectMapper.GetAllSubjects())
}
