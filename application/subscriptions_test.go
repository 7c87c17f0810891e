package application

import (
	"context"
	"testing"

	"investor/domain/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerRegistry map[events.EventType]func(context.Context, events.Event) error

func (r handlerRegistry) RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error) {
	r[eventType] = handler
}

func TestRegisterMetricsSubscriptions(t *testing.T) {
	registry := handlerRegistry{}
	RegisterMetricsSubscriptions(registry, nil)

	id := uuid.New()
	tests := []events.Event{
		events.InvestmentCreatedEvent{InvestmentID: id, PlanAmount: 5},
		events.InvestmentActivatedEvent{InvestmentID: id, PlanAmount: 5, Source: events.SourceCallback},
		events.InvestmentFailedEvent{InvestmentID: id, Source: events.SourcePoll},
		events.ReturnsAccruedEvent{InvestmentID: id, OldReturns: 10, NewReturns: 25},
		events.InvestmentCompletedEvent{InvestmentID: id, PlanAmount: 5, FinalReturns: 100},
	}

	require.Len(t, registry, len(tests))
	for _, event := range tests {
		t.Run(string(event.Type()), func(t *testing.T) {
			handler, ok := registry[event.Type()]
			require.True(t, ok)
			assert.NoError(t, handler(context.Background(), event))
		})
	}
}

func TestRegisterMetricsSubscriptions_RejectsMismatchedEvent(t *testing.T) {
	registry := handlerRegistry{}
	RegisterMetricsSubscriptions(registry, nil)

	handler := registry[events.EventTypeInvestmentActivated]
	err := handler(context.Background(), events.InvestmentCompletedEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event type")
}
