package application

import (
	"context"
	"fmt"

	"investor/domain/events"
	"investor/infrastructure/observability"
)

// RegisterMetricsSubscriptions feeds lifecycle events into the metrics provider
func RegisterMetricsSubscriptions(registrar LocalHandlerRegistrar, metrics *observability.MetricsProvider) {
	registrar.RegisterLocalHandler(events.EventTypeInvestmentCreated, func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.InvestmentCreatedEvent)
		if !ok {
			return unexpectedEvent(event)
		}
		metrics.RecordInvestmentCreated(e.PlanAmount)
		return nil
	})

	registrar.RegisterLocalHandler(events.EventTypeInvestmentActivated, func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.InvestmentActivatedEvent)
		if !ok {
			return unexpectedEvent(event)
		}
		metrics.RecordInvestmentActivated(e.PlanAmount, e.Source)
		return nil
	})

	registrar.RegisterLocalHandler(events.EventTypeInvestmentFailed, func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.InvestmentFailedEvent)
		if !ok {
			return unexpectedEvent(event)
		}
		metrics.RecordInvestmentFailed(e.Source)
		return nil
	})

	registrar.RegisterLocalHandler(events.EventTypeReturnsAccrued, func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ReturnsAccruedEvent)
		if !ok {
			return unexpectedEvent(event)
		}
		metrics.RecordReturnsAccrued(e.Delta())
		return nil
	})

	registrar.RegisterLocalHandler(events.EventTypeInvestmentCompleted, func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.InvestmentCompletedEvent)
		if !ok {
			return unexpectedEvent(event)
		}
		metrics.RecordInvestmentCompleted(e.PlanAmount)
		return nil
	})
}

func unexpectedEvent(event events.Event) error {
	return fmt.Errorf("unexpected event type %T for %s", event, event.Type())
}
