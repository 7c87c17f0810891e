package application

import (
	"context"

	"investor/domain/events"
)

// LocalHandlerRegistrar accepts in-process handlers for published events
type LocalHandlerRegistrar interface {
	RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error)
}
