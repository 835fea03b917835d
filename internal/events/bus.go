package events

import (
	platformevents "techo_backend/platform/events"
	"techo_backend/platform/logger"
)

// InMemoryBus is the process-local bus shared by the API and the worker.
type InMemoryBus = platformevents.InMemoryBus

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// SubscribeAll registers handler for every named event.
func SubscribeAll(bus Bus, handler Handler, eventNames ...string) {
	platformevents.SubscribeAll(bus, handler, eventNames...)
}
