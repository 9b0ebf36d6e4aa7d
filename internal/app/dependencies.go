package app

import (
	"github.com/klokku/eventboard/internal/event_bus"
	"github.com/klokku/eventboard/internal/metrics"
	"github.com/klokku/eventboard/internal/revalidate"
	"github.com/klokku/eventboard/internal/utils"
	"github.com/klokku/eventboard/pkg/event"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock       utils.Clock
	EventBus    *event_bus.EventBus
	Metrics     *metrics.Metrics
	Revalidator *revalidate.Revalidator

	EventRepository event.Repository
	EventService    event.Service
	EventHandler    *event.Handler
}

// BuildDependencies wires the services and handlers around an already opened store.
// publisher may be nil when invalidations stay in-process.
func BuildDependencies(repo event.Repository, clock utils.Clock, publisher revalidate.Publisher) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = clock
	deps.EventBus = event_bus.NewEventBus()
	deps.Metrics = metrics.New()

	deps.Revalidator = revalidate.New(publisher)
	deps.Revalidator.SubscribeTo(deps.EventBus)

	deps.EventRepository = repo
	deps.EventService = event.NewService(deps.EventRepository, deps.EventBus, deps.Metrics)
	deps.EventHandler = event.NewHandler(deps.EventService, deps.Revalidator, deps.Clock)

	return deps
}
