package event

import (
	"context"
	"fmt"

	"github.com/klokku/eventboard/internal/event_bus"
	"github.com/klokku/eventboard/internal/revalidate"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// Result is what a mutating action reports back to its caller.
type Result struct {
	Success bool
	Errors  FieldErrors
	Message string
	// Event is the stored record after a successful create or update.
	Event *Event
	// Redirect is the view the caller should navigate to next, if any.
	Redirect string
	Outcome  Outcome
}

type Service interface {
	ListEvents(ctx context.Context) ([]Event, error)
	GetEvent(ctx context.Context, id string) *Event
	CreateEvent(ctx context.Context, form FormData) Result
	UpdateEvent(ctx context.Context, id string, form FormData) Result
	DeleteEvent(ctx context.Context, id string) Result
}

// ActionRecorder counts action outcomes.
type ActionRecorder interface {
	ObserveAction(action, outcome string)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
	recorder ActionRecorder
	tracer   trace.Tracer
}

func NewService(repo Repository, eventBus *event_bus.EventBus, recorder ActionRecorder) Service {
	return &ServiceImpl{
		repo:     repo,
		eventBus: eventBus,
		recorder: recorder,
		tracer:   otel.Tracer("github.com/klokku/eventboard/pkg/event"),
	}
}

func (s *ServiceImpl) ListEvents(ctx context.Context) ([]Event, error) {
	ctx, span := s.tracer.Start(ctx, "event.list")
	defer span.End()

	var events []Event
	err := isolate(func() (err error) {
		events, err = s.repo.List(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	span.SetAttributes(attribute.Int("event.count", len(events)))
	return events, nil
}

// GetEvent returns nil both when the event does not exist and when the store fails.
func (s *ServiceImpl) GetEvent(ctx context.Context, id string) *Event {
	ctx, span := s.tracer.Start(ctx, "event.get", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	var event Event
	var found bool
	err := isolate(func() (err error) {
		event, found, err = s.repo.GetById(ctx, id)
		return err
	})
	if err != nil {
		log.Errorf("failed to get event %s: %v", id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return nil
	}
	if !found {
		return nil
	}
	return &event
}

func (s *ServiceImpl) CreateEvent(ctx context.Context, form FormData) Result {
	ctx, span := s.tracer.Start(ctx, "event.create")
	defer span.End()

	data, fieldErrors := Validate(form)
	if len(fieldErrors) > 0 {
		log.Debugf("rejected event creation: %v", fieldErrors)
		return s.finish("create", Result{Errors: fieldErrors, Outcome: OutcomeInvalid})
	}

	var created Event
	err := isolate(func() (err error) {
		created, err = s.repo.Create(ctx, data)
		return err
	})
	if err != nil {
		s.recordFailure(span, "create", err)
		return s.finish("create", Result{
			Message: "Failed to create event. Please try again.",
			Outcome: OutcomeFailed,
		})
	}
	span.SetAttributes(attribute.String("event.id", created.Id))

	s.publish(ctx, event_bus.EventCreatedType, event_bus.EventCreated{
		Id:        created.Id,
		Title:     created.Title,
		Date:      created.Date,
		Time:      created.Time,
		Recurring: created.Recurring,
		CreatedAt: created.CreatedAt,
	})
	return s.finish("create", Result{
		Success:  true,
		Event:    &created,
		Redirect: revalidate.ListingPath,
		Outcome:  OutcomeSuccess,
	})
}

// UpdateEvent overwrites every submitted field of the event. Notes left out of the form keep their
// stored value.
func (s *ServiceImpl) UpdateEvent(ctx context.Context, id string, form FormData) Result {
	ctx, span := s.tracer.Start(ctx, "event.update", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	data, fieldErrors := Validate(form)
	if len(fieldErrors) > 0 {
		log.Debugf("rejected update of event %s: %v", id, fieldErrors)
		return s.finish("update", Result{Errors: fieldErrors, Outcome: OutcomeInvalid})
	}

	patch := PatchOf(data)
	if form.Notes == nil {
		patch.Notes = nil
	}

	var updated Event
	var found bool
	err := isolate(func() (err error) {
		updated, found, err = s.repo.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		s.recordFailure(span, "update", err)
		return s.finish("update", Result{
			Message: "Failed to update event. Please try again.",
			Outcome: OutcomeFailed,
		})
	}
	if !found {
		log.Debugf("event %s not found for update", id)
		return s.finish("update", Result{
			Message: "Event not found or failed to update.",
			Outcome: OutcomeNotFound,
		})
	}

	s.publish(ctx, event_bus.EventUpdatedType, event_bus.EventUpdated{
		Id:        updated.Id,
		Title:     updated.Title,
		Date:      updated.Date,
		Time:      updated.Time,
		Recurring: updated.Recurring,
	})
	return s.finish("update", Result{
		Success:  true,
		Event:    &updated,
		Redirect: revalidate.ListingPath,
		Outcome:  OutcomeSuccess,
	})
}

func (s *ServiceImpl) DeleteEvent(ctx context.Context, id string) Result {
	ctx, span := s.tracer.Start(ctx, "event.delete", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	var deleted bool
	err := isolate(func() (err error) {
		deleted, err = s.repo.Delete(ctx, id)
		return err
	})
	if err != nil {
		s.recordFailure(span, "delete", err)
		return s.finish("delete", Result{
			Message: "Failed to delete event. Please try again.",
			Outcome: OutcomeFailed,
		})
	}
	if !deleted {
		log.Debugf("event %s not found for deletion", id)
		return s.finish("delete", Result{
			Message: "Event not found or failed to delete.",
			Outcome: OutcomeNotFound,
		})
	}

	s.publish(ctx, event_bus.EventDeletedType, event_bus.EventDeleted{Id: id})
	return s.finish("delete", Result{Success: true, Outcome: OutcomeSuccess})
}

// isolate runs a store call and turns a panic into an error.
func isolate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panic: %v", r)
		}
	}()
	return fn()
}

func (s *ServiceImpl) recordFailure(span trace.Span, action string, err error) {
	log.Errorf("failed to %s event: %v", action, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "store failure")
}

func (s *ServiceImpl) finish(action string, result Result) Result {
	if s.recorder != nil {
		s.recorder.ObserveAction(action, string(result.Outcome))
	}
	return result
}

// publish notifies subscribers after the store has changed. It ignores cancellation of ctx since the
// change is already committed. Subscriber failures are only logged.
func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(context.WithoutCancel(ctx), eventType, data)); err != nil {
		log.Warnf("failed to publish %s: %v", eventType, err)
	}
}
