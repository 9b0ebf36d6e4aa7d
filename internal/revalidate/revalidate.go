// Package revalidate tracks which views showing event data are stale.
//
// Every change notification on the event bus bumps the version of the affected view paths. Views
// compare versions (the listing handler serves them as ETags) to decide whether to re-render, and an
// optional Publisher forwards each invalidation to other processes.
package revalidate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/eventboard/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// ListingPath is the view listing all events.
const ListingPath = "/"

// EditPath is the view editing a single event.
func EditPath(eventId string) string {
	return "/events/" + eventId + "/edit"
}

type Invalidation struct {
	Path    string    `json:"path"`
	Version uint64    `json:"version"`
	At      time.Time `json:"at"`
	// Origin is the epoch of the process that made the change.
	Origin string `json:"origin"`
}

type Publisher interface {
	Publish(ctx context.Context, invalidation Invalidation) error
}

type Revalidator struct {
	mu        sync.RWMutex
	versions  map[string]uint64
	epoch     string
	publisher Publisher
}

// New creates a Revalidator. publisher may be nil.
func New(publisher Publisher) *Revalidator {
	return &Revalidator{
		versions:  make(map[string]uint64),
		epoch:     uuid.NewString()[:8],
		publisher: publisher,
	}
}

// Revalidate marks the given paths stale. Publishing failures are only logged.
func (r *Revalidator) Revalidate(ctx context.Context, paths ...string) {
	now := time.Now()
	invalidations := make([]Invalidation, 0, len(paths))

	r.mu.Lock()
	for _, path := range paths {
		r.versions[path]++
		invalidations = append(invalidations, Invalidation{
			Path:    path,
			Version: r.versions[path],
			At:      now,
			Origin:  r.epoch,
		})
	}
	r.mu.Unlock()

	for _, invalidation := range invalidations {
		log.Debugf("Revalidating %s (version %d)", invalidation.Path, invalidation.Version)
		if r.publisher == nil {
			continue
		}
		if err := r.publisher.Publish(ctx, invalidation); err != nil {
			log.Warnf("failed to publish invalidation of %s: %v", invalidation.Path, err)
		}
	}
}

// Apply marks a path stale on behalf of another process sharing the store. Invalidations that
// originate from this process were already counted by Revalidate and are ignored.
func (r *Revalidator) Apply(invalidation Invalidation) bool {
	if invalidation.Origin == r.epoch {
		return false
	}
	r.mu.Lock()
	r.versions[invalidation.Path]++
	version := r.versions[invalidation.Path]
	r.mu.Unlock()
	log.Debugf("Revalidating %s on behalf of %s (version %d)", invalidation.Path, invalidation.Origin, version)
	return true
}

func (r *Revalidator) Version(path string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[path]
}

// ETag identifies the current version of path. The epoch part changes on every process start, so
// tags handed out before a restart never match.
func (r *Revalidator) ETag(path string) string {
	return fmt.Sprintf(`W/"%s-%d"`, r.epoch, r.Version(path))
}

// SubscribeTo revalidates the listing on every change and the edit view of updated events.
func (r *Revalidator) SubscribeTo(bus *event_bus.EventBus) (unsubscribe func()) {
	unsubscribers := []func(){
		event_bus.SubscribeTyped(bus, event_bus.EventCreatedType, func(e event_bus.EventT[event_bus.EventCreated]) error {
			r.Revalidate(e.Context(), ListingPath)
			return nil
		}),
		event_bus.SubscribeTyped(bus, event_bus.EventUpdatedType, func(e event_bus.EventT[event_bus.EventUpdated]) error {
			r.Revalidate(e.Context(), ListingPath, EditPath(e.Data.Id))
			return nil
		}),
		event_bus.SubscribeTyped(bus, event_bus.EventDeletedType, func(e event_bus.EventT[event_bus.EventDeleted]) error {
			r.Revalidate(e.Context(), ListingPath)
			return nil
		}),
	}
	return func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
}
