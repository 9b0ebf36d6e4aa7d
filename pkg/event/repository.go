package event

import "context"

// Repository holds the authoritative set of events. Absence is reported through the boolean
// results; the error result is reserved for backend failures.
type Repository interface {
	List(ctx context.Context) ([]Event, error)
	GetById(ctx context.Context, id string) (Event, bool, error)
	Create(ctx context.Context, data EventData) (Event, error)
	Update(ctx context.Context, id string, patch EventPatch) (Event, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}
