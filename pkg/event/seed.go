package event

import (
	"context"
	"fmt"
	"time"

	"github.com/klokku/eventboard/internal/utils"
	log "github.com/sirupsen/logrus"
)

// Seed adds a few demo events relative to today. It does nothing when the store already holds events.
func Seed(ctx context.Context, repo Repository, clock utils.Clock) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing events: %w", err)
	}
	if len(existing) > 0 {
		log.Debugf("Skipping seed, store already holds %d events", len(existing))
		return nil
	}

	today := clock.Now()
	day := func(offset int) string {
		return today.AddDate(0, 0, offset).Format(time.DateOnly)
	}
	demo := []EventData{
		{Title: "Team Meeting", Date: day(0), Time: "10:00", Notes: "Discuss project milestones."},
		{Title: "Doctor Appointment", Date: day(1), Time: "14:30"},
		{Title: "Grocery Shopping", Date: day(7), Time: "17:00", Notes: "Milk, eggs, bread", Recurring: true},
	}
	for _, data := range demo {
		if _, err := repo.Create(ctx, data); err != nil {
			return fmt.Errorf("failed to seed event %q: %w", data.Title, err)
		}
	}
	log.Infof("Seeded %d demo events", len(demo))
	return nil
}
