package event

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/klokku/eventboard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)

type repositoryFactory func(t *testing.T, clock utils.Clock) Repository

func standupData() EventData {
	return EventData{Title: "Standup", Date: "2024-05-01", Time: "09:00", Notes: "daily"}
}

// testRepository runs the behaviour every store must share.
func testRepository(t *testing.T, newRepo repositoryFactory) {
	ctx := context.Background()

	setup := func(t *testing.T) (Repository, *utils.MockClock) {
		clock := &utils.MockClock{FixedNow: baseTime}
		return newRepo(t, clock), clock
	}

	t.Run("should start empty", func(t *testing.T) {
		repo, _ := setup(t)

		// when
		events, err := repo.List(ctx)

		// then
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("should create and get an event", func(t *testing.T) {
		repo, _ := setup(t)

		// when
		created, err := repo.Create(ctx, standupData())

		// then
		require.NoError(t, err)
		assert.NotEmpty(t, created.Id)
		assert.Equal(t, "Standup", created.Title)
		assert.True(t, baseTime.Equal(created.CreatedAt))

		fetched, found, err := repo.GetById(ctx, created.Id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, created.Id, fetched.Id)
		assert.Equal(t, "Standup", fetched.Title)
		assert.Equal(t, "2024-05-01", fetched.Date)
		assert.Equal(t, "09:00", fetched.Time)
		assert.Equal(t, "daily", fetched.Notes)
		assert.False(t, fetched.Recurring)
		assert.True(t, created.CreatedAt.Equal(fetched.CreatedAt))
	})

	t.Run("should assign distinct ids", func(t *testing.T) {
		repo, _ := setup(t)

		// when
		first, err := repo.Create(ctx, standupData())
		require.NoError(t, err)
		second, err := repo.Create(ctx, standupData())
		require.NoError(t, err)

		// then
		assert.NotEqual(t, first.Id, second.Id)
	})

	t.Run("should report unknown id as not found", func(t *testing.T) {
		repo, _ := setup(t)

		// when
		_, found, err := repo.GetById(ctx, "missing")

		// then
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("should list by date then time regardless of insertion order", func(t *testing.T) {
		repo, clock := setup(t)

		// given
		inputs := []EventData{
			{Title: "C", Date: "2024-05-02", Time: "08:00"},
			{Title: "B", Date: "2024-05-01", Time: "18:00"},
			{Title: "A", Date: "2024-05-01", Time: "09:00"},
			{Title: "D", Date: "2024-06-01", Time: "00:00"},
		}
		for _, data := range inputs {
			_, err := repo.Create(ctx, data)
			require.NoError(t, err)
			clock.Advance(time.Second)
		}

		// when
		events, err := repo.List(ctx)

		// then
		require.NoError(t, err)
		titles := make([]string, 0, len(events))
		for _, e := range events {
			titles = append(titles, e.Title)
		}
		assert.Equal(t, []string{"A", "B", "C", "D"}, titles)
	})

	t.Run("should keep creation order for equal date and time created in the same instant", func(t *testing.T) {
		repo, _ := setup(t)

		// given
		created := make([]string, 0, 12)
		for i := 0; i < 12; i++ {
			title := fmt.Sprintf("event %02d", 11-i)
			_, err := repo.Create(ctx, EventData{Title: title, Date: "2024-05-01", Time: "09:00"})
			require.NoError(t, err)
			created = append(created, title)
		}

		// when
		events, err := repo.List(ctx)

		// then
		require.NoError(t, err)
		titles := make([]string, 0, len(events))
		for _, e := range events {
			titles = append(titles, e.Title)
		}
		assert.Equal(t, created, titles)
	})

	t.Run("should update only the patched fields", func(t *testing.T) {
		repo, clock := setup(t)

		// given
		created, err := repo.Create(ctx, standupData())
		require.NoError(t, err)
		clock.Advance(time.Hour)

		// when
		title := "Daily Standup"
		updated, found, err := repo.Update(ctx, created.Id, EventPatch{Title: &title})

		// then
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, created.Id, updated.Id)
		assert.Equal(t, "Daily Standup", updated.Title)
		assert.Equal(t, created.Date, updated.Date)
		assert.Equal(t, created.Time, updated.Time)
		assert.Equal(t, created.Notes, updated.Notes)
		assert.Equal(t, created.Recurring, updated.Recurring)
		assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

		fetched, _, err := repo.GetById(ctx, created.Id)
		require.NoError(t, err)
		assert.Equal(t, "Daily Standup", fetched.Title)
		assert.Equal(t, "daily", fetched.Notes)
	})

	t.Run("should overwrite every field with a full patch", func(t *testing.T) {
		repo, _ := setup(t)

		// given
		created, err := repo.Create(ctx, standupData())
		require.NoError(t, err)

		// when
		updated, found, err := repo.Update(ctx, created.Id, PatchOf(EventData{
			Title: "Retro", Date: "2024-05-03", Time: "15:00", Notes: "", Recurring: true,
		}))

		// then
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Retro", updated.Title)
		assert.Equal(t, "2024-05-03", updated.Date)
		assert.Equal(t, "15:00", updated.Time)
		assert.Equal(t, "", updated.Notes)
		assert.True(t, updated.Recurring)
	})

	t.Run("should not create an event when updating an unknown id", func(t *testing.T) {
		repo, _ := setup(t)

		// when
		_, found, err := repo.Update(ctx, "missing", PatchOf(standupData()))

		// then
		require.NoError(t, err)
		assert.False(t, found)
		events, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("should delete an event once", func(t *testing.T) {
		repo, _ := setup(t)

		// given
		created, err := repo.Create(ctx, standupData())
		require.NoError(t, err)
		other, err := repo.Create(ctx, EventData{Title: "Other", Date: "2024-05-02", Time: "10:00"})
		require.NoError(t, err)

		// when
		deleted, err := repo.Delete(ctx, created.Id)
		require.NoError(t, err)
		deletedAgain, err := repo.Delete(ctx, created.Id)
		require.NoError(t, err)

		// then
		assert.True(t, deleted)
		assert.False(t, deletedAgain)
		_, found, err := repo.GetById(ctx, created.Id)
		require.NoError(t, err)
		assert.False(t, found)
		events, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, other.Id, events[0].Id)
	})

	t.Run("should report unknown id on delete", func(t *testing.T) {
		repo, _ := setup(t)

		// when
		deleted, err := repo.Delete(ctx, "missing")

		// then
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("should keep every concurrent create", func(t *testing.T) {
		repo, _ := setup(t)

		// when
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Create(ctx, standupData())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// then
		events, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 20)
	})
}
