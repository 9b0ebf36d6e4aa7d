package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/eventboard/internal/utils"
	log "github.com/sirupsen/logrus"
)

type PostgresRepository struct {
	db    *pgxpool.Pool
	clock utils.Clock
}

func NewPostgresRepository(db *pgxpool.Pool, clock utils.Clock) *PostgresRepository {
	return &PostgresRepository{db: db, clock: clock}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Event, error) {
	// Byte-wise collation keeps ISO dates and HH:MM times in chronological order.
	query := `SELECT id, title, event_date, event_time, notes, recurring, created_at_ms
              FROM event
              ORDER BY event_date COLLATE "C", event_time COLLATE "C", seq, created_at_ms`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not query events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0, 10)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return events, nil
}

func (r *PostgresRepository) GetById(ctx context.Context, id string) (Event, bool, error) {
	query := `SELECT id, title, event_date, event_time, notes, recurring, created_at_ms FROM event WHERE id = $1`

	event, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		err := fmt.Errorf("could not query event %s: %w", id, err)
		log.Error(err)
		return Event{}, false, err
	}
	return event, true, nil
}

// seqLockKey names the advisory lock serializing creates, so seq follows creation order across
// connections and processes.
const seqLockKey int64 = 0x6576656e74

func (r *PostgresRepository) Create(ctx context.Context, data EventData) (Event, error) {
	query := `INSERT INTO event (
                   id,
                   title,
                   event_date,
                   event_time,
                   notes,
                   recurring,
                   created_at_ms,
                   seq
				) VALUES ($1, $2, $3, $4, $5, $6, $7, (SELECT COALESCE(MAX(seq), 0) + 1 FROM event))`

	event := Event{
		Id:        uuid.NewString(),
		Title:     data.Title,
		Date:      data.Date,
		Time:      data.Time,
		Notes:     data.Notes,
		Recurring: data.Recurring,
		CreatedAt: time.UnixMilli(r.clock.Now().UnixMilli()),
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		err := fmt.Errorf("could not begin transaction: %w", err)
		log.Error(err)
		return Event{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, seqLockKey); err != nil {
		err := fmt.Errorf("could not lock event sequence: %w", err)
		log.Error(err)
		return Event{}, err
	}
	_, err = tx.Exec(ctx, query,
		event.Id,
		event.Title,
		event.Date,
		event.Time,
		event.Notes,
		event.Recurring,
		event.CreatedAt.UnixMilli(),
	)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Event{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		err := fmt.Errorf("could not commit transaction: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, patch EventPatch) (Event, bool, error) {
	query := `UPDATE event SET
                 title = COALESCE($1, title),
                 event_date = COALESCE($2, event_date),
                 event_time = COALESCE($3, event_time),
                 notes = COALESCE($4, notes),
                 recurring = COALESCE($5, recurring)
			  WHERE id = $6
			  RETURNING id, title, event_date, event_time, notes, recurring, created_at_ms`

	row := r.db.QueryRow(ctx, query, patch.Title, patch.Date, patch.Time, patch.Notes, patch.Recurring, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		err := fmt.Errorf("could not update event %s: %w", id, err)
		log.Error(err)
		return Event{}, false, err
	}
	return event, true, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM event WHERE id = $1`, id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
