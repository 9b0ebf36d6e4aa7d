package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/eventboard/internal/utils"
	log "github.com/sirupsen/logrus"
)

// SqliteRepository stores events in an embedded SQLite database.
type SqliteRepository struct {
	db    *sql.DB
	clock utils.Clock
}

func NewSqliteRepository(db *sql.DB, clock utils.Clock) *SqliteRepository {
	return &SqliteRepository{db: db, clock: clock}
}

const sqliteSelectColumns = `SELECT id, title, event_date, event_time, notes, recurring, created_at_ms FROM event`

func (r *SqliteRepository) List(ctx context.Context) ([]Event, error) {
	query := sqliteSelectColumns + ` ORDER BY event_date, event_time, seq, created_at_ms`

	rows, err := r.db.QueryContext(ctx, query)
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
			err := fmt.Errorf("could not scan row: %w", err)
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

func (r *SqliteRepository) GetById(ctx context.Context, id string) (Event, bool, error) {
	query := sqliteSelectColumns + ` WHERE id = ?`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		err := fmt.Errorf("could not query event %s: %w", id, err)
		log.Error(err)
		return Event{}, false, err
	}
	return event, true, nil
}

func (r *SqliteRepository) Create(ctx context.Context, data EventData) (Event, error) {
	query := `INSERT INTO event (
                   id,
                   title,
                   event_date,
                   event_time,
                   notes,
                   recurring,
                   created_at_ms,
                   seq
				) VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM event))`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not prepare query: %w", err)
		log.Error(err)
		return Event{}, err
	}
	defer stmt.Close()

	event := Event{
		Id:        uuid.NewString(),
		Title:     data.Title,
		Date:      data.Date,
		Time:      data.Time,
		Notes:     data.Notes,
		Recurring: data.Recurring,
		CreatedAt: time.UnixMilli(r.clock.Now().UnixMilli()),
	}
	_, err = stmt.ExecContext(ctx, event.Id, event.Title, event.Date, event.Time, event.Notes, event.Recurring,
		event.CreatedAt.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

// Update merges the patch in a single statement; NULL parameters keep the stored value.
func (r *SqliteRepository) Update(ctx context.Context, id string, patch EventPatch) (Event, bool, error) {
	query := `UPDATE event SET
                 title = COALESCE(?, title),
                 event_date = COALESCE(?, event_date),
                 event_time = COALESCE(?, event_time),
                 notes = COALESCE(?, notes),
                 recurring = COALESCE(?, recurring)
			  WHERE id = ?
			  RETURNING id, title, event_date, event_time, notes, recurring, created_at_ms`

	row := r.db.QueryRowContext(ctx, query, nullable(patch.Title), nullable(patch.Date), nullable(patch.Time),
		nullable(patch.Notes), nullable(patch.Recurring), id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		err := fmt.Errorf("could not update event %s: %w", id, err)
		log.Error(err)
		return Event{}, false, err
	}
	return event, true, nil
}

func (r *SqliteRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM event WHERE id = ?`, id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not read affected rows: %w", err)
		log.Error(err)
		return false, err
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var event Event
	var createdAtMillis int64
	err := row.Scan(&event.Id, &event.Title, &event.Date, &event.Time, &event.Notes, &event.Recurring, &createdAtMillis)
	if err != nil {
		return Event{}, err
	}
	event.CreatedAt = time.UnixMilli(createdAtMillis)
	return event, nil
}

// nullable unwraps an optional patch field into a query argument, nil meaning SQL NULL.
func nullable[T any](value *T) any {
	if value == nil {
		return nil
	}
	return *value
}
