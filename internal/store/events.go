package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepo appends domain events for audit and fan-out.
type EventRepo struct {
	Pool *pgxpool.Pool
}

// Append stores one event.
func (r *EventRepo) Append(ctx context.Context, topic string, payload []byte) (Event, error) {
	e := Event{Topic: topic, Payload: payload}
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (topic, payload)
		VALUES ($1, $2)
		RETURNING id, created_at`, topic, payload).
		Scan(&e.ID, &e.CreatedAt)
	return e, err
}

// ListRecent returns the newest events for a topic, most recent first.
func (r *EventRepo) ListRecent(ctx context.Context, topic string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.Pool.Query(ctx, `
		SELECT id, topic, payload, created_at
		FROM domain_events
		WHERE topic = $1
		ORDER BY created_at DESC
		LIMIT $2`, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
