package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/models"
)

// RecordWebhookEvent stores a verified inbound webhook delivery.
func RecordWebhookEvent(ctx context.Context, pool *pgxpool.Pool, event *models.WebhookEvent) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO webhook_events (source, event_type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, received_at
	`, event.Source, event.EventType, event.Payload).Scan(
		&event.ID,
		&event.ReceivedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	return nil
}

// GetWebhookEvents returns recent events for a source, newest first.
func GetWebhookEvents(ctx context.Context, pool *pgxpool.Pool, source string, limit int) ([]*models.WebhookEvent, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, source, event_type, payload, received_at
		FROM webhook_events
		WHERE source = $1
		ORDER BY received_at DESC
		LIMIT $2
	`, source, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to get webhook events: %w", err)
	}
	defer rows.Close()

	var events []*models.WebhookEvent
	for rows.Next() {
		var event models.WebhookEvent
		if err := rows.Scan(
			&event.ID,
			&event.Source,
			&event.EventType,
			&event.Payload,
			&event.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook events: %w", err)
	}

	return events, nil
}
