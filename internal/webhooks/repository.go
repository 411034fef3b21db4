package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/storage"
)

// Repository provides persistence for webhook subscriptions and deliveries.
type Repository struct {
	db *storage.DB
}

// NewRepository creates a webhook Repository.
func NewRepository(db *storage.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new subscription.
func (r *Repository) Create(ctx context.Context, sub *Subscription) error {
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now().UTC()
	sub.Active = true

	const q = `
		INSERT INTO webhook_subscriptions (id, actor_id, url, events, secret, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Querier(ctx).Exec(ctx, q,
		sub.ID, sub.ActorID, sub.URL, sub.Events, sub.Secret, sub.Active, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert subscription: %v", errdefs.ErrStorage, err)
	}
	return nil
}

// GetByID retrieves a subscription by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	const q = `
		SELECT id, actor_id, url, events, secret, active, created_at
		FROM webhook_subscriptions WHERE id = $1`
	return r.scanRow(r.db.Querier(ctx).QueryRow(ctx, q, id))
}

// ListByActor returns all subscriptions owned by an actor.
func (r *Repository) ListByActor(ctx context.Context, actorID int64) ([]*Subscription, error) {
	const q = `
		SELECT id, actor_id, url, events, secret, active, created_at
		FROM webhook_subscriptions WHERE actor_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Querier(ctx).Query(ctx, q, actorID)
	if err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %v", errdefs.ErrStorage, err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// ListByEvent returns all active subscriptions listening for an event type.
func (r *Repository) ListByEvent(ctx context.Context, eventType string) ([]*Subscription, error) {
	const q = `
		SELECT id, actor_id, url, events, secret, active, created_at
		FROM webhook_subscriptions
		WHERE active = true AND $1 = ANY(events)
		ORDER BY created_at`
	rows, err := r.db.Querier(ctx).Query(ctx, q, eventType)
	if err != nil {
		return nil, fmt.Errorf("%w: list subscribers: %v", errdefs.ErrStorage, err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// Delete removes a subscription.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete subscription: %v", errdefs.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: subscription %s", errdefs.ErrNotFound, id)
	}
	return nil
}

// RecordDelivery records a delivery attempt.
func (r *Repository) RecordDelivery(ctx context.Context, d *Delivery) error {
	d.ID = uuid.New()
	d.DeliveredAt = time.Now().UTC()

	const q = `
		INSERT INTO webhook_deliveries (id, subscription_id, event_type, status_code, attempt, success, error_message, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Querier(ctx).Exec(ctx, q,
		d.ID, d.SubscriptionID, d.EventType,
		d.StatusCode, d.Attempt, d.Success, d.ErrorMessage, d.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("%w: record delivery: %v", errdefs.ErrStorage, err)
	}
	return nil
}

func (r *Repository) scanRow(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.ActorID, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: subscription", errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: scan subscription: %v", errdefs.ErrStorage, err)
	}
	return &sub, nil
}

func (r *Repository) scanAll(rows pgx.Rows) ([]*Subscription, error) {
	var subs []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.ActorID, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan subscription: %v", errdefs.ErrStorage, err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate subscriptions: %v", errdefs.ErrStorage, err)
	}
	return subs, nil
}
