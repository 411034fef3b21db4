package webhooks

import (
	"time"

	"github.com/google/uuid"
)

// Event types dispatched after committed lifecycle transitions.
const (
	EventVersionUploaded    = "protocol_version.uploaded"
	EventVersionPromoted    = "protocol_version.promoted"
	EventVersionSuperseded  = "protocol_version.superseded"
	EventDelegationIssued   = "delegation.issued"
	EventDelegationAccepted = "delegation.accepted"
	EventDelegationDeclined = "delegation.declined"
	EventDelegationRevoked  = "delegation.revoked"
)

// Subscription represents an actor's subscription to lifecycle events.
type Subscription struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	ActorID   int64     `json:"actor_id"   db:"actor_id"`
	URL       string    `json:"url"        db:"url"`
	Events    []string  `json:"events"     db:"events"`
	Secret    string    `json:"-"          db:"secret"` // never returned in API responses
	Active    bool      `json:"active"     db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Event is the payload POSTed to matching subscriptions.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Delivery records the outcome of a single delivery attempt.
type Delivery struct {
	ID             uuid.UUID `json:"id"              db:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id" db:"subscription_id"`
	EventType      string    `json:"event_type"      db:"event_type"`
	StatusCode     int       `json:"status_code"     db:"status_code"`
	Attempt        int       `json:"attempt"         db:"attempt"`
	Success        bool      `json:"success"         db:"success"`
	ErrorMessage   string    `json:"error_message"   db:"error_message"`
	DeliveredAt    time.Time `json:"delivered_at"    db:"delivered_at"`
}

// CreateSubscriptionRequest is the payload for creating a subscription.
type CreateSubscriptionRequest struct {
	URL    string   `json:"url"    binding:"required,url"`
	Events []string `json:"events" binding:"required"`
}
