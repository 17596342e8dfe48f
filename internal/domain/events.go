package domain

import (
	"encoding/json"
	"time"
)

const (
	EventCartItemAdded           = "CartItemAdded"
	EventCartItemRemoved         = "CartItemRemoved"
	EventCartItemQuantityChanged = "CartItemQuantityChanged"
	EventCartCleared             = "CartCleared"
	EventGuestCartClaimed        = "GuestCartClaimed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// CartEvent is a mutation that already committed. Owner drives partitioning
// so that events for one cart stay ordered.
type CartEvent struct {
	Type    string
	Owner   Owner
	Payload any
}

type CartItemPayload struct {
	OwnerKind string `json:"owner_kind"`
	OwnerID   string `json:"owner_id"`
	ProductID string `json:"product_id,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type CartClearedPayload struct {
	OwnerKind string `json:"owner_kind"`
	OwnerID   string `json:"owner_id"`
}

type GuestCartClaimedPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// CheckoutCompleted is the part of the checkout outbox message the cart cares about.
type CheckoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}
