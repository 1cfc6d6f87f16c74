// Package payment wraps the hosted payment processor behind a narrow interface.
package payment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidSignature indicates a webhook body whose signature did not verify.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	// ErrMalformedEvent indicates a verified event whose body could not be decoded.
	ErrMalformedEvent = errors.New("payment: malformed event")
)

// EventKind is the processor-independent classification of a webhook event.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout_completed"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	EventUnknown             EventKind = "unknown"
)

// Event is a verified webhook delivery.
type Event struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	Kind         EventKind           `json:"kind"`
	Created      time.Time           `json:"created"`
	Checkout     *CheckoutSession    `json:"checkout,omitempty"`
	Subscription *SubscriptionDetail `json:"subscription,omitempty"`
	Payload      []byte              `json:"-"`
}

// CheckoutSession is a hosted checkout page, or the completed session carried by an event.
type CheckoutSession struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
}

// SubscriptionDetail is the processor's view of one subscription.
type SubscriptionDetail struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	Status             string     `json:"status"`
	PriceID            string     `json:"price_id"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
}

// CheckoutRequest describes a subscription checkout to create.
type CheckoutRequest struct {
	UserID     uint64
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Processor is the payment processor capability used by the subscription service.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (SubscriptionDetail, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (SubscriptionDetail, error)
	// VerifyEvent checks the signature header against the raw body and decodes the event.
	// A verified body whose object cannot be decoded returns ErrMalformedEvent together
	// with an EventUnknown event that still carries the id and type.
	VerifyEvent(payload []byte, signatureHeader string) (Event, error)
}
