package payment

import (
	"context"
	"errors"
)

// ErrDisabled is returned by every Disabled call.
var ErrDisabled = errors.New("payment: processor disabled")

// Disabled is the Processor used when payments are turned off in configuration.
type Disabled struct{}

// CreateCheckoutSession implements Processor.
func (Disabled) CreateCheckoutSession(context.Context, CheckoutRequest) (CheckoutSession, error) {
	return CheckoutSession{}, ErrDisabled
}

// RetrieveSubscription implements Processor.
func (Disabled) RetrieveSubscription(context.Context, string) (SubscriptionDetail, error) {
	return SubscriptionDetail{}, ErrDisabled
}

// CancelAtPeriodEnd implements Processor.
func (Disabled) CancelAtPeriodEnd(context.Context, string) (SubscriptionDetail, error) {
	return SubscriptionDetail{}, ErrDisabled
}

// VerifyEvent implements Processor. Every delivery is rejected.
func (Disabled) VerifyEvent([]byte, string) (Event, error) {
	return Event{}, errors.Join(ErrInvalidSignature, ErrDisabled)
}
