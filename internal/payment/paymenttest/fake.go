// Package paymenttest provides an in-memory payment.Processor for tests.
package paymenttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/guess2/dailytrivia/internal/payment"
)

// ValidSignature is the only signature header the fake accepts.
const ValidSignature = "t=1,v1=valid"

// Processor records calls and serves canned subscriptions.
type Processor struct {
	mu sync.Mutex

	Subscriptions map[string]payment.SubscriptionDetail
	Checkouts     []payment.CheckoutRequest
	Canceled      []string

	// Err, when set, is returned by every outbound call.
	Err error
}

// New constructs an empty fake processor.
func New() *Processor {
	return &Processor{Subscriptions: make(map[string]payment.SubscriptionDetail)}
}

// AddSubscription registers a subscription the fake will return.
func (p *Processor) AddSubscription(detail payment.SubscriptionDetail) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Subscriptions[detail.ID] = detail
}

// CreateCheckoutSession implements payment.Processor.
func (p *Processor) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return payment.CheckoutSession{}, p.Err
	}
	p.Checkouts = append(p.Checkouts, req)
	id := fmt.Sprintf("cs_test_%d", len(p.Checkouts))
	return payment.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

// RetrieveSubscription implements payment.Processor.
func (p *Processor) RetrieveSubscription(_ context.Context, subscriptionID string) (payment.SubscriptionDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return payment.SubscriptionDetail{}, p.Err
	}
	detail, ok := p.Subscriptions[subscriptionID]
	if !ok {
		return payment.SubscriptionDetail{}, fmt.Errorf("no such subscription: %s", subscriptionID)
	}
	return detail, nil
}

// CancelAtPeriodEnd implements payment.Processor.
func (p *Processor) CancelAtPeriodEnd(_ context.Context, subscriptionID string) (payment.SubscriptionDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return payment.SubscriptionDetail{}, p.Err
	}
	detail, ok := p.Subscriptions[subscriptionID]
	if !ok {
		return payment.SubscriptionDetail{}, fmt.Errorf("no such subscription: %s", subscriptionID)
	}
	detail.CancelAtPeriodEnd = true
	p.Subscriptions[subscriptionID] = detail
	p.Canceled = append(p.Canceled, subscriptionID)
	return detail, nil
}

// VerifyEvent accepts ValidSignature and decodes the body as a JSON payment.Event.
func (p *Processor) VerifyEvent(payload []byte, signatureHeader string) (payment.Event, error) {
	if signatureHeader != ValidSignature {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	var evt payment.Event
	if errUnmarshal := json.Unmarshal(payload, &evt); errUnmarshal != nil {
		var head struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		_ = json.Unmarshal(payload, &head)
		malformed := payment.Event{ID: head.ID, Type: head.Type, Kind: payment.EventUnknown, Payload: payload}
		return malformed, errors.Join(payment.ErrMalformedEvent, errUnmarshal)
	}
	if evt.Kind == "" {
		evt.Kind = payment.EventUnknown
	}
	evt.Payload = payload
	return evt, nil
}

// EncodeEvent marshals evt into a body VerifyEvent understands.
func EncodeEvent(evt payment.Event) []byte {
	raw, _ := json.Marshal(evt)
	return raw
}
