package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe event types consumed by the subscription service.
const (
	stripeCheckoutCompleted   = "checkout.session.completed"
	stripeSubscriptionUpdated = "customer.subscription.updated"
	stripeSubscriptionDeleted = "customer.subscription.deleted"
)

// MetadataUserID is the checkout metadata key carrying the purchasing user.
const MetadataUserID = "userId"

// StripeProcessor implements Processor with the Stripe API.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProcessor constructs a StripeProcessor. backends may be nil.
func NewStripeProcessor(secretKey, webhookSecret string, backends *stripe.Backends) *StripeProcessor {
	api := &client.API{}
	api.Init(strings.TrimSpace(secretKey), backends)
	return &StripeProcessor{
		api:           api,
		webhookSecret: strings.TrimSpace(webhookSecret),
	}
}

// CreateCheckoutSession implements Processor.
func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	userID := strconv.FormatUint(req.UserID, 10)
	params := &stripe.CheckoutSessionParams{
		CustomerEmail:      stripe.String(req.Email),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: userID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userID)

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payment: create checkout session: %w", err)
	}
	return checkoutFromStripe(session), nil
}

// RetrieveSubscription implements Processor.
func (p *StripeProcessor) RetrieveSubscription(ctx context.Context, subscriptionID string) (SubscriptionDetail, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return SubscriptionDetail{}, fmt.Errorf("payment: retrieve subscription %s: %w", subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

// CancelAtPeriodEnd implements Processor.
func (p *StripeProcessor) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (SubscriptionDetail, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return SubscriptionDetail{}, fmt.Errorf("payment: cancel subscription %s: %w", subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

// VerifyEvent implements Processor.
func (p *StripeProcessor) VerifyEvent(payload []byte, signatureHeader string) (Event, error) {
	if strings.TrimSpace(signatureHeader) == "" {
		return Event{}, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	if p.webhookSecret == "" {
		return Event{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeStripeEvent(evt, payload)
}

func decodeStripeEvent(evt stripe.Event, payload []byte) (Event, error) {
	out := Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Kind:    EventUnknown,
		Created: time.Unix(evt.Created, 0).UTC(),
		Payload: payload,
	}
	if evt.Data == nil {
		return out, nil
	}
	switch string(evt.Type) {
	case stripeCheckoutCompleted:
		var session stripe.CheckoutSession
		if errUnmarshal := json.Unmarshal(evt.Data.Raw, &session); errUnmarshal != nil {
			return out, errors.Join(ErrMalformedEvent, errUnmarshal)
		}
		checkout := checkoutFromStripe(&session)
		out.Kind = EventCheckoutCompleted
		out.Checkout = &checkout
	case stripeSubscriptionUpdated, stripeSubscriptionDeleted:
		var sub stripe.Subscription
		if errUnmarshal := json.Unmarshal(evt.Data.Raw, &sub); errUnmarshal != nil {
			return out, errors.Join(ErrMalformedEvent, errUnmarshal)
		}
		detail := subscriptionFromStripe(&sub)
		out.Subscription = &detail
		if string(evt.Type) == stripeSubscriptionUpdated {
			out.Kind = EventSubscriptionUpdated
		} else {
			out.Kind = EventSubscriptionDeleted
		}
	}
	return out, nil
}

func checkoutFromStripe(session *stripe.CheckoutSession) CheckoutSession {
	if session == nil {
		return CheckoutSession{}
	}
	out := CheckoutSession{
		ID:  session.ID,
		URL: session.URL,
	}
	if session.Metadata != nil {
		out.UserID = strings.TrimSpace(session.Metadata[MetadataUserID])
	}
	if session.Subscription != nil {
		out.SubscriptionID = session.Subscription.ID
	}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}
	return out
}

func subscriptionFromStripe(sub *stripe.Subscription) SubscriptionDetail {
	if sub == nil {
		return SubscriptionDetail{}
	}
	out := SubscriptionDetail{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodStart > 0 {
		out.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.CanceledAt > 0 {
		canceledAt := time.Unix(sub.CanceledAt, 0).UTC()
		out.CanceledAt = &canceledAt
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				out.PriceID = item.Price.ID
				break
			}
		}
	}
	return out
}
