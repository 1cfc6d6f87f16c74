package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test_secret"

func signStripePayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifyEvent_CheckoutCompleted(t *testing.T) {
	p := NewStripeProcessor("sk_test_unused", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_checkout","object":"event","api_version":"2023-10-16","created":1700000000,"type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","metadata":{"userId":"7"},"subscription":"sub_123","customer":"cus_9"}}}`)

	evt, err := p.VerifyEvent(payload, signStripePayload(testWebhookSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if evt.Kind != EventCheckoutCompleted {
		t.Fatalf("expected checkout kind, got %s", evt.Kind)
	}
	if evt.ID != "evt_checkout" {
		t.Fatalf("expected event id, got %q", evt.ID)
	}
	if evt.Checkout == nil || evt.Checkout.UserID != "7" || evt.Checkout.SubscriptionID != "sub_123" || evt.Checkout.CustomerID != "cus_9" {
		t.Fatalf("unexpected checkout payload: %+v", evt.Checkout)
	}
}

func TestStripeVerifyEvent_SubscriptionDeleted(t *testing.T) {
	p := NewStripeProcessor("sk_test_unused", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_del","object":"event","created":1700000100,"type":"customer.subscription.deleted","data":{"object":{"id":"sub_123","object":"subscription","status":"canceled","customer":"cus_9","current_period_start":1700000000,"current_period_end":1702592000,"canceled_at":1700000100,"cancel_at_period_end":false}}}`)

	evt, err := p.VerifyEvent(payload, signStripePayload(testWebhookSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if evt.Kind != EventSubscriptionDeleted {
		t.Fatalf("expected deleted kind, got %s", evt.Kind)
	}
	sub := evt.Subscription
	if sub == nil || sub.ID != "sub_123" || sub.Status != "canceled" || sub.CustomerID != "cus_9" {
		t.Fatalf("unexpected subscription payload: %+v", sub)
	}
	if !sub.CurrentPeriodEnd.Equal(time.Unix(1702592000, 0)) {
		t.Fatalf("expected period end to decode, got %s", sub.CurrentPeriodEnd)
	}
	if sub.CanceledAt == nil || sub.CanceledAt.Unix() != 1700000100 {
		t.Fatalf("expected canceled_at to decode, got %v", sub.CanceledAt)
	}
}

func TestStripeVerifyEvent_UnknownType(t *testing.T) {
	p := NewStripeProcessor("sk_test_unused", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_other","object":"event","created":1700000000,"type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)

	evt, err := p.VerifyEvent(payload, signStripePayload(testWebhookSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if evt.Kind != EventUnknown {
		t.Fatalf("expected unknown kind, got %s", evt.Kind)
	}
}

func TestStripeVerifyEvent_RejectsBadSignatures(t *testing.T) {
	p := NewStripeProcessor("sk_test_unused", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_x","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	cases := map[string]string{
		"missing":   "",
		"wrong key": signStripePayload("whsec_other", payload, time.Now()),
		"stale":     signStripePayload(testWebhookSecret, payload, time.Now().Add(-time.Hour)),
		"garbage":   "not-a-signature",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := p.VerifyEvent(payload, header); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestStripeVerifyEvent_MissingSecret(t *testing.T) {
	p := NewStripeProcessor("sk_test_unused", "", nil)
	payload := []byte(`{"id":"evt_x"}`)
	if _, err := p.VerifyEvent(payload, signStripePayload("", payload, time.Now())); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature without secret, got %v", err)
	}
}

func TestStripeVerifyEvent_UndecodableObjectKeepsIdentity(t *testing.T) {
	p := NewStripeProcessor("sk_test_unused", testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_drift","object":"event","created":1700000000,"type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","subscription":5}}}`)

	evt, err := p.VerifyEvent(payload, signStripePayload(testWebhookSecret, payload, time.Now()))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	if errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("a verified body must not be reported as a bad signature: %v", err)
	}
	if evt.ID != "evt_drift" || evt.Type != "checkout.session.completed" || evt.Kind != EventUnknown {
		t.Fatalf("expected id and type with unknown kind, got %+v", evt)
	}
	if len(evt.Payload) == 0 {
		t.Fatalf("expected raw payload to be kept")
	}
}
