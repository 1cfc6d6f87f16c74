package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/payment"
	"github.com/guess2/dailytrivia/internal/subscription"
	log "github.com/sirupsen/logrus"
)

const (
	maxWebhookBody   = 1 << 20
	paymentsDisabled = "Payments are disabled"
)

// PaymentHandler serves checkout, subscription management and processor webhooks.
type PaymentHandler struct {
	subs      *subscription.Service
	processor payment.Processor
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(subs *subscription.Service, processor payment.Processor) *PaymentHandler {
	return &PaymentHandler{subs: subs, processor: processor}
}

// userRef accepts a user id sent as a JSON number or string.
type userRef uint64

func (r *userRef) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		*r = 0
		return nil
	}
	var text string
	if raw[0] == '"' {
		if errUnmarshal := json.Unmarshal(raw, &text); errUnmarshal != nil {
			return errUnmarshal
		}
	} else {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		*r = 0
		return nil
	}
	id, errParse := strconv.ParseUint(text, 10, 64)
	if errParse != nil {
		return errParse
	}
	*r = userRef(id)
	return nil
}

type checkoutRequest struct {
	UserID  userRef `json:"userId"`
	PriceID string  `json:"priceId"`
}

type cancelRequest struct {
	UserID userRef `json:"userId"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type cancelResponse struct {
	Status            string     `json:"status"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty"`
}

// CreateCheckoutSession opens a hosted checkout page for a premium plan.
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var body checkoutRequest
	errBind := c.ShouldBindJSON(&body)
	if errBind != nil || body.UserID == 0 || strings.TrimSpace(body.PriceID) == "" {
		respond.Fail(c, respond.BadRequest("User ID and Price ID are required"))
		return
	}
	if !canActFor(c, uint64(body.UserID)) {
		respond.Fail(c, respond.Forbidden("Access denied"))
		return
	}
	session, err := h.subs.CreateCheckout(c.Request.Context(), uint64(body.UserID), body.PriceID)
	switch {
	case errors.Is(err, subscription.ErrUserNotFound):
		respond.Fail(c, respond.NotFound("User not found"))
		return
	case errors.Is(err, subscription.ErrUnknownPrice):
		respond.Fail(c, respond.BadRequest("Unknown price ID"))
		return
	case errors.Is(err, payment.ErrDisabled):
		respond.Fail(c, respond.BadRequest(paymentsDisabled))
		return
	case err != nil:
		respond.Fail(c, respond.Internal(err))
		return
	}
	respond.OK(c, checkoutResponse{SessionID: session.ID, URL: session.URL})
}

// Webhook verifies and applies a processor event. Verified deliveries are always
// acknowledged; failures to apply them are logged.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	signature := strings.TrimSpace(c.GetHeader("Stripe-Signature"))
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, errRead := c.GetRawData()
	if errRead != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(errRead, &tooLarge) {
			respond.Fail(c, respond.PayloadTooLarge("Webhook body too large"))
			return
		}
		respond.Fail(c, respond.BadRequest("Unreadable webhook body"))
		return
	}
	if signature == "" {
		respond.Fail(c, respond.BadRequest("Missing signature or webhook secret"))
		return
	}
	evt, errVerify := h.processor.VerifyEvent(payload, signature)
	if errors.Is(errVerify, payment.ErrMalformedEvent) {
		outcome := h.subs.RecordFailure(c.Request.Context(), evt, errVerify)
		log.WithError(errVerify).WithFields(log.Fields{"event_id": evt.ID, "type": evt.Type, "outcome": outcome}).
			Error("payments: webhook event could not be decoded")
		respond.OK(c, gin.H{"received": true})
		return
	}
	if errVerify != nil {
		log.WithError(errVerify).Warn("payments: webhook verification failed")
		respond.Fail(c, respond.BadRequest("Invalid signature"))
		return
	}
	outcome, errHandle := h.subs.HandleEvent(c.Request.Context(), evt)
	fields := log.Fields{"event_id": evt.ID, "type": evt.Type, "outcome": outcome}
	if errHandle != nil {
		log.WithError(errHandle).WithFields(fields).Error("payments: webhook event failed")
	} else {
		log.WithFields(fields).Debug("payments: webhook event handled")
	}
	respond.OK(c, gin.H{"received": true})
}

// Subscription returns the subscription state of :userId.
func (h *PaymentHandler) Subscription(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		respond.Fail(c, respond.NotFound("User not found"))
		return
	}
	if !canActFor(c, userID) {
		respond.Fail(c, respond.Forbidden("Access denied"))
		return
	}
	view, err := h.subs.Status(c.Request.Context(), userID)
	switch {
	case errors.Is(err, subscription.ErrUserNotFound):
		respond.Fail(c, respond.NotFound("User not found"))
		return
	case errors.Is(err, payment.ErrDisabled):
		respond.Fail(c, respond.BadRequest(paymentsDisabled))
		return
	case err != nil:
		respond.Fail(c, respond.Internal(err))
		return
	}
	respond.OK(c, view)
}

// Cancel schedules the user's subscription to end with the current period.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var body cancelRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.UserID == 0 {
		respond.Fail(c, respond.BadRequest("User ID is required"))
		return
	}
	userID := uint64(body.UserID)
	if !canActFor(c, userID) {
		respond.Fail(c, respond.Forbidden("Access denied"))
		return
	}
	detail, err := h.subs.Cancel(c.Request.Context(), userID)
	switch {
	case errors.Is(err, subscription.ErrUserNotFound):
		respond.Fail(c, respond.NotFound("User not found"))
		return
	case errors.Is(err, subscription.ErrNoSubscription):
		respond.Fail(c, respond.NotFound("No active subscription found"))
		return
	case errors.Is(err, payment.ErrDisabled):
		respond.Fail(c, respond.BadRequest(paymentsDisabled))
		return
	case err != nil:
		respond.Fail(c, respond.Internal(err))
		return
	}
	out := cancelResponse{Status: detail.Status, CancelAtPeriodEnd: detail.CancelAtPeriodEnd}
	if !detail.CurrentPeriodEnd.IsZero() {
		end := detail.CurrentPeriodEnd
		out.CurrentPeriodEnd = &end
	}
	respond.Message(c, out, "Subscription will be canceled at the end of the current billing period")
}

// canActFor reports whether the signed-in player may manage userID's billing.
func canActFor(c *gin.Context, userID uint64) bool {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		return false
	}
	return actor.ID == userID || actor.IsAdmin
}
