// Package subscription keeps premium entitlements in step with the payment processor.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guess2/dailytrivia/internal/metrics"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/payment"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("subscription: user not found")
	// ErrNoSubscription is returned when a user has no subscription to act on.
	ErrNoSubscription = errors.New("subscription: no active subscription")
	// ErrUnknownPrice is returned for price ids that are not configured plans.
	ErrUnknownPrice = errors.New("subscription: unknown price")
)

// Outcome describes what HandleEvent did with an event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDropped   Outcome = "dropped"
	OutcomeFailed    Outcome = "failed"
	OutcomeDuplicate Outcome = "duplicate"
)

// Options configures a Service.
type Options struct {
	FrontendURL     string
	AllowedPriceIDs []string
	Now             func() time.Time
}

// Service applies webhook events and user-initiated subscription actions.
type Service struct {
	db          *gorm.DB
	processor   payment.Processor
	frontendURL string
	allowed     map[string]struct{}
	nowFn       func() time.Time
}

// NewService constructs a Service.
func NewService(db *gorm.DB, processor payment.Processor, opts Options) *Service {
	allowed := make(map[string]struct{}, len(opts.AllowedPriceIDs))
	for _, id := range opts.AllowedPriceIDs {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		db:          db,
		processor:   processor,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		allowed:     allowed,
		nowFn:       nowFn,
	}
}

// IsEntitled reports whether a processor status grants premium access.
func IsEntitled(status string) bool {
	switch status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

// HandleEvent applies a verified event. Unknown kinds are ignored without touching
// the store. The returned error describes a failed transition; callers log it and
// still acknowledge the delivery.
func (s *Service) HandleEvent(ctx context.Context, evt payment.Event) (Outcome, error) {
	if evt.Kind == payment.EventUnknown || evt.Kind == "" {
		metrics.WebhookEventsTotal.WithLabelValues(evt.Type, string(OutcomeIgnored)).Inc()
		log.WithFields(log.Fields{"event_id": evt.ID, "type": evt.Type}).Debug("subscription: ignoring event")
		return OutcomeIgnored, nil
	}

	if seen, errSeen := s.alreadyProcessed(ctx, evt.ID); errSeen != nil {
		log.WithError(errSeen).WithField("event_id", evt.ID).Warn("subscription: journal lookup failed")
	} else if seen {
		metrics.WebhookEventsTotal.WithLabelValues(evt.Type, string(OutcomeDuplicate)).Inc()
		log.WithField("event_id", evt.ID).Info("subscription: duplicate event skipped")
		return OutcomeDuplicate, nil
	}

	var (
		outcome  Outcome
		errApply error
	)
	switch evt.Kind {
	case payment.EventCheckoutCompleted:
		outcome, errApply = s.applyCheckout(ctx, evt)
	case payment.EventSubscriptionUpdated:
		outcome, errApply = s.applyUpdated(ctx, evt)
	case payment.EventSubscriptionDeleted:
		outcome, errApply = s.applyDeleted(ctx, evt)
	}
	if errApply != nil {
		outcome = OutcomeFailed
	}

	s.journal(ctx, evt, outcome, errApply)
	metrics.WebhookEventsTotal.WithLabelValues(evt.Type, string(outcome)).Inc()
	return outcome, errApply
}

// RecordFailure journals a verified event that could not be decoded. The failed
// status keeps the event id open, so a later redelivery is applied normally.
func (s *Service) RecordFailure(ctx context.Context, evt payment.Event, errDecode error) Outcome {
	metrics.WebhookEventsTotal.WithLabelValues(evt.Type, string(OutcomeFailed)).Inc()
	s.journal(ctx, evt, OutcomeFailed, errDecode)
	return OutcomeFailed
}

func (s *Service) applyCheckout(ctx context.Context, evt payment.Event) (Outcome, error) {
	session := evt.Checkout
	if session == nil || session.UserID == "" || session.SubscriptionID == "" {
		log.WithField("event_id", evt.ID).Warn("subscription: checkout missing userId or subscription, dropping")
		return OutcomeDropped, nil
	}
	userID, errParse := strconv.ParseUint(session.UserID, 10, 64)
	if errParse != nil {
		log.WithField("event_id", evt.ID).Warnf("subscription: checkout has invalid userId %q, dropping", session.UserID)
		return OutcomeDropped, nil
	}

	detail, errRetrieve := s.processor.RetrieveSubscription(ctx, session.SubscriptionID)
	if errRetrieve != nil {
		return OutcomeFailed, fmt.Errorf("subscription: checkout: %w", errRetrieve)
	}
	customerID := detail.CustomerID
	if customerID == "" {
		customerID = session.CustomerID
	}
	status := detail.Status
	if status == "" {
		status = models.SubscriptionStatusActive
	}

	outcome := OutcomeApplied
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"is_premium":             true,
			"stripe_subscription_id": session.SubscriptionID,
			"stripe_customer_id":     customerID,
			"subscription_status":    status,
		})
		if res.Error != nil {
			return fmt.Errorf("update user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			outcome = OutcomeDropped
			return nil
		}

		now := s.nowFn().UTC()
		row := models.Subscription{
			UserID:               userID,
			StripeSubscriptionID: session.SubscriptionID,
			StripeCustomerID:     customerID,
			Status:               status,
			PriceID:              detail.PriceID,
			CurrentPeriodStart:   timePtr(detail.CurrentPeriodStart),
			CurrentPeriodEnd:     timePtr(detail.CurrentPeriodEnd),
			CancelAtPeriodEnd:    detail.CancelAtPeriodEnd,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id",
				"stripe_customer_id",
				"status",
				"price_id",
				"current_period_start",
				"current_period_end",
				"cancel_at_period_end",
				"updated_at",
			}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
		return nil
	})
	if errTx != nil {
		return OutcomeFailed, fmt.Errorf("subscription: checkout: %w", errTx)
	}
	if outcome == OutcomeDropped {
		log.WithFields(log.Fields{"event_id": evt.ID, "user_id": userID}).Warn("subscription: checkout for unknown user, dropping")
		return outcome, nil
	}
	log.WithFields(log.Fields{"user_id": userID, "subscription": session.SubscriptionID, "status": status}).Info("subscription: premium activated")
	return outcome, nil
}

func (s *Service) applyUpdated(ctx context.Context, evt payment.Event) (Outcome, error) {
	detail := evt.Subscription
	if detail == nil || detail.ID == "" {
		log.WithField("event_id", evt.ID).Warn("subscription: update without subscription id, dropping")
		return OutcomeDropped, nil
	}

	outcome := OutcomeApplied
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userIDs, errLocate := locateUsers(tx, detail.ID)
		if errLocate != nil {
			return errLocate
		}
		if len(userIDs) == 0 {
			outcome = OutcomeDropped
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id IN ?", userIDs).Updates(map[string]any{
			"subscription_status": detail.Status,
			"is_premium":          IsEntitled(detail.Status),
		}).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		updates := map[string]any{
			"status":               detail.Status,
			"cancel_at_period_end": detail.CancelAtPeriodEnd,
			"updated_at":           s.nowFn().UTC(),
		}
		if !detail.CurrentPeriodStart.IsZero() {
			updates["current_period_start"] = detail.CurrentPeriodStart
		}
		if !detail.CurrentPeriodEnd.IsZero() {
			updates["current_period_end"] = detail.CurrentPeriodEnd
		}
		if detail.CanceledAt != nil {
			updates["canceled_at"] = *detail.CanceledAt
		}
		if err := tx.Model(&models.Subscription{}).Where("stripe_subscription_id = ?", detail.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		return nil
	})
	if errTx != nil {
		return OutcomeFailed, fmt.Errorf("subscription: update: %w", errTx)
	}
	if outcome == OutcomeDropped {
		log.WithFields(log.Fields{"event_id": evt.ID, "subscription": detail.ID}).Warn("subscription: update for unlinked subscription, dropping")
	}
	return outcome, nil
}

func (s *Service) applyDeleted(ctx context.Context, evt payment.Event) (Outcome, error) {
	detail := evt.Subscription
	if detail == nil || detail.ID == "" {
		log.WithField("event_id", evt.ID).Warn("subscription: delete without subscription id, dropping")
		return OutcomeDropped, nil
	}
	canceledAt := s.nowFn().UTC()
	if detail.CanceledAt != nil {
		canceledAt = detail.CanceledAt.UTC()
	}

	outcome := OutcomeApplied
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userIDs, errLocate := locateUsers(tx, detail.ID)
		if errLocate != nil {
			return errLocate
		}
		if len(userIDs) == 0 {
			outcome = OutcomeDropped
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id IN ?", userIDs).Updates(map[string]any{
			"is_premium":          false,
			"subscription_status": models.SubscriptionStatusCanceled,
		}).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := tx.Model(&models.Subscription{}).Where("stripe_subscription_id = ?", detail.ID).Updates(map[string]any{
			"status":               models.SubscriptionStatusCanceled,
			"canceled_at":          canceledAt,
			"cancel_at_period_end": false,
			"updated_at":           s.nowFn().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		return nil
	})
	if errTx != nil {
		return OutcomeFailed, fmt.Errorf("subscription: delete: %w", errTx)
	}
	if outcome == OutcomeDropped {
		log.WithFields(log.Fields{"event_id": evt.ID, "subscription": detail.ID}).Warn("subscription: delete for unlinked subscription, dropping")
		return outcome, nil
	}
	log.WithField("subscription", detail.ID).Info("subscription: premium revoked")
	return outcome, nil
}

// locateUsers finds users linked to a processor subscription, either directly or
// through the subscription record.
func locateUsers(tx *gorm.DB, stripeSubscriptionID string) ([]uint64, error) {
	var userIDs []uint64
	if err := tx.Model(&models.User{}).Where("stripe_subscription_id = ?", stripeSubscriptionID).Pluck("id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("locate user: %w", err)
	}
	if len(userIDs) > 0 {
		return userIDs, nil
	}
	if err := tx.Model(&models.Subscription{}).Where("stripe_subscription_id = ?", stripeSubscriptionID).Pluck("user_id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("locate subscription: %w", err)
	}
	return userIDs, nil
}

func (s *Service) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	var row models.WebhookEvent
	err := s.db.WithContext(ctx).Select("id", "status").Where("event_id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.Status != models.WebhookStatusFailed, nil
}

func (s *Service) journal(ctx context.Context, evt payment.Event, outcome Outcome, errApply error) {
	if evt.ID == "" {
		return
	}
	payload := evt.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	row := models.WebhookEvent{
		EventID:     evt.ID,
		Type:        evt.Type,
		Payload:     datatypes.JSON(payload),
		Status:      journalStatus(outcome),
		ProcessedAt: s.nowFn().UTC(),
	}
	if errApply != nil {
		row.Error = errApply.Error()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error", "processed_at"}),
	}).Create(&row).Error; err != nil {
		log.WithError(err).WithField("event_id", evt.ID).Warn("subscription: journal write failed")
	}
}

func journalStatus(outcome Outcome) string {
	switch outcome {
	case OutcomeApplied:
		return models.WebhookStatusApplied
	case OutcomeDropped:
		return models.WebhookStatusDropped
	case OutcomeIgnored:
		return models.WebhookStatusIgnored
	default:
		return models.WebhookStatusFailed
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
