package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/payment"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Entitlement is the per-user premium state.
type Entitlement string

const (
	EntitlementFree             Entitlement = "free"
	EntitlementPremiumActive    Entitlement = "premium_active"
	EntitlementPremiumCanceling Entitlement = "premium_canceling"
)

// EntitlementOf derives the premium state from a user and its subscription record.
func EntitlementOf(user models.User, sub *models.Subscription) Entitlement {
	if !user.IsPremium {
		return EntitlementFree
	}
	if sub != nil && sub.CancelAtPeriodEnd {
		return EntitlementPremiumCanceling
	}
	return EntitlementPremiumActive
}

// StatusView is the subscription summary returned to clients.
type StatusView struct {
	HasSubscription    bool        `json:"hasSubscription"`
	IsPremium          bool        `json:"isPremium"`
	Entitlement        Entitlement `json:"entitlement"`
	Status             string      `json:"status,omitempty"`
	CurrentPeriodStart *time.Time  `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time  `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool        `json:"cancelAtPeriodEnd"`
}

// CreateCheckout opens a hosted checkout for userID buying priceID.
func (s *Service) CreateCheckout(ctx context.Context, userID uint64, priceID string) (payment.CheckoutSession, error) {
	priceID = strings.TrimSpace(priceID)
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[priceID]; !ok {
			return payment.CheckoutSession{}, ErrUnknownPrice
		}
	}
	user, errUser := s.loadUser(ctx, userID)
	if errUser != nil {
		return payment.CheckoutSession{}, errUser
	}
	session, errCreate := s.processor.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		UserID:     user.ID,
		Email:      user.Email,
		PriceID:    priceID,
		SuccessURL: s.frontendURL + "/profile?success=true",
		CancelURL:  s.frontendURL + "/profile?canceled=true",
	})
	if errCreate != nil {
		return payment.CheckoutSession{}, errCreate
	}
	log.WithFields(log.Fields{"user_id": user.ID, "session": session.ID}).Info("subscription: checkout session created")
	return session, nil
}

// Status returns the live subscription view for userID.
func (s *Service) Status(ctx context.Context, userID uint64) (StatusView, error) {
	user, errUser := s.loadUser(ctx, userID)
	if errUser != nil {
		return StatusView{}, errUser
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return StatusView{
			HasSubscription: false,
			IsPremium:       user.IsPremium,
			Entitlement:     EntitlementOf(user, nil),
		}, nil
	}

	detail, errRetrieve := s.processor.RetrieveSubscription(ctx, *user.StripeSubscriptionID)
	if errRetrieve != nil {
		return StatusView{}, errRetrieve
	}
	local := &models.Subscription{CancelAtPeriodEnd: detail.CancelAtPeriodEnd}
	return StatusView{
		HasSubscription:    true,
		IsPremium:          user.IsPremium,
		Entitlement:        EntitlementOf(user, local),
		Status:             detail.Status,
		CurrentPeriodStart: timePtr(detail.CurrentPeriodStart),
		CurrentPeriodEnd:   timePtr(detail.CurrentPeriodEnd),
		CancelAtPeriodEnd:  detail.CancelAtPeriodEnd,
	}, nil
}

// Cancel flags the user's subscription to end with the current period. Premium
// access is left in place until the processor reports the change.
func (s *Service) Cancel(ctx context.Context, userID uint64) (payment.SubscriptionDetail, error) {
	user, errUser := s.loadUser(ctx, userID)
	if errUser != nil {
		return payment.SubscriptionDetail{}, errUser
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return payment.SubscriptionDetail{}, ErrNoSubscription
	}
	subscriptionID := *user.StripeSubscriptionID

	detail, errCancel := s.processor.CancelAtPeriodEnd(ctx, subscriptionID)
	if errCancel != nil {
		return payment.SubscriptionDetail{}, errCancel
	}
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Updates(map[string]any{"cancel_at_period_end": true, "updated_at": s.nowFn().UTC()}).Error; err != nil {
		log.WithError(err).WithField("subscription", subscriptionID).Warn("subscription: mark cancel at period end failed")
	}
	log.WithFields(log.Fields{"user_id": user.ID, "subscription": subscriptionID}).Info("subscription: cancellation scheduled")
	return detail, nil
}

// Record returns the local subscription record for userID, or nil.
func (s *Service) Record(ctx context.Context, userID uint64) (*models.Subscription, error) {
	var row models.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC, id DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("subscription: load record: %w", err)
	}
	return &row, nil
}

func (s *Service) loadUser(ctx context.Context, userID uint64) (models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("subscription: load user: %w", errFind)
	}
	return user, nil
}
