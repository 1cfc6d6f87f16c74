package models

import (
	"time"

	"gorm.io/datatypes"
)

// Processor subscription statuses referenced by the entitlement logic.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors the processor-side subscription backing a premium entitlement.
type Subscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID               uint64 `gorm:"not null;index" json:"user_id"`                                        // Subscriber.
	StripeSubscriptionID string `gorm:"type:varchar(255);not null;uniqueIndex" json:"stripe_subscription_id"` // Processor subscription id.
	StripeCustomerID     string `gorm:"type:varchar(255)" json:"stripe_customer_id"`                          // Processor customer id.
	Status               string `gorm:"type:varchar(32);not null" json:"status"`                              // Processor status.
	PriceID              string `gorm:"type:varchar(255)" json:"price_id"`                                    // Purchased price.

	CurrentPeriodStart *time.Time `json:"current_period_start"`                               // Billing period start.
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`                                 // Billing period end.
	CancelAtPeriodEnd  bool       `gorm:"not null;default:false" json:"cancel_at_period_end"` // Cancellation requested.
	CanceledAt         *time.Time `json:"canceled_at"`                                        // Cancellation timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Webhook journal statuses.
const (
	WebhookStatusApplied = "applied"
	WebhookStatusIgnored = "ignored"
	WebhookStatusDropped = "dropped"
	WebhookStatusFailed  = "failed"
)

// WebhookEvent journals every verified processor event by its id.
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EventID     string         `gorm:"type:varchar(255);not null;uniqueIndex"` // Processor event id.
	Type        string         `gorm:"type:varchar(128);not null;index"`       // Processor event type.
	Payload     datatypes.JSON `gorm:"not null"`                               // Raw event body.
	Status      string         `gorm:"type:varchar(16);not null"`              // Processing outcome.
	Error       string         `gorm:"type:text"`                              // Failure detail.
	ProcessedAt time.Time      `gorm:"not null"`                               // Last processing time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
