package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Provider stays "pending" until a gateway webhook settles the payment.
type PaymentLog struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	PlanID        uuid.UUID    `gorm:"type:uuid;not null" json:"plan_id"`
	Plan          *PricingPlan `json:"-"`
	Amount        float64      `gorm:"not null" json:"amount"`
	Currency      string       `gorm:"size:8" json:"currency"`
	Provider      string       `gorm:"size:32;uniqueIndex:idx_provider_txn" json:"provider"`
	TransactionID string       `gorm:"size:255;uniqueIndex:idx_provider_txn" json:"transaction_id"`
	Status        string       `gorm:"size:32;default:'pending'" json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (p *PaymentLog) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
