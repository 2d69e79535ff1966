package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VpnAccountActive   = "active"
	VpnAccountDisabled = "disabled"
)

type VpnAccount struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	SubscriptionID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"subscription_id"`
	Subscription    *Subscription `json:"subscription,omitempty"`
	MarzbanUsername string        `gorm:"size:255;uniqueIndex" json:"marzban_username"`
	SubscriptionURL string        `gorm:"size:512" json:"subscription_url"`
	Links           string        `gorm:"type:text" json:"links"`
	DataLimit       int64         `json:"data_limit"`
	Status          string        `gorm:"size:32;default:'active'" json:"status"`
	ExpiresAt       time.Time     `gorm:"index" json:"expires_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (a *VpnAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
